// Package export writes a user's ledger out of the service: an xlsx
// workbook for spreadsheets and an age-encrypted JSON backup.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"filippo.io/age"

	"fintrack/internal/core"
)

// BackupVersion is bumped whenever the backup layout changes.
const BackupVersion = 1

// ErrEmptyPassphrase is returned when encryption or decryption is attempted
// without a passphrase.
var ErrEmptyPassphrase = errors.New("backup passphrase must not be empty")

// scryptWorkFactor is the log2 scrypt cost used for new backups.
var scryptWorkFactor = 18

// Backup is the plaintext document inside an encrypted backup.
type Backup struct {
	Version    int            `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	Username   string         `json:"username"`
	Expenses   []core.Expense `json:"expenses"`
	Income     []core.Income  `json:"income"`
	Savings    []core.Saving  `json:"savings"`
}

// NewBackup groups records by kind into a backup document.
func NewBackup(username string, records map[core.Kind][]core.Record, now time.Time) Backup {
	b := Backup{
		Version:    BackupVersion,
		ExportedAt: now.UTC(),
		Username:   username,
		Expenses:   []core.Expense{},
		Income:     []core.Income{},
		Savings:    []core.Saving{},
	}
	for _, r := range records[core.KindExpense] {
		b.Expenses = append(b.Expenses, r.Expense())
	}
	for _, r := range records[core.KindIncome] {
		b.Income = append(b.Income, r.Income())
	}
	for _, r := range records[core.KindSaving] {
		b.Savings = append(b.Savings, r.Saving())
	}
	return b
}

// Records flattens the backup back into records owned by owner.
func (b Backup) Records(owner string) []core.Record {
	out := make([]core.Record, 0, len(b.Expenses)+len(b.Income)+len(b.Savings))
	for _, e := range b.Expenses {
		out = append(out, e.Record(owner))
	}
	for _, i := range b.Income {
		out = append(out, i.Record(owner))
	}
	for _, s := range b.Savings {
		out = append(out, s.Record(owner))
	}
	return out
}

// WriteEncryptedBackup encrypts b as JSON to w with an age scrypt recipient.
func WriteEncryptedBackup(w io.Writer, b Backup, passphrase string) error {
	if passphrase == "" {
		return ErrEmptyPassphrase
	}
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("create scrypt recipient: %w", err)
	}
	recipient.SetWorkFactor(scryptWorkFactor)

	enc, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("start encryption: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(b); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish encryption: %w", err)
	}
	return nil
}

// ReadEncryptedBackup decrypts and decodes a backup written by
// WriteEncryptedBackup.
func ReadEncryptedBackup(r io.Reader, passphrase string) (Backup, error) {
	if passphrase == "" {
		return Backup{}, ErrEmptyPassphrase
	}
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return Backup{}, fmt.Errorf("create scrypt identity: %w", err)
	}
	dec, err := age.Decrypt(r, identity)
	if err != nil {
		return Backup{}, fmt.Errorf("decrypt backup: %w", err)
	}
	var b Backup
	if err := json.NewDecoder(dec).Decode(&b); err != nil {
		return Backup{}, fmt.Errorf("decode backup: %w", err)
	}
	if b.Version != BackupVersion {
		return Backup{}, fmt.Errorf("unsupported backup version %d", b.Version)
	}
	return b, nil
}
