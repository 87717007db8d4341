package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

// timestampLayout has a fixed width so created_at sorts lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db *sql.DB
}

func sqliteDSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunSQLiteMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) CreateRecord(ctx context.Context, rec core.Record) (core.Record, error) {
	t, err := tableFor(rec.Kind)
	if err != nil {
		return core.Record{}, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	cents, err := core.ToCents(rec.Amount)
	if err != nil {
		return core.Record{}, err
	}
	rec.CreatedAt = time.Now().UTC()

	query := fmt.Sprintf(`INSERT INTO %s (id, user_id, amount_cents, %s, date, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, t.name, t.label)
	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.OwnerID, cents, rec.Label,
		rec.Date.String(), rec.Description, rec.CreatedAt.Format(timestampLayout))
	if err != nil {
		return core.Record{}, fmt.Errorf("insert %s: %w", t.name, err)
	}

	slog.DebugContext(ctx, "Record saved to SQLite",
		"component", "storage",
		"kind", rec.Kind,
		"record_id", rec.ID,
		"owner_id", rec.OwnerID)
	return rec, nil
}

func (r *SQLiteRepository) ListRecords(ctx context.Context, ownerID string, kind core.Kind) ([]core.Record, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT id, user_id, amount_cents, %s, date, description, created_at
		FROM %s WHERE user_id = ? ORDER BY date DESC, created_at DESC`, t.label, t.name)
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.name, err)
	}
	defer rows.Close()

	records := make([]core.Record, 0)
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows, kind)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t.name, err)
	}
	return records, nil
}

func (r *SQLiteRepository) GetRecord(ctx context.Context, ownerID string, kind core.Kind, id string) (core.Record, error) {
	t, err := tableFor(kind)
	if err != nil {
		return core.Record{}, err
	}
	query := fmt.Sprintf(`SELECT id, user_id, amount_cents, %s, date, description, created_at
		FROM %s WHERE id = ? AND user_id = ?`, t.label, t.name)
	rec, err := scanSQLiteRecord(r.db.QueryRowContext(ctx, query, id, ownerID), kind)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, ErrNotFound
	}
	return rec, err
}

func (r *SQLiteRepository) UpdateRecord(ctx context.Context, rec core.Record) (core.Record, error) {
	t, err := tableFor(rec.Kind)
	if err != nil {
		return core.Record{}, err
	}
	cents, err := core.ToCents(rec.Amount)
	if err != nil {
		return core.Record{}, err
	}
	query := fmt.Sprintf(`UPDATE %s SET amount_cents = ?, %s = ?, date = ?, description = ?
		WHERE id = ? AND user_id = ?`, t.name, t.label)
	res, err := r.db.ExecContext(ctx, query,
		cents, rec.Label, rec.Date.String(), rec.Description, rec.ID, rec.OwnerID)
	if err != nil {
		return core.Record{}, fmt.Errorf("update %s: %w", t.name, err)
	}
	if err := expectOneRow(res); err != nil {
		return core.Record{}, err
	}
	return r.GetRecord(ctx, rec.OwnerID, rec.Kind, rec.ID)
}

func (r *SQLiteRepository) DeleteRecord(ctx context.Context, ownerID string, kind core.Kind, id string) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND user_id = ?`, t.name), id, ownerID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.name, err)
	}
	return expectOneRow(res)
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, full_name, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.FullName, u.CreatedAt.Format(timestampLayout))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.User{}, ErrUserExists
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) UserByUsername(ctx context.Context, username string) (core.User, error) {
	return r.queryUser(ctx, `WHERE username = ?`, username)
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id string) (core.User, error) {
	return r.queryUser(ctx, `WHERE id = ?`, id)
}

func (r *SQLiteRepository) queryUser(ctx context.Context, where string, arg string) (core.User, error) {
	var (
		u       core.User
		created string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, full_name, created_at FROM users `+where, arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FullName, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("query user: %w", err)
	}
	u.CreatedAt, _ = time.Parse(timestampLayout, created)
	return u, nil
}

func (r *SQLiteRepository) DeleteUser(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, kind := range core.Kinds() {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE user_id = ?`, tables[kind].name), id); err != nil {
			return fmt.Errorf("delete %s: %w", tables[kind].name, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row rowScanner, kind core.Kind) (core.Record, error) {
	var (
		rec     core.Record
		cents   int64
		date    string
		created string
	)
	if err := row.Scan(&rec.ID, &rec.OwnerID, &cents, &rec.Label, &date, &rec.Description, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Record{}, err
		}
		return core.Record{}, fmt.Errorf("scan record: %w", err)
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Record{}, &core.DataError{RecordID: rec.ID, Field: "date", Err: err}
	}
	rec.Kind = kind
	rec.Amount = core.FromCents(cents)
	rec.Date = d
	rec.CreatedAt, _ = time.Parse(timestampLayout, created)
	return rec, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
