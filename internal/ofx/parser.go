// Package ofx imports OFX/QFX bank and credit card statements as ledger
// records. Debits become expenses and credits become income.
package ofx

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// DefaultLabel is used when a transaction carries neither payee nor name.
const DefaultLabel = "Imported"

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Statement is the result of parsing one file.
type Statement struct {
	Records []core.Record
	// Skipped counts zero-amount transactions, which have no ledger meaning.
	Skipped  int
	Accounts []string
}

// Parser converts OFX statements into unsaved records.
type Parser struct {
	logger *log.Logger
}

func NewParser(logger *log.Logger) *Parser {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Parser{logger: logger.WithComponent(log.ComponentImport)}
}

// preprocess fixes formatting issues banks commonly ship in SGML files.
func preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

// Parse reads a statement and returns records owned by owner. Records have
// no ID; the store assigns one on create.
func (p *Parser) Parse(ctx context.Context, r io.Reader, owner string) (Statement, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return Statement{}, fmt.Errorf("read OFX file: %w", err)
	}
	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocess(string(content))))
	if err != nil {
		return Statement{}, fmt.Errorf("parse OFX file: %w", err)
	}

	var st Statement
	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		st.Accounts = append(st.Accounts, string(stmt.BankAcctFrom.AcctID))
		p.collect(&st, stmt.BankTranList.Transactions, owner)
	}
	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		st.Accounts = append(st.Accounts, string(stmt.CCAcctFrom.AcctID))
		p.collect(&st, stmt.BankTranList.Transactions, owner)
	}

	p.logger.InfoContext(ctx, "Parsed OFX statement",
		"records", len(st.Records),
		"skipped", st.Skipped,
		"accounts", len(st.Accounts),
		log.FieldOperation, log.OpParse)
	return st, nil
}

func (p *Parser) collect(st *Statement, txs []ofxgo.Transaction, owner string) {
	for _, tx := range txs {
		rec, ok := convert(tx, owner)
		if !ok {
			st.Skipped++
			continue
		}
		st.Records = append(st.Records, rec)
	}
}

// convert maps one transaction. The sign of TRNAMT decides the kind.
func convert(tx ofxgo.Transaction, owner string) (core.Record, bool) {
	amount, err := decimal.NewFromString(tx.TrnAmt.Rat.FloatString(2))
	if err != nil || amount.IsZero() {
		return core.Record{}, false
	}
	kind := core.KindIncome
	if amount.IsNegative() {
		kind = core.KindExpense
		amount = amount.Neg()
	}
	return core.Record{
		OwnerID:     owner,
		Kind:        kind,
		Amount:      amount,
		Label:       label(tx),
		Date:        core.DateOf(tx.DtPosted.Time),
		Description: description(tx),
	}, true
}

// label prefers the payee, then the transaction name with card prefixes
// stripped.
func label(tx ofxgo.Transaction) string {
	if tx.Payee != nil && strings.TrimSpace(string(tx.Payee.Name)) != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}
	name := strings.TrimSpace(string(tx.Name))
	upper := strings.ToUpper(name)
	for _, prefix := range []string{"POS PURCHASE ", "DEBIT CARD PURCHASE ", "ACH DEBIT ", "CHECK CARD ", "VISA PURCHASE "} {
		if strings.HasPrefix(upper, prefix) {
			name = strings.TrimSpace(name[len(prefix):])
			break
		}
	}
	if name == "" {
		return DefaultLabel
	}
	return name
}

func description(tx ofxgo.Transaction) string {
	d := strings.TrimSpace(string(tx.Memo))
	if d == "" {
		d = "OFX " + string(tx.FiTID)
	}
	if utf8.RuneCountInString(d) > core.MaxDescriptionLength {
		d = string([]rune(d)[:core.MaxDescriptionLength])
	}
	return d
}
