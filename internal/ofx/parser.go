// Package ofx reads OFX/QFX bank and card statements into transactions
// whose narrations can be resolved.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Veraticus/narration-resolver/internal/model"
	"github.com/aclindsa/ofxgo"
)

var (
	// Some banks emit mixed-case severities that ofxgo rejects.
	severityPattern = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// SGML exports sometimes drop the closing bracket of bare tags.
	unclosedTagPattern = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Parser parses OFX/QFX statements.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads every bank and credit card transaction in the statement.
// Statement order is preserved.
func (p *Parser) Parse(ctx context.Context, r io.Reader) ([]model.Transaction, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(clean(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var transactions []model.Transaction
	statements := 0

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			statements++
			transactions = appendList(transactions, stmt.BankTranList, string(stmt.BankAcctFrom.AcctID))
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			statements++
			transactions = appendList(transactions, stmt.BankTranList, string(stmt.CCAcctFrom.AcctID))
		}
	}

	slog.Debug("Parsed OFX statement",
		"transactions", len(transactions),
		"statements", statements)

	return transactions, nil
}

// Narrations returns the narration of each transaction, in order.
func Narrations(transactions []model.Transaction) []string {
	out := make([]string, len(transactions))
	for i := range transactions {
		out[i] = transactions[i].Narration()
	}
	return out
}

func clean(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityPattern.ReplaceAllStringFunc(content, strings.ToUpper)
	return unclosedTagPattern.ReplaceAllString(content, "$1>")
}

func appendList(dst []model.Transaction, list *ofxgo.TransactionList, accountID string) []model.Transaction {
	for _, tx := range list.Transactions {
		dst = append(dst, convert(tx, accountID))
	}
	return dst
}

// convert keeps the bank's own text untouched; payee names take the place
// of NAME when the statement provides them. Amounts keep their sign.
func convert(tx ofxgo.Transaction, accountID string) model.Transaction {
	amount, _ := tx.TrnAmt.Float64()

	name := string(tx.Name)
	if tx.Payee != nil && tx.Payee.Name != "" {
		name = string(tx.Payee.Name)
	}

	out := model.Transaction{
		ID:          string(tx.FiTID),
		Date:        tx.DtPosted.Time,
		Name:        strings.TrimSpace(name),
		Memo:        strings.TrimSpace(string(tx.Memo)),
		Amount:      amount,
		AccountID:   accountID,
		Type:        tx.TrnType.String(),
		CheckNumber: string(tx.CheckNum),
	}
	out.Hash = out.GenerateHash()
	return out
}
