package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// Transaction represents a single statement line read from a bank export.
type Transaction struct {
	Date        time.Time
	ID          string
	Name        string // Raw narration as printed by the bank
	Memo        string
	AccountID   string
	Hash        string
	Type        string // Transaction type (e.g., DEBIT, CHECK, PAYMENT, ATM)
	CheckNumber string
	Amount      float64
}

// Narration returns the text the resolver should categorize.
func (t *Transaction) Narration() string {
	name := strings.TrimSpace(t.Name)
	memo := strings.TrimSpace(t.Memo)
	switch {
	case name == "":
		return memo
	case memo == "" || strings.EqualFold(name, memo):
		return name
	default:
		return name + " " + memo
	}
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount,
		t.Name,
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
