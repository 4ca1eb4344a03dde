package model

import "time"

// Correction is a user-supplied category override for a narration.
type Correction struct {
	Timestamp     time.Time `json:"-"`
	Narration     string    `json:"narration"`
	Category      string    `json:"category"`
	UserID        string    `json:"userId,omitempty"`
	TransactionID string    `json:"transactionId,omitempty"`
	// RawTimestamp preserves the persisted timestamp text.
	RawTimestamp string `json:"timestamp"`
}

// CorrectionMeta carries optional provenance for a correction.
type CorrectionMeta struct {
	UserID        string
	TransactionID string
}
