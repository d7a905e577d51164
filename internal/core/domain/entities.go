package domain

import "time"

// ReadState represents the patron's reading progress for a book
type ReadState string

const (
	ReadStateUnread   ReadState = "UNREAD"
	ReadStateReading  ReadState = "READING"
	ReadStateFinished ReadState = "FINISHED"
)

// Loan represents an active checkout as reported by the circulation system.
// Identity is the external loan id, which is stable for the lifetime of one
// loan cycle.
type Loan struct {
	ExternalID   string
	BiblioID     int64
	Title        string
	ISBN         string
	Branch       string
	ChargedAt    time.Time
	DueAt        time.Time
	RenewalCount int
}

// LoanHistoryEntry represents a completed loan cycle from the circulation
// system. DischargedAt is always set; entries without it are skipped during
// reconciliation.
type LoanHistoryEntry struct {
	ExternalID   string
	BiblioID     int64
	Title        string
	ISBN         string
	Branch       string
	ChargedAt    time.Time
	DueAt        time.Time
	RenewalCount int
	DischargedAt time.Time
}

// BookInfo holds metadata fetched from the book-info lookup service
type BookInfo struct {
	ISBN        string
	ISBN13      string
	Title       string
	Author      string
	Publisher   string
	PubDate     string
	Description string
	CoverURL    string
}

// SyncSummary reports the outcome of one reconciliation run
type SyncSummary struct {
	TotalCharges int `json:"total_charges"`
	Added        int `json:"added"`
	Updated      int `json:"updated"`
	Unchanged    int `json:"unchanged"`
	Returned     int `json:"returned"`
}

// TokenPair represents access and refresh tokens for the patron session
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RenewalResult records the outcome of a single renewal attempt. It is
// written to the action log once and never mutated.
type RenewalResult struct {
	ExternalID   string     `json:"external_id"`
	Title        string     `json:"title"`
	Success      bool       `json:"success"`
	NewDueAt     *time.Time `json:"new_due_at,omitempty"`
	RenewalCount int        `json:"renewal_count"`
	Message      string     `json:"message,omitempty"`
}
