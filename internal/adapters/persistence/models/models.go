package models

import (
	"time"

	"gorm.io/gorm"

	"libtrack/internal/core/domain"
)

// ============================================================
// Book records (owned by the reconciliation engine)
// ============================================================

// BookRecord represents the books table. One row per loan cycle, keyed by
// the circulation system's external loan id. DischargedAt is write-once:
// null means still on loan, and once set it is never cleared.
type BookRecord struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	ExternalID   string     `gorm:"uniqueIndex;size:50;not null" json:"external_id"`
	BiblioID     int64      `gorm:"index" json:"biblio_id"`
	ISBN         string     `gorm:"size:20;index" json:"isbn"`
	ISBN13       string     `gorm:"size:20" json:"isbn13"`
	Title        string     `gorm:"size:300;not null" json:"title"`
	Author       string     `gorm:"size:200" json:"author"`
	Publisher    string     `gorm:"size:200" json:"publisher"`
	PubDate      string     `gorm:"size:20" json:"pub_date"`
	Description  string     `gorm:"type:text" json:"description"`
	CoverURL     *string    `gorm:"size:500" json:"cover_url"`
	Branch       string     `gorm:"size:100" json:"branch"`
	ChargedAt    time.Time  `gorm:"index;not null" json:"charged_at"`
	DueAt        time.Time  `gorm:"not null" json:"due_at"`
	DischargedAt *time.Time `gorm:"index" json:"discharged_at"`
	RenewalCount int        `gorm:"default:0" json:"renewal_count"`
	ReadState    string     `gorm:"size:20;default:'UNREAD'" json:"read_state"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Notes []Note `gorm:"foreignKey:BookID" json:"notes,omitempty"`
}

func (BookRecord) TableName() string {
	return "books"
}

// IsReturned reports whether this loan cycle is completed
func (b *BookRecord) IsReturned() bool {
	return b.DischargedAt != nil
}

// BookRecordResponse DTO
type BookRecordResponse struct {
	ID           uint       `json:"id"`
	ExternalID   string     `json:"external_id"`
	BiblioID     int64      `json:"biblio_id"`
	ISBN         string     `json:"isbn"`
	ISBN13       string     `json:"isbn13,omitempty"`
	Title        string     `json:"title"`
	Author       string     `json:"author,omitempty"`
	Publisher    string     `json:"publisher,omitempty"`
	PubDate      string     `json:"pub_date,omitempty"`
	Description  string     `json:"description,omitempty"`
	CoverURL     *string    `json:"cover_url"`
	Branch       string     `json:"branch,omitempty"`
	ChargedAt    time.Time  `json:"charged_at"`
	DueAt        time.Time  `json:"due_at"`
	DischargedAt *time.Time `json:"discharged_at"`
	RenewalCount int        `json:"renewal_count"`
	ReadState    string     `json:"read_state"`
	NoteCount    int        `json:"note_count"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (b *BookRecord) ToResponse() *BookRecordResponse {
	return &BookRecordResponse{
		ID:           b.ID,
		ExternalID:   b.ExternalID,
		BiblioID:     b.BiblioID,
		ISBN:         b.ISBN,
		ISBN13:       b.ISBN13,
		Title:        b.Title,
		Author:       b.Author,
		Publisher:    b.Publisher,
		PubDate:      b.PubDate,
		Description:  b.Description,
		CoverURL:     b.CoverURL,
		Branch:       b.Branch,
		ChargedAt:    b.ChargedAt,
		DueAt:        b.DueAt,
		DischargedAt: b.DischargedAt,
		RenewalCount: b.RenewalCount,
		ReadState:    b.ReadState,
		NoteCount:    len(b.Notes),
		UpdatedAt:    b.UpdatedAt,
	}
}

// NewBookRecord builds a record from a current loan and optional metadata
func NewBookRecord(loan domain.Loan, info *domain.BookInfo) *BookRecord {
	record := &BookRecord{
		ExternalID:   loan.ExternalID,
		BiblioID:     loan.BiblioID,
		ISBN:         loan.ISBN,
		Title:        loan.Title,
		Branch:       loan.Branch,
		ChargedAt:    loan.ChargedAt,
		DueAt:        loan.DueAt,
		RenewalCount: loan.RenewalCount,
		ReadState:    string(domain.ReadStateUnread),
	}
	record.ApplyBookInfo(info)
	return record
}

// ApplyBookInfo merges fetched metadata into the record. Existing values
// are kept unless the new value is present, so a failed or partial lookup
// never erases previously known metadata.
func (b *BookRecord) ApplyBookInfo(info *domain.BookInfo) {
	if info == nil {
		return
	}
	if info.ISBN13 != "" {
		b.ISBN13 = info.ISBN13
	}
	if info.Author != "" {
		b.Author = info.Author
	}
	if info.Publisher != "" {
		b.Publisher = info.Publisher
	}
	if info.PubDate != "" {
		b.PubDate = info.PubDate
	}
	if info.Description != "" {
		b.Description = info.Description
	}
	if info.CoverURL != "" {
		cover := info.CoverURL
		b.CoverURL = &cover
	}
	// Upstream title from the loan row wins; metadata title fills gaps only
	if b.Title == "" && info.Title != "" {
		b.Title = info.Title
	}
}

// ============================================================
// Action log (append-only)
// ============================================================

// ActionLog represents the action_logs table. Rows are written once by
// sync and renewal runs and never updated or deleted.
type ActionLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RunID      string    `gorm:"size:36;index" json:"run_id"`
	ExternalID string    `gorm:"size:50;index" json:"external_id"`
	Action     string    `gorm:"size:30;not null" json:"action"`
	Status     string    `gorm:"size:20;not null" json:"status"`
	Message    string    `gorm:"type:text" json:"message"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (ActionLog) TableName() string {
	return "action_logs"
}

// Action log action/status values
const (
	ActionSync    = "SYNC"
	ActionRenew   = "RENEW"
	ActionEnrich  = "ENRICH"
	ActionCleanup = "CLEANUP"

	StatusOK     = "OK"
	StatusFailed = "FAILED"
)

// ============================================================
// Planned loans (borrow-later list)
// ============================================================

// PlannedLoan represents the planned_loans table: titles the patron wants
// to borrow. Rows are removed by the sync cleanup once the title shows up
// in the current loans.
type PlannedLoan struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	BiblioID  int64          `gorm:"uniqueIndex;not null" json:"biblio_id"`
	Title     string         `gorm:"size:300;not null" json:"title"`
	ISBN      string         `gorm:"size:20" json:"isbn"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (PlannedLoan) TableName() string {
	return "planned_loans"
}

// ============================================================
// Notes
// ============================================================

// Note represents the notes table: patron notes attached to a book record
type Note struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BookID    uint      `gorm:"index;not null" json:"book_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Book *BookRecord `gorm:"foreignKey:BookID" json:"-"`
}

func (Note) TableName() string {
	return "notes"
}

// AutoMigrate creates or updates all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&BookRecord{},
		&ActionLog{},
		&PlannedLoan{},
		&Note{},
	)
}
