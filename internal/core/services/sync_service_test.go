package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"libtrack/internal/adapters/persistence/models"
	"libtrack/internal/adapters/persistence/repositories"
	"libtrack/internal/core/domain"
)

// newTestDB opens an in-memory SQLite database with the full schema
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection so every query sees the same in-memory database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.AutoMigrate(db))
	return db
}

type fakeLoanClient struct {
	loginErr   error
	loans      []domain.Loan
	loansErr   error
	history    []domain.LoanHistoryEntry
	historyErr error
	renew      func(externalID string) (*RenewalOutcome, error)
}

func (f *fakeLoanClient) Login(ctx context.Context) error { return f.loginErr }

func (f *fakeLoanClient) GetCurrentLoans(ctx context.Context) ([]domain.Loan, error) {
	return f.loans, f.loansErr
}

func (f *fakeLoanClient) GetLoanHistory(ctx context.Context) ([]domain.LoanHistoryEntry, error) {
	return f.history, f.historyErr
}

func (f *fakeLoanClient) RenewLoan(ctx context.Context, externalID string) (*RenewalOutcome, error) {
	if f.renew == nil {
		return nil, &domain.RenewalRejectedError{Reason: "renewals disabled"}
	}
	return f.renew(externalID)
}

// fakeBookInfo answers lookups from a fixed table and counts calls.
// Lookups run from batch goroutines, so the counter is mutex guarded.
type fakeBookInfo struct {
	mu    sync.Mutex
	infos map[string]*domain.BookInfo
	calls map[string]int
}

func newFakeBookInfo(infos map[string]*domain.BookInfo) *fakeBookInfo {
	return &fakeBookInfo{infos: infos, calls: make(map[string]int)}
}

func (f *fakeBookInfo) Lookup(ctx context.Context, isbn string) *domain.BookInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[isbn]++
	return f.infos[isbn]
}

func (f *fakeBookInfo) callCount(isbn string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[isbn]
}

type syncFixture struct {
	svc     *SyncService
	library *fakeLoanClient
	lookup  *fakeBookInfo
	books   repositories.BookRepository
	planned repositories.PlannedLoanRepository
	logs    repositories.ActionLogRepository
}

func newSyncFixture(t *testing.T, library *fakeLoanClient, lookup *fakeBookInfo) *syncFixture {
	t.Helper()

	db := newTestDB(t)
	books := repositories.NewBookRepository(db)
	planned := repositories.NewPlannedLoanRepository(db)
	logs := repositories.NewActionLogRepository(db)

	return &syncFixture{
		svc:     NewSyncService(library, lookup, books, planned, logs, 3),
		library: library,
		lookup:  lookup,
		books:   books,
		planned: planned,
		logs:    logs,
	}
}

func testLoan(externalID string, biblioID int64, isbn string, charged time.Time) domain.Loan {
	return domain.Loan{
		ExternalID:   externalID,
		BiblioID:     biblioID,
		Title:        "Loan " + externalID,
		ISBN:         isbn,
		Branch:       "Central",
		ChargedAt:    charged,
		DueAt:        charged.AddDate(0, 0, 14),
		RenewalCount: 0,
	}
}

func TestSyncService_FirstRunAddsAllLoans(t *testing.T) {
	charged := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	library := &fakeLoanClient{
		loans: []domain.Loan{
			testLoan("L-1", 11, "9780006546061", charged),
			testLoan("L-2", 12, "9780141439518", charged),
			testLoan("L-3", 13, "", charged),
		},
	}
	lookup := newFakeBookInfo(map[string]*domain.BookInfo{
		"9780006546061": {ISBN: "9780006546061", Author: "Gabriel García Márquez", CoverURL: "https://covers.example/100.jpg"},
	})
	f := newSyncFixture(t, library, lookup)

	summary, err := f.svc.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalCharges)
	assert.Equal(t, 3, summary.Added)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 0, summary.Unchanged)

	// Enriched where metadata came back
	enriched, err := f.books.FindByExternalID(context.Background(), "L-1")
	require.NoError(t, err)
	require.NotNil(t, enriched.CoverURL)
	assert.Equal(t, "Gabriel García Márquez", enriched.Author)

	// Lookup failure degrades to a bare record, never an error
	bare, err := f.books.FindByExternalID(context.Background(), "L-2")
	require.NoError(t, err)
	assert.Nil(t, bare.CoverURL)

	// No ISBN means no lookup at all
	noISBN, err := f.books.FindByExternalID(context.Background(), "L-3")
	require.NoError(t, err)
	assert.Nil(t, noISBN.CoverURL)
	assert.Equal(t, 0, f.lookup.callCount(""))
}

func TestSyncService_SecondIdenticalRunIsIdempotent(t *testing.T) {
	charged := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	library := &fakeLoanClient{
		loans: []domain.Loan{
			testLoan("L-1", 11, "9780006546061", charged),
			testLoan("L-2", 12, "9780141439518", charged),
		},
	}
	lookup := newFakeBookInfo(map[string]*domain.BookInfo{
		"9780006546061": {ISBN: "9780006546061", CoverURL: "https://covers.example/100.jpg"},
	})
	f := newSyncFixture(t, library, lookup)

	_, err := f.svc.Reconcile(context.Background())
	require.NoError(t, err)

	summary, err := f.svc.Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Added)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 2, summary.Unchanged)

	records, total, err := f.books.List(context.Background(), "all", 0, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, records, 2)
}

func TestSyncService_DueDateChangeIsAnUpdateWithoutLookup(t *testing.T) {
	charged := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	loan := testLoan("L-1", 11, "9780006546061", charged)
	library := &fakeLoanClient{loans: []domain.Loan{loan}}
	lookup := newFakeBookInfo(map[string]*domain.BookInfo{
		"9780006546061": {ISBN: "9780006546061", CoverURL: "https://covers.example/100.jpg"},
	})
	f := newSyncFixture(t, library, lookup)

	_, err := f.svc.Reconcile(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, f.lookup.callCount("9780006546061"))

	// Renewal happened upstream between runs
	loan.DueAt = loan.DueAt.AddDate(0, 0, 14)
	loan.RenewalCount = 1
	library.loans = []domain.Loan{loan}

	summary, err := f.svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 0, summary.Added)

	// Cover already present, so the second run never re-enriched
	assert.Equal(t, 1, f.lookup.callCount("9780006546061"))

	record, err := f.books.FindByExternalID(context.Background(), "L-1")
	require.NoError(t, err)
	assert.True(t, record.DueAt.Equal(loan.DueAt))
	assert.Equal(t, 1, record.RenewalCount)
}

func TestSyncService_MetadataRecoveryWhenCoverStillMissing(t *testing.T) {
	charged := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	loan := testLoan("L-1", 11, "9780006546061", charged)
	library := &fakeLoanClient{loans: []domain.Loan{loan}}

	// First run: metadata API down
	lookup := newFakeBookInfo(nil)
	f := newSyncFixture(t, library, lookup)

	_, err := f.svc.Reconcile(context.Background())
	require.NoError(t, err)

	// Second run: API recovered; nothing else changed
	f.lookup.mu.Lock()
	f.lookup.infos = map[string]*domain.BookInfo{
		"9780006546061": {ISBN: "9780006546061", Author: "Gabriel García Márquez", CoverURL: "https://covers.example/100.jpg"},
	}
	f.lookup.mu.Unlock()

	summary, err := f.svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)

	record, err := f.books.FindByExternalID(context.Background(), "L-1")
	require.NoError(t, err)
	require.NotNil(t, record.CoverURL)
	assert.Equal(t, "Gabriel García Márquez", record.Author)
}

func TestSyncService_HistoryMarksReturnedOnce(t *testing.T) {
	charged := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	discharged := time.Date(2025, 2, 20, 16, 0, 0, 0, time.UTC)

	library := &fakeLoanClient{
		history: []domain.LoanHistoryEntry{
			{
				ExternalID:   "L-9",
				BiblioID:     11,
				ISBN:         "9780006546061",
				ChargedAt:    charged,
				DueAt:        charged.AddDate(0, 0, 14),
				DischargedAt: discharged,
			},
		},
	}
	f := newSyncFixture(t, library, newFakeBookInfo(nil))

	seed := testLoan("L-9", 11, "9780006546061", charged)
	_, err := f.books.Upsert(context.Background(), models.NewBookRecord(seed, nil))
	require.NoError(t, err)

	summary, err := f.svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Returned)

	record, err := f.books.FindByExternalID(context.Background(), "L-9")
	require.NoError(t, err)
	require.NotNil(t, record.DischargedAt)
	assert.True(t, record.DischargedAt.Equal(discharged))

	// Later runs report a differing discharge timestamp; the stored one wins
	library.history[0].DischargedAt = discharged.Add(48 * time.Hour)

	summary, err = f.svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Returned)

	record, err = f.books.FindByExternalID(context.Background(), "L-9")
	require.NoError(t, err)
	assert.True(t, record.DischargedAt.Equal(discharged))
}

func TestSyncService_HistoryFallbackMatchesISBNAndExactChargeDate(t *testing.T) {
	chargedOld := time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)
	chargedNew := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	discharged := time.Date(2025, 1, 19, 16, 0, 0, 0, time.UTC)

	// The history entry carries an id the store has never seen; only the
	// ISBN plus exact charge date ties it back to the old loan cycle
	library := &fakeLoanClient{
		history: []domain.LoanHistoryEntry{
			{
				ExternalID:   "H-77",
				BiblioID:     11,
				ISBN:         "9780006546061",
				ChargedAt:    chargedOld,
				DueAt:        chargedOld.AddDate(0, 0, 14),
				DischargedAt: discharged,
			},
		},
	}
	f := newSyncFixture(t, library, newFakeBookInfo(nil))

	ctx := context.Background()
	_, err := f.books.Upsert(ctx, models.NewBookRecord(testLoan("L-old", 11, "9780006546061", chargedOld), nil))
	require.NoError(t, err)
	_, err = f.books.Upsert(ctx, models.NewBookRecord(testLoan("L-new", 11, "9780006546061", chargedNew), nil))
	require.NoError(t, err)

	summary, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Returned)

	old, err := f.books.FindByExternalID(ctx, "L-old")
	require.NoError(t, err)
	require.NotNil(t, old.DischargedAt)

	// Same ISBN, different loan cycle: must stay active
	current, err := f.books.FindByExternalID(ctx, "L-new")
	require.NoError(t, err)
	assert.Nil(t, current.DischargedAt)
}

func TestSyncService_PlannedCleanupDeduplicatesBiblioIDs(t *testing.T) {
	charged := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	library := &fakeLoanClient{
		loans: []domain.Loan{
			testLoan("L-1", 99, "", charged),
			testLoan("L-2", 99, "", charged.AddDate(0, 0, 1)),
			testLoan("L-3", 99, "", charged.AddDate(0, 0, 2)),
			testLoan("L-4", 100, "", charged),
		},
	}
	f := newSyncFixture(t, library, newFakeBookInfo(nil))

	ctx := context.Background()
	require.NoError(t, f.planned.Create(ctx, &models.PlannedLoan{BiblioID: 99, Title: "Planned 99"}))
	require.NoError(t, f.planned.Create(ctx, &models.PlannedLoan{BiblioID: 100, Title: "Planned 100"}))
	require.NoError(t, f.planned.Create(ctx, &models.PlannedLoan{BiblioID: 101, Title: "Planned 101"}))

	_, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)

	remaining, err := f.planned.List(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.EqualValues(t, 101, remaining[0].BiblioID)
}

func TestSyncService_EmptyLoanSetStillReconcilesHistory(t *testing.T) {
	charged := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	discharged := charged.AddDate(0, 0, 18)

	library := &fakeLoanClient{
		loans: nil,
		history: []domain.LoanHistoryEntry{
			{ExternalID: "L-9", BiblioID: 11, ChargedAt: charged, DueAt: charged.AddDate(0, 0, 14), DischargedAt: discharged},
		},
	}
	f := newSyncFixture(t, library, newFakeBookInfo(nil))

	ctx := context.Background()
	_, err := f.books.Upsert(ctx, models.NewBookRecord(testLoan("L-9", 11, "", charged), nil))
	require.NoError(t, err)

	summary, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalCharges)
	assert.Equal(t, 1, summary.Returned)
}

// failingUpsertRepo wraps the real repository and rejects writes for one
// external id, standing in for a store that fails mid-batch.
type failingUpsertRepo struct {
	repositories.BookRepository
	failFor string
}

func (r *failingUpsertRepo) Upsert(ctx context.Context, record *models.BookRecord) (*models.BookRecord, error) {
	if record.ExternalID == r.failFor {
		return nil, errors.New("store unavailable")
	}
	return r.BookRepository.Upsert(ctx, record)
}

func TestSyncService_StoreFailureForOneLoanDoesNotAbortTheRun(t *testing.T) {
	charged := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	library := &fakeLoanClient{
		loans: []domain.Loan{
			testLoan("L-1", 11, "", charged),
			testLoan("L-2", 12, "", charged),
			testLoan("L-3", 13, "", charged),
		},
	}

	db := newTestDB(t)
	books := &failingUpsertRepo{
		BookRepository: repositories.NewBookRepository(db),
		failFor:        "L-2",
	}
	logs := repositories.NewActionLogRepository(db)
	svc := NewSyncService(library, newFakeBookInfo(nil), books, repositories.NewPlannedLoanRepository(db), logs, 3)

	ctx := context.Background()
	summary, err := svc.Reconcile(ctx)
	require.NoError(t, err, "one bad write must not fail the whole run")

	// The failed loan is excluded from every counter
	assert.Equal(t, 3, summary.TotalCharges)
	assert.Equal(t, 2, summary.Added)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 0, summary.Unchanged)

	saved, err := books.FindByExternalID(ctx, "L-1")
	require.NoError(t, err)
	require.NotNil(t, saved)
	missing, err := books.FindByExternalID(ctx, "L-2")
	require.NoError(t, err)
	assert.Nil(t, missing, "the failed loan must not be persisted")

	// The failure lands in the action log against the loan that caused it
	entries, err := logs.ListRecent(ctx, 10)
	require.NoError(t, err)
	var logged bool
	for _, entry := range entries {
		if entry.ExternalID == "L-2" && entry.Action == models.ActionSync && entry.Status == models.StatusFailed {
			logged = true
		}
	}
	assert.True(t, logged, "per-loan store failure should be logged")
}

func TestSyncService_LoginFailureIsFatalAndClassified(t *testing.T) {
	library := &fakeLoanClient{
		loginErr: &domain.AuthError{StatusCode: 401, Message: "bad card number"},
	}
	f := newSyncFixture(t, library, newFakeBookInfo(nil))

	summary, err := f.svc.Reconcile(context.Background())
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.Equal(t, domain.FailureAuth, domain.Classify(err))
}

func TestSyncService_HistoryFetchFailureIsFatal(t *testing.T) {
	library := &fakeLoanClient{
		historyErr: &domain.UpstreamError{StatusCode: 503, Body: "maintenance"},
	}
	f := newSyncFixture(t, library, newFakeBookInfo(nil))

	_, err := f.svc.Reconcile(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.FailureUpstreamUnavailable, domain.Classify(err))
}
