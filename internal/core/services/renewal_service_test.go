package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libtrack/internal/adapters/persistence/models"
	"libtrack/internal/adapters/persistence/repositories"
	"libtrack/internal/core/domain"
)

func TestRenewalService_RenewsLoansDueSoon(t *testing.T) {
	db := newTestDB(t)
	books := repositories.NewBookRepository(db)
	logs := repositories.NewActionLogRepository(db)
	ctx := context.Background()

	dueTomorrow := testLoan("L-1", 11, "9780006546061", time.Now().AddDate(0, 0, -13))
	dueNextWeek := testLoan("L-2", 12, "9780141439518", time.Now().AddDate(0, 0, -7))
	_, err := books.Upsert(ctx, models.NewBookRecord(dueTomorrow, nil))
	require.NoError(t, err)
	_, err = books.Upsert(ctx, models.NewBookRecord(dueNextWeek, nil))
	require.NoError(t, err)

	renewed := make(map[string]int)
	newDue := time.Now().AddDate(0, 0, 15).Truncate(time.Second).UTC()
	library := &fakeLoanClient{
		renew: func(externalID string) (*RenewalOutcome, error) {
			renewed[externalID]++
			return &RenewalOutcome{DueAt: newDue, RenewalCount: 1}, nil
		},
	}

	svc := NewRenewalService(library, books, logs, 1)
	results, err := svc.RenewDueSoon(ctx)
	require.NoError(t, err)

	// Only the loan inside the window gets a renewal attempt
	require.Len(t, results, 1)
	assert.Equal(t, 1, renewed["L-1"])
	assert.Equal(t, 0, renewed["L-2"])

	assert.True(t, results[0].Success)
	require.NotNil(t, results[0].NewDueAt)
	assert.True(t, results[0].NewDueAt.Equal(newDue))
	assert.Equal(t, 1, results[0].RenewalCount)

	record, err := books.FindByExternalID(ctx, "L-1")
	require.NoError(t, err)
	assert.True(t, record.DueAt.Equal(newDue))
	assert.Equal(t, 1, record.RenewalCount)
}

func TestRenewalService_RejectionIsReportedNotFatal(t *testing.T) {
	db := newTestDB(t)
	books := repositories.NewBookRepository(db)
	logs := repositories.NewActionLogRepository(db)
	ctx := context.Background()

	dueToday := testLoan("L-1", 11, "9780006546061", time.Now().AddDate(0, 0, -14))
	_, err := books.Upsert(ctx, models.NewBookRecord(dueToday, nil))
	require.NoError(t, err)

	library := &fakeLoanClient{
		renew: func(externalID string) (*RenewalOutcome, error) {
			return nil, &domain.RenewalRejectedError{Reason: "title is on hold"}
		},
	}

	svc := NewRenewalService(library, books, logs, 1)
	results, err := svc.RenewDueSoon(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.False(t, results[0].Success)
	assert.Equal(t, "title is on hold", results[0].Message)
	assert.Nil(t, results[0].NewDueAt)

	// Due date must not move on a rejected renewal
	record, err := books.FindByExternalID(ctx, "L-1")
	require.NoError(t, err)
	assert.True(t, record.DueAt.Equal(dueToday.DueAt))
	assert.Equal(t, 0, record.RenewalCount)

	entries, err := logs.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, models.ActionRenew, entries[0].Action)
	assert.Equal(t, models.StatusFailed, entries[0].Status)
}

func TestRenewalService_LoginFailureAbortsPass(t *testing.T) {
	db := newTestDB(t)
	books := repositories.NewBookRepository(db)
	logs := repositories.NewActionLogRepository(db)

	library := &fakeLoanClient{
		loginErr: &domain.AuthError{StatusCode: 401, Message: "expired card"},
	}

	svc := NewRenewalService(library, books, logs, 1)
	results, err := svc.RenewDueSoon(context.Background())
	require.Error(t, err)
	assert.Nil(t, results)
	assert.Equal(t, domain.FailureAuth, domain.Classify(err))
}
