package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libtrack/internal/adapters/persistence/models"
)

func TestPlannedLoanRepository_DeleteByBiblioIDs(t *testing.T) {
	repo := NewPlannedLoanRepository(newTestDB(t))
	ctx := context.Background()

	for id, title := range map[int64]string{
		99:  "Solaris",
		100: "Roadside Picnic",
		101: "The Cyberiad",
	} {
		require.NoError(t, repo.Create(ctx, &models.PlannedLoan{BiblioID: id, Title: title}))
	}

	affected, err := repo.DeleteByBiblioIDs(ctx, []int64{99, 100})
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	remaining, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, int64(101), remaining[0].BiblioID)
}

func TestPlannedLoanRepository_DeleteByBiblioIDsEmptySetIsNoop(t *testing.T) {
	repo := NewPlannedLoanRepository(newTestDB(t))

	affected, err := repo.DeleteByBiblioIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, affected)
}

func TestActionLogRepository_AppendAndListRecent(t *testing.T) {
	repo := NewActionLogRepository(newTestDB(t))
	ctx := context.Background()

	entries := []*models.ActionLog{
		{RunID: "run-1", ExternalID: "L-1", Action: models.ActionSync, Status: models.StatusOK, Message: "added"},
		{RunID: "run-1", ExternalID: "L-2", Action: models.ActionRenew, Status: models.StatusFailed, Message: "reserved by another patron"},
	}
	for _, e := range entries {
		require.NoError(t, repo.Append(ctx, e))
	}

	recent, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "L-2", recent[0].ExternalID, "newest entry first")
}

func TestNoteRepository_CRUD(t *testing.T) {
	db := newTestDB(t)
	books := NewBookRepository(db)
	notes := NewNoteRepository(db)
	ctx := context.Background()

	book, err := books.Upsert(ctx, &models.BookRecord{
		ExternalID: "L-1",
		Title:      "Invisible Cities",
	})
	require.NoError(t, err)

	note := &models.Note{BookID: book.ID, Content: "ch. 3 was great"}
	require.NoError(t, notes.Create(ctx, note))

	listed, err := notes.ListByBookID(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	note.Content = "reread ch. 3"
	require.NoError(t, notes.Update(ctx, note))

	updated, err := notes.GetByID(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, "reread ch. 3", updated.Content)

	require.NoError(t, notes.Delete(ctx, note.ID))
	listed, err = notes.ListByBookID(ctx, book.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}
