package pipeline

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepository_ListBoardsAndUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM pipeline_boards")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "position"}).
			AddRow("b1", "u1", "Contacted", 0).
			AddRow("b2", "u1", "Interested", 1))

	now := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (lead_id, board_id)")).
		WithArgs("L1", "b2", "u1", now, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostgresRepository(db)
	bs, err := repo.ListBoards(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, bs, 2)

	require.NoError(t, repo.UpsertPosition(context.Background(), Position{LeadID: "L1", BoardID: "b2", UserID: "u1", MovedAt: now, Notes: "x"}))
	require.NoError(t, mock.ExpectationsWereMet())
}
