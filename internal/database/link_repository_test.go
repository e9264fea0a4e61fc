package database

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/linkguard/internal/domain"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestLinkCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLinkRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO links`)).
		WithArgs("id-1", "abc1234", "https://example.com", "owner-1",
			domain.AnalysisPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	link := &domain.Link{
		ID:             "id-1",
		ShortCode:      "abc1234",
		DestinationURL: "https://example.com",
		OwnerID:        "owner-1",
	}
	require.NoError(t, repo.Create(context.Background(), link))
	assert.Equal(t, domain.AnalysisPending, link.AnalysisStatus)
	assert.Equal(t, now, link.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkCreateDuplicateCode(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLinkRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO links`)).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &domain.Link{
		ID: "id-1", ShortCode: "taken", DestinationURL: "https://example.com", OwnerID: "o",
	})
	require.ErrorIs(t, err, domain.ErrDuplicateShortCode)
}

func TestGetByCodeNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLinkRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM links WHERE short_code = $1`)).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByCode(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrLinkNotFound)
}

func TestIncrementHitsFetchAdd(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLinkRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`SET hit_count = hit_count + $2`)).
		WithArgs("id-1", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.IncrementHits(context.Background(), "id-1", 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementHitsMissingLink(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLinkRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`SET hit_count = hit_count + $2`)).
		WithArgs("gone", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.IncrementHits(context.Background(), "gone", 1)
	require.ErrorIs(t, err, domain.ErrLinkNotFound)
}

func TestUpdateAnalysis(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLinkRepository(db)

	result := &domain.AnalysisResult{
		Summary: "A news site.",
		Tags:    []string{"news"},
		Safety:  domain.Safety{Rating: 4, Justification: "reputable outlet"},
		Classification: domain.Classification{
			Category: domain.CategoryNews, Confidence: 0.9, Reason: "headline content",
		},
	}

	mock.ExpectExec(regexp.QuoteMeta(`SET analysis_status = $2`)).
		WithArgs("id-1", domain.AnalysisCompleted, "A news site.", sqlmock.AnyArg(),
			4, "reputable outlet", domain.CategoryNews, 0.9, "headline content").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateAnalysis(context.Background(), "id-1", result, domain.AnalysisCompleted))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDestinationResetsAnalysis(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLinkRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`safety_rating = NULL`)).
		WithArgs("id-1", "https://new.example.com", domain.AnalysisPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateDestination(context.Background(), "id-1", "https://new.example.com"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddCollectionRefIdempotent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLinkRepository(db)

	// Zero rows affected but the link exists: the ref was already present.
	mock.ExpectExec(regexp.QuoteMeta(`array_append(collection_ids, $2)`)).
		WithArgs("id-1", "col-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	require.NoError(t, repo.AddCollectionRef(context.Background(), "id-1", "col-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddCollectionRefMissingLink(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLinkRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`array_append(collection_ids, $2)`)).
		WithArgs("gone", "col-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.AddCollectionRef(context.Background(), "gone", "col-1")
	require.ErrorIs(t, err, domain.ErrLinkNotFound)
}
