package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/linkguard/internal/domain"
)

// linkSelectList is the column list for SELECT on links (single source for
// schema changes).
const linkSelectList = `id, short_code, destination_url, owner_id, hit_count,
	analysis_status, summary, tags, safety_rating, safety_reason,
	category, category_confidence, category_reason, collection_ids,
	created_at, updated_at`

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// LinkRepository manages link rows in PostgreSQL.
type LinkRepository struct {
	db *sqlx.DB
}

// NewLinkRepository creates a new repository.
func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// Create inserts a new link. The caller provides the id and short code;
// hit count starts at zero and analysis status at pending.
func (r *LinkRepository) Create(ctx context.Context, link *domain.Link) error {
	query := `
		INSERT INTO links (id, short_code, destination_url, owner_id,
			analysis_status, tags, collection_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		link.ID, link.ShortCode, link.DestinationURL, link.OwnerID,
		domain.AnalysisPending, pq.Array([]string{}), pq.Array([]string{}),
	).Scan(&link.CreatedAt, &link.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrDuplicateShortCode
		}
		return fmt.Errorf("insert link: %w", err)
	}

	link.AnalysisStatus = domain.AnalysisPending
	return nil
}

// GetByCode returns the link for a short code.
func (r *LinkRepository) GetByCode(ctx context.Context, code string) (*domain.Link, error) {
	var link domain.Link
	query := `SELECT ` + linkSelectList + ` FROM links WHERE short_code = $1`

	if err := r.db.GetContext(ctx, &link, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLinkNotFound
		}
		return nil, fmt.Errorf("get link by code: %w", err)
	}
	return &link, nil
}

// GetByID returns the link for an id.
func (r *LinkRepository) GetByID(ctx context.Context, id string) (*domain.Link, error) {
	var link domain.Link
	query := `SELECT ` + linkSelectList + ` FROM links WHERE id = $1`

	if err := r.db.GetContext(ctx, &link, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLinkNotFound
		}
		return nil, fmt.Errorf("get link by id: %w", err)
	}
	return &link, nil
}

// FindByOwner returns all links for an owner, newest first.
func (r *LinkRepository) FindByOwner(ctx context.Context, ownerID string) ([]domain.Link, error) {
	var links []domain.Link
	query := `SELECT ` + linkSelectList + ` FROM links
		WHERE owner_id = $1 ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &links, query, ownerID); err != nil {
		return nil, fmt.Errorf("find links by owner: %w", err)
	}
	return links, nil
}

// IncrementHits adds delta to the link's hit counter. The increment happens
// in the database (fetch-add), so concurrent callers never lose updates.
func (r *LinkRepository) IncrementHits(ctx context.Context, id string, delta int64) error {
	query := `UPDATE links SET hit_count = hit_count + $2 WHERE id = $1`
	if err := r.execExpectOneRow(ctx, query, id, delta); err != nil {
		if errors.Is(err, domain.ErrLinkNotFound) {
			return err
		}
		return fmt.Errorf("increment hits: %w", err)
	}
	return nil
}

// UpdateAnalysis writes analysis result fields and the new status.
// It is idempotent: re-writing the same completed result is harmless.
func (r *LinkRepository) UpdateAnalysis(
	ctx context.Context, id string, result *domain.AnalysisResult, status domain.AnalysisStatus,
) error {
	query := `
		UPDATE links
		SET analysis_status = $2,
		    summary = $3,
		    tags = $4,
		    safety_rating = $5,
		    safety_reason = $6,
		    category = $7,
		    category_confidence = $8,
		    category_reason = $9,
		    updated_at = NOW()
		WHERE id = $1`

	err := r.execExpectOneRow(ctx, query, id,
		status, result.Summary, pq.Array(result.Tags),
		result.Safety.Rating, result.Safety.Justification,
		result.Classification.Category, result.Classification.Confidence,
		result.Classification.Reason,
	)
	if err != nil {
		if errors.Is(err, domain.ErrLinkNotFound) {
			return err
		}
		return fmt.Errorf("update analysis: %w", err)
	}
	return nil
}

// SetAnalysisStatus updates only the analysis status.
func (r *LinkRepository) SetAnalysisStatus(ctx context.Context, id string, status domain.AnalysisStatus) error {
	query := `UPDATE links SET analysis_status = $2, updated_at = NOW() WHERE id = $1`
	if err := r.execExpectOneRow(ctx, query, id, status); err != nil {
		if errors.Is(err, domain.ErrLinkNotFound) {
			return err
		}
		return fmt.Errorf("set analysis status: %w", err)
	}
	return nil
}

// UpdateDestination changes the destination URL and resets the analysis
// fields to pending, since previous results no longer apply.
func (r *LinkRepository) UpdateDestination(ctx context.Context, id, destinationURL string) error {
	query := `
		UPDATE links
		SET destination_url = $2,
		    analysis_status = $3,
		    summary = '',
		    tags = '{}',
		    safety_rating = NULL,
		    safety_reason = '',
		    category = '',
		    category_confidence = 0,
		    category_reason = '',
		    updated_at = NOW()
		WHERE id = $1`

	if err := r.execExpectOneRow(ctx, query, id, destinationURL, domain.AnalysisPending); err != nil {
		if errors.Is(err, domain.ErrLinkNotFound) {
			return err
		}
		return fmt.Errorf("update destination: %w", err)
	}
	return nil
}

// Delete removes a link row.
func (r *LinkRepository) Delete(ctx context.Context, id string) error {
	if err := r.execExpectOneRow(ctx, `DELETE FROM links WHERE id = $1`, id); err != nil {
		if errors.Is(err, domain.ErrLinkNotFound) {
			return err
		}
		return fmt.Errorf("delete link: %w", err)
	}
	return nil
}

// AddCollectionRef adds a collection id to the link's reference set.
// Idempotent: adding an existing reference is a no-op.
func (r *LinkRepository) AddCollectionRef(ctx context.Context, linkID, collectionID string) error {
	query := `
		UPDATE links
		SET collection_ids = array_append(collection_ids, $2), updated_at = NOW()
		WHERE id = $1 AND NOT ($2 = ANY(collection_ids))`

	result, err := r.db.ExecContext(ctx, query, linkID, collectionID)
	if err != nil {
		return fmt.Errorf("add collection ref: %w", err)
	}
	// Zero rows means the link is missing or the ref already exists;
	// distinguish the two so missing links still surface.
	if rows, _ := result.RowsAffected(); rows == 0 {
		return r.ensureLinkExists(ctx, linkID)
	}
	return nil
}

// RemoveCollectionRef removes a collection id from the link's reference set.
func (r *LinkRepository) RemoveCollectionRef(ctx context.Context, linkID, collectionID string) error {
	query := `
		UPDATE links
		SET collection_ids = array_remove(collection_ids, $2), updated_at = NOW()
		WHERE id = $1`

	if err := r.execExpectOneRow(ctx, query, linkID, collectionID); err != nil {
		if errors.Is(err, domain.ErrLinkNotFound) {
			return err
		}
		return fmt.Errorf("remove collection ref: %w", err)
	}
	return nil
}

func (r *LinkRepository) ensureLinkExists(ctx context.Context, id string) error {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM links WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check link exists: %w", err)
	}
	if !exists {
		return domain.ErrLinkNotFound
	}
	return nil
}

// execExpectOneRow runs an exec and returns domain.ErrLinkNotFound when no
// row was affected.
func (r *LinkRepository) execExpectOneRow(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("get affected rows: %w", rowsErr)
	}
	if rows == 0 {
		return domain.ErrLinkNotFound
	}
	return nil
}
