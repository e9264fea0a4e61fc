package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/linkguard/internal/domain"
)

const collectionSelectList = `id, owner_id, name, system, category, link_ids,
	created_at, updated_at`

// CollectionRepository manages collection rows in PostgreSQL.
type CollectionRepository struct {
	db *sqlx.DB
}

// NewCollectionRepository creates a new repository.
func NewCollectionRepository(db *sqlx.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// GetByID returns the collection for an id.
func (r *CollectionRepository) GetByID(ctx context.Context, id string) (*domain.Collection, error) {
	var collection domain.Collection
	query := `SELECT ` + collectionSelectList + ` FROM collections WHERE id = $1`

	if err := r.db.GetContext(ctx, &collection, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCollectionNotFound
		}
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return &collection, nil
}

// FindByOwner returns all collections for an owner.
func (r *CollectionRepository) FindByOwner(ctx context.Context, ownerID string) ([]domain.Collection, error) {
	var collections []domain.Collection
	query := `SELECT ` + collectionSelectList + ` FROM collections
		WHERE owner_id = $1 ORDER BY created_at ASC`

	if err := r.db.SelectContext(ctx, &collections, query, ownerID); err != nil {
		return nil, fmt.Errorf("find collections by owner: %w", err)
	}
	return collections, nil
}

// FindSystemCollection returns the owner's system collection for a category.
func (r *CollectionRepository) FindSystemCollection(
	ctx context.Context, ownerID, category string,
) (*domain.Collection, error) {
	var collection domain.Collection
	query := `SELECT ` + collectionSelectList + ` FROM collections
		WHERE owner_id = $1 AND system = TRUE AND category = $2`

	if err := r.db.GetContext(ctx, &collection, query, ownerID, category); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCollectionNotFound
		}
		return nil, fmt.Errorf("find system collection: %w", err)
	}
	return &collection, nil
}

// EnsureSystemCollection returns the owner's system collection for a
// category, creating it when absent. Concurrent calls are safe; the unique
// partial index on (owner_id, category) WHERE system collapses duplicate
// inserts. A user collection already holding the category name never
// satisfies the lookup; the system collection gets a disambiguated name
// instead.
func (r *CollectionRepository) EnsureSystemCollection(
	ctx context.Context, ownerID, category string,
) (*domain.Collection, error) {
	collection, err := r.FindSystemCollection(ctx, ownerID, category)
	if err == nil {
		return collection, nil
	}
	if !errors.Is(err, domain.ErrCollectionNotFound) {
		return nil, err
	}

	for _, name := range []string{category, category + " (auto)"} {
		collection, err = r.insertSystemCollection(ctx, ownerID, name, category)
		if err == nil {
			return collection, nil
		}
		// A unique violation here is the (owner_id, name) constraint: a
		// user collection owns this name. Retry with the fallback name.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			continue
		}
		return nil, fmt.Errorf("ensure system collection: %w", err)
	}
	return nil, fmt.Errorf("ensure system collection: no available name for category %q", category)
}

func (r *CollectionRepository) insertSystemCollection(
	ctx context.Context, ownerID, name, category string,
) (*domain.Collection, error) {
	query := `
		INSERT INTO collections (id, owner_id, name, system, category, link_ids)
		VALUES ($1, $2, $3, TRUE, $4, '{}')
		ON CONFLICT (owner_id, category) WHERE system = TRUE
		DO UPDATE SET updated_at = NOW()
		RETURNING ` + collectionSelectList

	var collection domain.Collection
	err := r.db.GetContext(ctx, &collection, query, uuid.NewString(), ownerID, name, category)
	if err != nil {
		return nil, err
	}
	return &collection, nil
}

// AddMember adds a link to the collection's member set. Idempotent.
func (r *CollectionRepository) AddMember(ctx context.Context, collectionID, linkID string) error {
	query := `
		UPDATE collections
		SET link_ids = array_append(link_ids, $2), updated_at = NOW()
		WHERE id = $1 AND NOT ($2 = ANY(link_ids))`

	result, err := r.db.ExecContext(ctx, query, collectionID, linkID)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return r.ensureCollectionExists(ctx, collectionID)
	}
	return nil
}

// RemoveMember removes a link from the collection's member set.
func (r *CollectionRepository) RemoveMember(ctx context.Context, collectionID, linkID string) error {
	query := `
		UPDATE collections
		SET link_ids = array_remove(link_ids, $2), updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, collectionID, linkID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("get affected rows: %w", rowsErr)
	}
	if rows == 0 {
		return domain.ErrCollectionNotFound
	}
	return nil
}

func (r *CollectionRepository) ensureCollectionExists(ctx context.Context, id string) error {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM collections WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if !exists {
		return domain.ErrCollectionNotFound
	}
	return nil
}
