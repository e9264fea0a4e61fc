// Package membership maintains the symmetric link/collection relation:
// every membership is recorded on both the link row and the collection row.
package membership

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesrussell/linkguard/internal/domain"
	"github.com/jonesrussell/linkguard/internal/logger"
)

// LinkRefs is the link side of the relation.
type LinkRefs interface {
	GetByID(ctx context.Context, id string) (*domain.Link, error)
	AddCollectionRef(ctx context.Context, linkID, collectionID string) error
	RemoveCollectionRef(ctx context.Context, linkID, collectionID string) error
}

// CollectionMembers is the collection side of the relation.
type CollectionMembers interface {
	GetByID(ctx context.Context, id string) (*domain.Collection, error)
	EnsureSystemCollection(ctx context.Context, ownerID, category string) (*domain.Collection, error)
	AddMember(ctx context.Context, collectionID, linkID string) error
	RemoveMember(ctx context.Context, collectionID, linkID string) error
}

// Service applies membership changes to both sides of the relation.
//
// Both writes are individually idempotent, so a failed second write is
// repaired by retrying the whole operation. A second write failing after
// the first succeeded is surfaced as domain.ErrMembershipInconsistency.
type Service struct {
	links       LinkRefs
	collections CollectionMembers
	log         logger.Logger
}

// NewService creates a membership service.
func NewService(links LinkRefs, collections CollectionMembers, log logger.Logger) *Service {
	return &Service{links: links, collections: collections, log: log}
}

// Add places a link in a collection, writing both sides. Both rows must
// exist; adding an existing membership is a no-op.
func (s *Service) Add(ctx context.Context, linkID, collectionID string) error {
	// Fail fast on a missing collection before touching the link row.
	if _, err := s.collections.GetByID(ctx, collectionID); err != nil {
		return err
	}

	if err := s.links.AddCollectionRef(ctx, linkID, collectionID); err != nil {
		return err
	}
	if err := s.collections.AddMember(ctx, collectionID, linkID); err != nil {
		s.log.Error("Membership add left sides out of sync",
			logger.String("link_id", linkID),
			logger.String("collection_id", collectionID),
			logger.Error(err),
		)
		return fmt.Errorf("%w: link holds ref but collection add failed: %v",
			domain.ErrMembershipInconsistency, err)
	}
	return nil
}

// Remove takes a link out of a collection, writing both sides.
func (s *Service) Remove(ctx context.Context, linkID, collectionID string) error {
	if err := s.links.RemoveCollectionRef(ctx, linkID, collectionID); err != nil {
		return err
	}
	if err := s.collections.RemoveMember(ctx, collectionID, linkID); err != nil {
		s.log.Error("Membership remove left sides out of sync",
			logger.String("link_id", linkID),
			logger.String("collection_id", collectionID),
			logger.Error(err),
		)
		return fmt.Errorf("%w: link ref removed but collection remove failed: %v",
			domain.ErrMembershipInconsistency, err)
	}
	return nil
}

// SetMemberships reconciles a link's memberships to exactly the given
// collection set, adding and removing as needed.
func (s *Service) SetMemberships(ctx context.Context, linkID string, collectionIDs []string) error {
	link, err := s.links.GetByID(ctx, linkID)
	if err != nil {
		return err
	}

	desired := make(map[string]bool, len(collectionIDs))
	for _, id := range collectionIDs {
		desired[id] = true
	}
	current := make(map[string]bool, len(link.CollectionIDs))
	for _, id := range link.CollectionIDs {
		current[id] = true
	}

	for id := range current {
		if !desired[id] {
			if err := s.Remove(ctx, linkID, id); err != nil {
				return err
			}
		}
	}
	for _, id := range collectionIDs {
		if !current[id] {
			if err := s.Add(ctx, linkID, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// AutoFile places a link in its owner's system collection for the given
// category, creating the collection when absent.
func (s *Service) AutoFile(ctx context.Context, link *domain.Link, category string) error {
	collection, err := s.collections.EnsureSystemCollection(ctx, link.OwnerID, category)
	if err != nil {
		return err
	}
	return s.Add(ctx, link.ID, collection.ID)
}

// RemoveFromAll detaches a link from every collection it belongs to. Used
// when deleting a link so no collection is left holding a dangling member.
func (s *Service) RemoveFromAll(ctx context.Context, link *domain.Link) error {
	for _, collectionID := range link.CollectionIDs {
		if err := s.Remove(ctx, link.ID, collectionID); err != nil {
			// A collection already gone is fine; the goal is no dangling refs.
			if errors.Is(err, domain.ErrCollectionNotFound) {
				continue
			}
			return err
		}
	}
	return nil
}
