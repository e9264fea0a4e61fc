// Package links implements the link lifecycle: creation, destination
// edits, and deletion, each with its analysis and cache side effects.
package links

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/jonesrussell/linkguard/internal/domain"
	"github.com/jonesrussell/linkguard/internal/logger"
)

// Short code generation parameters.
const (
	codeAlphabet    = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength      = 7
	codeMaxAttempts = 5
)

// Validation errors.
var (
	ErrInvalidDestination = errors.New("destination must be an absolute http or https URL")
	ErrCodeExhausted      = errors.New("could not generate a unique short code")
)

// Repository is the persistence the service writes through.
type Repository interface {
	Create(ctx context.Context, link *domain.Link) error
	GetByID(ctx context.Context, id string) (*domain.Link, error)
	FindByOwner(ctx context.Context, ownerID string) ([]domain.Link, error)
	UpdateDestination(ctx context.Context, id, destinationURL string) error
	Delete(ctx context.Context, id string) error
}

// Enqueuer schedules analysis work for a link.
type Enqueuer interface {
	Enqueue(ctx context.Context, linkID string) (string, error)
}

// CacheInvalidator removes a short code's cached projection.
type CacheInvalidator interface {
	Delete(ctx context.Context, code string) error
}

// MembershipCleaner detaches a link from all its collections.
type MembershipCleaner interface {
	RemoveFromAll(ctx context.Context, link *domain.Link) error
}

// Service owns the link lifecycle. Every mutation that changes
// redirect-relevant state invalidates the cached projection after the
// database write commits.
type Service struct {
	repo        Repository
	queue       Enqueuer
	cache       CacheInvalidator
	memberships MembershipCleaner
	log         logger.Logger
}

// NewService creates a link lifecycle service.
func NewService(
	repo Repository,
	queue Enqueuer,
	cache CacheInvalidator,
	memberships MembershipCleaner,
	log logger.Logger,
) *Service {
	return &Service{
		repo:        repo,
		queue:       queue,
		cache:       cache,
		memberships: memberships,
		log:         log,
	}
}

// Create registers a new link and enqueues its analysis. When code is
// empty a random short code is generated; collisions are retried.
func (s *Service) Create(ctx context.Context, ownerID, destinationURL, code string) (*domain.Link, error) {
	if err := validateDestination(destinationURL); err != nil {
		return nil, err
	}

	generate := code == ""
	attempts := 1
	if generate {
		attempts = codeMaxAttempts
	}

	var link *domain.Link
	for i := 0; i < attempts; i++ {
		if generate {
			var err error
			if code, err = randomCode(); err != nil {
				return nil, err
			}
		}

		link = &domain.Link{
			ID:             uuid.NewString(),
			ShortCode:      code,
			DestinationURL: destinationURL,
			OwnerID:        ownerID,
		}
		err := s.repo.Create(ctx, link)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrDuplicateShortCode) && generate {
			link = nil
			continue
		}
		return nil, err
	}
	if link == nil {
		return nil, ErrCodeExhausted
	}

	if _, err := s.queue.Enqueue(ctx, link.ID); err != nil {
		// The link exists either way; analysis stays pending until a later
		// enqueue or manual requeue picks it up.
		s.log.Error("Failed to enqueue analysis for new link",
			logger.String("link_id", link.ID),
			logger.Error(err),
		)
	}

	s.log.Info("Link created",
		logger.String("link_id", link.ID),
		logger.String("code", link.ShortCode),
	)
	return link, nil
}

// Get returns a link by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Link, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns an owner's links, newest first.
func (s *Service) List(ctx context.Context, ownerID string) ([]domain.Link, error) {
	return s.repo.FindByOwner(ctx, ownerID)
}

// UpdateDestination points a link at a new destination. Previous analysis
// results are reset to pending, the cached projection is invalidated, and
// a fresh analysis job is enqueued.
func (s *Service) UpdateDestination(ctx context.Context, id, destinationURL string) (*domain.Link, error) {
	if err := validateDestination(destinationURL); err != nil {
		return nil, err
	}

	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateDestination(ctx, id, destinationURL); err != nil {
		return nil, err
	}
	s.invalidate(ctx, link.ShortCode)

	if _, err := s.queue.Enqueue(ctx, id); err != nil {
		s.log.Error("Failed to enqueue analysis after destination change",
			logger.String("link_id", id),
			logger.Error(err),
		)
	}

	return s.repo.GetByID(ctx, id)
}

// Delete removes a link, detaching it from every collection first and
// invalidating its cached projection.
func (s *Service) Delete(ctx context.Context, id string) error {
	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.memberships.RemoveFromAll(ctx, link); err != nil {
		return fmt.Errorf("detach link from collections: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, link.ShortCode)

	s.log.Info("Link deleted",
		logger.String("link_id", id),
		logger.String("code", link.ShortCode),
	)
	return nil
}

func (s *Service) invalidate(ctx context.Context, code string) {
	if err := s.cache.Delete(ctx, code); err != nil {
		// Stale entries age out via TTL; log and move on.
		s.log.Warn("Failed to invalidate cached projection",
			logger.String("code", code),
			logger.Error(err),
		)
	}
}

func validateDestination(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidDestination
	}
	return nil
}

func randomCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("generate short code: %w", err)
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}
