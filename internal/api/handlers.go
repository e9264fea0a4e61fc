package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/linkguard/internal/domain"
	"github.com/jonesrussell/linkguard/internal/links"
	"github.com/jonesrussell/linkguard/internal/logger"
	"github.com/jonesrussell/linkguard/internal/queue"
)

// Resolver resolves short codes.
type Resolver interface {
	Resolve(ctx context.Context, code string) (*domain.Resolution, error)
}

// LinkService is the link lifecycle surface the handlers call.
type LinkService interface {
	Create(ctx context.Context, ownerID, destinationURL, code string) (*domain.Link, error)
	Get(ctx context.Context, id string) (*domain.Link, error)
	List(ctx context.Context, ownerID string) ([]domain.Link, error)
	UpdateDestination(ctx context.Context, id, destinationURL string) (*domain.Link, error)
	Delete(ctx context.Context, id string) error
}

// MembershipService reconciles link/collection memberships.
type MembershipService interface {
	SetMemberships(ctx context.Context, linkID string, collectionIDs []string) error
}

// CollectionReader is the read-only collection surface.
type CollectionReader interface {
	GetByID(ctx context.Context, id string) (*domain.Collection, error)
	FindByOwner(ctx context.Context, ownerID string) ([]domain.Collection, error)
}

// QueueInspector exposes queue counters.
type QueueInspector interface {
	GetStats(ctx context.Context) (*queue.Stats, error)
}

// Handler holds the request handlers for the public and management routes.
type Handler struct {
	resolver    Resolver
	links       LinkService
	memberships MembershipService
	collections CollectionReader
	queue       QueueInspector
	log         logger.Logger
}

// NewHandler creates a Handler.
func NewHandler(
	resolver Resolver,
	linkService LinkService,
	memberships MembershipService,
	collections CollectionReader,
	queueInspector QueueInspector,
	log logger.Logger,
) *Handler {
	return &Handler{
		resolver:    resolver,
		links:       linkService,
		memberships: memberships,
		collections: collections,
		queue:       queueInspector,
		log:         log,
	}
}

// Resolve handles GET /:code. Direct resolutions redirect; warnings return
// a JSON interstitial payload instead.
func (h *Handler) Resolve(c *gin.Context) {
	code := c.Param("code")

	resolution, err := h.resolver.Resolve(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrLinkNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown short code"})
			return
		}
		h.serverError(c, "resolve", err)
		return
	}

	if resolution.Kind == domain.ResolutionWarning {
		c.JSON(http.StatusOK, gin.H{
			"kind":            resolution.Kind,
			"destination_url": resolution.DestinationURL,
			"justification":   resolution.Justification,
		})
		return
	}
	c.Redirect(http.StatusFound, resolution.DestinationURL)
}

type createLinkRequest struct {
	OwnerID        string `binding:"required" json:"owner_id"`
	DestinationURL string `binding:"required" json:"destination_url"`
	ShortCode      string `json:"short_code"`
}

// CreateLink handles POST /api/links.
func (h *Handler) CreateLink(c *gin.Context) {
	var req createLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	link, err := h.links.Create(c.Request.Context(), req.OwnerID, req.DestinationURL, req.ShortCode)
	if err != nil {
		switch {
		case errors.Is(err, links.ErrInvalidDestination):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrDuplicateShortCode):
			c.JSON(http.StatusConflict, gin.H{"error": "short code already in use"})
		default:
			h.serverError(c, "create link", err)
		}
		return
	}
	c.JSON(http.StatusCreated, link)
}

// ListLinks handles GET /api/links?owner_id=...
func (h *Handler) ListLinks(c *gin.Context) {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner_id is required"})
		return
	}

	result, err := h.links.List(c.Request.Context(), ownerID)
	if err != nil {
		h.serverError(c, "list links", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": result, "count": len(result)})
}

// GetLink handles GET /api/links/:id.
func (h *Handler) GetLink(c *gin.Context) {
	link, err := h.links.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.linkError(c, "get link", err)
		return
	}
	c.JSON(http.StatusOK, link)
}

type updateLinkRequest struct {
	DestinationURL string `binding:"required" json:"destination_url"`
}

// UpdateLink handles PATCH /api/links/:id. Changing the destination resets
// analysis and schedules a fresh job.
func (h *Handler) UpdateLink(c *gin.Context) {
	var req updateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	link, err := h.links.UpdateDestination(c.Request.Context(), c.Param("id"), req.DestinationURL)
	if err != nil {
		if errors.Is(err, links.ErrInvalidDestination) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.linkError(c, "update link", err)
		return
	}
	c.JSON(http.StatusOK, link)
}

// DeleteLink handles DELETE /api/links/:id.
func (h *Handler) DeleteLink(c *gin.Context) {
	if err := h.links.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.linkError(c, "delete link", err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setCollectionsRequest struct {
	CollectionIDs []string `json:"collection_ids"`
}

// SetLinkCollections handles PUT /api/links/:id/collections. The request
// body names the full desired membership set.
func (h *Handler) SetLinkCollections(c *gin.Context) {
	var req setCollectionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	linkID := c.Param("id")
	err := h.memberships.SetMemberships(c.Request.Context(), linkID, req.CollectionIDs)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLinkNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
		case errors.Is(err, domain.ErrCollectionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "collection not found"})
		case errors.Is(err, domain.ErrMembershipInconsistency):
			// Retryable: both sides are idempotent, repeating the request
			// repairs the relation.
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.serverError(c, "set link collections", err)
		}
		return
	}

	link, err := h.links.Get(c.Request.Context(), linkID)
	if err != nil {
		h.linkError(c, "reload link", err)
		return
	}
	c.JSON(http.StatusOK, link)
}

// ListCollections handles GET /api/collections?owner_id=...
func (h *Handler) ListCollections(c *gin.Context) {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner_id is required"})
		return
	}

	result, err := h.collections.FindByOwner(c.Request.Context(), ownerID)
	if err != nil {
		h.serverError(c, "list collections", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collections": result, "count": len(result)})
}

// GetCollection handles GET /api/collections/:id.
func (h *Handler) GetCollection(c *gin.Context) {
	collection, err := h.collections.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrCollectionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "collection not found"})
			return
		}
		h.serverError(c, "get collection", err)
		return
	}
	c.JSON(http.StatusOK, collection)
}

// QueueStats handles GET /api/queue/stats.
func (h *Handler) QueueStats(c *gin.Context) {
	stats, err := h.queue.GetStats(c.Request.Context())
	if err != nil {
		h.serverError(c, "queue stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) linkError(c *gin.Context, op string, err error) {
	if errors.Is(err, domain.ErrLinkNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
		return
	}
	h.serverError(c, op, err)
}

func (h *Handler) serverError(c *gin.Context, op string, err error) {
	h.log.Error("Request failed",
		logger.String("op", op),
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
