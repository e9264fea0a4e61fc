package domain

import "errors"

// ErrLinkNotFound is returned when no link exists for a short code or id.
var ErrLinkNotFound = errors.New("link not found")

// ErrCollectionNotFound is returned when a collection id does not exist.
var ErrCollectionNotFound = errors.New("collection not found")

// ErrJobNotFound is returned when a job id does not exist.
var ErrJobNotFound = errors.New("job not found")

// ErrMembershipInconsistency is returned when a bidirectional membership
// update applied one side but not the other. Callers must surface it; a
// compensating re-sync is preferred over masking it.
var ErrMembershipInconsistency = errors.New("link/collection membership inconsistency")

// ErrDuplicateShortCode is returned when creating a link whose short code
// is already assigned.
var ErrDuplicateShortCode = errors.New("short code already exists")
