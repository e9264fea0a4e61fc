package domain

// ResolutionKind distinguishes the possible outcomes of resolving a code.
type ResolutionKind string

const (
	// ResolutionDirect means the caller should redirect immediately.
	ResolutionDirect ResolutionKind = "direct"
	// ResolutionWarning means the destination was rated unsafe; the caller
	// should interpose a warning carrying the justification.
	ResolutionWarning ResolutionKind = "warning"
)

// Resolution is the outcome of resolving a short code. Unknown codes are
// reported through ErrLinkNotFound rather than a Resolution value.
type Resolution struct {
	Kind           ResolutionKind `json:"kind"`
	DestinationURL string         `json:"destination_url"`
	// Justification is set only for warnings.
	Justification string `json:"justification,omitempty"`
}
