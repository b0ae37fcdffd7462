package driven

import (
	"context"
	"errors"
)

// ErrSourceNotFound indicates the external source repository does not exist
// or is not visible with the configured credentials.
var ErrSourceNotFound = errors.New("source repository not found")

// SourceInfo is what a probe learns about an external source repository.
type SourceInfo struct {
	DefaultBranch string
	IsPrivate     bool
}

// SourceProbe checks an external mirror source before the first clone.
// Probing is best-effort and host-specific; sources on hosts without a probe
// implementation are cloned without verification.
type SourceProbe interface {
	Probe(ctx context.Context, sourceURL string) (*SourceInfo, error)
}
