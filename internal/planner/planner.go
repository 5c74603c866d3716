// Package planner turns user selections into ordered batches of remote
// mutations: recursive deletes (deepest key first) and folder uploads
// (folders shallow-first, then files).
package planner

import (
	"context"
	"io"

	"github.com/jneless/bkp-drive/internal/events"
	"github.com/jneless/bkp-drive/internal/logging"
	"github.com/jneless/bkp-drive/internal/models"
	"github.com/jneless/bkp-drive/internal/resolver"
)

// Remote is the subset of the drive client the planner drives.
// *api.Client implements it.
type Remote interface {
	resolver.Lister
	CreateFolder(ctx context.Context, path string) error
	UploadFile(ctx context.Context, name string, r io.Reader, folder string) (*models.UploadResponse, error)
	BatchDelete(ctx context.Context, keys []string) (*models.BatchResult, error)
}

// Policy decides what a delete does when part of a folder could not be scanned.
type Policy int

const (
	// BestEffort deletes whatever was found and reports the skipped paths.
	BestEffort Policy = iota
	// Strict refuses to delete anything unless every folder was scanned.
	Strict
)

func (p Policy) String() string {
	if p == Strict {
		return "strict"
	}
	return "best-effort"
}

// Planner plans and runs batches against one remote.
type Planner struct {
	remote   Remote
	resolver *resolver.Resolver
	logger   *logging.Logger
	bus      *events.EventBus

	// Policy applies to PlanDelete. The zero value is BestEffort.
	Policy Policy
}

// New creates a planner. logger and bus may be nil.
func New(remote Remote, logger *logging.Logger, bus *events.EventBus) *Planner {
	logger = logging.OrNop(logger)
	return &Planner{
		remote:   remote,
		resolver: resolver.New(remote, logger.Named("resolver"), bus),
		logger:   logger,
		bus:      bus,
	}
}
