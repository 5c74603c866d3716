// Package resolver expands a remote folder into every key beneath it.
package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/jneless/bkp-drive/internal/api"
	"github.com/jneless/bkp-drive/internal/events"
	"github.com/jneless/bkp-drive/internal/logging"
	"github.com/jneless/bkp-drive/internal/models"
)

// Lister lists the immediate children of a prefix. *api.Client implements it.
type Lister interface {
	List(ctx context.Context, prefix string) (*models.ListResult, error)
}

// Result is the outcome of a recursive scan. Keys holds every descendant
// reached, deepest first. Skipped names the folders whose listing failed;
// nothing beneath them is in Keys.
type Result struct {
	Keys    []string
	Skipped []api.SkippedPath
}

// Complete reports whether every folder was listed.
func (r *Result) Complete() bool {
	return len(r.Skipped) == 0
}

// Resolver walks remote folders sequentially, one listing at a time.
type Resolver struct {
	lister Lister
	logger *logging.Logger
	bus    *events.EventBus
}

// New creates a resolver. logger and bus may be nil.
func New(lister Lister, logger *logging.Logger, bus *events.EventBus) *Resolver {
	return &Resolver{
		lister: lister,
		logger: logging.OrNop(logger),
		bus:    bus,
	}
}

// Resolve returns every file key and sub-folder marker under folderKey.
// The folder's own key is not included. A failed listing skips that branch
// and is recorded in Result.Skipped; only an invalid key or a cancelled
// context returns an error.
func (r *Resolver) Resolve(ctx context.Context, folderKey string) (*Result, error) {
	if !models.IsFolderKey(folderKey) {
		return nil, fmt.Errorf("resolve %q: not a folder key", folderKey)
	}

	res := &Result{}
	if err := r.walk(ctx, folderKey, res); err != nil {
		return nil, err
	}
	SortDeepestFirst(res.Keys)
	return res, nil
}

func (r *Resolver) walk(ctx context.Context, prefix string, res *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	list, err := r.lister.List(ctx, prefix)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if api.IsAuthMissing(err) {
			// Every further listing would fail the same way.
			return err
		}
		r.logger.Warn().Str("prefix", prefix).Err(err).Msg("skipping folder, listing failed")
		r.bus.PublishFolderSkipped(prefix, err)
		res.Skipped = append(res.Skipped, api.SkippedPath{Path: prefix, Err: err})
		return nil
	}

	for _, f := range list.Files {
		if models.IsFolderKey(f.Key) {
			continue
		}
		res.Keys = append(res.Keys, f.Key)
	}
	for _, name := range list.Folders {
		sub := prefix + name + models.Separator
		if err := r.walk(ctx, sub, res); err != nil {
			return err
		}
		res.Keys = append(res.Keys, sub)
	}
	r.logger.Debug().Str("prefix", prefix).Int("files", len(list.Files)).Int("folders", len(list.Folders)).Msg("listed folder")
	return nil
}

// SortDeepestFirst orders keys by descending depth, keeping the relative
// order of equal-depth keys.
func SortDeepestFirst(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		return models.Depth(keys[i]) > models.Depth(keys[j])
	})
}

// SortShallowestFirst orders keys by ascending depth, then lexically.
func SortShallowestFirst(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		di, dj := models.Depth(keys[i]), models.Depth(keys[j])
		if di != dj {
			return di < dj
		}
		return keys[i] < keys[j]
	})
}
