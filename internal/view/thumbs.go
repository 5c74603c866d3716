package view

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/jneless/bkp-drive/internal/api"
	"github.com/jneless/bkp-drive/internal/constants"
	"github.com/jneless/bkp-drive/internal/events"
	"github.com/jneless/bkp-drive/internal/logging"
)

// Fetcher downloads processed media. *api.Client implements it.
type Fetcher interface {
	Thumbnail(ctx context.Context, key, process string) ([]byte, error)
	HasToken() bool
}

// ThumbResult is the outcome of one thumbnail fetch. On failure Fallback
// is set and the item keeps its glyph.
type ThumbResult struct {
	Key      string
	Kind     MediaKind
	Data     []byte
	Fallback bool
	Err      error
}

// ThumbnailLoader fetches thumbnails concurrently, at most workers at a
// time. Identical in-flight requests share one fetch.
type ThumbnailLoader struct {
	fetcher Fetcher
	sem     chan struct{}
	group   singleflight.Group
	logger  *logging.Logger
	bus     *events.EventBus
}

// NewThumbnailLoader creates a loader. workers <= 0 uses the default.
func NewThumbnailLoader(f Fetcher, workers int, logger *logging.Logger, bus *events.EventBus) *ThumbnailLoader {
	if workers <= 0 {
		workers = constants.DefaultThumbnailWorkers
	}
	return &ThumbnailLoader{
		fetcher: f,
		sem:     make(chan struct{}, workers),
		logger:  logging.OrNop(logger),
		bus:     bus,
	}
}

// ThumbBatch tracks the fetches started for one render.
type ThumbBatch struct {
	wg     sync.WaitGroup
	cancel context.CancelFunc
	count  int
}

// Wait blocks until every fetch of the batch has reported.
func (b *ThumbBatch) Wait() {
	b.wg.Wait()
}

// Cancel abandons fetches that have not finished, e.g. after navigating away.
func (b *ThumbBatch) Cancel() {
	b.cancel()
}

// Len returns how many fetches were started.
func (b *ThumbBatch) Len() int {
	return b.count
}

// Process returns the processing instruction for a thumbnail of kind.
func Process(kind MediaKind, size int) string {
	switch kind {
	case MediaImage:
		return api.ImageResize(size)
	case MediaVideo:
		return api.VideoSnapshot(size, size)
	}
	return ""
}

// Start fires one fetch per thumbnail-bearing item and returns at once.
// onResult is called from the fetching goroutines. Without a token
// nothing is fetched.
func (l *ThumbnailLoader) Start(ctx context.Context, m Model, onResult func(ThumbResult)) *ThumbBatch {
	ctx, cancel := context.WithCancel(ctx)
	batch := &ThumbBatch{cancel: cancel}
	if !l.fetcher.HasToken() {
		return batch
	}

	for _, it := range m.Items {
		if it.Thumb == MediaNone {
			continue
		}
		batch.count++
		batch.wg.Add(1)
		go func(it Item) {
			defer batch.wg.Done()
			res := l.fetch(ctx, it)
			l.bus.PublishThumbnail(res.Key, res.Fallback, res.Err)
			if onResult != nil {
				onResult(res)
			}
		}(it)
	}
	return batch
}

func (l *ThumbnailLoader) fetch(ctx context.Context, it Item) ThumbResult {
	res := ThumbResult{Key: it.Key, Kind: it.Thumb}

	select {
	case l.sem <- struct{}{}:
		defer func() { <-l.sem }()
	case <-ctx.Done():
		res.Fallback, res.Err = true, ctx.Err()
		return res
	}

	// The shared fetch is detached from any one batch; each caller stops
	// waiting on its own ctx.
	process := Process(it.Thumb, it.ThumbSize)
	shared := context.WithoutCancel(ctx)
	ch := l.group.DoChan(it.Key+"?"+process, func() (interface{}, error) {
		return l.fetcher.Thumbnail(shared, it.Key, process)
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			l.logger.Debug().Str("key", it.Key).Err(r.Err).Msg("thumbnail unavailable, using fallback icon")
			res.Fallback, res.Err = true, r.Err
			return res
		}
		res.Data = r.Val.([]byte)
	case <-ctx.Done():
		res.Fallback, res.Err = true, ctx.Err()
	}
	return res
}
