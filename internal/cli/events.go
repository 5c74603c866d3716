package cli

import (
	"github.com/jneless/bkp-drive/internal/events"
	"github.com/jneless/bkp-drive/internal/logging"
)

// watchEvents logs session and batch activity until the bus is closed.
// The returned channel is closed once every pending event was logged.
func watchEvents(bus *events.EventBus, logger *logging.Logger) <-chan struct{} {
	ch := bus.SubscribeAll()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			logEvent(logger, ev)
		}
	}()
	return done
}

func logEvent(logger *logging.Logger, ev events.Event) {
	switch e := ev.(type) {
	case *events.AuthChangedEvent:
		if e.Reason == "rejected" || e.Reason == "expired" {
			logger.Warnf("saved login %s, you are now logged out", e.Reason)
			return
		}
		logger.Debug().Bool("authenticated", e.Authenticated).Str("user", e.Username).Str("reason", e.Reason).Msg("auth changed")
	case *events.PathChangedEvent:
		logger.Debug().Str("from", e.OldPath).Str("to", e.NewPath).Msg("navigated")
	case *events.SelectionChangedEvent:
		logger.Debug().Int("selected", len(e.Selected)).Msg("selection changed")
	case *events.ViewModeChangedEvent:
		logger.Debug().Str("mode", e.Mode).Msg("view mode changed")
	case *events.BatchStateEvent:
		logger.Debug().Str("from", e.OldState).Str("to", e.NewState).AnErr("cause", e.Err).Msg("batch state")
	case *events.BatchProgressEvent:
		logger.Debug().Int("done", e.Done).Int("total", e.Total).Str("file", e.Current).Msg("batch progress")
	case *events.FolderSkippedEvent:
		logger.Debug().Str("path", e.Path).Err(e.Err).Msg("folder skipped")
	case *events.ThumbnailEvent:
		logger.Debug().Str("key", e.Key).Bool("fallback", e.Fallback).Msg("thumbnail")
	}
}
