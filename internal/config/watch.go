package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/alertbeacon/alertbeacon/internal/pattern"
)

// WatchPatterns reloads the pattern file into table whenever it is written
// or replaced and runs until ctx is cancelled. A reload that fails keeps the
// previous table. onReload, if set, is called after each successful reload.
//
// The parent directory is watched so that saves which rename a temp file
// over path keep being seen.
func WatchPatterns(ctx context.Context, path string, table *pattern.Table, logger zerolog.Logger, onReload func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	log := logger.With().Str("component", "pattern-watch").Str("path", path).Logger()
	log.Info().Msg("Watching pattern file for changes")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if err := ApplyPatterns(path, table); err != nil {
				log.Error().Err(err).Msg("Pattern reload failed, keeping previous table")
				continue
			}
			log.Info().Msg("Pattern table reloaded")
			if onReload != nil {
				onReload()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Pattern watcher error")
		}
	}
}
