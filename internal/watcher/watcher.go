// Package watcher follows the token cache directory so that tokens removed or
// rewritten by other processes are noticed by the running providers.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// replaceCheckDelay gives atomic replacements time to land before a
// Remove or Rename is treated as a deletion.
const replaceCheckDelay = 50 * time.Millisecond

// Resolver maps a cache file to its connection id.
type Resolver interface {
	ConnectionID(path string) (string, bool)
}

// Handler reacts to cache changes.
type Handler interface {
	Revoked(connectionID string)
	Changed(connectionID string)
}

type Watcher struct {
	dir      string
	resolver Resolver
	handler  Handler
	watcher  *fsnotify.Watcher
}

func New(dir string, resolver Resolver, handler Handler) (*Watcher, error) {
	if dir == "" {
		return nil, errors.New("[watcher.New] dir is required")
	}
	if resolver == nil || handler == nil {
		return nil, errors.New("[watcher.New] resolver and handler are required")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		dir:      dir,
		resolver: resolver,
		handler:  handler,
		watcher:  fsw,
	}, nil
}

// Start watches the directory until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		log.Err(err).Str("dir", w.dir).Msg("failed to watch token cache directory")
		return err
	}
	log.Debug().Str("dir", w.dir).Msg("watching token cache directory")
	go w.processEvents(ctx)
	return nil
}

func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case errWatch, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Err(errWatch).Msg("token cache watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".json") {
		return
	}
	id, known := w.resolver.ConnectionID(event.Name)
	if !known {
		log.Debug().Str("file", filepath.Base(event.Name)).Msg("ignoring change to unknown cache file")
		return
	}

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		time.Sleep(replaceCheckDelay)
		if _, err := os.Stat(event.Name); err == nil {
			log.Debug().Str("connection_id", id).Msg("cached token replaced")
			w.handler.Changed(id)
			return
		}
		log.Info().Str("connection_id", id).Msg("cached token removed externally")
		w.handler.Revoked(id)
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		log.Debug().Str("connection_id", id).Str("op", event.Op.String()).Msg("cached token changed")
		w.handler.Changed(id)
	}
}
