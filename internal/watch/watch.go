package watch

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"casevise/internal/parser"
	"casevise/internal/rag"
)

// settleDelay gives writers time to finish before the file is parsed.
const settleDelay = 500 * time.Millisecond

// Watcher ingests case documents dropped into a directory, all into one
// dedicated session.
type Watcher struct {
	service *rag.Service
	session *rag.Session
	watcher *fsnotify.Watcher
}

func NewWatcher(service *rag.Service, session *rag.Session) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{service: service, session: session, watcher: w}, nil
}

// Run watches dir until ctx is cancelled. Create and write events for
// supported file types trigger ingestion; a file rewritten shortly after
// creation is only ingested once per settle window.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	log.Info().Str("dir", dir).Str("session", w.session.ID).Msg("Watching for case documents")

	pending := make(map[string]*time.Timer)
	ingestCh := make(chan string)

	for {
		select {
		case <-ctx.Done():
			return w.watcher.Close()
		case path := <-ingestCh:
			delete(pending, path)
			if err := w.service.UploadPath(ctx, w.session, path); err != nil {
				log.Error().Err(err).Str("file", path).Msg("Failed to ingest watched file")
			}
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !parser.Supported(event.Name) {
				continue
			}
			path := event.Name
			if t, ok := pending[path]; ok {
				t.Reset(settleDelay)
				continue
			}
			pending[path] = time.AfterFunc(settleDelay, func() {
				select {
				case ingestCh <- path:
				case <-ctx.Done():
				}
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Watcher error")
		}
	}
}
