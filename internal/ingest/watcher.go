package ingest

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher signals corpus changes in a directory. Bursts of filesystem
// events (editors write several times per save) are debounced into a
// single notification.
type Watcher struct {
	dir      string
	debounce time.Duration
	logger   *log.Logger
}

func NewWatcher(dir string) *Watcher {
	return &Watcher{
		dir:      dir,
		debounce: 500 * time.Millisecond,
		logger:   log.Default().With("component", "watcher"),
	}
}

// Watch emits on the returned channel whenever a supported file in the
// directory is created, written, renamed or removed. The channel closes
// when ctx is done.
func (w *Watcher) Watch(ctx context.Context) (<-chan struct{}, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer fsw.Close()

		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if !relevant(ev) {
					continue
				}
				w.logger.Debug("fs event", "op", ev.Op.String(), "name", ev.Name)
				if timer == nil {
					timer = time.NewTimer(w.debounce)
				} else {
					timer.Reset(w.debounce)
				}
				fire = timer.C
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watch error", "err", err)
			case <-fire:
				fire = nil
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

func relevant(ev fsnotify.Event) bool {
	if !supported(ev.Name) {
		return false
	}
	return ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) ||
		ev.Op.Has(fsnotify.Rename) || ev.Op.Has(fsnotify.Remove)
}
