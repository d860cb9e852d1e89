package source

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"go-live-docs/internal/contracts"
)

// DefaultDebounce coalesces the bursts of events editors produce on save.
const DefaultDebounce = 50 * time.Millisecond

// File is a markdown file on disk. Watch reports changes to it.
type File struct {
	notifier
	path     string
	debounce time.Duration
	clock    clockwork.Clock
	log      logrus.FieldLogger
}

// NewFile creates a source for the file at path.
func NewFile(path string, debounce time.Duration, clock clockwork.Clock, log logrus.FieldLogger) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", path)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &File{path: abs, debounce: debounce, clock: clock, log: log}, nil
}

// Path implements Source.
func (f *File) Path() string {
	return f.path
}

// Read implements Source.
func (f *File) Read() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", f.path)
	}
	return data, nil
}

// Watch observes the file's directory until ctx is done. Events for the file
// are debounced; the last kind seen in a burst is reported.
func (f *File) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating watcher")
	}
	defer w.Close()

	dir := filepath.Dir(f.path)
	if err := w.Add(dir); err != nil {
		return errors.Wrapf(err, "watching %s", dir)
	}
	f.log.WithField("path", f.path).Info("watching markdown source")

	var (
		mu      sync.Mutex
		pending contracts.ChangeKind
		timer   clockwork.Timer
	)
	flush := func() {
		mu.Lock()
		kind := pending
		pending = ""
		mu.Unlock()
		if kind == "" {
			return
		}
		f.log.WithFields(logrus.Fields{"path": f.path, "kind": kind}).Info("markdown source changed")
		f.notify(contracts.ContentChange{Kind: kind, Path: f.path, Timestamp: f.clock.Now().UnixMilli()})
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.log.WithError(err).Warn("watcher error")
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			kind := changeKind(ev.Op)
			if kind == "" {
				continue
			}

			mu.Lock()
			pending = kind
			if timer != nil {
				timer.Stop()
			}
			timer = f.clock.AfterFunc(f.debounce, flush)
			mu.Unlock()
		}
	}
}

func changeKind(op fsnotify.Op) contracts.ChangeKind {
	switch {
	case op.Has(fsnotify.Create):
		return contracts.ChangeKindAdded
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return contracts.ChangeKindRemoved
	case op.Has(fsnotify.Write):
		return contracts.ChangeKindChanged
	default:
		return ""
	}
}
