package camera

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/yar-resh/camshoter/internal/debug"
)

// HotplugEvent reports a device node appearing or disappearing.
type HotplugEvent struct {
	Device Device
	Added  bool
}

// Watcher reports device nodes matching a glob pattern as they come and go.
// Batches always re-enumerate; the watcher only makes hot-plug visible in logs.
type Watcher struct {
	pattern string
	fsw     *fsnotify.Watcher
}

// NewWatcher watches the directory of pattern (e.g. /dev for /dev/video*).
func NewWatcher(pattern string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(pattern)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(pattern), err)
	}
	return &Watcher{pattern: pattern, fsw: fsw}, nil
}

// Run delivers events to onChange until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context, onChange func(HotplugEvent)) error {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			hp, ok := w.translate(ev)
			if !ok {
				continue
			}
			if hp.Added {
				debug.Info("Video device attached: %s", hp.Device.Path)
			} else {
				debug.Info("Video device detached: %s", hp.Device.Path)
			}
			if onChange != nil {
				onChange(hp)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			debug.Warn("device watcher: %v", err)
		}
	}
}

func (w *Watcher) translate(ev fsnotify.Event) (HotplugEvent, bool) {
	if match, _ := filepath.Match(w.pattern, ev.Name); !match {
		return HotplugEvent{}, false
	}
	idx, ok := deviceIndex(ev.Name)
	if !ok {
		return HotplugEvent{}, false
	}
	dev := Device{Path: ev.Name, Index: idx}

	switch {
	case ev.Has(fsnotify.Create):
		return HotplugEvent{Device: dev, Added: true}, true
	case ev.Has(fsnotify.Remove):
		return HotplugEvent{Device: dev, Added: false}, true
	default:
		return HotplugEvent{}, false
	}
}
