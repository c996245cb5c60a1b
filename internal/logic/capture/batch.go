// Package capture runs capture batches: one frame from every eligible
// device, saved as numbered JPEGs in a fresh archive directory.
package capture

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/yar-resh/camshoter/internal/debug"
	"github.com/yar-resh/camshoter/internal/hw/camera"
	"github.com/yar-resh/camshoter/internal/hw/led"
	"github.com/yar-resh/camshoter/internal/logic/archive"
	"github.com/yar-resh/camshoter/internal/metrics"
)

// Checker decides whether a device may be captured. *camera.Filter satisfies it.
type Checker interface {
	Check(dev camera.Device) (string, error)
}

// Skip records a device left out of a batch.
type Skip struct {
	Device string `json:"device"`
	Reason string `json:"reason"`
	Detail string `json:"detail"`
	Err    error  `json:"-"`
}

// Result summarises one batch.
type Result struct {
	ID      string    `json:"id"`
	Dir     string    `json:"dir"`
	Started time.Time `json:"started"`
	Saved   []string  `json:"saved"`
	Skipped []Skip    `json:"skipped"`
}

// Batch captures one frame from every eligible device into a fresh
// archive directory.
type Batch struct {
	devices   camera.Enumerator
	filter    Checker
	source    camera.Source
	archive   archive.Namer
	quality   int
	indicator led.Indicator
	clock     func() time.Time
	onResult  func(*Result)
}

// Options collects the collaborators of a Batch. Indicator, Clock and
// OnResult are optional.
type Options struct {
	Devices   camera.Enumerator
	Filter    Checker
	Source    camera.Source
	Archive   archive.Namer
	Quality   int
	Indicator led.Indicator
	Clock     func() time.Time
	OnResult  func(*Result)
}

func NewBatch(o Options) *Batch {
	b := &Batch{
		devices:   o.Devices,
		filter:    o.Filter,
		source:    o.Source,
		archive:   o.Archive,
		quality:   o.Quality,
		indicator: o.Indicator,
		clock:     o.Clock,
		onResult:  o.OnResult,
	}
	if b.indicator == nil {
		b.indicator = led.Noop{}
	}
	if b.clock == nil {
		b.clock = time.Now
	}
	return b
}

// Run performs one batch. Only a failure to create the batch directory is
// returned; every per-device problem is logged and recorded in Result.Skipped.
func (b *Batch) Run() (*Result, error) {
	started := b.clock()
	t0 := time.Now()
	metrics.BatchStarted()
	defer func() { metrics.BatchFinished(time.Since(t0).Seconds()) }()

	if err := b.indicator.On(); err != nil {
		debug.Warn("indicator on: %v", err)
	}
	defer func() {
		if err := b.indicator.Off(); err != nil {
			debug.Warn("indicator off: %v", err)
		}
	}()

	dir, err := b.archive.Create(started)
	if err != nil {
		metrics.BatchFailed()
		return nil, fmt.Errorf("batch at %s: %w", started.Format(time.RFC3339), err)
	}

	res := &Result{
		ID:      uuid.NewString(),
		Dir:     dir,
		Started: started,
	}
	debug.Section("Batch " + res.ID)
	debug.Live("Writing into %s", dir)

	devices, err := b.devices.List()
	if err != nil {
		debug.Warn("enumerate devices: %v", err)
		devices = nil
	}
	metrics.SetDevicesPresent(len(devices))
	if len(devices) == 0 {
		debug.Info("%v: nothing captured", camera.ErrNoDevices)
	}

	seq := 1
	for _, dev := range devices {
		path, err := b.captureOne(dev, dir, seq)
		if err != nil {
			res.skip(dev, err)
			continue
		}
		res.Saved = append(res.Saved, path)
		metrics.ImageSaved()
		debug.Saved(dev.Path, path)
		seq++
	}

	debug.Batch(res.ID, res.Dir, len(res.Saved), len(res.Skipped))
	if b.onResult != nil {
		b.onResult(res)
	}
	return res, nil
}

// captureOne filters, captures and writes dev as <dir>/<seq>.jpg.
func (b *Batch) captureOne(dev camera.Device, dir string, seq int) (string, error) {
	name, err := b.filter.Check(dev)
	if err != nil {
		return "", err
	}
	debug.Verbose("%s: %q", dev.Path, name)

	frame, err := b.source.Capture(dev)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, strconv.Itoa(seq)+".jpg")
	if err := camera.WriteJPEG(path, frame, b.quality); err != nil {
		return "", fmt.Errorf("%s: %w: %v", dev.Path, errEncode, err)
	}
	return path, nil
}

var errEncode = errors.New("encode failed")

func (r *Result) skip(dev camera.Device, err error) {
	reason := skipReason(err)
	r.Skipped = append(r.Skipped, Skip{
		Device: dev.Path,
		Reason: reason,
		Detail: err.Error(),
		Err:    err,
	})
	metrics.DeviceSkipped(reason)
	switch reason {
	case metrics.ReasonBlacklisted, metrics.ReasonUnresolvable:
		debug.Skipped(dev.Path, err)
	default:
		debug.Warn("%s skipped: %v", dev.Path, err)
	}
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, camera.ErrBlacklisted):
		return metrics.ReasonBlacklisted
	case errors.Is(err, camera.ErrNameUnresolvable):
		return metrics.ReasonUnresolvable
	case errors.Is(err, errEncode):
		return metrics.ReasonEncode
	default:
		return metrics.ReasonUnavailable
	}
}
