package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yar-resh/camshoter/internal/config"
	"github.com/yar-resh/camshoter/internal/debug"
	"github.com/yar-resh/camshoter/internal/hw/camera"
	"github.com/yar-resh/camshoter/internal/hw/gpio"
	"github.com/yar-resh/camshoter/internal/hw/led"
	"github.com/yar-resh/camshoter/internal/logic/archive"
	"github.com/yar-resh/camshoter/internal/logic/capture"
	"github.com/yar-resh/camshoter/internal/logic/trigger"
	"github.com/yar-resh/camshoter/internal/metrics"
	"github.com/yar-resh/camshoter/internal/systemd"
	"github.com/yar-resh/camshoter/internal/web"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("camshoter: %v", err)
	}
}

// options holds the raw command-line values. Only flags the user actually
// set override the config file.
type options struct {
	configPath  string
	directory   string
	instant     bool
	pin         int
	numbering   numberingFlag
	minInterval int
	bounceMs    int
	blacklist   []string
	web         string
	debugLevel  int
}

func newRootCmd() *cobra.Command {
	opts := newOptions()

	cmd := &cobra.Command{
		Use:   "camshoter",
		Short: "Capture one still from every attached webcam on a button press",
		Long: `camshoter waits for a push button on a Raspberry Pi GPIO pin (or runs once
with --instant) and saves one JPEG per attached video device into
<directory>/<YYYY-MM-DD>/<batch-id>/<n>.jpg.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, cmd.Flags())
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg, executableDir())
		},
	}
	bindFlags(cmd.Flags(), opts)
	return cmd
}

func newOptions() *options {
	return &options{numbering: numberingFlag{val: config.NumberingBoard}}
}

// bindFlags registers the command-line flags on f, with built-in defaults.
func bindFlags(f *pflag.FlagSet, opts *options) {
	def := config.Default()
	f.StringVarP(&opts.configPath, "config", "c", "", "optional YAML or TOML config file")
	f.StringVarP(&opts.directory, "directory", "d", def.Directory, "destination directory; relative paths are resolved against the executable's directory")
	f.BoolVarP(&opts.instant, "instant", "i", false, "capture once and exit instead of waiting for the button")
	f.IntVarP(&opts.pin, "pin_number", "p", def.GPIO.Pin, "GPIO pin of the trigger button")
	f.Var(&opts.numbering, "pin_numbering", "pin numbering scheme: board or bcm")
	f.IntVarP(&opts.minInterval, "min_handle_interval", "m", def.GPIO.MinHandleIntervalSec, "minimum seconds between two handled button presses")
	f.IntVarP(&opts.bounceMs, "bounce_time", "b", def.GPIO.BounceTimeMs, "button bounce time in milliseconds")
	f.StringSliceVar(&opts.blacklist, "blacklist", def.Capture.Blacklist, "device-name substrings to skip (repeatable)")
	f.StringVar(&opts.web, "web", "", "HTTP listen address for status, metrics and remote capture (e.g. :8080)")
	f.IntVar(&opts.debugLevel, "debug", def.DebugLevel, "debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)")
}

// loadConfig builds the effective configuration: defaults, then the config
// file, then explicitly set flags.
func loadConfig(opts *options, flags *pflag.FlagSet) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config failed: %w", err)
		}
		cfg = loaded
	}

	applyFlags(cfg, opts, flags)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyFlags copies every flag the user set onto cfg.
func applyFlags(cfg *config.Config, opts *options, flags *pflag.FlagSet) {
	if flags.Changed("directory") {
		cfg.Directory = opts.directory
	}
	if flags.Changed("instant") {
		cfg.Instant = opts.instant
	}
	if flags.Changed("pin_number") {
		cfg.GPIO.Pin = opts.pin
	}
	if flags.Changed("pin_numbering") {
		cfg.GPIO.Numbering = opts.numbering.val
	}
	if flags.Changed("min_handle_interval") {
		cfg.GPIO.MinHandleIntervalSec = opts.minInterval
	}
	if flags.Changed("bounce_time") {
		cfg.GPIO.BounceTimeMs = opts.bounceMs
	}
	if flags.Changed("blacklist") {
		cfg.Capture.Blacklist = opts.blacklist
	}
	if flags.Changed("web") {
		cfg.Web.Addr = opts.web
	}
	if flags.Changed("debug") {
		cfg.DebugLevel = opts.debugLevel
	}
}

// run wires the hardware and blocks until the batch (instant mode) or ctx
// (button mode) is done. In button mode a batch that is already running when
// ctx is cancelled is allowed to finish before the GPIO driver is closed.
func run(ctx context.Context, cfg *config.Config, exeDir string) error {
	var broadcaster *web.StatusBroadcaster
	if cfg.Web.Addr != "" && !cfg.Instant {
		broadcaster = web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
	}
	debug.Init(cfg.DebugLevel)
	debug.Section("Initialization")
	debug.PrintStruct("Config", cfg)

	base := archive.ResolveBase(cfg.Directory, exeDir)
	debug.Value("Destination", base)
	if err := archive.Prepare(base); err != nil {
		return err
	}

	devices := camera.NewGlobEnumerator(cfg.Capture.DeviceGlob)
	present, err := devices.List()
	if err != nil {
		return fmt.Errorf("enumerate devices: %w", err)
	}
	if len(present) == 0 {
		debug.Warn("%v matching %s, nothing to do", camera.ErrNoDevices, cfg.Capture.DeviceGlob)
		return nil
	}
	metrics.SetDevicesPresent(len(present))
	debug.Value("Devices", present)

	board := cfg.GPIO.Numbering == config.NumberingBoard
	var gpioDriver gpio.Driver
	if !cfg.Instant || cfg.GPIO.StatusLEDPin != 0 {
		debug.Step(1, "Initializing GPIO driver")
		gpioDriver, err = gpio.NewDriver(cfg.GPIO.Mock)
		if err != nil {
			return fmt.Errorf("init GPIO failed: %w", err)
		}
		defer func() {
			if err := gpioDriver.Close(); err != nil {
				log.Printf("closing GPIO driver failed: %v", err)
			}
		}()
	}

	indicator, err := newIndicator(gpioDriver, cfg.GPIO.StatusLEDPin, board)
	if err != nil {
		return fmt.Errorf("init status LED failed: %w", err)
	}

	style, err := archive.ParseStyle(cfg.Capture.BatchID)
	if err != nil {
		return err
	}

	var handlers *web.Handlers
	if broadcaster != nil {
		handlers = web.NewHandlers(broadcaster, nil, cfg)
	}

	debug.Step(2, "Preparing capture batch")
	batch := capture.NewBatch(capture.Options{
		Devices: devices,
		Filter:  camera.NewFilter(camera.SysfsNamer{Root: cfg.Capture.SysfsRoot}, cfg.Capture.Blacklist),
		Source: &camera.WebcamSource{
			Width:   uint32(cfg.Capture.Width),
			Height:  uint32(cfg.Capture.Height),
			Timeout: cfg.FrameTimeout(),
		},
		Archive:   archive.Namer{Base: base, Style: style},
		Quality:   cfg.Capture.JPEGQuality,
		Indicator: indicator,
		OnResult:  onResult(handlers),
	})
	handler := trigger.NewHandler(batch, cfg.MinHandleInterval())

	if cfg.Instant {
		return trigger.Immediate(handler)
	}

	pin, err := gpio.ResolvePin(cfg.GPIO.Pin, board)
	if err != nil {
		return fmt.Errorf("button pin: %w", err)
	}
	debug.Value("Button GPIO (BCM)", pin)

	var wg sync.WaitGroup
	if handlers != nil {
		handlers.Capture = handler
		srv := web.NewServer(cfg.Web.Addr, handlers)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				log.Printf("web server: %v", err)
			}
		}()
	}

	if w, err := camera.NewWatcher(cfg.Capture.DeviceGlob); err != nil {
		debug.Warn("hot-plug watcher disabled: %v", err)
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Run(ctx, func(ev camera.HotplugEvent) {
				if ev.Added {
					metrics.AddDevicesPresent(1)
				} else {
					metrics.AddDevicesPresent(-1)
				}
			})
		}()
	}

	button := &trigger.Button{
		Driver: gpioDriver,
		Pin:    pin,
		Pull:   gpio.PullDown,
		Bounce: cfg.BounceTime(),
		Poll:   cfg.PollInterval(),
	}

	systemd.Ready()
	systemd.Status("waiting for button")
	err = button.Run(ctx, func(now time.Time) {
		systemd.Status("capturing")
		handler.Fire(now)
		systemd.Status("waiting for button")
	})
	systemd.Stopping()
	debug.Info("Shutting down")

	handler.Close()
	wg.Wait()
	return err
}

// newIndicator returns the status LED on pin, or a no-op when pin is 0.
func newIndicator(g gpio.Driver, pin int, board bool) (led.Indicator, error) {
	if pin == 0 || g == nil {
		return led.Noop{}, nil
	}
	bcm, err := gpio.ResolvePin(pin, board)
	if err != nil {
		return nil, err
	}
	return led.NewGPIOLED(g, bcm)
}

// onResult publishes batch results to the web layer when it is enabled.
func onResult(h *web.Handlers) func(*capture.Result) {
	if h == nil {
		return nil
	}
	return h.RecordResult
}

// executableDir returns the directory of the running binary, falling back
// to the working directory.
func executableDir() string {
	exe, err := os.Executable()
	if err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	wd, _ := os.Getwd()
	return wd
}

// numberingFlag implements pflag.Value for --pin_numbering.
type numberingFlag struct {
	val string
}

func (n *numberingFlag) String() string { return n.val }

func (n *numberingFlag) Set(s string) error {
	switch v := strings.ToLower(s); v {
	case config.NumberingBoard, config.NumberingBCM:
		n.val = v
		return nil
	default:
		return fmt.Errorf("must be %q or %q, got %q", config.NumberingBoard, config.NumberingBCM, s)
	}
}

func (n *numberingFlag) Type() string { return "numbering" }
