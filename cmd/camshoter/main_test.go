package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/yar-resh/camshoter/internal/config"
	"github.com/yar-resh/camshoter/internal/logic/archive"
)

// ---------- numberingFlag ----------

func TestNumberingFlag_Set(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"board", config.NumberingBoard, false},
		{"BCM", config.NumberingBCM, false},
		{"bcm", config.NumberingBCM, false},
		{"wiringpi", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			var f numberingFlag
			err := f.Set(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Set(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			}
			if !tc.wantErr && f.String() != tc.want {
				t.Errorf("String() = %q, want %q", f.String(), tc.want)
			}
		})
	}
}

func TestNumberingFlag_Type(t *testing.T) {
	if got := (&numberingFlag{}).Type(); got != "numbering" {
		t.Errorf("Type() = %q", got)
	}
}

// ---------- loadConfig ----------

// parse binds the command-line flags, parses args and returns the
// resulting configuration.
func parse(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("camshoter", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	opts := newOptions()
	bindFlags(fs, opts)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return loadConfig(opts, fs)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := parse(t)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Directory != "images" || cfg.GPIO.Pin != 10 || cfg.GPIO.Numbering != config.NumberingBoard {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.GPIO.MinHandleIntervalSec != 3 || cfg.GPIO.BounceTimeMs != 300 {
		t.Errorf("debounce defaults = %+v", cfg.GPIO)
	}
	if cfg.Instant {
		t.Error("instant should default to false")
	}
}

func TestLoadConfig_FlagsOverride(t *testing.T) {
	cfg, err := parse(t,
		"-d", "/data/shots",
		"--instant",
		"-p", "17",
		"--pin_numbering", "bcm",
		"-m", "5",
		"-b", "150",
		"--blacklist", "bcm2835",
		"--blacklist", "unicam",
		"--web", ":8080",
		"--debug", "3",
	)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Directory != "/data/shots" {
		t.Errorf("Directory = %q", cfg.Directory)
	}
	if !cfg.Instant {
		t.Error("Instant = false, want true")
	}
	if cfg.GPIO.Pin != 17 || cfg.GPIO.Numbering != config.NumberingBCM {
		t.Errorf("GPIO = %+v", cfg.GPIO)
	}
	if cfg.GPIO.MinHandleIntervalSec != 5 || cfg.GPIO.BounceTimeMs != 150 {
		t.Errorf("debounce = %+v", cfg.GPIO)
	}
	if len(cfg.Capture.Blacklist) != 2 || cfg.Capture.Blacklist[1] != "unicam" {
		t.Errorf("Blacklist = %v", cfg.Capture.Blacklist)
	}
	if cfg.Web.Addr != ":8080" || cfg.DebugLevel != 3 {
		t.Errorf("Web.Addr = %q, DebugLevel = %d", cfg.Web.Addr, cfg.DebugLevel)
	}
}

func TestLoadConfig_FileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camshoter.yaml")
	yaml := `
directory: /srv/img
gpio:
  pin: 12
  min_handle_interval_s: 10
capture:
  blacklist: ["isp"]
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := parse(t, "-c", path, "-p", "16")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Directory != "/srv/img" {
		t.Errorf("Directory = %q, want file value", cfg.Directory)
	}
	if cfg.GPIO.Pin != 16 {
		t.Errorf("Pin = %d, want flag value 16", cfg.GPIO.Pin)
	}
	if cfg.GPIO.MinHandleIntervalSec != 10 {
		t.Errorf("MinHandleIntervalSec = %d, want file value 10", cfg.GPIO.MinHandleIntervalSec)
	}
	if len(cfg.Capture.Blacklist) != 1 || cfg.Capture.Blacklist[0] != "isp" {
		t.Errorf("Blacklist = %v, want file value (flag not set)", cfg.Capture.Blacklist)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	if _, err := parse(t, "--bounce_time=-5"); err == nil {
		t.Error("negative bounce time should be rejected")
	}
	if _, err := parse(t, "--pin_numbering", "wpi"); err == nil {
		t.Error("unknown numbering should be rejected")
	}
	if _, err := parse(t, "-c", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing config file should be rejected")
	}
}

// ---------- run ----------

// testConfig returns an instant-mode config whose devices live under dir.
func testConfig(dir string) *config.Config {
	cfg := config.Default()
	cfg.DebugLevel = 0
	cfg.Instant = true
	cfg.Directory = "images"
	cfg.GPIO.Mock = true
	cfg.Capture.DeviceGlob = filepath.Join(dir, "dev", "video*")
	cfg.Capture.SysfsRoot = filepath.Join(dir, "sys")
	return cfg
}

func TestRun_NoDevicesExitsCleanly(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "dev"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := run(context.Background(), testConfig(dir), dir); err != nil {
		t.Errorf("run with no devices = %v, want nil", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "images")); err != nil {
		t.Errorf("destination should be prepared before enumeration: %v", err)
	}
}

func TestRun_UnwritableDestination(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "images")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	err := run(context.Background(), testConfig(dir), dir)
	if !errors.Is(err, archive.ErrDirectoryUnwritable) {
		t.Errorf("err = %v, want ErrDirectoryUnwritable", err)
	}
}

// fakeDevices creates regular files standing in for device nodes, plus
// their sysfs names.
func fakeDevices(t *testing.T, dir string, names map[string]string) {
	t.Helper()
	for node, name := range names {
		if err := os.MkdirAll(filepath.Join(dir, "dev"), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "dev", node), nil, 0o644); err != nil {
			t.Fatal(err)
		}
		sys := filepath.Join(dir, "sys", node)
		if err := os.MkdirAll(sys, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(sys, "name"), []byte(name+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRun_InstantSkipsUnusableDevices(t *testing.T) {
	dir := t.TempDir()
	fakeDevices(t, dir, map[string]string{
		"video0": "bcm2835-isp",
		"video1": "USB Camera",
	})

	if err := run(context.Background(), testConfig(dir), dir); err != nil {
		t.Fatalf("run = %v, want nil (per-device failures are not fatal)", err)
	}

	days, err := os.ReadDir(filepath.Join(dir, "images"))
	if err != nil || len(days) != 1 {
		t.Fatalf("date directories = %v, %v; want exactly one", days, err)
	}
	batches, _ := os.ReadDir(filepath.Join(dir, "images", days[0].Name()))
	if len(batches) != 1 {
		t.Fatalf("batch directories = %v, want one", batches)
	}
	files, _ := os.ReadDir(filepath.Join(dir, "images", days[0].Name(), batches[0].Name()))
	if len(files) != 0 {
		t.Errorf("files = %v, want none (no real camera)", files)
	}
}

func TestRun_ButtonModeStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	fakeDevices(t, dir, map[string]string{"video0": "USB Camera"})
	cfg := testConfig(dir)
	cfg.Instant = false

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := run(ctx, cfg, dir); err != nil {
		t.Errorf("run after cancel = %v, want nil", err)
	}
}

// freeAddr returns a loopback address nothing is listening on.
func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func TestRun_ShutdownWaitsForHTTPBatch(t *testing.T) {
	dir := t.TempDir()
	fakeDevices(t, dir, map[string]string{"video0": "USB Camera"})

	// A FIFO as the sysfs name holds the batch until the test writes to it.
	name := filepath.Join(dir, "sys", "video0", "name")
	if err := os.Remove(name); err != nil {
		t.Fatal(err)
	}
	if err := unix.Mkfifo(name, 0o600); err != nil {
		t.Skipf("mkfifo: %v", err)
	}

	cfg := testConfig(dir)
	cfg.Instant = false
	cfg.Web.Addr = freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, dir) }()

	var resp *http.Response
	deadline := time.Now().Add(5 * time.Second)
	for {
		var err error
		resp, err = http.Post("http://"+cfg.Web.Addr+"/capture", "", nil)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("web server never came up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST /capture = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	cancel()
	select {
	case err := <-done:
		t.Fatalf("run returned %v while the batch was still running", err)
	case <-time.After(300 * time.Millisecond):
	}

	f, err := os.OpenFile(name, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("USB Camera\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after the batch finished")
	}

	days, err := os.ReadDir(filepath.Join(dir, "images"))
	if err != nil || len(days) != 1 {
		t.Errorf("date directories = %v, %v; the batch should have completed", days, err)
	}
}

func TestRun_BadButtonPin(t *testing.T) {
	dir := t.TempDir()
	fakeDevices(t, dir, map[string]string{"video0": "USB Camera"})
	cfg := testConfig(dir)
	cfg.Instant = false
	cfg.GPIO.Pin = 1 // 3V3 on the header

	if err := run(context.Background(), cfg, dir); err == nil {
		t.Error("expected error for a power pin")
	}
}

func TestRootCmd_RejectsArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"extra"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	if err := cmd.Execute(); err == nil {
		t.Error("positional arguments should be rejected")
	}
}
