//go:build unix

package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"runner-launcher/internal/config"
	"runner-launcher/internal/launch"
	"runner-launcher/internal/paths"
	"runner-launcher/internal/singleinstance"
)

type stubWindow struct {
	inits   atomic.Int32
	reveals atomic.Int32

	opts WindowOptions
	// closeOnInit closes the window as soon as it is created.
	closeOnInit bool
}

func (w *stubWindow) Init() error {
	w.inits.Add(1)
	if w.closeOnInit {
		w.opts.Quit()
	}
	return nil
}

func (w *stubWindow) Reveal() { w.reveals.Add(1) }

type testEnv struct {
	v      *viper.Viper
	dir    string
	root   string
	window *stubWindow
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root, err := os.MkdirTemp("", "cli")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(root) })

	dir := paths.Resolve(root, "runner").Dir
	v, err := config.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	v.Set(config.KeySupportRoot, root)
	v.Set(config.KeyConnectRetryWindow, "50ms")
	return &testEnv{v: v, dir: dir, root: root, window: &stubWindow{}}
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	save := func(dir string) error { return config.SaveTo(e.v, dir) }
	cmd := newRootCmd(e.v, nil, save, func(opts WindowOptions) launch.UI {
		e.window.opts = opts
		return e.window
	})

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPathsCmd(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "paths")
	if err != nil {
		t.Fatalf("paths: %v", err)
	}
	p := paths.Resolve(env.root, "runner")
	for _, want := range []string{p.Dir, p.LockFile, p.Socket} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStatusCmd(t *testing.T) {
	env := newTestEnv(t)
	p := paths.Resolve(env.root, "runner")

	out, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Instance: not running") {
		t.Errorf("unexpected status:\n%s", out)
	}

	if err := paths.EnsureDir(p); err != nil {
		t.Fatal(err)
	}
	lock, err := singleinstance.Acquire(p.LockFile)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	out, err = env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Instance: running") {
		t.Errorf("unexpected status:\n%s", out)
	}
}

func TestShowCmd_NoInstance(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "show")
	if err == nil {
		t.Fatal("expected error without a running instance")
	}
	if !strings.Contains(err.Error(), "no running instance") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestShowCmd_SignalsPrimary(t *testing.T) {
	env := newTestEnv(t)
	p := paths.Resolve(env.root, "runner")

	revealed := make(chan struct{}, 1)
	inst, err := launch.Start(context.Background(), launch.Options{Paths: p, Logger: zerolog.Nop()},
		directPoster{}, func() { revealed <- struct{}{} })
	if err != nil {
		t.Fatal(err)
	}
	defer inst.Close()

	out, err := env.run(t, "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "Signal sent") {
		t.Errorf("unexpected output: %s", out)
	}
	select {
	case <-revealed:
	case <-time.After(3 * time.Second):
		t.Fatal("primary did not receive the signal")
	}
}

type directPoster struct{}

func (directPoster) Post(fn func()) { fn() }

func TestRootCmd_SecondaryExitsWithoutWindow(t *testing.T) {
	env := newTestEnv(t)
	p := paths.Resolve(env.root, "runner")

	revealed := make(chan struct{}, 1)
	inst, err := launch.Start(context.Background(), launch.Options{Paths: p, Logger: zerolog.Nop()},
		directPoster{}, func() { revealed <- struct{}{} })
	if err != nil {
		t.Fatal(err)
	}
	defer inst.Close()

	if _, err := env.run(t); err != nil {
		t.Fatalf("root: %v", err)
	}
	if env.window.inits.Load() != 0 {
		t.Error("secondary launch initialized a window")
	}
	select {
	case <-revealed:
	case <-time.After(3 * time.Second):
		t.Fatal("primary was not revealed")
	}
}

func TestConfigCmd(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.run(t, "config", "set", "log-level", "debug"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.dir, "config.yaml")); err != nil {
		t.Errorf("config file not written: %v", err)
	}

	out, err := env.run(t, "config", "get", "log_level")
	if err != nil {
		t.Fatalf("config get: %v", err)
	}
	if strings.TrimSpace(out) != "debug" {
		t.Errorf("config get = %q, want debug", out)
	}

	out, err = env.run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "connect_timeout:") {
		t.Errorf("config show missing keys:\n%s", out)
	}

	if _, err := env.run(t, "config", "set", "partner_id", "x"); err == nil {
		t.Error("unknown key accepted")
	}
}

func TestVersionCmd(t *testing.T) {
	env := newTestEnv(t)
	SetVersion("9.9.9")
	t.Cleanup(func() { SetVersion("0.1.0") })

	out, err := env.run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Runner v9.9.9") {
		t.Errorf("unexpected version output: %s", out)
	}
}

func TestRootCmd_WindowCloseEndsLauncher(t *testing.T) {
	env := newTestEnv(t)
	env.window.closeOnInit = true
	p := paths.Resolve(env.root, "runner")

	if _, err := env.run(t); err != nil {
		t.Fatalf("root: %v", err)
	}
	if env.window.inits.Load() != 1 {
		t.Fatalf("inits = %d, want 1", env.window.inits.Load())
	}
	if env.window.opts.StartHidden {
		t.Error("window started hidden without --silent")
	}

	held, err := singleinstance.IsHeld(p.LockFile)
	if err != nil {
		t.Fatal(err)
	}
	if held {
		t.Error("lock still held after the window closed")
	}
	if _, err := os.Stat(p.Socket); !os.IsNotExist(err) {
		t.Errorf("socket left behind: %v", err)
	}
}

func TestRootCmd_SilentStartsHidden(t *testing.T) {
	env := newTestEnv(t)
	env.window.closeOnInit = true

	if _, err := env.run(t, "--silent"); err != nil {
		t.Fatalf("root --silent: %v", err)
	}
	if !env.window.opts.StartHidden {
		t.Error("--silent did not reach the window")
	}
}

func TestConfigCmd_FollowsSupportRootFlag(t *testing.T) {
	startDir := t.TempDir()
	v, err := config.New(startDir)
	if err != nil {
		t.Fatal(err)
	}
	root, err := os.MkdirTemp("", "cli")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(root) })
	p := paths.Resolve(root, "runner")

	run := func(args ...string) string {
		t.Helper()
		save := func(dir string) error { return config.SaveTo(v, dir) }
		cmd := newRootCmd(v, nil, save, func(WindowOptions) launch.UI { return &stubWindow{} })
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		if err := cmd.Execute(); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		return out.String()
	}

	out := run("--support-root", root, "paths")
	if !strings.Contains(out, p.ConfigFile()) {
		t.Errorf("paths does not report %s:\n%s", p.ConfigFile(), out)
	}

	run("--support-root", root, "config", "set", "log_level", "warn")
	if _, err := os.Stat(p.ConfigFile()); err != nil {
		t.Errorf("config not written next to the lock file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(startDir, "config.yaml")); !os.IsNotExist(err) {
		t.Errorf("config written to the startup directory: %v", err)
	}
}
