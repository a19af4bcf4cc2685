package luks

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lukskeep/lukskeep/internal/config"
	"github.com/lukskeep/lukskeep/pkg/errors"
	"github.com/lukskeep/lukskeep/pkg/hooks"
	"github.com/lukskeep/lukskeep/pkg/keystore"
	"github.com/lukskeep/lukskeep/pkg/system"
)

// fakeRunner records external invocations and replays scripted results per
// argv. Each scripted slice is consumed front to back; when exhausted (or
// unscripted) the zero result is returned, i.e. exit code 0.
type fakeRunner struct {
	calls   []string
	inputs  []string
	scripts map[string][]system.Result
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{scripts: make(map[string][]system.Result)}
}

func (f *fakeRunner) script(key string, results ...system.Result) {
	f.scripts[key] = append(f.scripts[key], results...)
}

func (f *fakeRunner) play(input, name string, args []string) (system.Result, error) {
	key := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, key)
	f.inputs = append(f.inputs, input)

	queue := f.scripts[key]
	if len(queue) == 0 {
		return system.Result{}, nil
	}
	res := queue[0]
	f.scripts[key] = queue[1:]
	return res, nil
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (system.Result, error) {
	return f.play("", name, args)
}

func (f *fakeRunner) RunWithInput(ctx context.Context, input, name string, args ...string) (system.Result, error) {
	return f.play(input, name, args)
}

func (f *fakeRunner) RunPrivileged(ctx context.Context, name string, args ...string) (system.Result, error) {
	return f.play("", name, args)
}

func (f *fakeRunner) RunPrivilegedWithInput(ctx context.Context, input, name string, args ...string) (system.Result, error) {
	return f.play(input, name, args)
}

func (f *fakeRunner) RunShell(ctx context.Context, command string) (system.Result, error) {
	return f.play("", "sh", []string{"-c", command})
}

func (f *fakeRunner) count(key string) int {
	n := 0
	for _, c := range f.calls {
		if c == key {
			n++
		}
	}
	return n
}

// fakeStore always holds the same passphrase for every name.
type fakeStore struct {
	passphrase string
}

func (s fakeStore) Exists(ctx context.Context, name string) (bool, error) { return true, nil }
func (s fakeStore) Get(ctx context.Context, name string) (string, error) { return s.passphrase, nil }
func (s fakeStore) Set(ctx context.Context, name, plaintext string) error { return nil }

type noPrompter struct{}

func (noPrompter) ReadSecret(prompt string) (string, error) { return "", fmt.Errorf("no prompt in tests") }
func (noPrompter) Confirm(prompt string) (bool, error)      { return false, fmt.Errorf("no prompt in tests") }

func testDevice(t *testing.T, run *fakeRunner, mountPoint string) *Device {
	t.Helper()
	spec := config.Device{Name: "data", Devnode: "/dev/sda2", MountPoint: mountPoint}
	keys := keystore.NewManager(fakeStore{passphrase: "hunter2"}, noPrompter{})
	return NewDevice(spec, keys, hooks.NewRunner(nil, run), run)
}

func TestOpen_Idempotent(t *testing.T) {
	run := newFakeRunner()
	// Closed on the first query, open on the second.
	run.script("cryptsetup status data", system.Result{ExitCode: 4}, system.Result{ExitCode: 0})

	dev := testDevice(t, run, "")

	if err := dev.Open(context.Background()); err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if err := dev.Open(context.Background()); err != nil {
		t.Fatalf("second open failed: %v", err)
	}

	openKey := "cryptsetup luksOpen /dev/sda2 data"
	if got := run.count(openKey); got != 1 {
		t.Errorf("expected exactly 1 luksOpen, got %d (calls: %v)", got, run.calls)
	}
}

func TestOpen_PassphraseOnStdinOnly(t *testing.T) {
	run := newFakeRunner()
	run.script("cryptsetup status data", system.Result{ExitCode: 4})

	dev := testDevice(t, run, "")
	if err := dev.Open(context.Background()); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	for _, call := range run.calls {
		if strings.Contains(call, "hunter2") {
			t.Fatalf("passphrase leaked into argv: %q", call)
		}
	}

	found := false
	for i, call := range run.calls {
		if call == "cryptsetup luksOpen /dev/sda2 data" {
			found = true
			if run.inputs[i] != "hunter2\n" {
				t.Errorf("expected passphrase on stdin, got %q", run.inputs[i])
			}
		}
	}
	if !found {
		t.Fatalf("luksOpen was never invoked: %v", run.calls)
	}
}

func TestOpen_ConflictRecovered(t *testing.T) {
	run := newFakeRunner()
	run.script("cryptsetup status data", system.Result{ExitCode: 4})
	run.script("cryptsetup luksOpen /dev/sda2 data",
		system.Result{ExitCode: 1, Stderr: "Device data already exists."},
		system.Result{ExitCode: 0})

	dev := testDevice(t, run, "")
	if err := dev.Open(context.Background()); err != nil {
		t.Fatalf("expected conflict to be recovered, got %v", err)
	}

	want := []string{
		"cryptsetup status data",
		"cryptsetup luksOpen /dev/sda2 data",
		"cryptsetup luksClose data",
		"cryptsetup luksOpen /dev/sda2 data",
	}
	if len(run.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, run.calls)
	}
	for i := range want {
		if run.calls[i] != want[i] {
			t.Errorf("call %d: got %q, want %q", i, run.calls[i], want[i])
		}
	}
}

func TestOpen_ConflictRetryFailsWithOriginalError(t *testing.T) {
	run := newFakeRunner()
	run.script("cryptsetup status data", system.Result{ExitCode: 4})
	run.script("cryptsetup luksOpen /dev/sda2 data",
		system.Result{ExitCode: 1, Stderr: "Device data already exists."},
		system.Result{ExitCode: 5, Stderr: "retry boom"})

	dev := testDevice(t, run, "")
	err := dev.Open(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}

	var conflictErr *errors.DeviceConflictError
	if !stderrors.As(err, &conflictErr) {
		t.Fatalf("expected DeviceConflictError, got %T: %v", err, err)
	}
	if conflictErr.Name != "data" {
		t.Errorf("unexpected device name: %s", conflictErr.Name)
	}
	// The original failure is surfaced, not the retry's.
	if !strings.Contains(err.Error(), "exit code 1") {
		t.Errorf("expected original open failure in error, got: %v", err)
	}
	if strings.Contains(err.Error(), "retry boom") {
		t.Errorf("retry failure must not replace the original error: %v", err)
	}
}

func TestOpen_NonConflictFailureIsNotRetried(t *testing.T) {
	run := newFakeRunner()
	run.script("cryptsetup status data", system.Result{ExitCode: 4})
	run.script("cryptsetup luksOpen /dev/sda2 data",
		system.Result{ExitCode: 2, Stderr: "No key available with this passphrase."})

	dev := testDevice(t, run, "")
	if err := dev.Open(context.Background()); err == nil {
		t.Fatal("expected an error")
	}

	if got := run.count("cryptsetup luksOpen /dev/sda2 data"); got != 1 {
		t.Errorf("expected no retry for a plain open failure, got %d opens", got)
	}
	if got := run.count("cryptsetup luksClose data"); got != 0 {
		t.Errorf("expected no close for a plain open failure, got %d", got)
	}
}

func TestMount_Idempotent(t *testing.T) {
	mp := filepath.Join(t.TempDir(), "data")

	run := newFakeRunner()
	run.script("mountpoint -q "+mp, system.Result{ExitCode: 1}, system.Result{ExitCode: 0})

	dev := testDevice(t, run, mp)
	if err := dev.Mount(context.Background()); err != nil {
		t.Fatalf("first mount failed: %v", err)
	}
	if err := dev.Mount(context.Background()); err != nil {
		t.Fatalf("second mount failed: %v", err)
	}

	mountKey := "mount /dev/mapper/data " + mp
	if got := run.count(mountKey); got != 1 {
		t.Errorf("expected exactly 1 mount, got %d (calls: %v)", got, run.calls)
	}
}

func TestMount_NoMountPointIsNoop(t *testing.T) {
	run := newFakeRunner()
	dev := testDevice(t, run, "")

	if err := dev.Mount(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(run.calls) != 0 {
		t.Errorf("expected no external calls, got %v", run.calls)
	}
}

func TestMount_FailureReportsMountError(t *testing.T) {
	mp := filepath.Join(t.TempDir(), "data")

	run := newFakeRunner()
	run.script("mountpoint -q "+mp, system.Result{ExitCode: 1})
	run.script("mount /dev/mapper/data "+mp,
		system.Result{ExitCode: 32, Stderr: "wrong fs type"})

	dev := testDevice(t, run, mp)
	err := dev.Mount(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}

	var mountErr *errors.MountError
	if !stderrors.As(err, &mountErr) {
		t.Fatalf("expected MountError, got %T: %v", err, err)
	}
	if mountErr.MountPoint != mp || !strings.Contains(mountErr.Output, "wrong fs type") {
		t.Errorf("unexpected MountError fields: %+v", mountErr)
	}
}

func TestClose_WhenClosedIsNoop(t *testing.T) {
	run := newFakeRunner()
	run.script("cryptsetup status data", system.Result{ExitCode: 4})

	dev := testDevice(t, run, "")
	if err := dev.Close(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := run.count("cryptsetup luksClose data"); got != 0 {
		t.Errorf("expected no luksClose, got %d", got)
	}
}

func TestUnmount_FailureReportsUnmountError(t *testing.T) {
	mp := filepath.Join(t.TempDir(), "data")

	run := newFakeRunner()
	run.script("mountpoint -q "+mp, system.Result{ExitCode: 0})
	run.script("umount "+mp, system.Result{ExitCode: 32, Stderr: "target is busy"})

	dev := testDevice(t, run, mp)
	err := dev.Unmount(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}

	var umountErr *errors.UnmountError
	if !stderrors.As(err, &umountErr) {
		t.Fatalf("expected UnmountError, got %T: %v", err, err)
	}
	if !strings.Contains(umountErr.Output, "target is busy") {
		t.Errorf("unexpected UnmountError fields: %+v", umountErr)
	}
}

func TestOpen_RunsDeviceHooks(t *testing.T) {
	run := newFakeRunner()
	run.script("cryptsetup status data", system.Result{ExitCode: 4})

	spec := config.Device{
		Name:    "data",
		Devnode: "/dev/sda2",
		Hooks: map[string]config.Hook{
			hooks.BeforeOpen: {Command: "echo before"},
			hooks.AfterOpen:  {Command: "echo after"},
		},
	}
	keys := keystore.NewManager(fakeStore{passphrase: "hunter2"}, noPrompter{})
	dev := NewDevice(spec, keys, hooks.NewRunner(nil, run), run)

	if err := dev.Open(context.Background()); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	want := []string{
		"cryptsetup status data",
		"sh -c echo before",
		"cryptsetup luksOpen /dev/sda2 data",
		"sh -c echo after",
	}
	if len(run.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, run.calls)
	}
	for i := range want {
		if run.calls[i] != want[i] {
			t.Errorf("call %d: got %q, want %q", i, run.calls[i], want[i])
		}
	}
}
