package journal

import (
	"path/filepath"
	"testing"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_BeginAndSucceed(t *testing.T) {
	j := openTestJournal(t)

	id, err := j.Begin(OpActivate)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected a positive run id, got %d", id)
	}

	if err := j.Succeed(id, "/snapshots/2026-03-15_12-00-00"); err != nil {
		t.Fatalf("succeed failed: %v", err)
	}

	runs, err := j.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}

	run := runs[0]
	if run.Operation != OpActivate || run.Status != StatusSucceeded {
		t.Errorf("unexpected run: %+v", run)
	}
	if run.SnapshotPath != "/snapshots/2026-03-15_12-00-00" {
		t.Errorf("unexpected snapshot path: %s", run.SnapshotPath)
	}
}

func TestJournal_Fail(t *testing.T) {
	j := openTestJournal(t)

	id, err := j.Begin(OpDeactivate)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if err := j.Fail(id, "umount: target is busy"); err != nil {
		t.Fatalf("fail failed: %v", err)
	}

	runs, err := j.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if runs[0].Status != StatusFailed {
		t.Errorf("expected failed status, got %s", runs[0].Status)
	}
	if runs[0].Detail != "umount: target is busy" {
		t.Errorf("unexpected detail: %s", runs[0].Detail)
	}
}

func TestJournal_ListNewestFirst(t *testing.T) {
	j := openTestJournal(t)

	first, err := j.Begin(OpActivate)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	second, err := j.Begin(OpKey)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}

	runs, err := j.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != second || runs[1].ID != first {
		t.Errorf("expected newest first, got ids %d, %d", runs[0].ID, runs[1].ID)
	}
}

func TestJournal_RejectsUnknownOperation(t *testing.T) {
	j := openTestJournal(t)

	if _, err := j.Begin("frobnicate"); err == nil {
		t.Error("expected the schema to reject an unknown operation")
	}
}
