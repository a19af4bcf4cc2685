package fsm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/superfly/fsm"
)

// abort journals the failure and stops the machine without retrying.
func (m *Machine) abort(resp *ActivateResponse, err error) (*fsm.Response[ActivateResponse], error) {
	if resp != nil && resp.RunID != 0 {
		m.journal.Fail(resp.RunID, err.Error())
	}
	return nil, fsm.Abort(err)
}

func (m *Machine) guardRetries(ctx context.Context) error {
	if retryCount := fsm.RetryFromContext(ctx); retryCount >= uint64(m.maxRetries) {
		slog.Error("max_retries_exceeded", "max_retries", m.maxRetries)
		return fmt.Errorf("max retries (%d) exceeded", m.maxRetries)
	}
	return nil
}

// handleBegin journals the run and fires the collection-wide pre hook.
func (m *Machine) handleBegin(ctx context.Context, req *fsm.Request[ActivateRequest, ActivateResponse]) (*fsm.Response[ActivateResponse], error) {
	slog.Info("fsm_state_begin", "config", req.Msg.ConfigPath)

	resp := req.W.Msg
	if resp == nil {
		resp = &ActivateResponse{}
	}

	if err := m.guardRetries(ctx); err != nil {
		return m.abort(resp, err)
	}

	runID, err := m.journal.Begin("activate")
	if err != nil {
		return nil, fsm.Abort(err)
	}
	resp.RunID = runID

	if err := m.orch.Begin(ctx); err != nil {
		return m.abort(resp, err)
	}

	return fsm.NewResponse(resp), nil
}

// handleEnsureKeys makes sure every device credential exists.
func (m *Machine) handleEnsureKeys(ctx context.Context, req *fsm.Request[ActivateRequest, ActivateResponse]) (*fsm.Response[ActivateResponse], error) {
	slog.Info("fsm_state_ensure_keys")

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	if err := m.guardRetries(ctx); err != nil {
		return m.abort(resp, err)
	}

	if err := m.orch.EnsureKeys(ctx); err != nil {
		return m.abort(resp, err)
	}

	return fsm.NewResponse(resp), nil
}

// handleOpenDevices opens every device in configured order.
func (m *Machine) handleOpenDevices(ctx context.Context, req *fsm.Request[ActivateRequest, ActivateResponse]) (*fsm.Response[ActivateResponse], error) {
	slog.Info("fsm_state_open_devices")

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	if err := m.guardRetries(ctx); err != nil {
		return m.abort(resp, err)
	}

	if err := m.orch.OpenAll(ctx); err != nil {
		return m.abort(resp, err)
	}
	resp.Opened = len(m.orch.Devices())

	return fsm.NewResponse(resp), nil
}

// handleMountDevices mounts every device with a mount point.
func (m *Machine) handleMountDevices(ctx context.Context, req *fsm.Request[ActivateRequest, ActivateResponse]) (*fsm.Response[ActivateResponse], error) {
	slog.Info("fsm_state_mount_devices")

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	if err := m.guardRetries(ctx); err != nil {
		return m.abort(resp, err)
	}

	if err := m.orch.MountAll(ctx); err != nil {
		return m.abort(resp, err)
	}

	mounted := 0
	for _, dev := range m.orch.Devices() {
		if dev.MountPoint() != "" {
			mounted++
		}
	}
	resp.Mounted = mounted

	return fsm.NewResponse(resp), nil
}

// handleSnapshot prunes aged snapshots and creates a fresh one when a
// snapshot root is configured.
func (m *Machine) handleSnapshot(ctx context.Context, req *fsm.Request[ActivateRequest, ActivateResponse]) (*fsm.Response[ActivateResponse], error) {
	slog.Info("fsm_state_snapshot")

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	if err := m.guardRetries(ctx); err != nil {
		return m.abort(resp, err)
	}

	snapshotPath, err := m.orch.Snapshot(ctx)
	if err != nil {
		return m.abort(resp, err)
	}
	resp.SnapshotPath = snapshotPath

	return fsm.NewResponse(resp), nil
}

// handleComplete fires the collection-wide post hook and journals success.
func (m *Machine) handleComplete(ctx context.Context, req *fsm.Request[ActivateRequest, ActivateResponse]) (*fsm.Response[ActivateResponse], error) {
	slog.Info("fsm_state_complete")

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	if err := m.orch.Finish(ctx); err != nil {
		return m.abort(resp, err)
	}

	if err := m.journal.Succeed(resp.RunID, resp.SnapshotPath); err != nil {
		return nil, fsm.Abort(err)
	}
	resp.Status = "succeeded"

	slog.Info("fsm_complete", "opened", resp.Opened, "mounted", resp.Mounted, "snapshot", resp.SnapshotPath)
	return fsm.NewResponse(resp), nil
}
