package fsm

// ActivateRequest is the FSM input for one activation run.
type ActivateRequest struct {
	ConfigPath string
}

// ActivateResponse is the FSM output (accumulated across transitions).
type ActivateResponse struct {
	// From Begin
	RunID int64

	// From OpenDevices / MountDevices
	Opened  int
	Mounted int

	// From Snapshot
	SnapshotPath string

	// From Complete
	Status string
}

// State names
const (
	StateBegin        = "begin"
	StateEnsureKeys   = "ensure_keys"
	StateOpenDevices  = "open_devices"
	StateMountDevices = "mount_devices"
	StateSnapshot     = "snapshot"
	StateComplete     = "complete"
	StateFailed       = "failed"
)
