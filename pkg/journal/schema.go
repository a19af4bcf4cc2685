package journal

// Schema defines the SQLite schema for the operation journal. Journal rows
// are an audit trail only; they never drive lifecycle decisions, which always
// re-query external state.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    operation TEXT NOT NULL CHECK(operation IN ('activate', 'deactivate', 'key', 'rotate')),
    status TEXT NOT NULL CHECK(status IN ('started', 'succeeded', 'failed')),
    detail TEXT,
    snapshot_path TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_operation ON runs(operation);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Operation constants
const (
	OpActivate   = "activate"
	OpDeactivate = "deactivate"
	OpKey        = "key"
	OpRotate     = "rotate"
)

// Status constants
const (
	StatusStarted   = "started"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run represents one recorded top-level operation.
type Run struct {
	ID           int64
	Operation    string
	Status       string
	Detail       string
	SnapshotPath string
	CreatedAt    string
	UpdatedAt    string
}
