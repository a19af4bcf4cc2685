// Package fsm implements the activation workflow as a finite state machine:
// begin, ensure credentials, open every device, mount, snapshot, complete.
// Failures abort the machine; the only retry anywhere is the device-level
// open-conflict recovery, so no transition is ever re-run automatically.
package fsm

import (
	"context"

	"github.com/superfly/fsm"

	"github.com/lukskeep/lukskeep/pkg/errors"
	"github.com/lukskeep/lukskeep/pkg/journal"
	"github.com/lukskeep/lukskeep/pkg/orchestrator"
)

// Machine holds dependencies for FSM transitions.
type Machine struct {
	orch       *orchestrator.Orchestrator
	journal    *journal.Journal
	maxRetries int
}

// NewMachine creates an activation machine.
func NewMachine(orch *orchestrator.Orchestrator, jrnl *journal.Journal, maxRetries int) *Machine {
	return &Machine{
		orch:       orch,
		journal:    jrnl,
		maxRetries: maxRetries,
	}
}

// Register registers the activation FSM.
func (m *Machine) Register(ctx context.Context, manager *fsm.Manager) (fsm.Start[ActivateRequest, ActivateResponse], fsm.Resume, error) {
	start, resume, err := fsm.Register[ActivateRequest, ActivateResponse](manager, "activate").
		Start(StateBegin, m.handleBegin).
		To(StateEnsureKeys, m.handleEnsureKeys).
		To(StateOpenDevices, m.handleOpenDevices).
		To(StateMountDevices, m.handleMountDevices).
		To(StateSnapshot, m.handleSnapshot).
		To(StateComplete, m.handleComplete).
		End(StateFailed).
		Build(ctx)

	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to register FSM")
	}

	return start, resume, nil
}
