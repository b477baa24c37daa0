package dispatch

import (
	"github.com/looplab/fsm"

	"fleetcmd/internal/model"
)

const (
	// EventStart moves a trip from Pending to Started.
	EventStart = "start"
	// EventComplete moves a trip from Started to Completed.
	EventComplete = "complete"
	// EventCancel terminates a trip from either non-terminal status.
	EventCancel = "cancel"
	// EventClose moves a maintenance record from Pending to Completed.
	EventClose = "close"
)

// tripMachine returns the trip life-cycle machine seeded with the trip's
// current status. Completed and Cancelled are terminal: no event leaves them.
func tripMachine(current string) *fsm.FSM {
	return fsm.NewFSM(current, fsm.Events{
		{Name: EventStart, Src: []string{model.TripPending}, Dst: model.TripStarted},
		{Name: EventComplete, Src: []string{model.TripStarted}, Dst: model.TripCompleted},
		{Name: EventCancel, Src: []string{model.TripPending, model.TripStarted}, Dst: model.TripCancelled},
	}, nil)
}

// maintenanceMachine returns the two-state shop workflow machine.
func maintenanceMachine(current string) *fsm.FSM {
	return fsm.NewFSM(current, fsm.Events{
		{Name: EventClose, Src: []string{model.MaintenancePending}, Dst: model.MaintenanceCompleted},
	}, nil)
}
