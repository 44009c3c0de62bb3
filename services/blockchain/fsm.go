package blockchain

import (
	"context"
	"net/http"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/looplab/fsm"
)

type FSMStateType string

type FSMEventType string

const (
	FSMStateSTOPPED FSMStateType = "STOPPED"
	FSMStateRUNNING FSMStateType = "RUNNING"
	FSMStateMINING  FSMStateType = "MINING"

	FSMEventRUN  FSMEventType = "RUN"
	FSMEventMINE FSMEventType = "MINE"
	FSMEventSTOP FSMEventType = "STOP"
)

func (s FSMStateType) String() string { return string(s) }

func (e FSMEventType) String() string { return string(e) }

// NewFiniteStateMachine creates the state machine of the blockchain service.
// States:
// - STOPPED
// - RUNNING
// - MINING
// Events:
// - RUN: STOPPED or MINING to RUNNING
// - MINE: RUNNING to MINING
// - STOP: any state to STOPPED
func (b *Blockchain) NewFiniteStateMachine(opts ...func(*fsm.FSM)) *fsm.FSM {
	finiteStateMachine := fsm.NewFSM(
		FSMStateSTOPPED.String(),
		fsm.Events{
			{
				Name: FSMEventRUN.String(),
				Src: []string{
					FSMStateSTOPPED.String(),
					FSMStateMINING.String(),
				},
				Dst: FSMStateRUNNING.String(),
			},
			{
				Name: FSMEventMINE.String(),
				Src: []string{
					FSMStateRUNNING.String(),
				},
				Dst: FSMStateMINING.String(),
			},
			{
				Name: FSMEventSTOP.String(),
				Src: []string{
					FSMStateRUNNING.String(),
					FSMStateMINING.String(),
				},
				Dst: FSMStateSTOPPED.String(),
			},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				b.logger.Debugf("[Blockchain][FSM] %s: %s -> %s", e.Event, e.Src, e.Dst)
			},
		},
	)

	for _, opt := range opts {
		opt(finiteStateMachine)
	}

	return finiteStateMachine
}

// GetFSMCurrentState returns the current state of the service.
func (b *Blockchain) GetFSMCurrentState(_ context.Context) (FSMStateType, error) {
	return FSMStateType(b.finiteStateMachine.Current()), nil
}

// Run moves the service to RUNNING. Calling it while already running is a no-op.
func (b *Blockchain) Run(ctx context.Context) error {
	return b.sendFSMEvent(ctx, FSMEventRUN)
}

func (b *Blockchain) sendFSMEvent(ctx context.Context, event FSMEventType) error {
	if !b.finiteStateMachine.Can(event.String()) {
		if event == FSMEventRUN && b.finiteStateMachine.Current() == FSMStateRUNNING.String() {
			return nil
		}

		if event == FSMEventSTOP && b.finiteStateMachine.Current() == FSMStateSTOPPED.String() {
			return nil
		}

		return errors.NewStateError("event %s is not allowed in state %s", event, b.finiteStateMachine.Current())
	}

	if err := b.finiteStateMachine.Event(ctx, event.String()); err != nil {
		return errors.NewStateError("failed to send event %s", event, err)
	}

	return nil
}

// CheckFSM returns a health check that is ready while the chain manager is out of STOPPED.
func CheckFSM(client ClientI) func(ctx context.Context, checkLiveness bool) (int, string, error) {
	return func(ctx context.Context, _ bool) (int, string, error) {
		state, err := client.GetFSMCurrentState(ctx)
		if err != nil {
			return http.StatusServiceUnavailable, "state unknown", err
		}

		if state == FSMStateSTOPPED {
			return http.StatusServiceUnavailable, "state " + state.String(), nil
		}

		return http.StatusOK, "state " + state.String(), nil
	}
}
