// Package fsm validates registration job status transitions with looplab/fsm.
package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/neomorfeo/taxireg/internal/domain"
)

var _ domain.TransitionValidator = (*Validator)(nil)

// jobEvents is domain.JobTransitions in looplab/fsm form. Transitions that
// share an event and a destination become one EventDesc with several
// sources (fail_validation is accepted from both STARTING and RUNNING).
var jobEvents = buildEvents(domain.JobTransitions)

func buildEvents(transitions []domain.JobTransition) []loopfsm.EventDesc {
	type key struct {
		event domain.JobEvent
		dst   domain.JobStatus
	}
	sources := make(map[key][]string)
	var order []key

	for _, t := range transitions {
		k := key{event: t.Event, dst: t.Dst}
		if _, seen := sources[k]; !seen {
			order = append(order, k)
		}
		sources[k] = append(sources[k], string(t.Src))
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, k := range order {
		out = append(out, loopfsm.EventDesc{
			Name: string(k.event),
			Src:  sources[k],
			Dst:  string(k.dst),
		})
	}
	return out
}

// Validator checks job transitions against a throwaway FSM seeded with the
// job's current status, since looplab/fsm keeps its own state.
type Validator struct{}

// New creates a job transition validator.
func New() *Validator {
	return &Validator{}
}

// Apply returns the status reached by firing event from current, or a
// *domain.TransitionError when the job may not make that move.
func (v *Validator) Apply(ctx context.Context, current domain.JobStatus, event domain.JobEvent) (domain.JobStatus, error) {
	machine := loopfsm.NewFSM(string(current), jobEvents, nil)

	if err := machine.Event(ctx, string(event)); err != nil {
		var invalidEvent loopfsm.InvalidEventError
		var unknownEvent loopfsm.UnknownEventError
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &invalidEvent) || errors.As(err, &unknownEvent) || errors.As(err, &noTransition) {
			return "", &domain.TransitionError{Event: event, Current: current}
		}
		return "", err
	}

	return domain.JobStatus(machine.Current()), nil
}
