package lifecycle

import (
	"errors"
	"fmt"
)

// State is the controller's position in the resolve, inject, remove cycle.
type State int

const (
	Idle State = iota
	Resolving
	Resolved
	ResolutionFailed
	Injecting
	Active
	Removing
)

var stateNames = map[State]string{
	Idle:             "idle",
	Resolving:        "resolving",
	Resolved:         "resolved",
	ResolutionFailed: "resolution-failed",
	Injecting:        "injecting",
	Active:           "active",
	Removing:         "removing",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	// ErrInvalidTransition is returned when an operation is not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrModuleActive is returned when re-resolution is requested while the
	// extension is loaded and may be reading the offset table.
	ErrModuleActive = errors.New("extension module is active")
)

// Injecting falls back to Resolved and Removing to Active when the service fails.
var transitions = map[State][]State{
	Idle:             {Resolving, Active},
	Resolving:        {Resolved, ResolutionFailed},
	Resolved:         {Resolving, Injecting, Active},
	ResolutionFailed: {Resolving},
	Injecting:        {Active, Resolved},
	Active:           {Removing},
	Removing:         {Idle, Active},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
