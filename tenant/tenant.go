// Package tenant carries the active space through every press operation.
//
// There is no ambient tenant: callers resolve the space themselves and pass a
// Context explicitly. Operations call Validate before touching any store so
// that an unresolved tenant fails fast.
package tenant

import (
	"errors"
	"strings"
)

// ErrMissing is returned when an operation is attempted without a space.
var ErrMissing = errors.New("press: tenant space is required")

// System is the actor recorded for sweep-driven changes.
const System = "system"

// Context identifies the space an operation runs in and the actor performing it.
type Context struct {
	SpaceID string
	ActorID string
}

// New returns a Context for the given space and actor.
func New(spaceID, actorID string) Context {
	return Context{SpaceID: spaceID, ActorID: actorID}
}

// Validate reports ErrMissing when no space is set.
func (c Context) Validate() error {
	if strings.TrimSpace(c.SpaceID) == "" {
		return ErrMissing
	}
	return nil
}

// Actor returns the actor, falling back to System.
func (c Context) Actor() string {
	if c.ActorID == "" {
		return System
	}
	return c.ActorID
}

// ForSweep returns the Context used when a sweep acts on a row of spaceID.
func ForSweep(spaceID string) Context {
	return Context{SpaceID: spaceID, ActorID: System}
}
