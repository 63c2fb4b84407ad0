// Package view tracks the station's windows: at most one live instance per
// view name, created through a Host and torn down with per-view hooks.
package view

import (
	"context"
	"fmt"

	"github.com/grovetools/watchpost/bus"
)

// Name is a logical view.
type Name string

const (
	Login     Name = "login"
	Home      Name = "home"
	Camera    Name = "camera"
	Dashboard Name = "dashboard"
	Incidents Name = "incidents"
	Register  Name = "register"
)

// Names lists every view.
func Names() []Name {
	return []Name{Login, Home, Camera, Dashboard, Incidents, Register}
}

// ParseName validates a view name.
func ParseName(s string) (Name, error) {
	for _, n := range Names() {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown view %q", s)
}

// Lifecycle is the state of a view entry.
type Lifecycle int

const (
	Absent Lifecycle = iota
	Creating
	Live
	Closing
)

func (l Lifecycle) String() string {
	switch l {
	case Absent:
		return "absent"
	case Creating:
		return "creating"
	case Live:
		return "live"
	case Closing:
		return "closing"
	default:
		return fmt.Sprintf("Lifecycle(%d)", int(l))
	}
}

// CloseReason says who closed a view.
type CloseReason int

const (
	// CloseProgrammatic is a close requested by the station itself.
	CloseProgrammatic CloseReason = iota
	// CloseUser is a close performed by the operator on the window.
	CloseUser
)

func (r CloseReason) String() string {
	if r == CloseUser {
		return "user"
	}
	return "programmatic"
}

// Window is one realized view instance.
type Window interface {
	// ID is the unguessable identity the registry assigned.
	ID() string
	// Send delivers a message to the window. Channels are already
	// allow-listed by the registry.
	Send(channel bus.Channel, payload interface{}) error
	Focus() error
	Hide() error
	Show() error
	// Close tears the window down without reporting a user close.
	Close() error
}

// Host realizes windows and dialogs. Create must not wait for the window to
// load; the host reports that later through the registry's Loaded.
type Host interface {
	Create(ctx context.Context, name Name, id string) (Window, error)
	// Confirm asks the operator a yes/no question on behalf of parent.
	Confirm(ctx context.Context, parent Window, detail string) (bool, error)
}

// Hooks are per-view side effects.
type Hooks struct {
	// OnLoad runs once per creation, on the first load event.
	OnLoad func(ctx context.Context)
	// OnClose runs after the view has been removed from the registry.
	OnClose func(reason CloseReason)
}
