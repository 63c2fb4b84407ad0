// Package session tracks who is signed in to the station and what they may
// open.
package session

import (
	"fmt"

	"github.com/grovetools/watchpost/errors"
)

// Role is the authenticated operator role.
type Role string

const (
	RoleNone  Role = "none"
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole maps a backend role string onto a Role. Anything other than
// "admin" that is not empty is treated as an ordinary user.
func ParseRole(s string) Role {
	switch s {
	case "":
		return RoleNone
	case string(RoleAdmin):
		return RoleAdmin
	default:
		return RoleUser
	}
}

// Mode says whether the backend authenticated against the online directory
// or its offline cache.
type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

// ParseMode maps a backend mode string onto a Mode.
func ParseMode(s string) Mode {
	if s == string(ModeOffline) {
		return ModeOffline
	}
	return ModeOnline
}

// Session is the authenticated role and mode.
type Session struct {
	Role Role `json:"role"`
	Mode Mode `json:"mode"`
}

// Offline reports whether the session runs against the offline cache.
func (s Session) Offline() bool {
	return s.Mode == ModeOffline
}

// Capabilities is the set of actions the home view offers.
type Capabilities struct {
	Camera     bool `json:"camera"`
	Dashboard  bool `json:"dashboard"`
	Incidents  bool `json:"incidents"`
	Administer bool `json:"administer"`
}

// CapabilitiesFor derives capabilities from a role and mode.
// Administrative actions require both the admin role and online mode, so
// an offline session is downgraded whatever role the backend reported.
func CapabilitiesFor(role Role, mode Mode) Capabilities {
	if role != RoleAdmin && role != RoleUser {
		return Capabilities{}
	}
	admin := role == RoleAdmin && mode == ModeOnline
	return Capabilities{
		Camera:     true,
		Dashboard:  admin,
		Incidents:  admin,
		Administer: admin,
	}
}

// State is the machine state.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// CredentialsRequiredMessage is shown when a login is attempted with an
// empty username or password.
const CredentialsRequiredMessage = "Username and password are required."

// Machine is the session state machine. It is owned by the station event
// loop and is not safe for concurrent use.
type Machine struct {
	state   State
	session Session
}

// NewMachine returns a machine in the Unauthenticated state.
func NewMachine() *Machine {
	return &Machine{state: Unauthenticated, session: Session{Role: RoleNone, Mode: ModeOnline}}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Active reports whether an operator is signed in.
func (m *Machine) Active() bool {
	return m.state == Authenticated
}

// Session returns the active session. The zero-role session is returned
// when nobody is signed in.
func (m *Machine) Session() Session {
	return m.session
}

// Capabilities returns what the current session may do.
func (m *Machine) Capabilities() Capabilities {
	if !m.Active() {
		return Capabilities{}
	}
	return CapabilitiesFor(m.session.Role, m.session.Mode)
}

// BeginLogin moves to Authenticating. Credentials must be non-empty; any
// further checking is the backend's job.
func (m *Machine) BeginLogin(username, password string) error {
	if m.state != Unauthenticated {
		return errors.AuthFailed(fmt.Sprintf("cannot log in while %s", m.state)).
			WithDetail("state", m.state.String())
	}
	if username == "" || password == "" {
		return errors.AuthFailed(CredentialsRequiredMessage)
	}
	m.state = Authenticating
	return nil
}

// Complete records a successful authentication.
func (m *Machine) Complete(role Role, mode Mode) error {
	if m.state != Authenticating {
		return errors.New(errors.ErrCodeInternal, fmt.Sprintf("login completed while %s", m.state))
	}
	m.state = Authenticated
	m.session = Session{Role: role, Mode: mode}
	return nil
}

// Fail returns an in-progress login to Unauthenticated.
func (m *Machine) Fail() {
	if m.state == Authenticating {
		m.state = Unauthenticated
	}
}

// Logout resets the session. It reports false, and changes nothing, unless
// an operator was signed in.
func (m *Machine) Logout() bool {
	if m.state != Authenticated {
		return false
	}
	m.state = Unauthenticated
	m.session = Session{Role: RoleNone, Mode: ModeOnline}
	return true
}
