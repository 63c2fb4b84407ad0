// Package bus defines the named channels views and the station exchange,
// and the allow-lists that guard them.
//
// Every message crossing the view boundary names a channel. Names outside
// the allow-list for their direction are refused, so a stale or hostile
// view cannot reach an operation by guessing its name.
package bus

import (
	"sort"

	"github.com/grovetools/watchpost/errors"
)

// Channel is a message name.
type Channel string

// Direction identifies an allow-list.
type Direction string

const (
	// Inbound channels carry fire-and-forget messages from a view.
	Inbound Direction = "inbound"
	// Outbound channels carry messages to a view.
	Outbound Direction = "outbound"
	// Invoke channels are request/response calls from a view.
	Invoke Direction = "invoke"
)

// Inbound channels.
const (
	DeleteIncident              Channel = "delete-incident"
	GetIncidents                Channel = "get-incidents"
	LoginAttempt                Channel = "login-attempt"
	LogoutRequest               Channel = "logout-request"
	OpenCamera                  Channel = "open-camera"
	OpenDashboard               Channel = "open-dashboard"
	OpenIncidents               Channel = "open-incidents"
	OpenLoginWindow             Channel = "open-login-window"
	OpenRegisterWindow          Channel = "open-register-window"
	RegisterAttempt             Channel = "register-attempt"
	SaveFormConfig              Channel = "save-form-config"
	ToggleGlobalWeaponDetection Channel = "toggle-global-weapon-detection"
	ToggleOverlaysChange        Channel = "toggle-overlays-change"
	UpdateIncidentStatus        Channel = "update-incident-status"
	UploadProfile               Channel = "upload-profile"
)

// Outbound channels.
const (
	IncidentUpdated       Channel = "incident-updated"
	IncidentsData         Channel = "incidents-data"
	InitCamera            Channel = "init-camera"
	InitHome              Channel = "init-home"
	LoginFail             Channel = "login-fail"
	LoginSuccess          Channel = "login-success"
	PythonData            Channel = "python-data"
	RegisterResult        Channel = "register-result"
	SaveFormConfigFail    Channel = "save-form-config-fail"
	SaveFormConfigSuccess Channel = "save-form-config-success"
	UploadResult          Channel = "upload-result"
)

// Invoke channels.
const (
	LoadFormConfig    Channel = "load-form-config"
	ShowConfirmDialog Channel = "show-confirm-dialog"
)

var allowLists = map[Direction]map[Channel]struct{}{
	Inbound: set(
		DeleteIncident, GetIncidents, LoginAttempt, LogoutRequest,
		OpenCamera, OpenDashboard, OpenIncidents, OpenLoginWindow,
		OpenRegisterWindow, RegisterAttempt, SaveFormConfig,
		ToggleGlobalWeaponDetection, ToggleOverlaysChange,
		UpdateIncidentStatus, UploadProfile,
	),
	Outbound: set(
		IncidentUpdated, IncidentsData, InitCamera, InitHome,
		LoginFail, LoginSuccess, PythonData, RegisterResult,
		SaveFormConfigFail, SaveFormConfigSuccess, UploadResult,
	),
	Invoke: set(LoadFormConfig, ShowConfirmDialog),
}

func set(channels ...Channel) map[Channel]struct{} {
	m := make(map[Channel]struct{}, len(channels))
	for _, c := range channels {
		m[c] = struct{}{}
	}
	return m
}

// Allowed reports whether name is on the allow-list for dir.
func Allowed(dir Direction, name string) bool {
	_, ok := allowLists[dir][Channel(name)]
	return ok
}

// Check returns name as a Channel, or CHANNEL_REJECTED when it is not on
// the allow-list for dir.
func Check(dir Direction, name string) (Channel, error) {
	if !Allowed(dir, name) {
		return "", errors.ChannelRejected(string(dir), name)
	}
	return Channel(name), nil
}

// Channels returns the allow-list for dir in name order.
func Channels(dir Direction) []Channel {
	out := make([]Channel, 0, len(allowLists[dir]))
	for c := range allowLists[dir] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
