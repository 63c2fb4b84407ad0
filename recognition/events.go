package recognition

import (
	"encoding/json"
	"strings"
)

// Threat is one weapon detection in a frame.
type Threat struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Person is the profile attached to a recognized face.
type Person struct {
	Name         string `json:"name"`
	Surname      string `json:"surname"`
	Status       string `json:"status"`
	DynamicField string `json:"dynamic_field"`
}

// Event is the part of a worker message the station itself looks at. The
// message is still forwarded to the camera view unchanged.
type Event struct {
	Threats                []Threat          `json:"threats"`
	Results                []json.RawMessage `json:"results"`
	WeaponDetectionEnabled *bool             `json:"weapon_detection_enabled"`
	IsOffline              bool              `json:"is_offline"`
	IsRecording            bool              `json:"is_recording"`
	Theme                  string            `json:"theme"`
	Timer                  *float64          `json:"timer"`
}

// ParseEvent decodes a worker message. Unknown fields are ignored.
func ParseEvent(raw []byte) (Event, error) {
	var ev Event
	err := json.Unmarshal(raw, &ev)
	return ev, err
}

// People returns the recognized profiles. Each result is a pair whose
// second element is the profile; malformed entries are skipped.
func (e Event) People() []Person {
	var out []Person
	for _, r := range e.Results {
		var pair []json.RawMessage
		if err := json.Unmarshal(r, &pair); err != nil || len(pair) < 2 {
			continue
		}
		var p Person
		if err := json.Unmarshal(pair[1], &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Panel is what the camera info panel shows for an event.
type Panel int

const (
	// PanelEmpty is the "nothing detected" notice.
	PanelEmpty Panel = iota
	// PanelDetectionDisabled is the "disabled by admin" notice.
	PanelDetectionDisabled
	// PanelCards lists threat and person cards.
	PanelCards
)

func (p Panel) String() string {
	switch p {
	case PanelDetectionDisabled:
		return "detection-disabled"
	case PanelCards:
		return "cards"
	default:
		return "empty"
	}
}

// Panel classifies the event for the info panel. Cards win over notices;
// with nothing to show, an explicit false detection flag selects the
// disabled notice.
func (e Event) Panel() Panel {
	if len(e.Threats) > 0 || len(e.Results) > 0 {
		return PanelCards
	}
	if e.WeaponDetectionEnabled != nil && !*e.WeaponDetectionEnabled {
		return PanelDetectionDisabled
	}
	return PanelEmpty
}

// Access is the coarse access level derived from a profile status.
type Access string

const (
	AccessDenied  Access = "denied"
	AccessFull    Access = "full"
	AccessPartial Access = "partial"
	AccessUnknown Access = "unknown"
)

// Access maps the free-text status to an access level.
func (p Person) Access() Access {
	s := p.Status
	switch {
	case s == "":
		return AccessUnknown
	case strings.Contains(s, "Denied"), strings.Contains(s, "Unknown"), strings.Contains(s, "No profile"):
		return AccessDenied
	case strings.Contains(s, "All"), strings.Contains(s, "Full"):
		return AccessFull
	case strings.Contains(s, "Only first floor"):
		return AccessPartial
	default:
		return AccessUnknown
	}
}
