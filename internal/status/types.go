// Package status holds the station's observable state for the status API.
package status

import "time"

// Snapshot is the station's world view.
type Snapshot struct {
	StartedAt     time.Time         `json:"started_at"`
	Session       string            `json:"session"`
	Role          string            `json:"role,omitempty"`
	Mode          string            `json:"mode,omitempty"`
	Views         map[string]string `json:"views"`
	WorkerRunning bool              `json:"worker_running"`
	DetectWeapons bool              `json:"detect_weapons"`
	// CameraPanel is what the camera info panel shows, empty while the
	// camera view is closed.
	CameraPanel string `json:"camera_panel,omitempty"`
}

// UpdateType defines what kind of data changed.
type UpdateType string

const (
	UpdateSession  UpdateType = "session"
	UpdateViews    UpdateType = "views"
	UpdateWorker   UpdateType = "worker"
	UpdateSettings UpdateType = "settings"
	UpdateCamera   UpdateType = "camera"
)

// Update is one change broadcast to subscribers.
type Update struct {
	Types    []UpdateType `json:"update_types"`
	Snapshot Snapshot     `json:"snapshot"`
}
