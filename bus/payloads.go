package bus

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/grovetools/watchpost/errors"
	"github.com/grovetools/watchpost/session"
)

// Message is one named message with its raw JSON payload.
type Message struct {
	Channel Channel         `json:"channel"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals a message payload into v. A missing payload decodes as
// JSON null. Failures are INVALID_INPUT.
func Decode(channel Channel, payload json.RawMessage, v interface{}) error {
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, fmt.Sprintf("invalid %s payload", channel)).
			WithDetail("channel", string(channel))
	}
	return nil
}

// Credentials is the login-attempt payload.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the register-attempt payload.
type RegisterRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	AdminCode string `json:"adminCode"`
}

// NoAdminCode is passed to the backend when a registration has no code.
const NoAdminCode = "none"

// Code returns the admin code, or NoAdminCode when empty.
func (r RegisterRequest) Code() string {
	if strings.TrimSpace(r.AdminCode) == "" {
		return NoAdminCode
	}
	return r.AdminCode
}

// UploadRequest is the upload-profile payload.
type UploadRequest struct {
	UserData   map[string]interface{} `json:"userData"`
	FileBuffer Bytes                  `json:"fileBuffer"`
	FileName   string                 `json:"fileName"`
}

// Bytes accepts file contents either as a base64 string or as an array of
// byte values, which is how browsers serialise a Uint8Array.
type Bytes []byte

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null":
		*b = nil
		return nil
	case strings.HasPrefix(trimmed, "\""):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("file buffer is not base64: %w", err)
		}
		*b = decoded
		return nil
	case strings.HasPrefix(trimmed, "{"):
		// Node's Buffer.toJSON shape: {"type":"Buffer","data":[...]}
		var nodeBuffer struct {
			Data []int `json:"data"`
		}
		if err := json.Unmarshal(data, &nodeBuffer); err != nil {
			return err
		}
		return b.fromInts(nodeBuffer.Data)
	default:
		var ints []int
		if err := json.Unmarshal(data, &ints); err != nil {
			return err
		}
		return b.fromInts(ints)
	}
}

func (b *Bytes) fromInts(ints []int) error {
	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("file buffer value %d out of range at %d", v, i)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// IncidentRef names one incident.
type IncidentRef struct {
	ID string `json:"id"`
}

// IncidentStatusUpdate is the update-incident-status payload.
type IncidentStatusUpdate struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Incident is one entry of the incident list.
type Incident struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
	// VideoRef is an object key the station may presign.
	VideoRef string `json:"videoRef,omitempty"`
	VideoURL string `json:"videoUrl,omitempty"`
}

// IncidentsReply is the incidents-data payload, also the backend's list
// reply.
type IncidentsReply struct {
	Status  string     `json:"status"`
	Data    []Incident `json:"data,omitempty"`
	Message string     `json:"message,omitempty"`
}

// Outcome is the payload of replies that report success or failure:
// upload-result, register-result and incident-updated.
type Outcome struct {
	Status  string `json:"status,omitempty"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Succeeded builds a successful Outcome.
func Succeeded(message string) Outcome {
	return Outcome{Status: "success", Success: true, Message: message}
}

// Failed builds a failed Outcome.
func Failed(message string) Outcome {
	return Outcome{Status: "error", Success: false, Message: message}
}

// LoginSuccessPayload is sent to the login view before it closes.
type LoginSuccessPayload struct {
	Role session.Role `json:"role"`
	Mode session.Mode `json:"mode"`
}

// InitHomePayload is sent when the home view first loads.
type InitHomePayload struct {
	Role         session.Role         `json:"role"`
	Mode         session.Mode         `json:"mode"`
	IsOffline    bool                 `json:"isOffline"`
	Capabilities session.Capabilities `json:"capabilities"`
}

// InitCameraPayload is sent when the camera view first loads.
type InitCameraPayload struct {
	Role     session.Role           `json:"role"`
	Settings map[string]interface{} `json:"settings"`
}
