// Package settings persists the station-wide settings record.
//
// The record is a single JSON document read and written whole. Keys this
// package does not model are kept in Extra and written back unchanged, so
// backend tooling may store its own values next to ours.
package settings

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// KeyDetectWeapons is the document key for weapon detection.
const KeyDetectWeapons = "detect_weapons"

// Settings is the persisted settings record.
type Settings struct {
	DetectWeapons bool `mapstructure:"detect_weapons"`

	// Extra holds every key not modelled above.
	Extra map[string]interface{} `mapstructure:",remain"`
}

// Default returns the settings used when no document exists.
func Default() Settings {
	return Settings{DetectWeapons: true}
}

// Snapshot returns the record as a plain map, as sent to views in init
// payloads.
func (s Settings) Snapshot() map[string]interface{} {
	out := make(map[string]interface{}, len(s.Extra)+1)
	for k, v := range s.Extra {
		out[k] = v
	}
	out[KeyDetectWeapons] = s.DetectWeapons
	return out
}

// MarshalJSON writes modelled and extra keys as one flat object.
func (s Settings) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// UnmarshalJSON starts from Default, so a document that omits a key keeps
// its default value.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := decode(raw)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

func decode(raw map[string]interface{}) (Settings, error) {
	s := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &s,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Settings{}, fmt.Errorf("create settings decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}
