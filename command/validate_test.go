package command

import (
	"testing"

	"github.com/grovetools/watchpost/errors"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		argType string
		input   string
		wantErr bool
	}{
		{"plain username", ArgUsername, "alice", false},
		{"username with spaces inside", ArgUsername, "Ana Maria", false},
		{"blank username", ArgUsername, "   ", true},
		{"username with newline", ArgUsername, "a\nb", true},
		{"incident file key", ArgIncidentID, "incident_20240501_120000.mp4", false},
		{"empty incident id", ArgIncidentID, "", true},
		{"incident id with slash", ArgIncidentID, "../etc/passwd", true},
		{"incident id with leading dash", ArgIncidentID, "-rf", true},
		{"false alarm status", ArgIncidentStatus, StatusFalseAlarm, false},
		{"resolved status", ArgIncidentStatus, StatusResolved, false},
		{"lowercase status", ArgIncidentStatus, "resolved", true},
		{"image file", ArgFileName, "portrait.jpg", false},
		{"empty file name", ArgFileName, "", true},
		{"traversal", ArgFileName, "../../x.png", true},
		{"shell metacharacters", ArgFileName, "a;rm -rf.png", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.argType, tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%s, %q) error = %v, wantErr %v", tt.argType, tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("expected INVALID_INPUT, got %v", errors.GetCode(err))
			}
		})
	}
}

func TestValidateUnknownType(t *testing.T) {
	err := Validate("gitRef", "main")
	if err == nil {
		t.Fatal("expected error for unknown validator")
	}
	if !errors.Is(err, errors.ErrCodeInternal) {
		t.Errorf("expected INTERNAL_ERROR, got %v", errors.GetCode(err))
	}
}
