package command

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/grovetools/watchpost/errors"
)

// Argument kinds understood by Validate.
const (
	ArgUsername       = "username"
	ArgIncidentID     = "incidentID"
	ArgIncidentStatus = "incidentStatus"
	ArgFileName       = "fileName"
)

// Incident statuses accepted by the backend.
const (
	StatusNew        = "New"
	StatusConfirmed  = "Confirmed"
	StatusFalseAlarm = "FalseAlarm"
	StatusResolved   = "Resolved"
)

var (
	incidentIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]*$`)

	validators = map[string]func(string) error{
		ArgUsername:       validateUsername,
		ArgIncidentID:     validateIncidentID,
		ArgIncidentStatus: validateIncidentStatus,
		ArgFileName:       validateFileName,
	}
)

// Validate checks value as an argument of the given kind. The backend is
// the authority on credentials; these checks only keep obviously hostile
// or broken values away from the process boundary.
func Validate(argType, value string) error {
	validator, exists := validators[argType]
	if !exists {
		return errors.New(errors.ErrCodeInternal, fmt.Sprintf("no validator for argument type: %s", argType))
	}
	if err := validator(value); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, err.Error()).WithDetail("field", argType)
	}
	return nil
}

func validateUsername(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if strings.ContainsAny(name, "\x00\n\r") {
		return fmt.Errorf("username contains control characters")
	}
	if len(name) > 256 {
		return fmt.Errorf("username too long (max 256 characters)")
	}
	return nil
}

func validateIncidentID(id string) error {
	if id == "" {
		return fmt.Errorf("incident id cannot be empty")
	}
	if !incidentIDPattern.MatchString(id) {
		return fmt.Errorf("invalid incident id: %s", id)
	}
	return nil
}

func validateIncidentStatus(status string) error {
	switch status {
	case StatusNew, StatusConfirmed, StatusFalseAlarm, StatusResolved:
		return nil
	}
	return fmt.Errorf("unknown incident status: %s", status)
}

// validateFileName checks an uploaded file's name. Only its extension is
// ever used on disk.
func validateFileName(name string) error {
	if name == "" {
		return fmt.Errorf("file name cannot be empty")
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("file name cannot contain '..'")
	}
	if strings.ContainsAny(name, ";|&$`\x00") {
		return fmt.Errorf("file name contains invalid characters")
	}
	return nil
}
