// Package formconfig loads the profile form configuration shown by the
// dashboard view. The document is read-only to the station.
package formconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/grovetools/watchpost/errors"
	"github.com/grovetools/watchpost/schema"
)

// FormConfig is the part of the form document the station understands.
// Other keys are passed through to the view untouched.
type FormConfig struct {
	FormTitle         string   `json:"formTitle,omitempty" jsonschema:"description=Heading of the add-person form"`
	DynamicFieldLabel string   `json:"dynamicFieldLabel,omitempty" jsonschema:"description=Label of the site-specific profile field"`
	DynamicField      string   `json:"dynamic_field,omitempty" jsonschema:"description=Legacy spelling of dynamicFieldLabel"`
	StatusOptions     []string `json:"statusOptions,omitempty" jsonschema:"description=Access statuses offered for a profile"`
}

// Label returns the dynamic field label, falling back to the legacy key.
func (c FormConfig) Label() string {
	if c.DynamicFieldLabel != "" {
		return c.DynamicFieldLabel
	}
	return c.DynamicField
}

// Document is a validated form document.
type Document struct {
	Config FormConfig
	raw    json.RawMessage
}

// MarshalJSON returns the document as it was read.
func (d *Document) MarshalJSON() ([]byte, error) {
	return d.raw, nil
}

var (
	validatorOnce sync.Once
	validator     *schema.Validator
	validatorErr  error
)

// Schema returns the JSON Schema form documents are validated against.
func Schema() ([]byte, error) {
	return schema.Generate(&FormConfig{}, schema.Options{
		Title:       "Watchpost Form Configuration",
		Description: "Layout of the profile registration form.",
	})
}

func getValidator() (*schema.Validator, error) {
	validatorOnce.Do(func() {
		data, err := Schema()
		if err != nil {
			validatorErr = err
			return
		}
		validator, validatorErr = schema.NewValidator("form_config.schema.json", data)
	})
	return validator, validatorErr
}

// Parse validates and decodes a form document.
func Parse(data []byte) (*Document, error) {
	v, err := getValidator()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "form schema unavailable")
	}
	if err := v.ValidateJSON(data); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid form configuration")
	}

	doc := &Document{raw: append(json.RawMessage(nil), data...)}
	if err := json.Unmarshal(data, &doc.Config); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid form configuration")
	}
	return doc, nil
}

// Load reads and validates the form document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, fmt.Errorf("read form configuration: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		if se, ok := err.(*errors.StationError); ok {
			return nil, se.WithDetail("path", path)
		}
		return nil, err
	}
	return doc, nil
}
