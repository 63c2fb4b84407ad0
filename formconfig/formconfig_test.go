package formconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/grovetools/watchpost/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadKeepsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "form_config.json")
	doc := `{"formTitle":"Add Resident","dynamic_field":"Flat","statusOptions":["Full access","Denied"],"theme":"dark"}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Add Resident", got.Config.FormTitle)
	assert.Equal(t, "Flat", got.Config.Label())
	assert.Equal(t, []string{"Full access", "Denied"}, got.Config.StatusOptions)

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, doc, string(data))
}

func TestParseRejectsWrongTypes(t *testing.T) {
	tests := map[string]string{
		"options not a list": `{"statusOptions":"Full access"}`,
		"title not a string": `{"formTitle":3}`,
		"not an object":      `["a"]`,
		"not json":           `{`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestLabelPrefersNewKey(t *testing.T) {
	c := FormConfig{DynamicFieldLabel: "Apartment", DynamicField: "Flat"}
	assert.Equal(t, "Apartment", c.Label())
}
