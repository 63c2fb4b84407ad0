package recognition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanel(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Panel
	}{
		{"disabled by admin", `{"weapon_detection_enabled":false,"results":[],"threats":[]}`, PanelDetectionDisabled},
		{"nothing detected", `{"weapon_detection_enabled":true,"results":[],"threats":[]}`, PanelEmpty},
		{"flag missing", `{"results":[]}`, PanelEmpty},
		{"threat wins over disabled flag", `{"weapon_detection_enabled":false,"threats":[{"label":"knife","confidence":0.8}]}`, PanelCards},
		{"person", `{"results":[[[1,2,3,4],{"name":"Ana"}]]}`, PanelCards},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.Panel())
		})
	}
}

func TestPeople(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"results":[
		[[0,0,1,1],{"name":"Ana","surname":"Lopez","status":"Full access","dynamic_field":"4B"}],
		[[0,0,1,1]],
		"garbage",
		[[0,0,1,1],{"name":"","surname":"","status":"Access Denied"}]
	]}`))
	require.NoError(t, err)

	people := ev.People()
	require.Len(t, people, 2)
	assert.Equal(t, "4B", people[0].DynamicField)
	assert.Equal(t, AccessFull, people[0].Access())
	assert.Equal(t, AccessDenied, people[1].Access())
}

func TestAccess(t *testing.T) {
	tests := map[string]Access{
		"":                         AccessUnknown,
		"No profile found":         AccessDenied,
		"Unknown person":           AccessDenied,
		"All floors":               AccessFull,
		"Only first floor allowed": AccessPartial,
		"Visitor":                  AccessUnknown,
	}
	for status, want := range tests {
		assert.Equal(t, want, Person{Status: status}.Access(), status)
	}
}
