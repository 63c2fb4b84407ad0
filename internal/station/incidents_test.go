package station

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/grovetools/watchpost/bus"
	"github.com/grovetools/watchpost/view"
	"github.com/grovetools/watchpost/view/viewtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const incidentList = `{"status":"success","data":[
  {"id":"a1","timestamp":"2024-01-05T10:00:00","status":"New"},
  {"id":"b2","timestamp":"2024-03-01T08:30:00.123456","status":"Confirmed","videoRef":"clips/b2.mp4"},
  {"id":"c3","timestamp":"2024-02-10 12:00:00","status":"Resolved","videoRef":"clips/c3.mp4","videoUrl":"https://cdn/c3.mp4"}
]}`

type fakeLinker struct{}

func (fakeLinker) Link(_ context.Context, key string) (string, error) {
	return "https://media.local/" + strings.TrimPrefix(key, "/") + "?signed", nil
}

func (h *harness) incidentsView(list string) *viewtest.Window {
	h.t.Helper()
	h.backend.Script("incident_manager.py",
		"printf '%s\\n' \"$@\" > '"+h.backend.ArgsFile("incident_manager.py")+"'\n"+
			"case \"$1\" in\n"+
			"  list) cat <<'EOF'\n"+list+"\nEOF\n  ;;\n"+
			"  *) echo '{\"status\":\"success\",\"message\":\"Incident updated\"}' ;;\n"+
			"esac")
	h.start()
	h.login(adminOnline)
	h.dispatch(view.Home, bus.OpenIncidents, nil)
	return h.window(view.Incidents)
}

func TestListIncidentsNewestFirst(t *testing.T) {
	h := newHarness(t, withMedia(fakeLinker{}))
	incidents := h.incidentsView(incidentList)

	h.dispatch(view.Incidents, bus.GetIncidents, nil)
	data := h.messages(incidents, bus.IncidentsData, 1)

	var reply bus.IncidentsReply
	require.NoError(t, json.Unmarshal(data[0], &reply))
	assert.Equal(t, "success", reply.Status)
	require.Len(t, reply.Data, 3)
	assert.Equal(t, "b2", reply.Data[0].ID)
	assert.Equal(t, "c3", reply.Data[1].ID)
	assert.Equal(t, "a1", reply.Data[2].ID)

	assert.Equal(t, "https://media.local/clips/b2.mp4?signed", reply.Data[0].VideoURL)
	assert.Equal(t, "https://cdn/c3.mp4", reply.Data[1].VideoURL, "backend links are kept")
	assert.Empty(t, reply.Data[2].VideoURL)
	assert.Equal(t, []string{"list"}, h.backend.RecordedArgs("incident_manager.py"))
}

func TestListIncidentsWithoutMedia(t *testing.T) {
	h := newHarness(t)
	incidents := h.incidentsView(incidentList)

	h.dispatch(view.Incidents, bus.GetIncidents, nil)
	data := h.messages(incidents, bus.IncidentsData, 1)

	var reply bus.IncidentsReply
	require.NoError(t, json.Unmarshal(data[0], &reply))
	require.Len(t, reply.Data, 3)
	assert.Empty(t, reply.Data[0].VideoURL)
}

func TestListIncidentsBackendError(t *testing.T) {
	h := newHarness(t)
	incidents := h.incidentsView(`{"status":"error","message":"Database unavailable"}`)

	h.dispatch(view.Incidents, bus.GetIncidents, nil)
	data := h.messages(incidents, bus.IncidentsData, 1)
	assert.JSONEq(t, `{"status":"error","message":"Database unavailable"}`, string(data[0]))
}

func TestUpdateIncidentStatus(t *testing.T) {
	h := newHarness(t)
	incidents := h.incidentsView(incidentList)

	h.dispatch(view.Incidents, bus.UpdateIncidentStatus, bus.IncidentStatusUpdate{ID: "a1", Status: "FalseAlarm"})
	result := h.messages(incidents, bus.IncidentUpdated, 1)
	assert.JSONEq(t, `{"status":"success","success":true,"message":"Incident updated"}`, string(result[0]))
	assert.Equal(t, []string{"update", "a1", "FalseAlarm"}, h.backend.RecordedArgs("incident_manager.py"))
}

func TestUpdateIncidentRejectsUnknownStatus(t *testing.T) {
	h := newHarness(t)
	incidents := h.incidentsView(incidentList)

	h.dispatch(view.Incidents, bus.UpdateIncidentStatus, bus.IncidentStatusUpdate{ID: "a1", Status: "Ignored"})
	result := h.messages(incidents, bus.IncidentUpdated, 1)

	var out bus.Outcome
	require.NoError(t, json.Unmarshal(result[0], &out))
	assert.False(t, out.Success)
	assert.NoFileExists(t, h.backend.ArgsFile("incident_manager.py"))
}

func TestDeleteIncident(t *testing.T) {
	h := newHarness(t)
	incidents := h.incidentsView(incidentList)

	h.dispatch(view.Incidents, bus.DeleteIncident, bus.IncidentRef{ID: "c3"})
	result := h.messages(incidents, bus.IncidentUpdated, 1)
	assert.JSONEq(t, `{"status":"success","success":true,"message":"Incident updated"}`, string(result[0]))
	assert.Equal(t, []string{"delete", "c3"}, h.backend.RecordedArgs("incident_manager.py"))

	h.dispatch(view.Incidents, bus.DeleteIncident, bus.IncidentRef{ID: "c3; rm -rf /"})
	result = h.messages(incidents, bus.IncidentUpdated, 2)
	assert.Contains(t, string(result[1]), `"success":false`)
}

func TestSortNewestFirst(t *testing.T) {
	incidents := []bus.Incident{
		{ID: "old", Timestamp: "2023-12-31T23:59:59Z"},
		{ID: "garbled", Timestamp: "yesterday"},
		{ID: "new", Timestamp: "2024-06-01T00:00:00+02:00"},
	}
	sortNewestFirst(incidents)

	pos := make(map[string]int, len(incidents))
	for i, inc := range incidents {
		pos[inc.ID] = i
	}
	assert.Less(t, pos["new"], pos["old"])
	assert.Len(t, pos, 3)
}
