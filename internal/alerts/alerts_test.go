package alerts

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/grovetools/watchpost/recognition"
	"github.com/grovetools/watchpost/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (doneToken) Error() error { return nil }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu  sync.Mutex
	out []published
}

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, published{topic, qos, retained, payload.([]byte)})
	return doneToken{}
}

func (f *fakeClient) messages() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.out...)
}

func newTestPublisher(t *testing.T) (*Publisher, *fakeClient, *time.Time) {
	t.Helper()
	t.Setenv("WATCHPOST_HOME", t.TempDir())
	client := &fakeClient{}
	p := newPublisher(client, "site/gate/")
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	return p, client, &now
}

func knife() recognition.Event {
	return recognition.Event{Threats: []recognition.Threat{{Label: "knife", Confidence: 0.9}}}
}

func TestThreatCooldown(t *testing.T) {
	p, client, now := newTestPublisher(t)

	p.Threat(knife())
	p.Threat(knife())
	require.Len(t, client.messages(), 1)
	assert.Equal(t, "site/gate/threats", client.messages()[0].topic)

	*now = now.Add(DefaultCooldown + time.Second)
	p.Threat(knife())
	assert.Len(t, client.messages(), 2)

	p.Threat(recognition.Event{})
	p.Threat(knife())
	assert.Len(t, client.messages(), 3, "a clear frame resets the cooldown")
}

func TestThreatLabelsChange(t *testing.T) {
	p, client, _ := newTestPublisher(t)
	p.Threat(knife())
	p.Threat(recognition.Event{Threats: []recognition.Threat{{Label: "pistol"}, {Label: "knife"}}})
	msgs := client.messages()
	require.Len(t, msgs, 2)

	var alert ThreatAlert
	require.NoError(t, json.Unmarshal(msgs[1].payload, &alert))
	assert.Len(t, alert.Threats, 2)
}

func visitors(statuses ...string) recognition.Event {
	var ev recognition.Event
	for i, st := range statuses {
		ev.Results = append(ev.Results, json.RawMessage(
			`[[0,0,10,10],{"name":"P`+string(rune('A'+i))+`","surname":"X","status":"`+st+`"}]`))
	}
	return ev
}

func TestDeniedPublishesOnlyDeniedPeople(t *testing.T) {
	p, client, now := newTestPublisher(t)

	p.Denied(visitors("All access", "Access Denied"))
	msgs := client.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "site/gate/access", msgs[0].topic)

	var alert AccessAlert
	require.NoError(t, json.Unmarshal(msgs[0].payload, &alert))
	require.Len(t, alert.People, 1)
	assert.Equal(t, "PB", alert.People[0].Name)

	p.Denied(visitors("All access", "Access Denied"))
	assert.Len(t, client.messages(), 1, "same people within the cooldown")

	*now = now.Add(DefaultCooldown + time.Second)
	p.Denied(visitors("All access", "Access Denied"))
	assert.Len(t, client.messages(), 2)

	p.Denied(visitors("All access"))
	assert.Len(t, client.messages(), 2, "nobody denied")
}

func TestSessionIsRetained(t *testing.T) {
	p, client, _ := newTestPublisher(t)
	p.Session(session.Authenticated, session.Session{Role: session.RoleAdmin, Mode: session.ModeOnline})
	p.Session(session.Unauthenticated, session.Session{Role: session.RoleAdmin})

	msgs := client.messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].retained)
	assert.Equal(t, "site/gate/session", msgs[0].topic)

	var ev SessionEvent
	require.NoError(t, json.Unmarshal(msgs[1].payload, &ev))
	assert.Equal(t, session.Unauthenticated.String(), ev.State)
	assert.Empty(t, ev.Role)
}

func TestNopSatisfiesSink(t *testing.T) {
	var s Sink = Nop{}
	s.Threat(knife())
	s.Denied(visitors("Access Denied"))
	s.Close()
}
