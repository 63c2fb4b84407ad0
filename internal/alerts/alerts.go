// Package alerts mirrors threat and session events to an MQTT broker.
package alerts

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/grovetools/watchpost/config"
	"github.com/grovetools/watchpost/logging"
	"github.com/grovetools/watchpost/recognition"
	"github.com/grovetools/watchpost/session"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultCooldown suppresses repeats of the same threat set.
	DefaultCooldown = 10 * time.Second

	publishTimeout = 5 * time.Second
)

// Sink receives station events worth mirroring.
type Sink interface {
	Threat(ev recognition.Event)
	Denied(ev recognition.Event)
	Session(state session.State, s session.Session)
	WorkerExited(err error)
	Close()
}

// Nop discards everything.
type Nop struct{}

func (Nop) Threat(recognition.Event)               {}
func (Nop) Denied(recognition.Event)               {}
func (Nop) Session(session.State, session.Session) {}
func (Nop) WorkerExited(error)                     {}
func (Nop) Close()                                 {}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher publishes events as JSON.
type Publisher struct {
	client    publisher
	closer    func()
	baseTopic string
	cooldown  time.Duration
	logger    *logrus.Entry
	now       func() time.Time

	mu         sync.Mutex
	lastLabels string
	lastSent   time.Time
	lastDenied string
	deniedAt   time.Time
}

// ThreatAlert is published on <base>/threats.
type ThreatAlert struct {
	Time    time.Time            `json:"time"`
	Threats []recognition.Threat `json:"threats"`
}

// AccessAlert is published on <base>/access when recognized people are
// denied access.
type AccessAlert struct {
	Time   time.Time            `json:"time"`
	People []recognition.Person `json:"people"`
}

// SessionEvent is published, retained, on <base>/session.
type SessionEvent struct {
	Time  time.Time    `json:"time"`
	State string       `json:"state"`
	Role  session.Role `json:"role,omitempty"`
	Mode  session.Mode `json:"mode,omitempty"`
}

// WorkerEvent is published on <base>/worker.
type WorkerEvent struct {
	Time  time.Time `json:"time"`
	Event string    `json:"event"`
	Error string    `json:"error,omitempty"`
}

// Connect dials the configured broker.
func Connect(cfg config.AlertsConfig) (*Publisher, error) {
	broker := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	cli := mqtt.NewClient(opts)
	token := cli.Connect()
	if ok := token.WaitTimeout(10 * time.Second); !ok {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect error: %w", err)
	}

	p := newPublisher(cli, cfg.BaseTopic)
	p.closer = func() {
		if cli.IsConnected() {
			cli.Disconnect(250)
		}
	}
	p.logger.WithField("broker", broker).Info("Connected to alert broker")
	return p, nil
}

func newPublisher(client publisher, baseTopic string) *Publisher {
	return &Publisher{
		client:    client,
		baseTopic: strings.TrimSuffix(baseTopic, "/"),
		cooldown:  DefaultCooldown,
		logger:    logging.NewLogger("alerts"),
		now:       time.Now,
	}
}

// Threat publishes the event's threats. Repeats of the same labels within
// the cooldown are skipped; frames without threats reset the cooldown.
func (p *Publisher) Threat(ev recognition.Event) {
	now := p.now()

	p.mu.Lock()
	if len(ev.Threats) == 0 {
		p.lastLabels = ""
		p.mu.Unlock()
		return
	}
	labels := threatLabels(ev.Threats)
	if labels == p.lastLabels && now.Sub(p.lastSent) < p.cooldown {
		p.mu.Unlock()
		return
	}
	p.lastLabels = labels
	p.lastSent = now
	p.mu.Unlock()

	p.publish("threats", 1, false, ThreatAlert{Time: now, Threats: ev.Threats})
}

// Denied publishes the people in ev whose status denies access. The same
// set of people is not repeated within the cooldown.
func (p *Publisher) Denied(ev recognition.Event) {
	var denied []recognition.Person
	for _, person := range ev.People() {
		if person.Access() == recognition.AccessDenied {
			denied = append(denied, person)
		}
	}
	now := p.now()

	p.mu.Lock()
	if len(denied) == 0 {
		p.lastDenied = ""
		p.mu.Unlock()
		return
	}
	names := personNames(denied)
	if names == p.lastDenied && now.Sub(p.deniedAt) < p.cooldown {
		p.mu.Unlock()
		return
	}
	p.lastDenied = names
	p.deniedAt = now
	p.mu.Unlock()

	p.publish("access", 1, false, AccessAlert{Time: now, People: denied})
}

// Session publishes the session state as a retained message.
func (p *Publisher) Session(state session.State, s session.Session) {
	ev := SessionEvent{Time: p.now(), State: state.String()}
	if state == session.Authenticated {
		ev.Role = s.Role
		ev.Mode = s.Mode
	}
	p.publish("session", 1, true, ev)
}

// WorkerExited publishes an unexpected worker exit.
func (p *Publisher) WorkerExited(err error) {
	ev := WorkerEvent{Time: p.now(), Event: "exited"}
	if err != nil {
		ev.Error = err.Error()
	}
	p.publish("worker", 0, false, ev)
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.closer != nil {
		p.closer()
	}
}

func (p *Publisher) publish(topic string, qos byte, retained bool, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.logger.WithError(err).Error("Failed to encode alert")
		return
	}
	full := p.baseTopic + "/" + topic
	token := p.client.Publish(full, qos, retained, payload)

	// Never block the caller on the broker.
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			p.logger.WithField("topic", full).Warn("Alert publish timed out")
			return
		}
		if err := token.Error(); err != nil {
			p.logger.WithError(err).WithField("topic", full).Warn("Alert publish failed")
		}
	}()
}

func threatLabels(threats []recognition.Threat) string {
	labels := make([]string, 0, len(threats))
	for _, t := range threats {
		labels = append(labels, t.Label)
	}
	sort.Strings(labels)
	return strings.Join(labels, ",")
}

func personNames(people []recognition.Person) string {
	names := make([]string, 0, len(people))
	for _, person := range people {
		names = append(names, person.Name+" "+person.Surname)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
