package station

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/grovetools/watchpost/bus"
	"github.com/grovetools/watchpost/command"
	"github.com/grovetools/watchpost/config"
	"github.com/grovetools/watchpost/errors"
	"github.com/grovetools/watchpost/view"
)

// Incident manager subcommands.
const (
	incidentsList   = "list"
	incidentsUpdate = "update"
	incidentsDelete = "delete"
)

func (s *Station) listIncidents(from view.Name) {
	ctx := s.views.Context(from)
	future := s.runner.Go(ctx, config.CommandIncidents, incidentsList)
	future.Then(func(o command.Outcome) {
		reply, deliver := s.incidentsReply(ctx, o)
		if !deliver {
			return
		}
		s.post(func() { s.send(from, bus.IncidentsData, reply) })
	})
}

// incidentsReply builds the incidents-data payload off the event loop,
// since presigning links may be slow.
func (s *Station) incidentsReply(ctx context.Context, o command.Outcome) (bus.IncidentsReply, bool) {
	if o.Err != nil {
		if errors.Is(o.Err, errors.ErrCodeCommandCanceled) {
			return bus.IncidentsReply{}, false
		}
		s.logger.WithError(o.Err).Warn("Failed to list incidents")
		return bus.IncidentsReply{Status: "error", Message: failureText(o.Err, "")}, true
	}

	var reply bus.IncidentsReply
	if err := o.Result.Decode(&reply); err != nil {
		s.logger.WithError(err).Warn("Unreadable incident list")
		return bus.IncidentsReply{Status: "error", Message: errors.MalformedResponseMessage}, true
	}
	if reply.Data == nil {
		reply.Data = []bus.Incident{}
	}
	sortNewestFirst(reply.Data)

	if s.media != nil {
		for i := range reply.Data {
			inc := &reply.Data[i]
			if inc.VideoRef == "" || inc.VideoURL != "" {
				continue
			}
			link, err := s.media.Link(ctx, inc.VideoRef)
			if err != nil {
				s.logger.WithError(err).WithField("incident", inc.ID).Warn("Failed to sign video link")
				continue
			}
			inc.VideoURL = link
		}
	}
	return reply, true
}

func (s *Station) updateIncident(from view.Name, payload json.RawMessage) {
	var req bus.IncidentStatusUpdate
	if err := bus.Decode(bus.UpdateIncidentStatus, payload, &req); err != nil {
		s.send(from, bus.IncidentUpdated, bus.Failed(errors.Message(err)))
		return
	}
	if err := validateAll(
		command.ArgIncidentID, req.ID,
		command.ArgIncidentStatus, req.Status,
	); err != nil {
		s.send(from, bus.IncidentUpdated, bus.Failed(errors.Message(err)))
		return
	}

	future := s.runner.Go(s.views.Context(from), config.CommandIncidents, incidentsUpdate, req.ID, req.Status)
	s.await(future, func(o command.Outcome) {
		s.reply(from, bus.IncidentUpdated, o)
	})
}

func (s *Station) deleteIncident(from view.Name, payload json.RawMessage) {
	var req bus.IncidentRef
	if err := bus.Decode(bus.DeleteIncident, payload, &req); err != nil {
		s.send(from, bus.IncidentUpdated, bus.Failed(errors.Message(err)))
		return
	}
	if err := command.Validate(command.ArgIncidentID, req.ID); err != nil {
		s.send(from, bus.IncidentUpdated, bus.Failed(errors.Message(err)))
		return
	}

	future := s.runner.Go(s.views.Context(from), config.CommandIncidents, incidentsDelete, req.ID)
	s.await(future, func(o command.Outcome) {
		s.reply(from, bus.IncidentUpdated, o)
	})
}

// validateAll validates (kind, value) pairs in order.
func validateAll(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := command.Validate(pairs[i], pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// sortNewestFirst orders incidents by timestamp, newest first. Timestamps
// that do not parse are compared as text.
func sortNewestFirst(incidents []bus.Incident) {
	sort.SliceStable(incidents, func(i, j int) bool {
		a, aok := parseTimestamp(incidents[i].Timestamp)
		b, bok := parseTimestamp(incidents[j].Timestamp)
		if aok && bok {
			return a.After(b)
		}
		return incidents[i].Timestamp > incidents[j].Timestamp
	})
}
