package station

import (
	"context"
	"encoding/json"

	"github.com/grovetools/watchpost/bus"
	"github.com/grovetools/watchpost/command"
	"github.com/grovetools/watchpost/config"
	"github.com/grovetools/watchpost/errors"
	"github.com/grovetools/watchpost/formconfig"
	"github.com/grovetools/watchpost/recognition"
	"github.com/grovetools/watchpost/session"
	"github.com/grovetools/watchpost/settings"
	"github.com/grovetools/watchpost/view"
	"github.com/sirupsen/logrus"
)

const (
	commandToggleOverlays = "toggle_overlays"

	readOnlyFormMessage = "Form configuration is read-only."
	loginFailedMessage  = "Login failed"
)

// privileged channels need an online admin session.
var privileged = map[bus.Channel]bool{
	bus.OpenDashboard:               true,
	bus.OpenIncidents:               true,
	bus.GetIncidents:                true,
	bus.UpdateIncidentStatus:        true,
	bus.DeleteIncident:              true,
	bus.UploadProfile:               true,
	bus.ToggleGlobalWeaponDetection: true,
}

// authorize applies the role gate to an inbound channel.
func (s *Station) authorize(ch bus.Channel) error {
	switch {
	case privileged[ch]:
		if !s.machine.Capabilities().Administer {
			return errors.ViewNotAllowed(string(ch))
		}
	case ch == bus.OpenCamera, ch == bus.ToggleOverlaysChange:
		if !s.machine.Active() {
			return errors.ViewNotAllowed(string(ch))
		}
	case ch == bus.OpenRegisterWindow, ch == bus.OpenLoginWindow, ch == bus.RegisterAttempt:
		if s.machine.Active() {
			return errors.ViewNotAllowed(string(ch))
		}
	}
	return nil
}

func (s *Station) handle(id, name string, payload json.RawMessage) {
	from, err := s.views.Resolve(id)
	if err != nil {
		s.logger.WithError(err).WithField("channel", name).Warn("Dropped message from unknown window")
		return
	}
	ch, err := bus.Check(bus.Inbound, name)
	if err != nil {
		s.logger.WithError(err).WithField("view", from).Warn("Rejected inbound message")
		return
	}
	logger := s.logger.WithFields(logrus.Fields{"view": from, "channel": ch})
	if err := s.authorize(ch); err != nil {
		logger.WithError(err).WithField("session", s.machine.State()).Warn("Refused message")
		return
	}
	logger.Debug("Inbound message")

	switch ch {
	case bus.LoginAttempt:
		s.beginLogin(payload)
	case bus.LogoutRequest:
		s.logout()
	case bus.OpenCamera:
		s.openCamera()
	case bus.OpenDashboard:
		_ = s.open(view.Dashboard)
	case bus.OpenIncidents:
		_ = s.open(view.Incidents)
	case bus.OpenRegisterWindow:
		s.views.Close(view.Login, view.CloseProgrammatic)
		_ = s.open(view.Register)
	case bus.OpenLoginWindow:
		s.views.Close(view.Register, view.CloseProgrammatic)
		_ = s.open(view.Login)
	case bus.RegisterAttempt:
		s.register(from, payload)
	case bus.UploadProfile:
		s.uploadProfile(from, payload)
	case bus.GetIncidents:
		s.listIncidents(from)
	case bus.UpdateIncidentStatus:
		s.updateIncident(from, payload)
	case bus.DeleteIncident:
		s.deleteIncident(from, payload)
	case bus.ToggleGlobalWeaponDetection:
		s.toggleWeaponDetection(payload)
	case bus.ToggleOverlaysChange:
		s.toggleOverlays(payload)
	case bus.SaveFormConfig:
		logger.Info("Refused form configuration change")
		s.send(from, bus.SaveFormConfigFail, readOnlyFormMessage)
	}
}

func (s *Station) invoke(ctx context.Context, id, name string, payload json.RawMessage, result chan<- invokeResult) {
	from, err := s.views.Resolve(id)
	if err != nil {
		result <- invokeResult{err: err}
		return
	}
	ch, err := bus.Check(bus.Invoke, name)
	if err != nil {
		s.logger.WithError(err).WithField("view", from).Warn("Rejected invoke")
		result <- invokeResult{err: err}
		return
	}

	switch ch {
	case bus.LoadFormConfig:
		path := s.cfg.Forms.Path
		go func() {
			doc, err := formconfig.Load(path)
			if err != nil {
				s.logger.WithError(err).Warn("Failed to load form configuration")
				result <- invokeResult{}
				return
			}
			result <- invokeResult{value: doc}
		}()

	case bus.ShowConfirmDialog:
		var detail string
		if err := bus.Decode(ch, payload, &detail); err != nil {
			result <- invokeResult{err: err}
			return
		}
		parent, _ := s.views.Window(from)
		host := s.views.Host()
		go func() {
			ok, err := host.Confirm(ctx, parent, detail)
			if err != nil {
				s.logger.WithError(err).Warn("Confirmation failed, treating as declined")
				ok = false
			}
			result <- invokeResult{value: ok}
		}()
	}
}

func (s *Station) beginLogin(payload json.RawMessage) {
	var creds bus.Credentials
	if err := bus.Decode(bus.LoginAttempt, payload, &creds); err != nil {
		s.logger.WithError(err).Warn("Malformed login attempt")
		s.send(view.Login, bus.LoginFail, session.CredentialsRequiredMessage)
		return
	}
	if err := s.machine.BeginLogin(creds.Username, creds.Password); err != nil {
		s.logger.WithError(err).Info("Login refused")
		s.send(view.Login, bus.LoginFail, errors.Message(err))
		return
	}
	if err := command.Validate(command.ArgUsername, creds.Username); err != nil {
		s.machine.Fail()
		s.send(view.Login, bus.LoginFail, errors.Message(err))
		return
	}

	s.logger.WithField("username", creds.Username).Info("Authenticating")
	future := s.runner.Go(s.views.Context(view.Login), config.CommandAuthenticate, creds.Username, creds.Password)
	s.await(future, s.finishLogin)
}

type authReply struct {
	Role string `json:"role"`
	Mode string `json:"mode"`
}

func (s *Station) finishLogin(o command.Outcome) {
	if s.machine.State() != session.Authenticating {
		s.logger.WithField("session", s.machine.State()).Debug("Dropped stale login result")
		return
	}
	if o.Err != nil {
		s.machine.Fail()
		if errors.Is(o.Err, errors.ErrCodeCommandCanceled) {
			s.logger.Info("Login abandoned")
			return
		}
		s.logger.WithError(o.Err).Info("Login failed")
		s.send(view.Login, bus.LoginFail, failureText(o.Err, loginFailedMessage))
		return
	}

	var reply authReply
	if err := o.Result.Decode(&reply); err != nil {
		s.machine.Fail()
		s.logger.WithError(err).Warn("Unreadable login reply")
		s.send(view.Login, bus.LoginFail, errors.MalformedResponseMessage)
		return
	}
	role := session.ParseRole(reply.Role)
	if role == session.RoleNone {
		role = session.RoleUser
	}
	mode := session.ParseMode(reply.Mode)
	if err := s.machine.Complete(role, mode); err != nil {
		s.logger.WithError(err).Error("Failed to complete login")
		return
	}

	s.logger.WithFields(logrus.Fields{"role": role, "mode": mode}).Info("Operator signed in")
	s.alerts.Session(s.machine.State(), s.machine.Session())

	s.send(view.Login, bus.LoginSuccess, bus.LoginSuccessPayload{Role: role, Mode: mode})
	s.views.Close(view.Login, view.CloseProgrammatic)
	_ = s.open(view.Home)
}

// logout tears the session down in a fixed order. It does nothing unless
// an operator is signed in.
func (s *Station) logout() {
	if !s.machine.Active() {
		s.logger.Debug("Logout without a session ignored")
		return
	}
	s.logger.Info("Logging out")

	s.supervisor.Stop()
	for _, name := range []view.Name{view.Camera, view.Dashboard, view.Incidents} {
		s.views.Close(name, view.CloseProgrammatic)
	}
	s.views.Close(view.Home, view.CloseProgrammatic)
	_ = s.open(view.Login)
	s.machine.Logout()

	s.alerts.Session(s.machine.State(), s.machine.Session())
}

func (s *Station) openCamera() {
	if s.views.IsOpen(view.Camera) {
		_ = s.open(view.Camera)
		return
	}
	s.views.Hide(view.Home)
	if err := s.open(view.Camera); err != nil {
		s.views.Show(view.Home)
	}
}

func (s *Station) register(from view.Name, payload json.RawMessage) {
	var req bus.RegisterRequest
	if err := bus.Decode(bus.RegisterAttempt, payload, &req); err != nil {
		s.send(from, bus.RegisterResult, bus.Failed(errors.Message(err)))
		return
	}
	if err := command.Validate(command.ArgUsername, req.Username); err != nil {
		s.send(from, bus.RegisterResult, bus.Failed(errors.Message(err)))
		return
	}

	future := s.runner.Go(s.views.Context(from), config.CommandRegister, req.Username, req.Password, req.Code())
	s.await(future, func(o command.Outcome) {
		s.reply(from, bus.RegisterResult, o)
	})
}

func (s *Station) toggleWeaponDetection(payload json.RawMessage) {
	var enabled bool
	if err := bus.Decode(bus.ToggleGlobalWeaponDetection, payload, &enabled); err != nil {
		s.logger.WithError(err).Warn("Malformed weapon detection toggle")
		return
	}
	if _, err := s.settings.Update(func(st *settings.Settings) { st.DetectWeapons = enabled }); err != nil {
		s.logger.WithError(err).Error("Failed to save settings")
	}
	s.detectWeapons = enabled
	s.logger.WithField("enabled", enabled).Info("Weapon detection changed")

	if s.supervisor.Running() {
		_ = s.supervisor.SendCommand(recognition.CommandSetWeaponDetection, enabled)
	}
}

func (s *Station) toggleOverlays(payload json.RawMessage) {
	var show bool
	if err := bus.Decode(bus.ToggleOverlaysChange, payload, &show); err != nil {
		s.logger.WithError(err).Warn("Malformed overlay toggle")
		return
	}
	_ = s.supervisor.SendCommand(commandToggleOverlays, show)
}

// reply sends the outcome of a one-shot call back to the view that asked.
// Canceled calls are dropped: their view is gone.
func (s *Station) reply(to view.Name, channel bus.Channel, o command.Outcome) {
	if o.Err != nil {
		if errors.Is(o.Err, errors.ErrCodeCommandCanceled) {
			s.logger.WithField("channel", channel).Debug("Dropped reply for closed view")
			return
		}
		s.send(to, channel, bus.Failed(failureText(o.Err, "")))
		return
	}
	s.send(to, channel, bus.Succeeded(o.Result.Message))
}

// failureText is the operator-facing text for a failed call.
func failureText(err error, fallback string) string {
	msg := errors.Message(err)
	if msg == "" {
		return fallback
	}
	return msg
}
