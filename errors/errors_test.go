package errors

import (
	"fmt"
	"testing"
	"time"
)

func TestStationError(t *testing.T) {
	// Test basic error creation
	err := New(ErrCodeChannelRejected, "channel rejected")
	if err.Code != ErrCodeChannelRejected {
		t.Errorf("expected code %s, got %s", ErrCodeChannelRejected, err.Code)
	}

	// Test error wrapping
	cause := fmt.Errorf("underlying error")
	wrapped := Wrap(cause, ErrCodeTransportFailure, "spawn failed")

	if wrapped.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	if !Is(wrapped, ErrCodeTransportFailure) {
		t.Error("Is should return true for matching code")
	}

	if Is(wrapped, ErrCodeBackendFailure) {
		t.Error("Is should return false for non-matching code")
	}

	detailed := err.WithDetail("channel", "open-anything").WithDetail("direction", "inbound")
	if detailed.Details["channel"] != "open-anything" {
		t.Error("WithDetail should add details")
	}
}

func TestGetCodeThroughFmtWrap(t *testing.T) {
	inner := MalformedResponse("authenticate")
	outer := fmt.Errorf("login: %w", inner)

	if got := GetCode(outer); got != ErrCodeMalformedResponse {
		t.Errorf("GetCode() = %s, want %s", got, ErrCodeMalformedResponse)
	}
	if got := Message(outer); got != MalformedResponseMessage {
		t.Errorf("Message() = %q, want %q", got, MalformedResponseMessage)
	}
	if GetCode(nil) != "" {
		t.Error("GetCode(nil) should be empty")
	}
	if Is(fmt.Errorf("plain"), "") {
		t.Error("Is should never match the empty code")
	}
}

func TestErrorConstructors(t *testing.T) {
	err := BackendFailure("authenticate", "Invalid username or password.")
	if err.Code != ErrCodeBackendFailure {
		t.Errorf("expected code %s, got %s", ErrCodeBackendFailure, err.Code)
	}
	if err.Message != "Invalid username or password." {
		t.Errorf("BackendFailure should keep the backend message verbatim, got %q", err.Message)
	}

	err = BackendFailure("register", "")
	if err.Message != "register failed" {
		t.Errorf("BackendFailure should fall back to a generic message, got %q", err.Message)
	}

	err = TransportFailure("incidents", fmt.Errorf("exec: \"python\": executable file not found in $PATH"))
	if err.Message != "exec: \"python\": executable file not found in $PATH" {
		t.Errorf("TransportFailure should carry the raw error text, got %q", err.Message)
	}
	if err.Details["command"] != "incidents" {
		t.Error("TransportFailure should include command detail")
	}

	err = CommandTimeout("incidents", 2*time.Minute)
	if err.Details["timeout"] != "2m0s" {
		t.Errorf("CommandTimeout should include timeout detail, got %v", err.Details["timeout"])
	}

	err = ChannelRejected("inbound", "rm-rf")
	if err.Details["channel"] != "rm-rf" {
		t.Error("ChannelRejected should include channel detail")
	}
}
