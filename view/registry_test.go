package view_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/grovetools/watchpost/bus"
	"github.com/grovetools/watchpost/errors"
	"github.com/grovetools/watchpost/view"
	"github.com/grovetools/watchpost/view/viewtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) (*view.Registry, *viewtest.Host) {
	t.Helper()
	t.Setenv("WATCHPOST_HOME", t.TempDir())
	host := viewtest.NewHost()
	return view.NewRegistry(host), host
}

func TestOpenIsIdempotent(t *testing.T) {
	reg, host := newRegistry(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, reg.Open(ctx, view.Home))
	}
	assert.Equal(t, 1, host.Created(view.Home))
	assert.Equal(t, 2, host.Latest(view.Home).Focused())
	assert.Equal(t, 1, reg.Len())
}

func TestAtMostOneLivePerNameAcrossSequences(t *testing.T) {
	reg, host := newRegistry(t)
	ctx := context.Background()

	seq := []view.Name{view.Login, view.Home, view.Login, view.Camera, view.Home, view.Camera, view.Login}
	for _, name := range seq {
		require.NoError(t, reg.Open(ctx, name))
		for _, n := range view.Names() {
			if w := host.Latest(n); w != nil {
				assert.Equal(t, !w.Closed(), reg.IsOpen(n))
			}
		}
	}
	assert.Equal(t, 1, host.Created(view.Login))
	assert.Equal(t, 1, host.Created(view.Camera))
	assert.ElementsMatch(t, []view.Name{view.Login, view.Home, view.Camera}, reg.Names())
}

func TestInitRunsOncePerCreation(t *testing.T) {
	reg, host := newRegistry(t)
	ctx := context.Background()

	loads := 0
	reg.SetHooks(view.Home, view.Hooks{OnLoad: func(ctx context.Context) {
		loads++
		require.NoError(t, reg.Send(view.Home, bus.InitHome, map[string]string{"role": "admin"}))
	}})

	require.NoError(t, reg.Open(ctx, view.Home))
	assert.Equal(t, view.Creating, reg.State(view.Home))

	first := host.Latest(view.Home)
	require.NoError(t, reg.Loaded(first.ID()))
	assert.Equal(t, view.Live, reg.State(view.Home))
	require.NoError(t, reg.Loaded(first.ID()), "a reload does not re-run init")
	require.NoError(t, reg.Open(ctx, view.Home), "focus does not re-run init")
	assert.Equal(t, 1, loads)
	assert.Len(t, first.Messages(bus.InitHome), 1)

	reg.Close(view.Home, view.CloseProgrammatic)
	require.NoError(t, reg.Open(ctx, view.Home))
	second := host.Latest(view.Home)
	require.NotEqual(t, first.ID(), second.ID())
	require.NoError(t, reg.Loaded(second.ID()))
	assert.Equal(t, 2, loads)
	assert.Len(t, second.Messages(bus.InitHome), 1)
}

func TestStaleWindowIsRefused(t *testing.T) {
	reg, host := newRegistry(t)
	require.NoError(t, reg.Open(context.Background(), view.Incidents))
	old := host.Latest(view.Incidents)
	reg.Close(view.Incidents, view.CloseProgrammatic)

	assert.True(t, old.Closed())
	_, err := reg.Resolve(old.ID())
	assert.True(t, errors.Is(err, errors.ErrCodeStaleView))
	assert.True(t, errors.Is(reg.Loaded(old.ID()), errors.ErrCodeStaleView))
	_, err = reg.Resolve("made-up")
	assert.True(t, errors.Is(err, errors.ErrCodeStaleView))
}

func TestCloseHooksReceiveReason(t *testing.T) {
	reg, host := newRegistry(t)
	ctx := context.Background()

	var reasons []view.CloseReason
	reg.SetHooks(view.Camera, view.Hooks{OnClose: func(r view.CloseReason) { reasons = append(reasons, r) }})

	require.NoError(t, reg.Open(ctx, view.Camera))
	reg.Close(view.Camera, view.CloseProgrammatic)
	reg.Close(view.Camera, view.CloseProgrammatic)

	require.NoError(t, reg.Open(ctx, view.Camera))
	reg.Closed(host.Latest(view.Camera).ID())
	reg.Closed(host.Latest(view.Camera).ID())

	assert.Equal(t, []view.CloseReason{view.CloseProgrammatic, view.CloseUser}, reasons)
	assert.Equal(t, view.Absent, reg.State(view.Camera))
}

func TestContextCancelledOnClose(t *testing.T) {
	reg, _ := newRegistry(t)
	require.NoError(t, reg.Open(context.Background(), view.Register))

	ctx := reg.Context(view.Register)
	require.NoError(t, ctx.Err())
	reg.Close(view.Register, view.CloseProgrammatic)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	assert.Error(t, reg.Context(view.Register).Err(), "absent view has a done context")
}

func TestOnEmptyOnlyForUserClose(t *testing.T) {
	reg, host := newRegistry(t)
	ctx := context.Background()
	empty := 0
	reg.OnEmpty(func() { empty++ })

	require.NoError(t, reg.Open(ctx, view.Login))
	reg.Close(view.Login, view.CloseProgrammatic)
	assert.Equal(t, 0, empty)

	require.NoError(t, reg.Open(ctx, view.Login))
	require.NoError(t, reg.Open(ctx, view.Register))
	reg.Closed(host.Latest(view.Register).ID())
	assert.Equal(t, 0, empty, "another view is still open")

	reg.Closed(host.Latest(view.Login).ID())
	assert.Equal(t, 1, empty)
}

func TestSendValidatesAndDrops(t *testing.T) {
	reg, host := newRegistry(t)
	require.NoError(t, reg.Open(context.Background(), view.Login))

	err := reg.Send(view.Login, bus.Channel("login-attempt"), nil)
	assert.True(t, errors.Is(err, errors.ErrCodeChannelRejected))

	require.NoError(t, reg.Send(view.Camera, bus.PythonData, json.RawMessage(`{}`)), "absent view drops silently")
	require.NoError(t, reg.Send(view.Login, bus.LoginFail, "Invalid password."))

	msgs := host.Latest(view.Login).Messages(bus.LoginFail)
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `"Invalid password."`, string(msgs[0]))
	assert.Len(t, host.Latest(view.Login).All(), 1)
}

func TestCreateFailureLeavesNoEntry(t *testing.T) {
	reg, host := newRegistry(t)
	host.FailCreate(view.Login, fmt.Errorf("display unavailable"))

	err := reg.Open(context.Background(), view.Login)
	require.Error(t, err)
	assert.Equal(t, view.Absent, reg.State(view.Login))
	assert.Equal(t, 0, reg.Len())
}

func TestHideShow(t *testing.T) {
	reg, host := newRegistry(t)
	require.NoError(t, reg.Open(context.Background(), view.Home))
	reg.Hide(view.Home)
	assert.True(t, host.Latest(view.Home).Hidden())
	reg.Show(view.Home)
	assert.False(t, host.Latest(view.Home).Hidden())
	reg.Hide(view.Dashboard)
}

func TestParseName(t *testing.T) {
	n, err := view.ParseName("incidents")
	require.NoError(t, err)
	assert.Equal(t, view.Incidents, n)
	_, err = view.ParseName("settings")
	assert.Error(t, err)
}
