package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwingupta21/VR-API/broadcast"
	"github.com/ashwingupta21/VR-API/errors"
	"github.com/ashwingupta21/VR-API/signal"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startOutput(t *testing.T) (*Output, *broadcast.Registry) {
	t.Helper()
	registry := broadcast.NewRegistry()
	out, err := NewOutput(Deps{
		Config:   Config{Bind: "127.0.0.1", Port: 0, Path: "/ws"},
		Registry: registry,
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, out.Initialize())
	require.NoError(t, out.Start(context.Background()))
	t.Cleanup(func() {
		_ = out.Stop(time.Second)
	})
	return out, registry
}

func dial(t *testing.T, out *Output) *gws.Conn {
	t.Helper()
	url := fmt.Sprintf("ws://%s/ws", out.Addr())
	conn, resp, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	return conn
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestOutputDeliversEventFrames(t *testing.T) {
	out, registry := startOutput(t)
	conn := dial(t, out)
	defer conn.Close()

	waitFor(t, func() bool { return registry.Len() == 1 }, "client never registered")

	dispatcher := broadcast.NewDispatcher(broadcast.DispatcherDeps{
		Registry: registry,
		Logger:   testLogger(),
	})

	dispatcher.Publish(signal.EventActive)
	dispatcher.Publish(signal.EventRest)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, gws.TextMessage, msgType)
	assert.Equal(t, "1", string(frame))

	_, frame, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "0", string(frame))
}

func TestOutputFansOutToMultipleClients(t *testing.T) {
	out, registry := startOutput(t)
	first := dial(t, out)
	defer first.Close()
	second := dial(t, out)
	defer second.Close()

	waitFor(t, func() bool { return registry.Len() == 2 }, "clients never registered")

	dispatcher := broadcast.NewDispatcher(broadcast.DispatcherDeps{
		Registry: registry,
		Logger:   testLogger(),
	})
	dispatcher.Publish(signal.EventActive)

	for _, conn := range []*gws.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, "1", string(frame))
	}
}

func TestOutputRemovesDisconnectedClient(t *testing.T) {
	out, registry := startOutput(t)
	conn := dial(t, out)

	waitFor(t, func() bool { return registry.Len() == 1 }, "client never registered")

	conn.Close()
	waitFor(t, func() bool { return registry.Len() == 0 }, "client never removed after disconnect")
}

func TestOutputRejectsPlainHTTP(t *testing.T) {
	out, registry := startOutput(t)

	resp, err := http.Get(fmt.Sprintf("http://%s/ws", out.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, registry.Len())
	assert.Equal(t, uint64(1), out.upgradeErrors.Load())
}

func TestOutputStopClosesClients(t *testing.T) {
	registry := broadcast.NewRegistry()
	out, err := NewOutput(Deps{
		Config:   Config{Bind: "127.0.0.1", Port: 0, Path: "/ws"},
		Registry: registry,
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, out.Start(context.Background()))

	conn := dial(t, out)
	defer conn.Close()
	waitFor(t, func() bool { return registry.Len() == 1 }, "client never registered")

	require.NoError(t, out.Stop(2*time.Second))
	assert.Equal(t, 0, registry.Len())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "connection closed by server shutdown")
}

func TestOutputLifecycle(t *testing.T) {
	registry := broadcast.NewRegistry()
	out, err := NewOutput(Deps{
		Config:   Config{Bind: "127.0.0.1", Port: 0, Path: "/ws"},
		Registry: registry,
		Logger:   testLogger(),
	})
	require.NoError(t, err)

	err = out.Stop(time.Second)
	assert.True(t, errors.Is(err, errors.ErrNotStarted))

	require.NoError(t, out.Start(context.Background()))
	err = out.Start(context.Background())
	assert.True(t, errors.Is(err, errors.ErrAlreadyStarted))

	meta := out.Meta()
	assert.Equal(t, "websocket-output", meta.Name)
	assert.Equal(t, "output", meta.Type)
	assert.True(t, out.Health().Healthy)

	require.NoError(t, out.Stop(time.Second))
	assert.False(t, out.Health().Healthy)
}

func TestOutputConfigValidation(t *testing.T) {
	registry := broadcast.NewRegistry()
	logger := testLogger()

	_, err := NewOutput(Deps{Logger: logger})
	assert.Error(t, err, "registry is required")

	out, err := NewOutput(Deps{
		Config:   Config{Port: 70000},
		Registry: registry,
		Logger:   logger,
	})
	require.NoError(t, err)
	assert.Error(t, out.Initialize(), "out-of-range port rejected")

	out, err = NewOutput(Deps{
		Config:   Config{Path: "ws"},
		Registry: registry,
		Logger:   logger,
	})
	require.NoError(t, err)
	assert.Error(t, out.Initialize(), "path without leading slash rejected")
}

// A Stop that lands before the serve goroutine is scheduled must not
// crash it, and the output must stay restartable afterwards.
func TestOutputSurvivesImmediateStop(t *testing.T) {
	registry := broadcast.NewRegistry()
	out, err := NewOutput(Deps{
		Config:   Config{Bind: "127.0.0.1", Port: 0, Path: "/ws"},
		Registry: registry,
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, out.Initialize())

	for i := 0; i < 50; i++ {
		require.NoError(t, out.Start(context.Background()))
		require.NoError(t, out.Stop(time.Second))
	}

	assert.Equal(t, "", out.Addr())
}
