package nats

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwingupta21/VR-API/errors"
	"github.com/ashwingupta21/VR-API/signal"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewMirrorRequiresLogger(t *testing.T) {
	_, err := NewMirror(Deps{})
	assert.Error(t, err)
}

func TestMirrorDefaults(t *testing.T) {
	m, err := NewMirror(Deps{Logger: testLogger()})
	require.NoError(t, err)
	assert.Equal(t, DefaultSubject, m.config.Subject)
	assert.False(t, m.Enabled())
	assert.Equal(t, "nats-mirror", m.Meta().Name)
	assert.Equal(t, "output", m.Meta().Type)
}

func TestDisabledMirrorLifecycle(t *testing.T) {
	m, err := NewMirror(Deps{Logger: testLogger()})
	require.NoError(t, err)
	require.NoError(t, m.Initialize())

	err = m.Stop(time.Second)
	assert.True(t, errors.Is(err, errors.ErrNotStarted))

	require.NoError(t, m.Start(context.Background()))
	err = m.Start(context.Background())
	assert.True(t, errors.Is(err, errors.ErrAlreadyStarted))

	// No connection, so publishing is a no-op rather than a panic.
	m.Publish(signal.EventActive)
	assert.Equal(t, uint64(0), m.published.Load())

	assert.True(t, m.Health().Healthy, "disabled mirror reports healthy")
	require.NoError(t, m.Stop(time.Second))
}

func TestPublishBeforeStartIsSafe(t *testing.T) {
	m, err := NewMirror(Deps{
		Config: Config{URL: "nats://127.0.0.1:4222", Subject: "custom.subject"},
		Logger: testLogger(),
	})
	require.NoError(t, err)

	m.Publish(signal.EventRest)
	assert.Equal(t, uint64(0), m.published.Load())
	assert.Equal(t, uint64(0), m.publishFails.Load())
}

func TestEnabledMirrorUnhealthyWithoutConnection(t *testing.T) {
	m, err := NewMirror(Deps{
		Config: Config{URL: "nats://127.0.0.1:4222"},
		Logger: testLogger(),
	})
	require.NoError(t, err)
	assert.True(t, m.Enabled())
	assert.False(t, m.Health().Healthy, "enabled but never connected")
}
