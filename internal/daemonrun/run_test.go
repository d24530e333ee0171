package daemonrun

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetscribe/internal/logging"
	"meetscribe/internal/testsupport"
)

func TestBuildWiresDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	require.NoError(t, cfg.EnsureDirectories())

	d, err := Build(cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	status := d.Status()
	assert.False(t, status.Running)
	assert.Equal(t, cfg.DatabasePath(), status.DatabasePath)
	assert.Equal(t, "none", status.DispatchMode)

	results, ready := d.Health(context.Background())
	assert.True(t, ready)
	assert.Len(t, results, 3)
}

func TestBuildRejectsUnknownStorage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	require.NoError(t, cfg.EnsureDirectories())
	cfg.Storage.Backend = "tape"

	_, err := Build(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "object storage")
}

func TestRunRequiresDaemonCredentials(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Slack.SigningSecret = ""

	err := Run(context.Background(), cfg, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack.signing_secret")
}

func TestRunServesUntilCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Logging.Level = "error"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, Options{}) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(PIDPath(cfg))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	_, err := os.Stat(PIDPath(cfg))
	assert.True(t, os.IsNotExist(err), "pid file should be removed on shutdown")
}

func TestSecondInstanceLeavesPIDFileAlone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Logging.Level = "error"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, Options{}) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	var original []byte
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(PIDPath(cfg))
		original = data
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	err := Run(context.Background(), cfg, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	current, readErr := os.ReadFile(PIDPath(cfg))
	require.NoError(t, readErr, "pid file of the running daemon must survive")
	assert.Equal(t, original, current)
}
