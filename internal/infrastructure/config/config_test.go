package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arthurdotwork/relay/internal/adapters/secondary/auth"
	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/arthurdotwork/relay/internal/infrastructure/config"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("it should apply defaults", func(t *testing.T) {
		cfg, err := config.Load("")
		require.NoError(t, err)

		require.Equal(t, ":8080", cfg.HTTPAddr)
		require.Equal(t, ":56000", cfg.GRPCAddr)
		require.NotEmpty(t, cfg.NodeID)
		require.Equal(t, "relay", cfg.Redis.Channel)
		require.False(t, cfg.Redis.Enabled())
		require.Equal(t, 256, cfg.Transport.SendQueueSize)
		require.Equal(t, 10*time.Second, cfg.Transport.WriteTimeout)
		require.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	})

	t.Run("it should read a config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "relay.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
http_addr: ":9090"
node_id: node-a
redis:
  addr: localhost:6379
transport:
  send_queue_size: 16
  write_timeout: 2s
auth:
  tokens:
    - token: AbC123xYz
      user: alice
`), 0o600))

		cfg, err := config.Load(path)
		require.NoError(t, err)

		require.Equal(t, ":9090", cfg.HTTPAddr)
		require.Equal(t, "node-a", cfg.NodeID)
		require.True(t, cfg.Redis.Enabled())
		require.Equal(t, 16, cfg.Transport.SendQueueSize)
		require.Equal(t, 2*time.Second, cfg.Transport.WriteTimeout)
		require.Equal(t, map[string]string{"AbC123xYz": "alice"}, cfg.Auth.TokenTable())
	})

	t.Run("it should let the environment override the file", func(t *testing.T) {
		t.Setenv("RELAY_HTTP_ADDR", ":7070")
		t.Setenv("RELAY_TRANSPORT_SEND_QUEUE_SIZE", "8")

		cfg, err := config.Load("")
		require.NoError(t, err)

		require.Equal(t, ":7070", cfg.HTTPAddr)
		require.Equal(t, 8, cfg.Transport.SendQueueSize)
	})

	t.Run("it should authenticate a mixed-case token", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "relay.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
auth:
  tokens:
    - token: AbC123xYz
      user: alice
`), 0o600))

		cfg, err := config.Load(path)
		require.NoError(t, err)

		authenticator := auth.NewStaticAuthenticator(cfg.Auth.TokenTable())

		userID, err := authenticator.Authenticate(context.Background(), domain.Credentials{Token: "AbC123xYz"})
		require.NoError(t, err)
		require.Equal(t, "alice", userID)

		_, err = authenticator.Authenticate(context.Background(), domain.Credentials{Token: "abc123xyz"})
		require.ErrorIs(t, err, domain.ErrAuthFailed)
	})

	t.Run("it should reject a token entry without a user", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "relay.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
auth:
  tokens:
    - token: AbC123xYz
`), 0o600))

		_, err := config.Load(path)
		require.Error(t, err)
	})

	t.Run("it should fail on a missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}
