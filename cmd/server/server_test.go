package server

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/syncbox/pkg/config"
)

func TestGetConfig(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "server.yaml")

	cmd := New()
	require.NoError(t, cmd.Flags().Set("root", "/srv/syncbox"))
	require.NoError(t, cmd.Flags().Set("client-port", "4001"))
	require.NoError(t, cmd.Flags().Set("status-address", "127.0.0.1:8080"))

	cfg, err := getConfig(cmd, flags{
		configPath:    missing,
		root:          "/srv/syncbox",
		clientPort:    4001,
		statusAddress: "127.0.0.1:8080",
	})
	require.NoError(t, err)

	exp := config.DefaultServer()
	exp.Root = "/srv/syncbox"
	exp.ClientPort = 4001
	exp.StatusAddress = "127.0.0.1:8080"
	assert.Equal(t, exp, cfg)
}
