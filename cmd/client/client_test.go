package client

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/syncbox/pkg/config"
	"github.com/sidkik/syncbox/pkg/errors"
)

func TestGetConfig(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "client.yaml")

	cmd := New()
	f := flags{configPath: missing}
	_, err := getConfig(cmd, f)
	assert.Equal(t, errors.MissingFieldError{Field: "login"}, errors.RootCause(err))

	require.NoError(t, cmd.Flags().Set("login", "alice"))
	require.NoError(t, cmd.Flags().Set("directory", "/home/alice/sync"))
	require.NoError(t, cmd.Flags().Set("port", "5000"))
	f.login = "alice"
	f.directory = "/home/alice/sync"
	f.port = 5000

	// Unchanged flags keep the defaults.
	f.server = "ignored:1"
	cfg, err := getConfig(cmd, f)
	require.NoError(t, err)

	exp := config.DefaultClient()
	exp.Login = "alice"
	exp.Directory = "/home/alice/sync"
	exp.Port = 5000
	assert.Equal(t, exp, cfg)
}

func TestLocalAddress(t *testing.T) {
	ip, err := localAddress(config.Client{}, "127.0.0.9")
	require.NoError(t, err)
	assert.True(t, ip.Equal(net.ParseIP("127.0.0.9")))

	_, err = localAddress(config.Client{}, "not-an-ip")
	msg, ok := errors.GetFriendlyMessage(err)
	assert.True(t, ok)
	assert.Contains(t, msg, "not-an-ip")
}
