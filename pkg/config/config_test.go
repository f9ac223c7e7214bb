package config

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/syncbox/pkg/errors"
)

func mockHome() {
	fs = afero.NewMemMapFs()
	homedirExpand = func(path string) (string, error) {
		if strings.HasPrefix(path, "~") {
			return "/home/alice" + strings.TrimPrefix(path, "~"), nil
		}
		return path, nil
	}
}

func TestParseClient(t *testing.T) {
	mockHome()
	const path = "/home/alice/.syncbox/client.yaml"

	tests := []struct {
		name      string
		input     string
		expConfig Client
		expError  error
	}{
		{
			name: "Full config",
			input: `version: v1alpha1
login: alice
directory: ~/Sync
server: 10.0.0.1:4000
port: 4001
addressGroup: test
startAddress: 127.0.0.10
`,
			expConfig: Client{
				Version:      SupportedVersion,
				Login:        "alice",
				Directory:    "/home/alice/Sync",
				Server:       "10.0.0.1:4000",
				Port:         4001,
				AddressGroup: "test",
				StartAddress: "127.0.0.10",
			},
		},
		{
			name:  "Defaults and relative directory",
			input: "login: alice\ndirectory: files\n",
			expConfig: Client{
				Version:   SupportedVersion,
				Login:     "alice",
				Directory: "/home/alice/.syncbox/files",
				Server:    "127.0.0.1:4000",
				Port:      DefaultPort,
			},
		},
		{
			name:  "Incompatible version",
			input: "version: v2\nextra: field\n",
			expError: errors.WithContext(incompatibleVersionError{
				path:   path,
				exp:    SupportedVersion,
				actual: "v2",
			}, "parse"),
		},
	}

	for _, test := range tests {
		require.NoError(t, afero.WriteFile(fs, path, []byte(test.input), 0644))
		config, err := ParseClient("")
		assert.Equal(t, test.expError, err, test.name)
		assert.Equal(t, test.expConfig, config, test.name)
	}
}

func TestParseExtraFields(t *testing.T) {
	mockHome()
	const path = "/etc/syncbox/client.yaml"
	require.NoError(t, afero.WriteFile(fs, path, []byte("login: alice\nextra: field\n"), 0644))

	_, err := ParseClient(path)
	require.Error(t, err)
	msg, ok := errors.GetFriendlyMessage(err)
	assert.True(t, ok)
	assert.Contains(t, msg, "Configuration file could not be parsed")
	assert.Contains(t, msg, "extra")
}

func TestParseMissingFile(t *testing.T) {
	mockHome()

	client, err := ParseClient("")
	assert.NoError(t, err)
	assert.Equal(t, DefaultClient(), client)

	server, err := ParseServer("")
	assert.NoError(t, err)
	exp := DefaultServer()
	exp.Root = "/home/alice/.syncbox/server"
	assert.Equal(t, exp, server)
}

func TestParseWrittenClient(t *testing.T) {
	mockHome()

	client := Client{
		Login:     "alice",
		Directory: "/data/alice",
		Server:    "127.0.0.1:4000",
		Port:      4000,
	}
	assert.NoError(t, WriteClient("", client))

	parsed, err := ParseClient("")
	assert.NoError(t, err)

	client.Version = SupportedVersion
	assert.Equal(t, client, parsed)
}

func TestParseServer(t *testing.T) {
	mockHome()
	const path = "/home/alice/.syncbox/server.yaml"
	require.NoError(t, afero.WriteFile(fs, path, []byte(`version: v1alpha1
root: /srv/syncbox
listenAddress: 127.0.0.1
port: 5000
clientPort: 5001
statusAddress: 127.0.0.1:9090
`), 0644))

	server, err := ParseServer("")
	assert.NoError(t, err)
	assert.Equal(t, Server{
		Version:       SupportedVersion,
		Root:          "/srv/syncbox",
		ListenAddress: "127.0.0.1",
		Port:          5000,
		ClientPort:    5001,
		StatusAddress: "127.0.0.1:9090",
	}, server)
}

func TestValidate(t *testing.T) {
	valid := Client{Login: "alice", Directory: "/d", Server: "s:1", Port: 1}
	assert.NoError(t, valid.Validate())

	noLogin := valid
	noLogin.Login = ""
	assert.Equal(t, errors.MissingFieldError{Field: "login"}, noLogin.Validate())

	noDir := valid
	noDir.Directory = ""
	assert.Equal(t, errors.MissingFieldError{Field: "directory"}, noDir.Validate())

	assert.NoError(t, Server{Root: "/srv", Port: 1}.Validate())
	assert.Equal(t, errors.MissingFieldError{Field: "root"}, Server{Port: 1}.Validate())
	assert.Equal(t, errors.MissingFieldError{Field: "port"}, Server{Root: "/srv"}.Validate())
}
