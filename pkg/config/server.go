package config

import (
	"github.com/sidkik/syncbox/pkg/errors"
)

// ServerConfigPath is the default path to the server config.
const ServerConfigPath = "~/.syncbox/server.yaml"

// Server configures the directory server.
type Server struct {
	Version string `json:"version,omitempty"`

	// Root is the directory containing one subdirectory per user.
	Root string `json:"root"`

	// ListenAddress is the IP to accept commands on. Empty means all
	// interfaces.
	ListenAddress string `json:"listenAddress,omitempty"`
	Port          int    `json:"port,omitempty"`

	// ClientPort is the port clients listen on. Zero means Port.
	ClientPort int `json:"clientPort,omitempty"`

	// StatusAddress is the host:port of the HTTP status API. The API is
	// disabled if it's empty.
	StatusAddress string `json:"statusAddress,omitempty"`
}

func (s Server) getVersion() string {
	return s.Version
}

// DefaultServer returns the server config used when nothing is configured.
func DefaultServer() Server {
	return Server{
		Version: SupportedVersion,
		Root:    "~/.syncbox/server",
		Port:    DefaultPort,
	}
}

// ParseServer parses the server config at `path`, or at ServerConfigPath if
// `path` is empty. A missing file yields the defaults.
func ParseServer(path string) (Server, error) {
	if path == "" {
		path = ServerConfigPath
	}

	path, err := homedirExpand(path)
	if err != nil {
		return Server{}, errors.WithContext(err, "expand config path")
	}

	config := DefaultServer()
	if err := parseOptional(path, &config); err != nil {
		return Server{}, errors.WithContext(err, "parse")
	}

	config.Root, err = expandPath(config.Root, path)
	if err != nil {
		return Server{}, errors.WithContext(err, "expand root path")
	}
	return config, nil
}

// Validate checks that all required fields are set.
func (s Server) Validate() error {
	switch {
	case s.Root == "":
		return errors.MissingFieldError{Field: "root"}
	case s.Port == 0:
		return errors.MissingFieldError{Field: "port"}
	}
	return nil
}
