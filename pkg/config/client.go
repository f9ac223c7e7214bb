package config

import (
	"github.com/sidkik/syncbox/pkg/errors"
)

// ClientConfigPath is the default path to the client config.
const ClientConfigPath = "~/.syncbox/client.yaml"

// Client configures a sync client.
type Client struct {
	Version string `json:"version,omitempty"`

	// Login is the user to sync as.
	Login string `json:"login"`

	// Directory is the local directory to keep in sync.
	Directory string `json:"directory"`

	// Server is the host:port of the directory server.
	Server string `json:"server"`

	// Port is the port the client listens on for pushes. It must match the
	// server's client port.
	Port int `json:"port,omitempty"`

	// AddressGroup and StartAddress configure the loopback address
	// allocator. Clients in the same group on the same host get distinct
	// addresses.
	AddressGroup string `json:"addressGroup,omitempty"`
	StartAddress string `json:"startAddress,omitempty"`
}

func (c Client) getVersion() string {
	return c.Version
}

// DefaultClient returns the client config used when nothing is configured.
func DefaultClient() Client {
	return Client{
		Version: SupportedVersion,
		Server:  "127.0.0.1:4000",
		Port:    DefaultPort,
	}
}

// ParseClient parses the client config at `path`, or at ClientConfigPath if
// `path` is empty. A missing file yields the defaults.
func ParseClient(path string) (Client, error) {
	if path == "" {
		path = ClientConfigPath
	}

	path, err := homedirExpand(path)
	if err != nil {
		return Client{}, errors.WithContext(err, "expand config path")
	}

	config := DefaultClient()
	if err := parseOptional(path, &config); err != nil {
		return Client{}, errors.WithContext(err, "parse")
	}

	config.Directory, err = expandPath(config.Directory, path)
	if err != nil {
		return Client{}, errors.WithContext(err, "expand directory path")
	}
	return config, nil
}

// Validate checks that all required fields are set.
func (c Client) Validate() error {
	switch {
	case c.Login == "":
		return errors.MissingFieldError{Field: "login"}
	case c.Directory == "":
		return errors.MissingFieldError{Field: "directory"}
	case c.Server == "":
		return errors.MissingFieldError{Field: "server"}
	case c.Port == 0:
		return errors.MissingFieldError{Field: "port"}
	}
	return nil
}

// WriteClient writes the given client config to `path`, or to
// ClientConfigPath if `path` is empty.
func WriteClient(path string, cfg Client) error {
	if path == "" {
		path = ClientConfigPath
	}

	path, err := homedirExpand(path)
	if err != nil {
		return errors.WithContext(err, "expand config path")
	}

	cfg.Version = SupportedVersion
	return writeConfig(path, cfg)
}
