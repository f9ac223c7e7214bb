package server

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/syncbox/cmd/util"
	"github.com/sidkik/syncbox/pkg/config"
	"github.com/sidkik/syncbox/pkg/errors"
	syncServer "github.com/sidkik/syncbox/pkg/sync/server"
)

type flags struct {
	configPath    string
	root          string
	listenAddress string
	port          int
	clientPort    int
	statusAddress string
}

// New creates a new `server` command.
func New() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the directory server.",
		Long: "Run the directory server. It stores a directory per user, " +
			"and relays\nchanges between all the clients logged in as " +
			"that user.",
		Run: func(cmd *cobra.Command, _ []string) {
			cfg, err := getConfig(cmd, f)
			if err != nil {
				util.HandleFatalError(err)
			}

			if err := run(cfg); err != nil {
				util.HandleFatalError(err)
			}
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "",
		fmt.Sprintf("Path to the server config. Defaults to %s.", config.ServerConfigPath))
	cmd.Flags().StringVar(&f.root, "root", "",
		"The directory to store user directories in.")
	cmd.Flags().StringVar(&f.listenAddress, "listen-address", "",
		"The IP to accept commands on. Defaults to all interfaces.")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0,
		"The port to accept commands on.")
	cmd.Flags().IntVar(&f.clientPort, "client-port", 0,
		"The port that clients listen on. Defaults to --port.")
	cmd.Flags().StringVar(&f.statusAddress, "status-address", "",
		"The host:port to serve the HTTP status API on. Disabled if empty.")
	return cmd
}

// getConfig parses the config file, and then applies any flags that were
// explicitly set.
func getConfig(cmd *cobra.Command, f flags) (config.Server, error) {
	cfg, err := config.ParseServer(f.configPath)
	if err != nil {
		return config.Server{}, errors.WithContext(err, "parse server config")
	}

	changed := cmd.Flags().Changed
	if changed("root") {
		cfg.Root = f.root
	}
	if changed("listen-address") {
		cfg.ListenAddress = f.listenAddress
	}
	if changed("port") {
		cfg.Port = f.port
	}
	if changed("client-port") {
		cfg.ClientPort = f.clientPort
	}
	if changed("status-address") {
		cfg.StatusAddress = f.statusAddress
	}
	return cfg, cfg.Validate()
}

func run(cfg config.Server) error {
	observer := util.NewLogObserver(log.Fields{"component": "server"})
	backend := syncServer.NewBackend(syncServer.Config{
		Root:          cfg.Root,
		ListenAddress: cfg.ListenAddress,
		Port:          cfg.Port,
		ClientPort:    cfg.ClientPort,
		StatusAddress: cfg.StatusAddress,
		Observer:      observer,
	})
	if err := backend.Start(); err != nil {
		return errors.WithContext(err, "start server")
	}

	log.WithFields(log.Fields{
		"address": backend.Addr().String(),
		"root":    cfg.Root,
	}).Info("Server is running")

	err := util.WaitForShutdown(observer)
	backend.Stop()
	return err
}
