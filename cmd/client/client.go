package client

import (
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/syncbox/cmd/util"
	"github.com/sidkik/syncbox/pkg/config"
	"github.com/sidkik/syncbox/pkg/errors"
	syncClient "github.com/sidkik/syncbox/pkg/sync/client"
	"github.com/sidkik/syncbox/pkg/vip"
)

type flags struct {
	configPath   string
	login        string
	directory    string
	server       string
	port         int
	addressGroup string
	startAddress string
	localIP      string
	save         bool
}

// New creates a new `client` command.
func New() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Keep a local directory in sync with the server.",
		Long: "Keep a local directory in sync with the user's directory on " +
			"the server.\n\nEach client on a host listens on its own " +
			"loopback address so that the\nserver can tell them apart. " +
			"Addresses are allocated automatically unless\n--local-ip is set.",
		Run: func(cmd *cobra.Command, _ []string) {
			cfg, err := getConfig(cmd, f)
			if err != nil {
				util.HandleFatalError(err)
			}

			if f.save {
				if err := config.WriteClient(f.configPath, cfg); err != nil {
					util.HandleFatalError(errors.WithContext(err, "save client config"))
				}
			}

			if err := run(cfg, f.localIP); err != nil {
				util.HandleFatalError(err)
			}
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "",
		fmt.Sprintf("Path to the client config. Defaults to %s.", config.ClientConfigPath))
	cmd.Flags().StringVarP(&f.login, "login", "l", "", "The user to sync as.")
	cmd.Flags().StringVarP(&f.directory, "directory", "d", "",
		"The local directory to keep in sync.")
	cmd.Flags().StringVarP(&f.server, "server", "s", "",
		"The host:port of the directory server.")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0,
		"The port to listen on for pushes from the server.")
	cmd.Flags().StringVar(&f.addressGroup, "address-group", "",
		fmt.Sprintf("The loopback address allocation group. Defaults to %s.", vip.DefaultGroup))
	cmd.Flags().StringVar(&f.startAddress, "start-address", "",
		fmt.Sprintf("The first address to allocate. Defaults to %s.", vip.DefaultStart))
	cmd.Flags().StringVar(&f.localIP, "local-ip", "",
		"Use this IP rather than allocating one.")
	cmd.Flags().BoolVar(&f.save, "save", false,
		"Write the effective configuration back to the config file.")
	return cmd
}

// getConfig parses the config file, and then applies any flags that were
// explicitly set.
func getConfig(cmd *cobra.Command, f flags) (config.Client, error) {
	cfg, err := config.ParseClient(f.configPath)
	if err != nil {
		return config.Client{}, errors.WithContext(err, "parse client config")
	}

	changed := cmd.Flags().Changed
	if changed("login") {
		cfg.Login = f.login
	}
	if changed("directory") {
		cfg.Directory = f.directory
	}
	if changed("server") {
		cfg.Server = f.server
	}
	if changed("port") {
		cfg.Port = f.port
	}
	if changed("address-group") {
		cfg.AddressGroup = f.addressGroup
	}
	if changed("start-address") {
		cfg.StartAddress = f.startAddress
	}
	return cfg, cfg.Validate()
}

// localAddress returns `override` if it's set, and otherwise allocates the
// next free loopback address for the config's group.
func localAddress(cfg config.Client, override string) (net.IP, error) {
	if override != "" {
		ip := net.ParseIP(override)
		if ip == nil {
			return nil, errors.NewFriendlyError("%q is not a valid IP address.", override)
		}
		return ip, nil
	}

	group := cfg.AddressGroup
	if group == "" {
		group = vip.DefaultGroup
	}
	start := cfg.StartAddress
	if start == "" {
		start = vip.DefaultStart
	}
	return vip.Allocate(group, start)
}

func run(cfg config.Client, localIP string) error {
	ip, err := localAddress(cfg, localIP)
	if err != nil {
		return errors.WithContext(err, "get local address")
	}

	observer := util.NewLogObserver(log.Fields{
		"component": "client",
		"login":     cfg.Login,
	})
	engine := syncClient.New(syncClient.Config{
		Login:         cfg.Login,
		Directory:     cfg.Directory,
		ServerAddress: cfg.Server,
		LocalIP:       ip,
		Port:          cfg.Port,
		Observer:      observer,
	})
	if err := engine.Start(); err != nil {
		return errors.WithContext(err, "start client")
	}

	fields := log.Fields{
		"directory": cfg.Directory,
		"server":    cfg.Server,
		"address":   ip.String(),
	}
	if files, err := engine.Files(); err == nil {
		fields["files"] = len(files)
	} else {
		log.WithError(err).Debug("Failed to list local files")
	}
	log.WithFields(fields).Info("Syncing")

	err = util.WaitForShutdown(observer)
	engine.Stop()
	return err
}
