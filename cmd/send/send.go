package send

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sidkik/syncbox/cmd/util"
	"github.com/sidkik/syncbox/pkg/config"
	"github.com/sidkik/syncbox/pkg/dispatch"
	"github.com/sidkik/syncbox/pkg/errors"
	"github.com/sidkik/syncbox/pkg/sync"
)

// New creates a new `send` command.
func New() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "send <login> <path>",
		Short: "Send a file from the local directory to another user.",
		Long: "Send a file from the local directory to another user. " +
			"The file is written\nto the same path in the recipient's " +
			"directory, and pushed to all of their\nclients. The recipient " +
			"must be logged in.",
		Args: cobra.ExactArgs(2),
		Run: func(_ *cobra.Command, args []string) {
			if err := run(configPath, args[0], args[1]); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		fmt.Sprintf("Path to the client config. Defaults to %s.", config.ClientConfigPath))
	return cmd
}

func run(configPath, login, path string) error {
	cfg, err := config.ParseClient(configPath)
	if err != nil {
		return errors.WithContext(err, "parse client config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	relPath, err := sync.CleanPath(path)
	if err != nil {
		return err
	}

	dir := sync.NewDir(afero.NewOsFs(), cfg.Directory)
	if _, err := dir.Stat(relPath); err != nil {
		return errors.WithContext(err, "stat")
	}

	outbox := dispatch.NewOutbox(nil)
	if err := outbox.SendNow(cfg.Server, dir.SendToUserMessage(login, relPath)); err != nil {
		return errors.WithContext(err, "send")
	}

	fmt.Printf("Sent %s to %s.\n", relPath, login)
	return nil
}
