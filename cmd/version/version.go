package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sidkik/syncbox/pkg/version"
)

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of syncbox.",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("syncbox version: %s\n", version.Version)
		},
	}
}
