package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marupanda/sync/pkg/version"
)

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of dirmirror.",
		Long:  "Print the version of dirmirror, as a git commit hash.",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(version.Version)
		},
	}
}
