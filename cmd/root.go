package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	configCmd "github.com/marupanda/sync/cmd/config"
	"github.com/marupanda/sync/cmd/mirror"
	"github.com/marupanda/sync/cmd/util"
	"github.com/marupanda/sync/cmd/version"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "DIRMIRROR_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	if os.Getenv(verboseLogKey) == "true" {
		log.SetLevel(log.DebugLevel)
	}

	if err := newRootCommand().Execute(); err != nil {
		util.HandleFatalError(err)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := mirror.New()
	rootCmd.SilenceUsage = true

	// The call to rootCmd.Execute prints the error, so we silence errors
	// here to avoid double printing.
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(
		configCmd.New(),
		version.New(),
	)
	return rootCmd
}
