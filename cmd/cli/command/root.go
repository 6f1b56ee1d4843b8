package command

// root.go defines the root command for the nuhubCLI application and its
// global flags.

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	oscAddr string // hub OSC control address
	tcpAddr string // hub TCP player address
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nuhubCLI",
	Short: "nuhubCLI - command line client for the module hub",
	Long: `nuhubCLI talks to a running hub server. It can:
- send control lines to a module over OSC
- join as a player over TCP and print every frame it receives
- mint player tokens when the hub runs with JWT_SECRET

Use "nuhubCLI command --help" to see the flags of a command.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&oscAddr, "osc", "127.0.0.1:9000", "hub OSC control address")
	rootCmd.PersistentFlags().StringVar(&tcpAddr, "tcp", "127.0.0.1:8081", "hub TCP player address")
}
