package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"nuhub/cmd/cli/command/client"
)

var sendTyped bool

// sendCmd sends one control line to a module
var sendCmd = &cobra.Command{
	Use:   "send <module> <token>...",
	Short: "Send a control line to a module over OSC",
	Long: `Send a control line to a module. The first token names the parameter or
method, the rest are its arguments:

  nuhubCLI send synth volume 0.8
  nuhubCLI send lights color -1 red      # -1 broadcasts and stores
  nuhubCLI send lights color 3 red       # only player 3 (identity-routed module)`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		msg := client.NewControlMessage(args[0], args[1:], sendTyped)
		if err := client.SendControl(oscAddr, msg); err != nil {
			return fmt.Errorf("failed to send: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent %s %v\n", msg.Address, msg.Arguments)
		return nil
	},
}

func init() {
	sendCmd.Flags().BoolVar(&sendTyped, "typed", false, "send every token as its own OSC argument")
	rootCmd.AddCommand(sendCmd)
}
