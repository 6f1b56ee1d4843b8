package command

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"nuhub/cmd/cli/authentication"
	"nuhub/cmd/cli/command/client"
	"nuhub/internal/router"
	"nuhub/internal/session"
)

var (
	listenToken string
	listenRole  string
)

// listenCmd joins as a player and prints frames until interrupted
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Join the hub as a TCP player and print every frame",
	Long: `Connect to the hub TCP transport, print the assigned identity, then print
every frame as "<channel> <args...>". Frames replaying the current module state
arrive first.

When --token is empty the token saved by "nuhubCLI token --save" is used, if any.
Press Ctrl+C to disconnect.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		token := listenToken
		if token == "" {
			creds, err := authentication.LoadCredentials(time.Now())
			switch {
			case err == nil:
				token = creds.Token
			case !errors.Is(err, authentication.ErrNoCredentials):
				fmt.Fprintf(cmd.ErrOrStderr(), "ignoring saved token: %v\n", err)
			}
		}

		c := client.NewPlayerClient(tcpAddr)
		welcome, err := c.Connect(token, listenRole)
		if err != nil {
			return err
		}
		defer c.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "connected to %s as %s (identity %s)\n", tcpAddr, welcome.Role, welcome.Identity)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigChan
			c.Close()
		}()
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for range ticker.C {
				if c.Ping() != nil {
					return
				}
			}
		}()

		return printFrames(out, c)
	},
}

type envelopeReader interface {
	Read() (session.Envelope, error)
}

func printFrames(out io.Writer, r envelopeReader) error {
	for {
		env, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		}
		switch env.Type {
		case session.TypeFrame:
			fmt.Fprintln(out, FormatFrame(env.Channel, env.Args))
		case session.TypeError:
			fmt.Fprintln(out, "error:", env.Message)
		}
	}
}

// FormatFrame renders a frame on one line.
func FormatFrame(channel string, args []router.Value) string {
	s := channel
	for _, a := range args {
		s += " " + a.String()
	}
	return s
}

func init() {
	listenCmd.Flags().StringVar(&listenToken, "token", "", "player JWT (defaults to the saved token)")
	listenCmd.Flags().StringVar(&listenRole, "role", router.PlayerRole, "participant role")
	rootCmd.AddCommand(listenCmd)
}
