package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "ftmsg",
	Short: "App-side client for the ftmsg broker",
	Long: `ftmsg connects to a message broker over a single WebSocket and
multiplexes the clients the broker routes to this app.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (.yaml or .toml)")
	flags.String("url", "", "broker endpoint, overrides the config file")
	flags.String("page-url", "", "page URL to read the ftMsgUrl parameter from")
	flags.String("transport", "", "websocket backend: nhooyr, coder or gorilla")
	flags.String("log-level", "", "log level")
	flags.String("log-format", "", "log format: console or json")
	flags.String("metrics", "", "prometheus metrics listen address, e.g. :9100")

	flags.VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})
	viper.SetEnvPrefix("FTMSG")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
