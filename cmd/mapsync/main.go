package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// BuildDate and Version can be set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "unknown"

	AppName = "mapsync"
)

var (
	configDir string
	logLevel  string
	token     string

	a *app
)

var rootCmd = &cobra.Command{
	Use:   AppName,
	Short: "Keep map markers in sync with the shop catalog",
	Long: `mapsync reads the list of bookable shops and keeps the markers of a map
view in step with it, adding and removing only what changed.`,
	Version:       fmt.Sprintf("%s (built %s)", Version, BuildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		a, err = newApp(configDir, logLevel)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if a != nil {
			a.close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "directory containing "+configFileName())
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logLevel from config (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "override map.accessToken from config")

	rootCmd.AddCommand(syncCmd, planCmd, seedCmd, deactivateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if a != nil {
			a.close()
		}
		os.Exit(1)
	}
}
