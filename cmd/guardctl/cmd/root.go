// Package cmd implements the guardctl commands.
package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version string

	// Global flags
	flagAPIURL  string
	flagAPIKey  string
	flagOutput  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "guardctl",
	Short: "GuardGate administration CLI",
	Long: `guardctl manages a running GuardGate instance over its admin API.

It inspects gateway statistics and threat analysis, manages the IP
blacklist and whitelist, and exercises rate limits.

Set GUARDGATE_API_URL and GUARDGATE_API_KEY, or pass --api-url / --api-key.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the CLI version from build flags.
func SetVersion(v string) {
	version = v
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "Gateway API URL (env: GUARDGATE_API_URL)")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "Admin API key (env: GUARDGATE_API_KEY)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(threatsCmd)
	rootCmd.AddCommand(blacklistCmd)
	rootCmd.AddCommand(whitelistCmd)
	rootCmd.AddCommand(testCmd)
}

func initConfig() {
	if flagAPIURL == "" {
		flagAPIURL = os.Getenv("GUARDGATE_API_URL")
	}
	if flagAPIKey == "" {
		flagAPIKey = os.Getenv("GUARDGATE_API_KEY")
	}
}

func mustClient() *Client {
	if flagAPIURL == "" {
		fmt.Fprintln(os.Stderr, "Error: API URL not configured. Use --api-url or GUARDGATE_API_URL")
		os.Exit(1)
	}
	// Read-only commands work without a key; mutations fail with 401.
	return NewClient(flagAPIURL, flagAPIKey, flagVerbose)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show CLI version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("guardctl version %s\n", version)
		fmt.Printf("  Go:       %s\n", runtime.Version())
		fmt.Printf("  OS/Arch:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}
