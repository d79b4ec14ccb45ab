// Package cli provides the command-line interface for ravan.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/raphaelgruber/ravan/internal/client"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	serverURL string
	verbose   bool

	// apiClient talks to the ravan server.
	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ravan",
	Short: "AI-assisted therapy pipeline client",
	Long: `Ravan talks to a running ravan-server: chat with the virtual psychologist,
generate session plans and clinical reports, compose and analyze dreams,
record mood and emotion signals, and inspect server statistics.

The server address comes from --server, RAVAN_SERVER_URL, or defaults to
http://localhost:8484.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		apiClient = client.New(serverURL)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server base URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(dreamCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(statsCmd)
}
