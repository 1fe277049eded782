// Command endpoint runs the Cygnet detection pipeline: it captures
// local traffic, scores flows through the DCA, and ships alerts that
// cross the lymph node's anomaly threshold to the company's server.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
	iface    string
)

var rootCmd = &cobra.Command{
	Use:   "endpoint <company-key>",
	Short: "Cygnet network anomaly detection endpoint",
	Long: `endpoint captures local network traffic, extracts autoencoder
reconstruction-error signals per flow, scores antigens through a
dendritic-cell population, and ships lymph-node alerts to the server
named in <company-key> (<uuid>:<hostname>:<port>).`,
	Args: cobra.ExactArgs(1),
	RunE: runEndpoint,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "error", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&iface, "interface", "", "capture interface (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
