package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "vestibule",
	Short: "vestibule is a multi-tenant reverse-proxy and encrypted WebDAV edge server",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./vestibule.yaml", "config file (default is ./vestibule.yaml)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
