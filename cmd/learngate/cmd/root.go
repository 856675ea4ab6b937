package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jmcleod/learngate/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "learngate",
	Short: "learngate is the backend-for-frontend of the learning platform",
	Long: `learngate keeps user sessions in HttpOnly cookies, proxies the platform's
backend services for the browser and gates the admin area.

Settings come from --config (YAML), LEARNGATE_* environment variables and flags.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(configPath, cmd.Flags())
}
