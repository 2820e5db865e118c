// Package cmd holds the screener CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ApexScreener/internal/config"
	"ApexScreener/internal/logger"
)

var (
	cfgFile string
	envFile string
	verbose bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "screener",
	Short: "Apex bull appear / bull raging stock screener",
	Long: `Apex stock screener

Commands:
    scan      screen tickers live, or show one ticker in detail
    refresh   recompute the signal cache
    run       daemon: scheduled refresh and Telegram bot`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		log.Error().Err(err).Msg("command failed")
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default configs/config.yaml or $CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(runCmd)
}

// initConfig loads .env, the YAML config and sets up logging.
func initConfig() error {
	envErr := godotenv.Load(envFile)

	path := cfgFile
	if path == "" {
		path = "configs/config.yaml"
		if v := os.Getenv("CONFIG_PATH"); v != "" {
			path = v
		}
	}
	c, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if verbose {
		c.Logging.Level = "debug"
	}
	if err := logger.Init(logger.Config{
		Level:         c.Logging.Level,
		Format:        c.Logging.Format,
		FileEnabled:   c.Logging.FileEnabled,
		FilePath:      c.Logging.FilePath,
		RotationSize:  c.Logging.RotationMB,
		RetentionDays: c.Logging.RetentionDays,
		ServiceName:   "apex-screener",
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if envErr != nil {
		log.Debug().Str("file", envFile).Msg(".env not loaded, using environment variables")
	}
	log.Debug().Str("config", path).Msg("config loaded")
	cfg = c
	return nil
}
