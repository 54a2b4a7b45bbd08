package main

import (
	"fmt"

	"github.com/sensiblebit/webidkit/internal"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	logFormat  string
	dbPath     string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "webidkit",
	Short: "WebID client certificate tool",
	Long:  "Issue self-signed WebID-TLS client certificates with openssl, publish their key parameters, and keep a catalog of profiles in SQLite.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return internal.SetupLogger(logLevel, logFormat)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "SQLite database path (default: in-memory)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")

	registerCompletion(rootCmd, completionInput{"log-level", fixedCompletion("debug", "info", "warn", "error")})
	registerCompletion(rootCmd, completionInput{"log-format", fixedCompletion("text", "json")})
	registerCompletion(rootCmd, completionInput{"db", fileCompletion})
	registerCompletion(rootCmd, completionInput{"config", fileCompletion})

	rootCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(keyparamsCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig returns the configuration file named by --config, or the
// defaults when there is none.
func loadConfig() (internal.Config, error) {
	if configPath == "" {
		return internal.DefaultConfig(), nil
	}
	return internal.LoadConfig(configPath)
}

// openDB opens the profile store named by --db and seeds it with the
// profiles declared in cfg.
func openDB(cfg internal.Config) (*internal.DB, error) {
	db, err := internal.NewDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := internal.SeedProfiles(db, cfg); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
