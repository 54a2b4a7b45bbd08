package main

import (
	"fmt"

	"github.com/sensiblebit/webidkit"
	"github.com/spf13/cobra"
)

var versionEngine *engineFlags

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the webidkit and openssl versions",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	versionEngine = addEngineFlags(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	fmt.Printf("webidkit %s\n", version)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine, err := webidkit.NewEngine(versionEngine.apply(cfg.Engine))
	if err != nil {
		return err
	}
	v, err := engine.Version(cmd.Context())
	if err != nil {
		return fmt.Errorf("querying %s: %w", engine.Command(), err)
	}
	fmt.Println(v)
	return nil
}
