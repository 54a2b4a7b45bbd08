package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sensiblebit/webidkit"
	"github.com/sensiblebit/webidkit/internal"
	"github.com/spf13/cobra"
)

var (
	keyparamsFormat string
	keyparamsWebID  string
	keyparamsEngine *engineFlags
)

var keyparamsCmd = &cobra.Command{
	Use:   "keyparams <key>",
	Short: "Print the RSA modulus and exponent to publish in a WebID profile",
	Long: `Extract the RSA modulus and public exponent of a private key with openssl rsa.
These are the values a WebID profile publishes so verifiers can match the
client certificate. With --webid, turtle output is a cert ontology snippet
ready to paste into the profile document.`,
	Example: `  webidkit keyparams ted.key
  webidkit keyparams ted.key --format json
  webidkit keyparams ted.key --format turtle --webid https://example.org/ted#me`,
	Args: cobra.ExactArgs(1),
	RunE: runKeyparams,
}

func init() {
	keyparamsCmd.Flags().StringVar(&keyparamsFormat, "format", "auto", "Output format: auto, text, json, turtle (auto: text on a terminal, json otherwise)")
	keyparamsCmd.Flags().StringVar(&keyparamsWebID, "webid", "", "WebID the key belongs to")
	registerCompletion(keyparamsCmd, completionInput{"format", fixedCompletion("auto", "text", "json", "turtle")})
	keyparamsEngine = addEngineFlags(keyparamsCmd)
}

// resolveFormat turns "auto" into text for terminals and JSON for pipes.
func resolveFormat(format string, fd uintptr) string {
	if format != "auto" {
		return format
	}
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return internal.ParamsFormatText
	}
	return internal.ParamsFormatJSON
}

func runKeyparams(cmd *cobra.Command, args []string) error {
	if keyparamsWebID != "" {
		if _, err := webidkit.NewIdentity("-", keyparamsWebID); err != nil {
			return err
		}
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine, err := webidkit.NewEngine(keyparamsEngine.apply(cfg.Engine))
	if err != nil {
		return err
	}
	params, err := engine.ExtractKeyParameters(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	output, err := internal.FormatKeyParameters(params, keyparamsWebID, resolveFormat(keyparamsFormat, os.Stdout.Fd()))
	if err != nil {
		return err
	}
	fmt.Print(output)
	return nil
}
