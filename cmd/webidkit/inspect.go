package main

import (
	"fmt"

	"github.com/sensiblebit/webidkit/internal"
	"github.com/spf13/cobra"
)

var inspectFormat string

var inspectCmd = &cobra.Command{
	Use:   "inspect <cert>",
	Short: "Display WebID certificate information",
	Long:  "Show the subject, WebIDs, validity, fingerprint and RSA key parameters of the certificates in a PEM, DER or PKCS#7 file.",
	Example: `  webidkit inspect ted.crt
  webidkit inspect ted.p7b --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "Output format: text or json")
	registerCompletion(inspectCmd, completionInput{"format", fixedCompletion("text", "json")})
}

func runInspect(cmd *cobra.Command, args []string) error {
	results, err := internal.InspectCertificateFile(args[0])
	if err != nil {
		return err
	}

	output, err := internal.FormatInspectResult(results, inspectFormat)
	if err != nil {
		return err
	}

	fmt.Print(output)
	return nil
}
