package main

import (
	"fmt"
	"os"

	"github.com/sensiblebit/webidkit/internal"
	"github.com/spf13/cobra"
)

var (
	exportKeyPath      string
	exportCertPath     string
	exportFormat       string
	exportOutPath      string
	exportPassword     string
	exportPasswordFile string
	exportAlias        string
	exportForce        bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Package a WebID key and certificate for a browser or key store",
	Long: `Write the key and certificate as PKCS#12 (browsers, OS key stores), legacy
PKCS#12 for older importers, JKS for Java clients, or a certificate-only PKCS#7.
Existing files are not overwritten unless --force is given.`,
	Example: `  webidkit export --key ted.key --cert ted.crt --format p12 --out ted.p12 --password-file pw.txt
  webidkit export --cert ted.crt --format p7b --out ted.p7b`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportKeyPath, "key", "", "Private key file")
	exportCmd.Flags().StringVar(&exportCertPath, "cert", "", "Certificate file")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", internal.FormatP12, "Bundle format: p12, p12-legacy, jks, p7b")
	exportCmd.Flags().StringVarP(&exportOutPath, "out", "o", "", "Output file")
	exportCmd.Flags().StringVarP(&exportPassword, "password", "p", "", "Bundle password")
	exportCmd.Flags().StringVar(&exportPasswordFile, "password-file", "", "File whose first line is the bundle password")
	exportCmd.Flags().StringVar(&exportAlias, "alias", internal.DefaultJKSAlias, "JKS entry alias")
	exportCmd.Flags().BoolVar(&exportForce, "force", false, "Overwrite an existing output file")
	_ = exportCmd.MarkFlagRequired("cert")
	_ = exportCmd.MarkFlagRequired("out")
	exportCmd.MarkFlagsMutuallyExclusive("password", "password-file")

	registerCompletion(exportCmd, completionInput{"key", fileCompletion})
	registerCompletion(exportCmd, completionInput{"cert", fileCompletion})
	registerCompletion(exportCmd, completionInput{"password-file", fileCompletion})
	registerCompletion(exportCmd, completionInput{"format", fixedCompletion(internal.ExportFormats...)})
}

func runExport(cmd *cobra.Command, args []string) error {
	password, err := internal.ResolvePassword(exportPassword, exportPasswordFile)
	if err != nil {
		return err
	}
	if err := internal.ExportBundle(internal.ExportInput{
		KeyPath:  exportKeyPath,
		CertPath: exportCertPath,
		Format:   exportFormat,
		OutPath:  exportOutPath,
		Password: password,
		Alias:    exportAlias,
		Force:    exportForce,
	}); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", exportOutPath)
	return nil
}
