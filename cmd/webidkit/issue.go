package main

import (
	"fmt"
	"os"

	"github.com/sensiblebit/webidkit"
	"github.com/spf13/cobra"
)

var (
	issueName     string
	issueURI      string
	issueKeyPath  string
	issueCertPath string
	issueEngine   *engineFlags
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a self-signed WebID client certificate",
	Long: `Issue a self-signed WebID client certificate with openssl req. The WebID is
placed in the certificate's Subject Alternative Name and the display name in its
Common Name. The private key is written unencrypted.`,
	Example: `  webidkit issue --name "Ted Byrd" --uri https://example.org/ted#me --key ted.key --cert ted.crt
  webidkit issue --name Ted --uri https://example.org/ted#me --key ted.key --cert ted.crt --openssl-dir /opt/openssl/bin --days 365`,
	Args: cobra.NoArgs,
	RunE: runIssue,
}

func init() {
	issueCmd.Flags().StringVar(&issueName, "name", "", "Display name for the certificate's Common Name")
	issueCmd.Flags().StringVar(&issueURI, "uri", "", "WebID URI for the Subject Alternative Name")
	issueCmd.Flags().StringVar(&issueKeyPath, "key", "", "Output path for the private key")
	issueCmd.Flags().StringVar(&issueCertPath, "cert", "", "Output path for the certificate")
	for _, name := range []string{"name", "uri", "key", "cert"} {
		_ = issueCmd.MarkFlagRequired(name)
	}
	registerCompletion(issueCmd, completionInput{"key", fileCompletion})
	registerCompletion(issueCmd, completionInput{"cert", fileCompletion})
	issueEngine = addEngineFlags(issueCmd)
}

func runIssue(cmd *cobra.Command, args []string) error {
	id, err := webidkit.NewIdentity(issueName, issueURI)
	if err != nil {
		return err
	}
	issuer, err := issueEngine.issuer()
	if err != nil {
		return err
	}
	if _, err := issuer.Issue(cmd.Context(), id, webidkit.CertificateMaterial{
		PrivateKeyPath:  issueKeyPath,
		CertificatePath: issueCertPath,
	}); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Private key: %s\n", issueKeyPath)
	fmt.Fprintf(os.Stderr, "Certificate: %s\n", issueCertPath)
	return nil
}
