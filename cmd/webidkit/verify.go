package main

import (
	"errors"
	"fmt"

	"github.com/sensiblebit/webidkit/internal"
	"github.com/spf13/cobra"
)

var (
	verifyModulus  string
	verifyExponent uint64
	verifyAlias    string
	verifyFormat   string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <cert>",
	Short: "Check a client certificate against published WebID key parameters",
	Long: `Perform the WebID-TLS key check: the certificate's RSA public key must equal a
key published for the WebID. Give the published modulus and exponent, or a
profile alias to check against the certificates stored for it.`,
	Example: `  webidkit verify ted.crt --modulus C0FFEE... --exponent 65537
  webidkit --db webid.db verify ted.crt --alias ted`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyModulus, "modulus", "", "Published RSA modulus in hex")
	verifyCmd.Flags().Uint64Var(&verifyExponent, "exponent", 65537, "Published RSA public exponent")
	verifyCmd.Flags().StringVar(&verifyAlias, "alias", "", "Profile whose stored certificates are the published keys")
	verifyCmd.Flags().StringVar(&verifyFormat, "format", "text", "Output format: text or json")
	verifyCmd.MarkFlagsMutuallyExclusive("modulus", "alias")
	verifyCmd.MarkFlagsOneRequired("modulus", "alias")

	registerCompletion(verifyCmd, completionInput{"alias", aliasCompletion})
	registerCompletion(verifyCmd, completionInput{"format", fixedCompletion("text", "json")})
}

func runVerify(cmd *cobra.Command, args []string) error {
	in := internal.VerifyInput{CertPath: args[0]}
	if verifyAlias != "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		in.Alias = verifyAlias
		in.DB = db
	} else {
		in.Modulus = verifyModulus
		in.Exponent = verifyExponent
	}

	result, err := internal.VerifyCertificate(in)
	if err != nil {
		return err
	}

	output, err := internal.FormatVerifyResult(result, verifyFormat)
	if err != nil {
		return err
	}
	fmt.Print(output)

	if !result.OK() {
		return errors.New("verification failed")
	}
	return nil
}
