package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/sensiblebit/webidkit/internal"
	"github.com/spf13/cobra"
)

var (
	provisionOutDir      string
	provisionConcurrency int
	provisionPurpose     string
	provisionAll         bool
	provisionEngine      *engineFlags
)

var provisionCmd = &cobra.Command{
	Use:   "provision [alias...]",
	Short: "Issue and record certificates for stored profiles",
	Long: `Issue a certificate for each named profile, check that openssl's reported key
parameters match the certificate, and append it to the profile's certificate
list. Profiles declared in the config file are added to the database first.`,
	Example: `  webidkit --db webid.db provision ted alice --out ./certs
  webidkit --db webid.db --config webid.yaml provision --all --concurrency 8`,
	ValidArgsFunction: aliasCompletion,
	RunE:              runProvision,
}

func init() {
	provisionCmd.Flags().StringVarP(&provisionOutDir, "out", "o", "", "Output directory for keys and certificates (default: config output_dir)")
	provisionCmd.Flags().IntVar(&provisionConcurrency, "concurrency", 0, "Maximum issuances in flight (default: config concurrency)")
	provisionCmd.Flags().StringVar(&provisionPurpose, "purpose", "", "Purpose recorded with each certificate (default: config purpose)")
	provisionCmd.Flags().BoolVar(&provisionAll, "all", false, "Provision every profile in the database")
	registerCompletion(provisionCmd, completionInput{"out", directoryCompletion})
	provisionEngine = addEngineFlags(provisionCmd)
}

func runProvision(cmd *cobra.Command, args []string) error {
	if provisionAll == (len(args) > 0) {
		return errors.New("name profiles to provision or use --all")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	issuer, err := provisionEngine.issuer()
	if err != nil {
		return err
	}
	v, err := issuer.Engine().Version(cmd.Context())
	if err != nil {
		return fmt.Errorf("probing %s: %w", issuer.Engine().Command(), err)
	}
	slog.Info("using engine", "command", issuer.Engine().Command(), "version", v)

	aliases := args
	if provisionAll {
		profiles, err := db.ListProfiles()
		if err != nil {
			return err
		}
		for _, p := range profiles {
			aliases = append(aliases, p.Alias)
		}
	}
	outDir := cfg.OutputDir
	if provisionOutDir != "" {
		outDir = provisionOutDir
	}
	concurrency := cfg.Concurrency
	if provisionConcurrency > 0 {
		concurrency = provisionConcurrency
	}
	purposes := make(map[string]string, len(cfg.Profiles))
	for _, p := range cfg.Profiles {
		purposes[p.Alias] = p.Purpose
	}

	inputs := make([]internal.ProvisionInput, 0, len(aliases))
	for _, alias := range aliases {
		purpose := provisionPurpose
		if purpose == "" {
			purpose = purposes[alias]
		}
		if purpose == "" {
			purpose = cfg.Purpose
		}
		inputs = append(inputs, internal.ProvisionInput{Issuer: issuer, Alias: alias, OutputDir: outDir, Purpose: purpose})
	}

	var failed int
	for _, o := range internal.ProvisionAll(cmd.Context(), db, inputs, concurrency) {
		if o.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", o.Alias, o.Err)
			continue
		}
		c := o.Result.Certificate
		fmt.Printf("%s\t[%d]\t%s\t%s\n", o.Alias, c.Position, c.CertificatePath, c.KeyPath)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d profiles failed to provision", failed, len(inputs))
	}
	return nil
}
