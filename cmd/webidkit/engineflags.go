package main

import (
	"time"

	"github.com/sensiblebit/webidkit"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// engineFlags are the openssl location and issuance flags shared by every
// command that runs the engine. Set flags override the config file.
type engineFlags struct {
	cliDir  string
	libDir  string
	days    int
	timeout time.Duration
	bits    int
	digest  string
	fs      *pflag.FlagSet
}

func addEngineFlags(cmd *cobra.Command) *engineFlags {
	ef := &engineFlags{fs: pflag.NewFlagSet("engine", pflag.ContinueOnError)}
	ef.fs.StringVar(&ef.cliDir, "openssl-dir", "", "Directory containing the openssl binary (default: PATH)")
	ef.fs.StringVar(&ef.libDir, "openssl-lib-dir", "", "Directory with openssl's shared libraries, exported as LD_LIBRARY_PATH")
	ef.fs.IntVar(&ef.days, "days", webidkit.DefaultValidityDays, "Certificate validity in days")
	ef.fs.DurationVar(&ef.timeout, "timeout", webidkit.DefaultTimeout, "Limit on each openssl invocation")
	ef.fs.IntVar(&ef.bits, "bits", 0, "RSA key size in bits (default 2048)")
	ef.fs.StringVar(&ef.digest, "digest", "", "Signature digest: sha256, sha384, sha512")
	cmd.Flags().AddFlagSet(ef.fs)

	registerCompletion(cmd, completionInput{"openssl-dir", directoryCompletion})
	registerCompletion(cmd, completionInput{"openssl-lib-dir", directoryCompletion})
	registerCompletion(cmd, completionInput{"digest", fixedCompletion("sha256", "sha384", "sha512")})
	return ef
}

// apply overlays the flags the user set onto the engine configuration.
func (ef *engineFlags) apply(cfg webidkit.EngineConfig) webidkit.EngineConfig {
	if ef.fs.Changed("openssl-dir") {
		cfg.CLIDirectory = ef.cliDir
	}
	if ef.fs.Changed("openssl-lib-dir") {
		cfg.LibDirectory = ef.libDir
	}
	if ef.fs.Changed("days") {
		cfg.Days = ef.days
	}
	if ef.fs.Changed("timeout") {
		cfg.Timeout = ef.timeout
	}
	return cfg
}

// applyKey overlays the key size and digest flags onto the key options.
func (ef *engineFlags) applyKey(opts webidkit.ConfigOptions) webidkit.ConfigOptions {
	if ef.fs.Changed("bits") {
		opts.Bits = ef.bits
	}
	if ef.fs.Changed("digest") {
		opts.Digest = ef.digest
	}
	return opts
}

// issuer builds an Issuer from the config file overlaid with the flags.
func (ef *engineFlags) issuer() (*webidkit.Issuer, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return webidkit.NewIssuer(ef.apply(cfg.Engine), webidkit.WithConfigOptions(ef.applyKey(cfg.ConfigOptions())))
}
