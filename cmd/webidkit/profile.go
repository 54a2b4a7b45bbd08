package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sensiblebit/webidkit/internal"
	"github.com/spf13/cobra"
)

var (
	profileName   string
	profileWebID  string
	profileFormat string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage WebID profiles in the database",
	Long:  "Profiles map a short alias to the display name and WebID that certificates are issued for. Provisioning appends certificates to a profile's list.",
}

var profileAddCmd = &cobra.Command{
	Use:     "add <alias>",
	Short:   "Add a profile",
	Example: `  webidkit --db webid.db profile add ted --name "Ted Byrd" --webid https://example.org/ted#me`,
	Args:    cobra.ExactArgs(1),
	RunE:    runProfileAdd,
}

var profileShowCmd = &cobra.Command{
	Use:               "show <alias>",
	Short:             "Show a profile and its certificates",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: aliasCompletion,
	RunE:              runProfileShow,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	Args:  cobra.NoArgs,
	RunE:  runProfileList,
}

func init() {
	profileAddCmd.Flags().StringVar(&profileName, "name", "", "Display name")
	profileAddCmd.Flags().StringVar(&profileWebID, "webid", "", "WebID URI")
	_ = profileAddCmd.MarkFlagRequired("name")
	_ = profileAddCmd.MarkFlagRequired("webid")

	profileCmd.PersistentFlags().StringVar(&profileFormat, "format", "text", "Output format: text or json")
	registerCompletion(profileCmd, completionInput{"format", fixedCompletion("text", "json")})

	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileListCmd)
}

func runProfileAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.InsertProfile(internal.ProfileRecord{Alias: args[0], DisplayName: profileName, WebID: profileWebID}); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Added profile %s\n", args[0])
	return nil
}

type profileView struct {
	internal.ProfileRecord
	Certificates []internal.CertificateRecord `json:"certificates"`
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	p, err := db.GetProfile(args[0])
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: %s", internal.ErrProfileNotFound, args[0])
	}
	certs, err := db.ListCertificates(p.Alias)
	if err != nil {
		return err
	}
	view := profileView{ProfileRecord: *p, Certificates: certs}

	switch profileFormat {
	case "json":
		return printJSON(view)
	case "text":
		fmt.Printf("Alias:   %s\n", p.Alias)
		fmt.Printf("Name:    %s\n", p.DisplayName)
		fmt.Printf("WebID:   %s\n", p.WebID)
		fmt.Printf("Created: %s\n", p.CreatedAt.UTC().Format(time.RFC3339))
		for _, c := range certs {
			fmt.Printf("\n[%d] %s\n", c.Position, c.Purpose)
			fmt.Printf("  Certificate: %s\n", c.CertificatePath)
			fmt.Printf("  Key:         %s\n", c.KeyPath)
			fmt.Printf("  Not After:   %s\n", c.NotAfter.UTC().Format(time.RFC3339))
			fmt.Printf("  Exponent:    %d\n", c.Exponent)
			fmt.Printf("  Modulus:     %s\n", c.Modulus)
			fmt.Printf("  SHA-256:     %s\n", c.Fingerprint)
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (use text or json)", profileFormat)
	}
}

func runProfileList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	summaries, err := db.ListProfileSummaries()
	if err != nil {
		return err
	}

	switch profileFormat {
	case "json":
		return printJSON(summaries)
	case "text":
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ALIAS\tNAME\tWEBID\tCERTIFICATES")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.Alias, s.DisplayName, s.WebID, s.Certificates)
		}
		return w.Flush()
	default:
		return fmt.Errorf("unsupported output format %q (use text or json)", profileFormat)
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
