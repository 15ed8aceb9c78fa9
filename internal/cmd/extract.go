package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ankitpatel990/neuvox/internal/config"
	"github.com/ankitpatel990/neuvox/internal/extractor"
)

var extractJSON bool

var extractCmd = &cobra.Command{
	Use:   "extract [text]",
	Short: "Run entity extraction on text (args or stdin) and print the report",
	Long: `Extract runs the recognizer set against the given text and prints the
intelligence report. Reads stdin when no argument is given, so transcripts
can be piped in:

  cat transcript.txt | neuvox extract --json | jq .upiIds`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "output JSON")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "extract")
	defer span.End()

	var text string
	if len(args) > 0 {
		text = strings.Join(args, " ")
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		text = string(data)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	exOpts := []extractor.Option{extractor.WithMaxScanBytes(cfg.MaxScanBytes)}
	if cfg.PatternFile != "" {
		exOpts = append(exOpts, extractor.WithPatternFile(cfg.PatternFile))
	}
	ex, err := extractor.New(exOpts...)
	if err != nil {
		return fmt.Errorf("initializing extractor: %w", err)
	}

	report := ex.Extract(ctx, text)

	if extractJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("Entities: %d (confidence %.2f)\n", report.Total(), report.Confidence())
	printClass("UPI IDs", report.UPIIDs)
	printClass("Bank accounts", report.BankAccounts)
	printClass("IFSC codes", report.IFSCCodes)
	printClass("Phone numbers", report.PhoneNumbers)
	printClass("Phishing links", report.PhishingLinks)
	printClass("Email addresses", report.EmailAddresses)
	return nil
}

func printClass(label string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Printf("  %s:\n", label)
	for _, v := range values {
		fmt.Printf("    - %s\n", v)
	}
}
