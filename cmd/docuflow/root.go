package main

import (
	"github.com/spf13/cobra"

	"github.com/Dweliw01/DocuFlow-sub000/internal/api"
	"github.com/Dweliw01/DocuFlow-sub000/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "docuflow",
	Short: "Document processing pipeline with OCR routing and human review",
	Long: `DocuFlow turns scanned documents into structured, validated records.

The pipeline includes:
  - Multi-engine OCR with confidence-based routing and fallback
  - AI-assisted correction of low-confidence text
  - LLM field extraction with per-field confidence scoring
  - Human review with an append-only correction ledger
  - Field mapping and idempotent upload to downstream systems`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.docuflow/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "docuflow home directory (default: ~/.docuflow)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
