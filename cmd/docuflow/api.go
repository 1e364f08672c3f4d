package main

import (
	"github.com/spf13/cobra"

	"github.com/Dweliw01/DocuFlow-sub000/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running DocuFlow server via HTTP.

These commands require a running server (docuflow serve).
Use --server to specify a custom server URL.

Examples:
  docuflow api health                  # Check server health
  docuflow api documents list          # List documents
  docuflow api documents get <id>      # Get a specific document`,
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Document management commands",
}

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "Batch processing commands",
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Routing policy commands",
}

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Destination field mapping commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))

	// Documents as subcommand group
	for _, ep := range endpoints.DocumentCommands() {
		documentsCmd.AddCommand(ep.Command(getServerURL))
	}

	// Batches as subcommand group
	for _, ep := range endpoints.BatchCommands() {
		batchesCmd.AddCommand(ep.Command(getServerURL))
	}

	// Routing policy as subcommand group
	for _, ep := range endpoints.PolicyCommands() {
		policyCmd.AddCommand(ep.Command(getServerURL))
	}

	// Field mapping as subcommand group
	for _, ep := range endpoints.MappingCommands() {
		mappingCmd.AddCommand(ep.Command(getServerURL))
	}

	// Destination schema at top level
	apiCmd.AddCommand((&endpoints.DestinationSchemaEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(documentsCmd)
	apiCmd.AddCommand(batchesCmd)
	apiCmd.AddCommand(policyCmd)
	apiCmd.AddCommand(mappingCmd)
	rootCmd.AddCommand(apiCmd)
}
