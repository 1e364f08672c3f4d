package endpoints

import (
	"github.com/Dweliw01/DocuFlow-sub000/internal/api"
	"github.com/Dweliw01/DocuFlow-sub000/internal/store"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	StoreManager *store.DockerManager
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{StoreManager: cfg.StoreManager},

		// Document endpoints
		&UploadDocumentEndpoint{},
		&ListDocumentsEndpoint{},
		&GetDocumentEndpoint{},
		&ApproveEndpoint{},

		// Correction ledger endpoints
		&SubmitCorrectionEndpoint{},
		&ListCorrectionsEndpoint{},

		// Batch endpoints
		&SubmitBatchEndpoint{},
		&BatchProgressEndpoint{},
		&CancelBatchEndpoint{},

		// Policy endpoints
		&GetPolicyEndpoint{},
		&UpdatePolicyEndpoint{},

		// Mapping and destination endpoints
		&GetMappingEndpoint{},
		&UpdateMappingEndpoint{},
		&SuggestMappingEndpoint{},
		&DestinationSchemaEndpoint{},
	}
}

// DocumentCommands groups document operations under one CLI subcommand.
func DocumentCommands() []api.Endpoint {
	return []api.Endpoint{
		&UploadDocumentEndpoint{},
		&ListDocumentsEndpoint{},
		&GetDocumentEndpoint{},
		&ApproveEndpoint{},
		&SubmitCorrectionEndpoint{},
		&ListCorrectionsEndpoint{},
	}
}

// BatchCommands groups batch operations under one CLI subcommand.
func BatchCommands() []api.Endpoint {
	return []api.Endpoint{
		&SubmitBatchEndpoint{},
		&BatchProgressEndpoint{},
		&CancelBatchEndpoint{},
	}
}

// PolicyCommands groups policy operations under one CLI subcommand.
func PolicyCommands() []api.Endpoint {
	return []api.Endpoint{
		&GetPolicyEndpoint{},
		&UpdatePolicyEndpoint{},
	}
}

// MappingCommands groups mapping operations under one CLI subcommand.
func MappingCommands() []api.Endpoint {
	return []api.Endpoint{
		&GetMappingEndpoint{},
		&UpdateMappingEndpoint{},
		&SuggestMappingEndpoint{},
	}
}
