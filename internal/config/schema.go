package config

// Config holds docuflow configuration.
// Stored at: ~/.docuflow/config.yaml
type Config struct {
	Engines   map[string]EngineCfg `mapstructure:"engines" yaml:"engines"`
	AI        AICfg                `mapstructure:"ai" yaml:"ai"`
	Connector ConnectorCfg         `mapstructure:"connector" yaml:"connector"`
	Pipeline  PipelineCfg          `mapstructure:"pipeline" yaml:"pipeline"`
	Store     StoreCfg             `mapstructure:"store" yaml:"store"`
	Server    ServerCfg            `mapstructure:"server" yaml:"server"`
}

// EngineCfg configures one OCR engine adapter, keyed by variant name
// (local, premium, handwriting).
type EngineCfg struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`     // Base URL of the backend
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`       // API key (supports ${ENV_VAR} syntax)
	Model     string `mapstructure:"model" yaml:"model"`           // Model name, where the backend takes one
	Language  string `mapstructure:"language" yaml:"language"`     // OCR language hint (local engine)
	RateLimit int    `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
}

// AICfg configures the language model used for text correction and
// field extraction.
type AICfg struct {
	APIKey          string `mapstructure:"api_key" yaml:"api_key"` // API key (supports ${ENV_VAR} syntax)
	BaseURL         string `mapstructure:"base_url" yaml:"base_url"`
	CorrectionModel string `mapstructure:"correction_model" yaml:"correction_model"`
	ExtractionModel string `mapstructure:"extraction_model" yaml:"extraction_model"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"` // Disables the correction layer when false
}

// ConnectorCfg configures the destination connector.
type ConnectorCfg struct {
	Type     string `mapstructure:"type" yaml:"type"` // "http" or "mock"
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"` // API key (supports ${ENV_VAR} syntax)
	TargetID string `mapstructure:"target_id" yaml:"target_id"`
}

// PipelineCfg tunes batch processing.
type PipelineCfg struct {
	Workers       int     `mapstructure:"workers" yaml:"workers"`       // Worker goroutines (0 = NumCPU)
	QueueSize     int     `mapstructure:"queue_size" yaml:"queue_size"` // Pending document capacity
	ValidityFloor float64 `mapstructure:"validity_floor" yaml:"validity_floor"`
}

// StoreCfg holds DefraDB container configuration.
type StoreCfg struct {
	// ContainerName is the Docker container name (default: docuflow-defra)
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Image is the Docker image to use (default: sourcenetwork/defradb:latest)
	Image string `mapstructure:"image" yaml:"image"`
	// Port is the host port to bind (default: 9181)
	Port string `mapstructure:"port" yaml:"port"`
}

// ServerCfg holds the HTTP API listener configuration.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Engines: map[string]EngineCfg{
			"local": {
				Endpoint:  "http://localhost:8884",
				Language:  "eng",
				RateLimit: 600,
				Enabled:   true,
			},
			"premium": {
				Endpoint:  "https://api.mistral.ai",
				APIKey:    "${MISTRAL_API_KEY}",
				Model:     "mistral-ocr-latest",
				RateLimit: 300,
				Enabled:   true,
			},
			"handwriting": {
				APIKey:    "${OPENAI_API_KEY}",
				Model:     "gpt-4o",
				RateLimit: 60,
				Enabled:   false,
			},
		},
		AI: AICfg{
			APIKey:          "${OPENAI_API_KEY}",
			CorrectionModel: "gpt-4o-mini",
			ExtractionModel: "gpt-4o-mini",
			TimeoutSeconds:  90,
			Enabled:         true,
		},
		Connector: ConnectorCfg{
			Type:     "http",
			APIKey:   "${CONNECTOR_API_KEY}",
			TargetID: "default",
		},
		Pipeline: PipelineCfg{
			Workers:   0, // NumCPU
			QueueSize: 1000,
		},
		Store: StoreCfg{
			ContainerName: "docuflow-defra",
			Image:         "sourcenetwork/defradb:latest",
			Port:          "9181",
		},
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: 8080,
		},
	}
}

// GetEngine returns an engine config by variant name.
func (c *Config) GetEngine(name string) (EngineCfg, bool) {
	cfg, ok := c.Engines[name]
	return cfg, ok
}

// EnabledEngines returns all enabled engine configs.
func (c *Config) EnabledEngines() map[string]EngineCfg {
	result := make(map[string]EngineCfg)
	for name, cfg := range c.Engines {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
