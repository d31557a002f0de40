package domain

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Verification policy
	Verification VerificationConfig `json:"verification"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// VerificationConfig holds the tunable knobs of the scoring and decision
// pipeline. The blend weights and thresholds are empirically chosen
// defaults, exposed here rather than hard-coded.
type VerificationConfig struct {
	// Decision thresholds on the 0-100 overall score.
	AutoApproveThreshold float64 `json:"autoApproveThreshold"`
	ReviewThreshold      float64 `json:"reviewThreshold"`
	AutoRejectThreshold  float64 `json:"autoRejectThreshold"`

	// MinimumAge for the built-in age check.
	MinimumAge int `json:"minimumAge"`

	// RequiredFields the applicant must declare.
	RequiredFields []string `json:"requiredFields"`

	// RequiredDocuments maps account type to required document categories.
	RequiredDocuments map[string][]DocumentType `json:"requiredDocuments"`

	// FieldWeights for identity-match aggregation; fields not listed
	// weigh 1.0.
	FieldWeights map[string]float64 `json:"fieldWeights"`

	// ComponentWeights for the overall score. Categories absent from the
	// map contribute 0.
	ComponentWeights map[string]float64 `json:"componentWeights"`

	// PhoneCountryCodes are dialing prefixes stripped during phone
	// normalization, longest first.
	PhoneCountryCodes []string `json:"phoneCountryCodes"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultVerificationConfig returns the default pipeline policy.
func DefaultVerificationConfig() VerificationConfig {
	return VerificationConfig{
		AutoApproveThreshold: 85.0,
		ReviewThreshold:      70.0,
		AutoRejectThreshold:  50.0,
		MinimumAge:           18,
		RequiredFields:       []string{"full_name", "id_number", "date_of_birth"},
		RequiredDocuments: map[string][]DocumentType{
			"savings":  {DocNationalID},
			"current":  {DocNationalID, DocApplicationForm},
			"business": {DocNationalID, DocApplicationForm, DocUtilityBill},
		},
		FieldWeights: map[string]float64{
			"id_number":     2.0,
			"full_name":     1.5,
			"date_of_birth": 1.5,
		},
		ComponentWeights: map[string]float64{
			"identity":   0.40,
			"document":   0.25,
			"compliance": 0.25,
			"quality":    0.10,
		},
		PhoneCountryCodes: []string{"254", "44", "1"},
	}
}

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300, // 5 minutes
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Verification: DefaultVerificationConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
