package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetServer() (*ServerData, error)
	GetClassifier() (*ClassifierData, error)
	GetStorage() (*StorageData, error)
	GetGenerator() (*GeneratorData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Server     ServerData     `json:"server"`
	Classifier ClassifierData `json:"classifier"`
	Storage    StorageData    `json:"storage,omitempty"`
	Generator  GeneratorData  `json:"generator,omitempty"`
	Parser     ParserData     `json:"parser,omitempty"`
	Scoring    *ScoringData   `json:"scoring,omitempty"`
}

// ServerData configures the REST server
type ServerData struct {
	Cert        string `json:"cert,omitempty"`
	Key         string `json:"key,omitempty"`
	Port        int    `json:"port,omitempty"`
	ListenAddr  string `json:"listen_addr,omitempty"`
	EnableCORS  bool   `json:"enable_cors,omitempty"`
	MaxUploadMB int    `json:"max_upload_mb,omitempty"`
	// SignalTail is how many trailing samples per channel go into a report
	SignalTail int `json:"signal_tail,omitempty"`
	// AdminToken guards the debug endpoints; one is generated when empty
	AdminToken string `json:"admin_token,omitempty"`
}

// ClassifierData selects and configures the scoring backend.
// Type is one of static, http or grpc.
type ClassifierData struct {
	Type      string    `json:"type"`
	Endpoint  string    `json:"endpoint,omitempty"`
	ModelName string    `json:"model_name,omitempty"`
	Timeout   string    `json:"timeout,omitempty"`
	Cert      string    `json:"cert,omitempty"`
	Static    []float64 `json:"static,omitempty"`
}

// StorageData holds the blob directories and the prediction journal
type StorageData struct {
	UploadDir    string       `json:"upload_dir,omitempty"`
	GeneratedDir string       `json:"generated_dir,omitempty"`
	StagingDir   string       `json:"staging_dir,omitempty"`
	Journal      *JournalData `json:"journal,omitempty"`
}

// JournalData configures where predictions are recorded.
// Type is one of sqlite or timescaledb.
type JournalData struct {
	Type             string `json:"type"`
	Path             string `json:"path,omitempty"`
	ConnectionString string `json:"connection_string,omitempty"`
}

// GeneratorData configures the periodic synthetic signal generator
type GeneratorData struct {
	Enabled      bool    `json:"enabled"`
	Interval     string  `json:"interval,omitempty"`
	KeepLatest   int     `json:"keep_latest,omitempty"`
	EssaisNumber int     `json:"essais_number,omitempty"`
	Seed         uint64  `json:"seed,omitempty"`
	NoiseLevel   float64 `json:"noise_level,omitempty"`
}

// ParserData configures how recordings are read
type ParserData struct {
	RecordPrefix string `json:"record_prefix,omitempty"`
	// NameSegment is second-to-last (default) or last
	NameSegment string `json:"name_segment,omitempty"`
}

// ScoringData configures the optional gRPC scorer sidecar
type ScoringData struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty"`
}
