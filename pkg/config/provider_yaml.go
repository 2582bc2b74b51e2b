package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := ParseYAML(cfgFile)
	if err != nil {
		return nil, err
	}

	y.config = config
	return config, nil
}

// ParseYAML converts a YAML document into ConfigData
func ParseYAML(data []byte) (*ConfigData, error) {
	// Load into temporary struct with YAML tags
	var yamlConfig struct {
		Server     ServerYAML     `yaml:"server"`
		Classifier ClassifierYAML `yaml:"classifier"`
		Storage    StorageYAML    `yaml:"storage,omitempty"`
		Generator  GeneratorYAML  `yaml:"generator,omitempty"`
		Parser     ParserYAML     `yaml:"parser,omitempty"`
		Scoring    *ScoringYAML   `yaml:"scoring,omitempty"`
	}

	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return nil, err
	}

	// Convert to our internal format
	config := &ConfigData{
		Server: ServerData{
			Cert:        yamlConfig.Server.Cert,
			Key:         yamlConfig.Server.Key,
			Port:        yamlConfig.Server.Port,
			ListenAddr:  yamlConfig.Server.ListenAddr,
			EnableCORS:  yamlConfig.Server.EnableCORS,
			MaxUploadMB: yamlConfig.Server.MaxUploadMB,
			SignalTail:  yamlConfig.Server.SignalTail,
			AdminToken:  yamlConfig.Server.AdminToken,
		},
		Classifier: ClassifierData{
			Type:      yamlConfig.Classifier.Type,
			Endpoint:  yamlConfig.Classifier.Endpoint,
			ModelName: yamlConfig.Classifier.ModelName,
			Timeout:   yamlConfig.Classifier.Timeout,
			Cert:      yamlConfig.Classifier.Cert,
			Static:    yamlConfig.Classifier.Static,
		},
		Storage: StorageData{
			UploadDir:    yamlConfig.Storage.UploadDir,
			GeneratedDir: yamlConfig.Storage.GeneratedDir,
			StagingDir:   yamlConfig.Storage.StagingDir,
		},
		Generator: GeneratorData{
			Enabled:      yamlConfig.Generator.Enabled,
			Interval:     yamlConfig.Generator.Interval,
			KeepLatest:   yamlConfig.Generator.KeepLatest,
			EssaisNumber: yamlConfig.Generator.EssaisNumber,
			Seed:         yamlConfig.Generator.Seed,
			NoiseLevel:   yamlConfig.Generator.NoiseLevel,
		},
		Parser: ParserData{
			RecordPrefix: yamlConfig.Parser.RecordPrefix,
			NameSegment:  yamlConfig.Parser.NameSegment,
		},
	}

	if yamlConfig.Storage.Journal != nil {
		config.Storage.Journal = &JournalData{
			Type:             yamlConfig.Storage.Journal.Type,
			Path:             yamlConfig.Storage.Journal.Path,
			ConnectionString: yamlConfig.Storage.Journal.ConnectionString,
		}
	}

	if yamlConfig.Scoring != nil {
		config.Scoring = &ScoringData{
			Cert:       yamlConfig.Scoring.Cert,
			Key:        yamlConfig.Scoring.Key,
			ListenAddr: yamlConfig.Scoring.ListenAddr,
			Port:       yamlConfig.Scoring.Port,
		}
	}

	return config, nil
}

func (y *YAMLProvider) loaded() (*ConfigData, error) {
	if y.config == nil {
		if _, err := y.LoadConfig(); err != nil {
			return nil, err
		}
	}
	return y.config, nil
}

// GetServer returns the REST server configuration
func (y *YAMLProvider) GetServer() (*ServerData, error) {
	cfg, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &cfg.Server, nil
}

// GetClassifier returns the classifier configuration
func (y *YAMLProvider) GetClassifier() (*ClassifierData, error) {
	cfg, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &cfg.Classifier, nil
}

// GetStorage returns storage configuration
func (y *YAMLProvider) GetStorage() (*StorageData, error) {
	cfg, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &cfg.Storage, nil
}

// GetGenerator returns the periodic generator configuration
func (y *YAMLProvider) GetGenerator() (*GeneratorData, error) {
	cfg, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &cfg.Generator, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with kebab-case tags
type ServerYAML struct {
	Cert        string `yaml:"cert,omitempty"`
	Key         string `yaml:"key,omitempty"`
	Port        int    `yaml:"port,omitempty"`
	ListenAddr  string `yaml:"listen-addr,omitempty"`
	EnableCORS  bool   `yaml:"enable-cors,omitempty"`
	MaxUploadMB int    `yaml:"max-upload-mb,omitempty"`
	SignalTail  int    `yaml:"signal-tail,omitempty"`
	AdminToken  string `yaml:"admin-token,omitempty"`
}

type ClassifierYAML struct {
	Type      string    `yaml:"type"`
	Endpoint  string    `yaml:"endpoint,omitempty"`
	ModelName string    `yaml:"model-name,omitempty"`
	Timeout   string    `yaml:"timeout,omitempty"`
	Cert      string    `yaml:"cert,omitempty"`
	Static    []float64 `yaml:"static,omitempty"`
}

type StorageYAML struct {
	UploadDir    string       `yaml:"upload-dir,omitempty"`
	GeneratedDir string       `yaml:"generated-dir,omitempty"`
	StagingDir   string       `yaml:"staging-dir,omitempty"`
	Journal      *JournalYAML `yaml:"journal,omitempty"`
}

type JournalYAML struct {
	Type             string `yaml:"type"`
	Path             string `yaml:"path,omitempty"`
	ConnectionString string `yaml:"connection-string,omitempty"`
}

type GeneratorYAML struct {
	Enabled      bool    `yaml:"enabled"`
	Interval     string  `yaml:"interval,omitempty"`
	KeepLatest   int     `yaml:"keep-latest,omitempty"`
	EssaisNumber int     `yaml:"essais-number,omitempty"`
	Seed         uint64  `yaml:"seed,omitempty"`
	NoiseLevel   float64 `yaml:"noise-level,omitempty"`
}

type ParserYAML struct {
	RecordPrefix string `yaml:"record-prefix,omitempty"`
	NameSegment  string `yaml:"name-segment,omitempty"`
}

type ScoringYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
	Port       int    `yaml:"port,omitempty"`
}
