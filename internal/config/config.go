package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server           ServerConfig     `yaml:"server"`
	Gmail            GmailConfig      `yaml:"gmail"`
	Storage          StorageConfig    `yaml:"storage"`
	AI               AIConfig         `yaml:"ai"`
	EntityExtraction EntityConfig     `yaml:"entity_extraction"`
	Scoring          ScoringConfig    `yaml:"scoring"`
	Engagement       EngagementConfig `yaml:"engagement"`

	ESPFingerprintsFile string `yaml:"esp_fingerprints_file"`
	CustomSegmentsFile  string `yaml:"custom_segments_file"`
	KnownEntitiesFile   string `yaml:"known_entities_file"`
}

// ServerConfig holds HTTP server configuration for the admin portal.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with environment override.
func (c ServerConfig) GetHost() string {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// GmailConfig holds Gmail API credentials and the default sync query.
type GmailConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	DefaultQuery    string `yaml:"default_query"`
}

// StorageConfig holds the embedded database location.
type StorageConfig struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
}

// AIConfig holds language-model provider configuration.
type AIConfig struct {
	Provider        string `yaml:"provider"` // ollama | openai | anthropic | bedrock
	Model           string `yaml:"model"`
	OllamaBaseURL   string `yaml:"ollama_base_url"`
	OllamaAPIKey    string `yaml:"ollama_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	AWSRegion       string `yaml:"aws_region"`
	BatchSize       int    `yaml:"batch_size"`
	MaxBodyChars    int    `yaml:"max_body_chars"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

// Timeout returns the per-call model timeout as a duration.
func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ModelSpec returns the provider:model spec string used by the factory.
func (c AIConfig) ModelSpec() string {
	return c.Provider + ":" + c.Model
}

// EntityConfig holds entity-extraction settings.
type EntityConfig struct {
	Backend            string `yaml:"backend"`
	SpacyModel         string `yaml:"spacy_model"`
	TaggerURL          string `yaml:"tagger_url"`
	ExtractMonetary    bool   `yaml:"extract_monetary"`
	ExtractDates       bool   `yaml:"extract_dates"`
	ExtractProcurement bool   `yaml:"extract_procurement"`
}

// ScoringWeights holds the point values of the opportunity-score formula.
type ScoringWeights struct {
	// Inbound signal (max 30)
	InboundInitiation int `yaml:"inbound_initiation"`
	InboundEngagement int `yaml:"inbound_engagement"`
	// Base profile (max 40)
	Reachability    int `yaml:"reachability"`
	Relevance       int `yaml:"relevance"`
	Recency         int `yaml:"recency"`
	KnownContacts   int `yaml:"known_contacts"`
	MonetarySignals int `yaml:"monetary_signals"`
	// Gem bonus (max 30)
	GemDiversityPerType int `yaml:"gem_diversity_per_type"`
	GemDiversityCap     int `yaml:"gem_diversity_cap"`
	DormantThreadBonus  int `yaml:"dormant_thread_bonus"`
	PartnerBonus        int `yaml:"partner_bonus"`
	ProcurementBonus    int `yaml:"procurement_bonus"`
}

// RelationshipScoreCaps bounds the opportunity score per relationship type.
type RelationshipScoreCaps struct {
	InboundProspect   int `yaml:"inbound_prospect"`
	WarmContact       int `yaml:"warm_contact"`
	PotentialPartner  int `yaml:"potential_partner"`
	Community         int `yaml:"community"`
	Unknown           int `yaml:"unknown"`
	SellingToMe       int `yaml:"selling_to_me"`
	MyVendor          int `yaml:"my_vendor"`
	MyServiceProvider int `yaml:"my_service_provider"`
	MyInfrastructure  int `yaml:"my_infrastructure"`
	Institutional     int `yaml:"institutional"`
}

// CapFor returns the score ceiling for a relationship type. Unlisted types
// get the unknown cap.
func (c RelationshipScoreCaps) CapFor(relationship string) int {
	switch relationship {
	case "inbound_prospect":
		return c.InboundProspect
	case "warm_contact":
		return c.WarmContact
	case "potential_partner":
		return c.PotentialPartner
	case "community":
		return c.Community
	case "selling_to_me":
		return c.SellingToMe
	case "my_vendor":
		return c.MyVendor
	case "my_service_provider":
		return c.MyServiceProvider
	case "my_infrastructure":
		return c.MyInfrastructure
	case "institutional":
		return c.Institutional
	default:
		return c.Unknown
	}
}

// DormantThreadConfig tunes the dormant-thread gem gates.
type DormantThreadConfig struct {
	MinDormancyDays    int  `yaml:"min_dormancy_days"`
	MaxDormancyDays    int  `yaml:"max_dormancy_days"`
	RequireHumanSender bool `yaml:"require_human_sender"`
}

// ScoringConfig holds gem detection and scoring knobs.
type ScoringConfig struct {
	TargetIndustries []string              `yaml:"target_industries"`
	Weights          ScoringWeights        `yaml:"weights"`
	DormantThread    DormantThreadConfig   `yaml:"dormant_thread"`
	RelationshipCaps RelationshipScoreCaps `yaml:"relationship_caps"`
}

// EngagementConfig describes the user's own offer for draft generation.
type EngagementConfig struct {
	YourName            string   `yaml:"your_name"`
	YourService         string   `yaml:"your_service"`
	YourTone            string   `yaml:"your_tone"`
	YourAudience        string   `yaml:"your_audience"`
	PreferredStrategies []string `yaml:"preferred_strategies"`
	MaxOutreachPerDay   int      `yaml:"max_outreach_per_day"`
}

// Default returns a Config populated with every default value. Loading a
// YAML file overrides only the keys it provides.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Gmail: GmailConfig{
			CredentialsFile: "credentials.json",
			TokenFile:       "token.json",
			DefaultQuery:    "newer_than:1y",
		},
		Storage: StorageConfig{
			Backend:    "sqlite",
			SQLitePath: "gemsieve.db",
		},
		AI: AIConfig{
			Provider:       "ollama",
			Model:          "mistral-nemo",
			OllamaBaseURL:  "http://localhost:11434",
			AWSRegion:      "us-east-1",
			BatchSize:      10,
			MaxBodyChars:   2000,
			TimeoutSeconds: 60,
		},
		EntityExtraction: EntityConfig{
			Backend:            "spacy",
			SpacyModel:         "en_core_web_sm",
			ExtractMonetary:    true,
			ExtractDates:       true,
			ExtractProcurement: true,
		},
		Scoring: ScoringConfig{
			TargetIndustries: []string{
				"SaaS", "Agency", "E-commerce", "Marketing", "Developer Tools",
			},
			Weights: ScoringWeights{
				InboundInitiation:   15,
				InboundEngagement:   15,
				Reachability:        10,
				Relevance:           8,
				Recency:             8,
				KnownContacts:       7,
				MonetarySignals:     7,
				GemDiversityPerType: 5,
				GemDiversityCap:     15,
				DormantThreadBonus:  10,
				PartnerBonus:        3,
				ProcurementBonus:    7,
			},
			DormantThread: DormantThreadConfig{
				MinDormancyDays:    14,
				MaxDormancyDays:    365,
				RequireHumanSender: true,
			},
			RelationshipCaps: RelationshipScoreCaps{
				InboundProspect:   100,
				WarmContact:       90,
				PotentialPartner:  80,
				Community:         50,
				Unknown:           60,
				SellingToMe:       20,
				MyVendor:          25,
				MyServiceProvider: 15,
				MyInfrastructure:  5,
				Institutional:     5,
			},
		},
		Engagement: EngagementConfig{
			YourTone:            "direct, technical, peer-to-peer",
			PreferredStrategies: []string{"audit", "mirror", "revival", "partner"},
			MaxOutreachPerDay:   20,
		},
		ESPFingerprintsFile: "esp_rules.yaml",
		CustomSegmentsFile:  "segments.yaml",
		KnownEntitiesFile:   "known_entities.yaml",
	}
}

// FindConfigFile searches the standard locations: $GEMSIEVE_CONFIG, then
// ./config.yaml, then ~/.config/gemsieve/config.yaml. Returns "" when no
// file exists; defaults apply in that case.
func FindConfigFile() string {
	if env := os.Getenv("GEMSIEVE_CONFIG"); env != "" {
		if _, err := os.Stat(env); err == nil {
			return env
		}
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	xdg := filepath.Join(home, ".config", "gemsieve", "config.yaml")
	if _, err := os.Stat(xdg); err == nil {
		return xdg
	}
	return ""
}

// Load reads and parses the configuration file, merging it over defaults.
// An empty path means "search the standard locations"; finding nothing is
// not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = FindConfigFile()
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars elsewhere.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("ollama_host"); v != "" {
		cfg.AI.OllamaBaseURL = v
	}
	if v := os.Getenv("ollama_api_key"); v != "" {
		cfg.AI.OllamaAPIKey = v
	}
	if v := os.Getenv("model_name"); v != "" {
		cfg.AI.Model = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.AI.OpenAIAPIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.AI.AnthropicAPIKey = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.AI.AWSRegion = v
	}

	return cfg, nil
}
