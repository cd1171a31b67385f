package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Source struct {
		DocsDir    string `yaml:"docs_dir"`
		ExamplesDir string `yaml:"examples_dir"`
		RulesDoc   string `yaml:"rules_doc"`  // instruction document split into nuggets
		RulesJSONL string `yaml:"rules_jsonl"`
	} `yaml:"source"`
	RAG struct {
		Enabled            bool    `yaml:"enabled"`
		DBPath             string  `yaml:"db_path"`
		RulesPerSection    int     `yaml:"rules_per_section"`
		ExamplesPerSection int     `yaml:"examples_per_section"`
		MMRLambda          float64 `yaml:"mmr_lambda"`
		Embedding          struct {
			Provider  string `yaml:"provider"`
			Model     string `yaml:"model"`
			APIKey    string `yaml:"api_key"`
			Dimension int    `yaml:"dimension"`
			BaseURL   string `yaml:"base_url"`
		} `yaml:"embedding"`
	} `yaml:"rag"`
	Assembly struct {
		Provider    string  `yaml:"provider"`
		Model       string  `yaml:"model"`
		APIKey      string  `yaml:"api_key"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
		PromptPath  string  `yaml:"prompt_path"`
	} `yaml:"assembly"`
	Validation struct {
		JacBinary     string  `yaml:"jac_binary"`
		FailThreshold float64 `yaml:"fail_threshold"`
		Strict        bool    `yaml:"strict"`
	} `yaml:"validation"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	var cfg Config
	cfg.RAG.Enabled = true
	cfg.RAG.DBPath = "jacref.db"
	cfg.RAG.RulesPerSection = 15
	cfg.RAG.ExamplesPerSection = 3
	cfg.RAG.MMRLambda = 0.5
	cfg.RAG.Embedding.Provider = "gemini"
	cfg.Assembly.Provider = "anthropic"
	cfg.Validation.JacBinary = "jac"
	cfg.Validation.FailThreshold = 90.0
	applyEnv(&cfg)
	return &cfg
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Start from defaults, then overlay the YAML config
	cfg := Default()
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(file, cfg); err != nil {
		return nil, err
	}

	// 3. Override with Environment Variables if present
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if key := os.Getenv("JACREF_API_KEY"); key != "" {
		cfg.Assembly.APIKey = key
	}
	if provider := os.Getenv("JACREF_LLM_PROVIDER"); provider != "" {
		cfg.Assembly.Provider = provider
	} else if provider := os.Getenv("JACREF_AI_PROVIDER"); provider != "" {
		cfg.Assembly.Provider = provider
	}
	if model := os.Getenv("JACREF_LLM_MODEL"); model != "" {
		cfg.Assembly.Model = model
	}
	if key := os.Getenv("JACREF_EMBED_API_KEY"); key != "" {
		cfg.RAG.Embedding.APIKey = key
	}
	if provider := os.Getenv("JACREF_EMBED_PROVIDER"); provider != "" {
		cfg.RAG.Embedding.Provider = provider
	}
	if db := os.Getenv("JACREF_DB_PATH"); db != "" {
		cfg.RAG.DBPath = db
	}
	if raw := os.Getenv("JACREF_RAG_ENABLED"); raw != "" {
		if enabled, err := strconv.ParseBool(raw); err == nil {
			cfg.RAG.Enabled = enabled
		}
	}
}
