package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Speech  SpeechConfig  `yaml:"speech"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Archive ArchiveConfig `yaml:"archive"`
	Log     LogConfig     `yaml:"log"`
}

type SpeechConfig struct {
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type LogConfig struct {
	Dir string `yaml:"dir"`
}

// Load reads the yaml config at path. An empty path (or a missing file)
// yields a config built from defaults and environment variables, so the
// app runs without any config file at all.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Speech.APIKey == "" {
		c.Speech.APIKey = os.Getenv("DEEPGRAM_API_KEY")
	}
	if c.Speech.Model == "" {
		c.Speech.Model = "nova-3"
	}
	if c.Speech.Language == "" {
		c.Speech.Language = "en"
	}
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash"
	}
	if c.Archive.Dir == "" {
		c.Archive.Dir = "."
	}
}
