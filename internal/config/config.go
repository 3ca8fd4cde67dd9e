package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	MaxConcurrent int    `json:"max_concurrent"`
	Dedupe        struct {
		WindowSecs int `json:"window_secs"`
	} `json:"dedupe"`
	HTTP struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
	} `json:"http"`
	Slack struct {
		BotToken string `json:"bot_token"`
	} `json:"slack"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
	Generator struct {
		BaseURL          string `json:"base_url"`
		APIKey           string `json:"api_key"`
		PollIntervalSecs int    `json:"poll_interval_secs"`
		TimeoutSecs      int    `json:"timeout_secs"`
		Slides           int    `json:"slides"`
		Template         string `json:"template"`
		Tone             string `json:"tone"`
		Verbosity        string `json:"verbosity"`
		FetchImages      bool   `json:"fetch_images"`
	} `json:"generator"`
	Session struct {
		SweepEvery  string `json:"sweep_every"`
		MaxIdleMins int    `json:"max_idle_mins"`
	} `json:"session"`
	Compose struct {
		TokenBudget int `json:"token_budget"`
	} `json:"compose"`
	Whisper struct {
		Model    string `json:"model"`
		Language string `json:"language"`
	} `json:"whisper"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".deckhand"),
		MaxConcurrent: 4,
	}
	cfg.LogLevel = "info"
	cfg.Dedupe.WindowSecs = 300
	cfg.HTTP.Enabled = true
	cfg.HTTP.Listen = ":8080"
	cfg.Generator.BaseURL = "https://api.slidespeak.co/api/v1"
	cfg.Generator.PollIntervalSecs = 4
	cfg.Generator.TimeoutSecs = 120
	cfg.Generator.Slides = 5
	cfg.Generator.Template = "default"
	cfg.Generator.Verbosity = "standard"
	cfg.Session.SweepEvery = "@every 10m"
	cfg.Session.MaxIdleMins = 120
	cfg.Compose.TokenBudget = 8000

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if botToken := os.Getenv("SLACK_BOT_TOKEN"); botToken != "" {
		cfg.Slack.BotToken = botToken
	}
	if apiKey := os.Getenv("SLIDESPEAK_API_KEY"); apiKey != "" {
		cfg.Generator.APIKey = apiKey
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.HTTP.Listen = ":" + port
	}

	return cfg, nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}

// Save writes the config to disk atomically, creating the parent
// directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts the config into a nested map keyed by JSON field names.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return m, nil
}

// ListValues returns the config as a flat map of dot-separated keys.
// When mask is true, secret values are masked for display.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue reads a single dot-separated key from the config file at path.
// The file is created with defaults if it does not exist yet.
func GetValue(path, key string) (any, error) {
	if _, err := Load(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	flat := Flatten(m)
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue updates a single dot-separated key in the config file at path.
// The raw value is parsed as JSON when possible, so "16" becomes a
// number and "true" a boolean; everything else stays a string.
func SetValue(path, key, value string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	var parsed any
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		parsed = value
	}

	flat := Flatten(m)
	flat[key] = parsed
	nested := Unflatten(flat)

	out, err := json.MarshalIndent(nested, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	out = append(out, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, out, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
