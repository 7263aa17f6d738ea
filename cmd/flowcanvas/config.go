package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// envPrefix prefixes every environment variable the server reads.
const envPrefix = "FLOWCANVAS_"

// Config holds all flowcanvas server configuration.
// Priority: env vars > .env file > settings.json > defaults.
type Config struct {
	ListenAddr      string   `json:"listen_addr"`
	DocumentsDir    string   `json:"documents_dir"`
	APIBaseURL      string   `json:"api_base_url"`
	APIToken        string   `json:"api_token"`
	LogLevel        string   `json:"log_level"`
	MQTTBroker      string   `json:"mqtt_broker"`
	MQTTClientID    string   `json:"mqtt_client_id"`
	RefreshInterval string   `json:"refresh_interval"`
	MermaidBinDir   string   `json:"mermaid_bin_dir"`
	Open            []string `json:"open"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:    ":4200",
		DocumentsDir:  filepath.Join(flowcanvasDir(), "workflows"),
		LogLevel:      "info",
		MQTTClientID:  "flowcanvas",
		MermaidBinDir: filepath.Join(flowcanvasDir(), "bin"),
	}
}

func flowcanvasDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowcanvas"
	}
	return filepath.Join(home, ".flowcanvas")
}

func settingsPath() string {
	return filepath.Join(flowcanvasDir(), "settings.json")
}

func pidPath() string {
	return filepath.Join(flowcanvasDir(), "flowcanvas.pid")
}

func loadConfig() Config {
	return loadConfigFrom(settingsPath(), ".env", os.LookupEnv)
}

// loadConfigFrom layers settingsFile, then envFile, then lookup over the
// defaults. Missing files are skipped.
func loadConfigFrom(settingsFile, envFile string, lookup func(string) (string, bool)) Config {
	cfg := defaultConfig()

	if data, err := os.ReadFile(settingsFile); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	dotenv, err := godotenv.Read(envFile)
	if err != nil {
		dotenv = map[string]string{}
	}
	get := func(key string) (string, bool) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			return v, true
		}
		v, ok := dotenv[envPrefix+key]
		return v, ok && v != ""
	}

	if v, ok := get("LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := get("DOCUMENTS_DIR"); ok {
		cfg.DocumentsDir = v
	}
	if v, ok := get("API_BASE_URL"); ok {
		cfg.APIBaseURL = v
	}
	if v, ok := get("API_TOKEN"); ok {
		cfg.APIToken = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := get("MQTT_BROKER"); ok {
		cfg.MQTTBroker = v
	}
	if v, ok := get("MQTT_CLIENT_ID"); ok {
		cfg.MQTTClientID = v
	}
	if v, ok := get("REFRESH_INTERVAL"); ok {
		cfg.RefreshInterval = v
	}
	if v, ok := get("MERMAID_BIN_DIR"); ok {
		cfg.MermaidBinDir = v
	}
	if v, ok := get("OPEN"); ok {
		cfg.Open = splitList(v)
	}
	return cfg
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// configDiff describes what changed between two configurations.
type configDiff struct {
	LogLevelChanged bool
	PanelChanged    bool
	RestartNeeded   []string // fields that require a server restart
}

func diffConfigs(old, new Config) configDiff {
	var d configDiff
	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
	}
	if old.MermaidBinDir != new.MermaidBinDir {
		d.PanelChanged = true
	}
	if old.ListenAddr != new.ListenAddr {
		d.RestartNeeded = append(d.RestartNeeded, "listen_addr")
	}
	if old.DocumentsDir != new.DocumentsDir || old.APIBaseURL != new.APIBaseURL || old.APIToken != new.APIToken {
		d.RestartNeeded = append(d.RestartNeeded, "provider")
	}
	if old.MQTTBroker != new.MQTTBroker || old.MQTTClientID != new.MQTTClientID {
		d.RestartNeeded = append(d.RestartNeeded, "mqtt")
	}
	if old.RefreshInterval != new.RefreshInterval {
		d.RestartNeeded = append(d.RestartNeeded, "refresh_interval")
	}
	return d
}
