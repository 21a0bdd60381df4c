package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strconv"

	"github.com/daniacca/particlelife/internal/plife"
)

// ServerConfig holds the server configuration
type ServerConfig struct {
	Addr               string
	DefaultWorldID     string
	ConfigFile         string
	SnapshotDir        string
	SnapshotEverySteps int64
	NotifyEverySteps   int64
	Workers            int
	MaxParticles       int
	LogLevel           string
}

const defaultMaxParticles = 1_000_000

// configResolver defines how to resolve a single configuration value
type configResolver struct {
	flagName    string
	envVarName  string
	defaultVal  string
	description string
	setter      func(*ServerConfig, string)
}

// parseIntSetting parses v, logging and returning def when it is not an integer.
func parseIntSetting(name, v string, def int64) int64 {
	val, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("Invalid value for %s: %s, using default %d", name, v, def)
		return def
	}
	return val
}

// loadServerConfig loads server configuration from CLI flags and environment variables.
// Flags win over environment variables, which win over defaults.
func loadServerConfig() ServerConfig {
	cfg := ServerConfig{}

	resolvers := []configResolver{
		{
			flagName:    "addr",
			envVarName:  "PLIFE_ADDR",
			defaultVal:  ":8080",
			description: "HTTP listen address (e.g. :8080, 0.0.0.0:8080)",
			setter:      func(c *ServerConfig, v string) { c.Addr = v },
		},
		{
			flagName:    "world-id",
			envVarName:  "PLIFE_WORLD_ID",
			defaultVal:  "default",
			description: "world ID used for the world created from config-file",
			setter:      func(c *ServerConfig, v string) { c.DefaultWorldID = v },
		},
		{
			flagName:    "config-file",
			envVarName:  "PLIFE_CONFIG_FILE",
			defaultVal:  "",
			description: "optional path to a JSON world config to load at startup",
			setter:      func(c *ServerConfig, v string) { c.ConfigFile = v },
		},
		{
			flagName:    "snapshot-dir",
			envVarName:  "PLIFE_SNAPSHOT_DIR",
			defaultVal:  "./data",
			description: "Directory where world snapshots are stored",
			setter:      func(c *ServerConfig, v string) { c.SnapshotDir = v },
		},
		{
			flagName:    "snapshot-every-steps",
			envVarName:  "PLIFE_SNAPSHOT_EVERY_STEPS",
			defaultVal:  "1000",
			description: "How often to write snapshots (in steps); 0 disables periodic snapshots",
			setter: func(c *ServerConfig, v string) {
				c.SnapshotEverySteps = parseIntSetting("snapshot-every-steps", v, 1000)
			},
		},
		{
			flagName:    "notify-every-steps",
			envVarName:  "PLIFE_NOTIFY_EVERY_STEPS",
			defaultVal:  "1",
			description: "Default cadence of stats notifications (in steps)",
			setter: func(c *ServerConfig, v string) {
				c.NotifyEverySteps = parseIntSetting("notify-every-steps", v, 1)
			},
		},
		{
			flagName:    "workers",
			envVarName:  "PLIFE_WORKERS",
			defaultVal:  "0",
			description: "Force pass goroutines for worlds that do not set their own; 0 means GOMAXPROCS",
			setter: func(c *ServerConfig, v string) {
				c.Workers = int(parseIntSetting("workers", v, 0))
			},
		},
		{
			flagName:    "max-particles",
			envVarName:  "PLIFE_MAX_PARTICLES",
			defaultVal:  strconv.Itoa(defaultMaxParticles),
			description: "Largest particle count a spawn, respawn or config request may produce; 0 disables the limit",
			setter: func(c *ServerConfig, v string) {
				c.MaxParticles = int(parseIntSetting("max-particles", v, defaultMaxParticles))
			},
		},
		{
			flagName:    "log-level",
			envVarName:  "PLIFE_LOG_LEVEL",
			defaultVal:  "info",
			description: "Log level: debug, info, warn, error",
			setter:      func(c *ServerConfig, v string) { c.LogLevel = v },
		},
	}

	flagVars := make(map[string]*string)
	for _, resolver := range resolvers {
		flagVars[resolver.flagName] = flag.String(resolver.flagName, "", resolver.description)
	}

	flag.Parse()

	for _, resolver := range resolvers {
		var value string
		if *flagVars[resolver.flagName] != "" {
			value = *flagVars[resolver.flagName]
		} else if envValue := os.Getenv(resolver.envVarName); envValue != "" {
			value = envValue
		} else {
			value = resolver.defaultVal
		}
		resolver.setter(&cfg, value)
	}

	return cfg
}

// loadWorldConfigFromFile reads a world configuration from a JSON file.
// Fields missing from the file keep their DefaultConfig values.
func loadWorldConfigFromFile(path string) (plife.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return plife.Config{}, err
	}

	cfg := plife.DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return plife.Config{}, err
	}

	if err := plife.ValidateConfig(cfg); err != nil {
		return plife.Config{}, err
	}
	return cfg, nil
}

// applyInitialConfig loads a world config from a file and creates or updates
// the world with the given ID.
func (s *Server) applyInitialConfig(configFile string, id plife.WorldID) error {
	cfg, err := loadWorldConfigFromFile(configFile)
	if err != nil {
		return err
	}
	_, err = s.createOrUpdateWorld(id, cfg)
	return err
}
