// Package config assembles the server's runtime configuration from CLI
// flags, an optional JSON config file, and a ".env" secrets overlay, in
// that order of increasing precedence for the fields each source can set.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/archipelago-mw/aprs-server/internal/protocol"
	"github.com/archipelago-mw/aprs-server/internal/router"
	"github.com/joho/godotenv"
)

// fileConfig is the JSON shape of the config file. Durations are strings
// parsed with time.ParseDuration so the file can say "30s" rather than a
// raw nanosecond count.
type fileConfig struct {
	Tags                []string             `json:"tags"`
	Permissions         protocol.Permissions `json:"permissions"`
	HintCost            int                  `json:"hint_cost"`
	LocationCheckPoints int                  `json:"location_check_points"`
	EventQueueSize      int                  `json:"event_queue_size"`
	CheckpointInterval  string               `json:"checkpoint_interval"`
	ReadTimeout         string               `json:"read_timeout"`
	WriteTimeout        string               `json:"write_timeout"`
	StatePath           string               `json:"state_path"`
	ServerVersion       protocol.Version     `json:"server_version"`
}

var defaults = fileConfig{
	Tags: nil,
	Permissions: protocol.Permissions{
		Release:   protocol.PermissionGoal,
		Collect:   protocol.PermissionGoal,
		Remaining: protocol.RemainingGoal,
	},
	HintCost:            10,
	LocationCheckPoints: 1,
	EventQueueSize:      256,
	CheckpointInterval:  "10s",
	ReadTimeout:         "10s",
	WriteTimeout:        "10s",
	StatePath:           "./var/state.bin",
	ServerVersion:       protocol.Version{Major: 0, Minor: 5, Build: 1},
}

// Config is the fully resolved, ready-to-use runtime configuration.
type Config struct {
	SeedPath  string
	LoadOnly  bool
	Gops      bool
	Addr      string
	StatePath string
	LogLevel  string
	LogDate   bool

	Password string

	Router router.Config

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Load parses args (normally os.Args[1:]) and assembles a Config. It reads
// an optional JSON file named by -config (default "./config.json", missing
// is not an error), then overlays the shared server password from a
// ".env" file or the environment. Flags pick the file and listen address,
// the file sets room behavior, and the password always comes from the
// environment rather than the file.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("aprs-server", flag.ContinueOnError)
	configFile := fs.String("config", "./config.json", "path to the JSON config file")
	addr := fs.String("listen", ":38281", "address to listen on")
	loadOnly := fs.Bool("load-only", false, "load and validate the seed, then exit")
	logLevel := fs.String("loglevel", "info", "log level: debug, info, notice, warn, err, crit")
	logDate := fs.Bool("logdate", false, "prefix log lines with a timestamp")
	gops := fs.Bool("gops", false, "listen via github.com/google/gops/agent (for debugging)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() < 1 {
		return nil, fmt.Errorf("config: a seed file path is required")
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}

	fc := defaults
	if f, err := os.Open(*configFile); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: opening %s: %w", *configFile, err)
		}
	} else {
		dec := json.NewDecoder(f)
		dec.DisallowUnknownFields()
		decErr := dec.Decode(&fc)
		f.Close()
		if decErr != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", *configFile, decErr)
		}
	}

	checkpointInterval, err := time.ParseDuration(fc.CheckpointInterval)
	if err != nil {
		return nil, fmt.Errorf("config: checkpoint_interval: %w", err)
	}
	readTimeout, err := time.ParseDuration(fc.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("config: read_timeout: %w", err)
	}
	writeTimeout, err := time.ParseDuration(fc.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("config: write_timeout: %w", err)
	}

	cfg := &Config{
		SeedPath:     fs.Arg(0),
		LoadOnly:     *loadOnly,
		Gops:         *gops,
		Addr:         *addr,
		StatePath:    fc.StatePath,
		LogLevel:     *logLevel,
		LogDate:      *logDate,
		Password:     os.Getenv("APRS_PASSWORD"),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		Router: router.Config{
			ServerVersion:       fc.ServerVersion,
			Tags:                fc.Tags,
			Permissions:         fc.Permissions,
			HintCost:            fc.HintCost,
			LocationCheckPoints: fc.LocationCheckPoints,
			EventQueueSize:      fc.EventQueueSize,
			CheckpointInterval:  checkpointInterval,
		},
	}
	if cfg.Password != "" {
		cfg.Router.RequiredPassword = &cfg.Password
	}
	return cfg, nil
}
