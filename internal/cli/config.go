package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/matzehuels/lockmirror/pkg/errors"
	"github.com/matzehuels/lockmirror/pkg/pipeline"
)

// Config is the content of config.toml. Every key is optional:
//
//	registry    = "https://npm.example.com/repository/npm-proxy"
//	lockfile    = "frontend/package-lock.json"
//	concurrency = 20
//	attempts    = 5
//	timeout     = "30s"
//	algorithm   = "sha512"
//	user_agent  = "ci-mirror/1.0"
type Config struct {
	Registry    string        `toml:"registry"`
	Lockfile    string        `toml:"lockfile"`
	Concurrency int           `toml:"concurrency"`
	Attempts    int           `toml:"attempts"`
	Timeout     time.Duration `toml:"timeout"`
	Algorithm   string        `toml:"algorithm"`
	UserAgent   string        `toml:"user_agent"`
}

// defaultConfig returns the built-in settings.
func defaultConfig() Config {
	return Config{
		Registry: pipeline.DefaultRegistry,
		Lockfile: defaultLockfile,
	}
}

// loadConfig reads the config file at path. With an empty path the default
// location is tried, and a missing file there is not an error.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		dir, err := configDir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(dir, configFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrap(errors.ErrCodeInvalidInput, err, "read config")
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return cfg, errors.New(errors.ErrCodeInvalidInput, "config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// resolveConfig loads the config file and applies explicitly set flags on
// top of it: flag > config file > default.
func (c *CLI) resolveConfig(cmd *cobra.Command, args []string) (Config, error) {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("registry") {
		cfg.Registry, _ = flags.GetString("registry")
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency")
	}
	if len(args) > 0 {
		cfg.Lockfile = args[0]
	}
	if cfg.Lockfile == "" {
		cfg.Lockfile = defaultLockfile
	}
	return cfg, nil
}

func (cfg Config) pipelineOptions() pipeline.Options {
	return pipeline.Options{
		Registry:    cfg.Registry,
		Concurrency: cfg.Concurrency,
		Attempts:    cfg.Attempts,
		Timeout:     cfg.Timeout,
		Algorithm:   cfg.Algorithm,
		UserAgent:   cfg.UserAgent,
	}
}

// String renders cfg for debug logging.
func (cfg Config) String() string {
	return fmt.Sprintf("registry=%s lockfile=%s concurrency=%d attempts=%d timeout=%s algorithm=%s",
		cfg.Registry, cfg.Lockfile, cfg.Concurrency, cfg.Attempts, cfg.Timeout, cfg.Algorithm)
}
