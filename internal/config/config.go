// Package config loads rexec settings from defaults, an optional TOML or
// YAML file and REXEC_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/dreamware/rexec/internal/cluster"
	"github.com/dreamware/rexec/internal/history"
	"github.com/dreamware/rexec/internal/logger"
	"github.com/dreamware/rexec/internal/obfuscate"
)

// EnvPrefix prefixes every environment override, e.g. REXEC_GROUP_SIZE.
const EnvPrefix = "REXEC"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Group     GroupConfig     `mapstructure:"group" toml:"group"`
	Limits    LimitsConfig    `mapstructure:"limits" toml:"limits"`
	Mask      MaskConfig      `mapstructure:"mask" toml:"mask"`
	Audit     AuditConfig     `mapstructure:"audit" toml:"audit"`
	Client    ClientConfig    `mapstructure:"client" toml:"client"`
	Worker    WorkerConfig    `mapstructure:"worker" toml:"worker"`
	Transport TransportConfig `mapstructure:"transport" toml:"transport"`
	Log       logger.Config   `mapstructure:"log" toml:"log"`
}

// GroupConfig sizes the group. Workers 0 applies the default policy.
type GroupConfig struct {
	Size    int `mapstructure:"size" toml:"size"`
	Workers int `mapstructure:"workers" toml:"workers"`
}

// LimitsConfig bounds per-worker state. MaxOutput may shrink results below
// the wire size but never exceed it.
type LimitsConfig struct {
	MaxOutput int `mapstructure:"max_output" toml:"max_output"`
	History   int `mapstructure:"history" toml:"history"`
}

type MaskConfig struct {
	Key int `mapstructure:"key" toml:"key"`
}

// AuditConfig places the audit logs. An empty Dir means the working
// directory.
type AuditConfig struct {
	Dir string `mapstructure:"dir" toml:"dir"`
	CSV bool   `mapstructure:"csv" toml:"csv"`
}

type ClientConfig struct {
	ScriptDir           string `mapstructure:"script_dir" toml:"script_dir"`
	BenchmarkIterations int    `mapstructure:"benchmark_iterations" toml:"benchmark_iterations"`
	Interactive         bool   `mapstructure:"interactive" toml:"interactive"`
}

type WorkerConfig struct {
	Shell string `mapstructure:"shell" toml:"shell"`
}

type TransportConfig struct {
	PeersFile string `mapstructure:"peers_file" toml:"peers_file"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Group:     GroupConfig{Size: 4},
		Limits:    LimitsConfig{MaxOutput: cluster.MaxOutput, History: history.DefaultCapacity},
		Mask:      MaskConfig{Key: int(obfuscate.DefaultKey)},
		Audit:     AuditConfig{Dir: ".", CSV: true},
		Client:    ClientConfig{ScriptDir: ".", BenchmarkIterations: 50},
		Worker:    WorkerConfig{Shell: "/bin/sh"},
		Transport: TransportConfig{PeersFile: "peers.yaml"},
		Log: logger.Config{
			Level:      "info",
			Format:     "console",
			Output:     "stderr",
			FilePath:   "rexec.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("group.size", d.Group.Size)
	v.SetDefault("group.workers", d.Group.Workers)
	v.SetDefault("limits.max_output", d.Limits.MaxOutput)
	v.SetDefault("limits.history", d.Limits.History)
	v.SetDefault("mask.key", d.Mask.Key)
	v.SetDefault("audit.dir", d.Audit.Dir)
	v.SetDefault("audit.csv", d.Audit.CSV)
	v.SetDefault("client.script_dir", d.Client.ScriptDir)
	v.SetDefault("client.benchmark_iterations", d.Client.BenchmarkIterations)
	v.SetDefault("client.interactive", d.Client.Interactive)
	v.SetDefault("worker.shell", d.Worker.Shell)
	v.SetDefault("transport.peers_file", d.Transport.PeersFile)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output", d.Log.Output)
	v.SetDefault("log.file_path", d.Log.FilePath)
	v.SetDefault("log.max_size", d.Log.MaxSize)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age", d.Log.MaxAge)
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment apply; the file type follows the extension.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks ranges that the rest of the program relies on. The group
// layout itself is checked by cluster.PlanLayout.
func (c *Config) Validate() error {
	switch {
	case c.Group.Workers < 0:
		return fmt.Errorf("%w: group.workers must not be negative", ErrInvalid)
	case c.Limits.MaxOutput < 2 || c.Limits.MaxOutput > cluster.MaxOutput:
		return fmt.Errorf("%w: limits.max_output must be within [2, %d]", ErrInvalid, cluster.MaxOutput)
	case c.Limits.History < 1:
		return fmt.Errorf("%w: limits.history must be positive", ErrInvalid)
	case c.Mask.Key < 0 || c.Mask.Key > 0xff:
		return fmt.Errorf("%w: mask.key must fit in a byte", ErrInvalid)
	case c.Client.BenchmarkIterations < 0:
		return fmt.Errorf("%w: client.benchmark_iterations must not be negative", ErrInvalid)
	}
	return nil
}

// Key returns the mask key byte.
func (c *Config) Key() byte {
	return byte(c.Mask.Key)
}

// WriteDefault writes the built-in settings to w as TOML.
func WriteDefault(w io.Writer) error {
	enc := toml.NewEncoder(w)
	if err := enc.Encode(Default()); err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	return nil
}
