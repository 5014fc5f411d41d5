package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	canopen "github.com/jaster-prj/canopen-console"
	"github.com/jaster-prj/canopen-console/logger"
	"gopkg.in/yaml.v3"
)

const (
	transportSocketCan = "socketcan"
	transportUSBCan    = "usbcan"
)

// Config holds the console configuration.
type Config struct {
	ConfigFile  string
	Transport   string
	Interface   string
	Port        string
	BaudRate    int
	NodeID      int
	EDS         string
	SDOTimeout  time.Duration
	LogLevel    string
	LogFormat   string
	HistoryFile string
}

// fileConfig is the on-disk form, YAML or TOML. Unset keys are nil.
type fileConfig struct {
	Transport   *string `yaml:"transport" toml:"transport"`
	Interface   *string `yaml:"interface" toml:"interface"`
	Port        *string `yaml:"port" toml:"port"`
	BaudRate    *int    `yaml:"baud_rate" toml:"baud_rate"`
	NodeID      *int    `yaml:"node_id" toml:"node_id"`
	EDS         *string `yaml:"eds" toml:"eds"`
	SDOTimeout  *string `yaml:"sdo_timeout" toml:"sdo_timeout"`
	LogLevel    *string `yaml:"log_level" toml:"log_level"`
	LogFormat   *string `yaml:"log_format" toml:"log_format"`
	HistoryFile *string `yaml:"history_file" toml:"history_file"`
}

func defaultConfig() Config {
	return Config{
		Transport:  transportSocketCan,
		Interface:  "can0",
		BaudRate:   2000000,
		NodeID:     1,
		SDOTimeout: canopen.DefaultSDOTimeout,
		LogLevel:   "info",
		LogFormat:  string(logger.FormatConsole),
	}
}

// parseConfig applies defaults, then the config file, then the flags that
// were given explicitly.
func parseConfig(args []string) (Config, error) {
	cfg := defaultConfig()

	var flags Config
	fs := flag.NewFlagSet("bk5120-console", flag.ContinueOnError)
	fs.StringVar(&flags.ConfigFile, "config", "", "Configuration file path (.yaml, .yml or .toml)")
	fs.StringVar(&flags.Transport, "transport", cfg.Transport, "CAN transport: socketcan, usbcan")
	fs.StringVar(&flags.Interface, "interface", cfg.Interface, "SocketCAN interface")
	fs.StringVar(&flags.Port, "port", cfg.Port, "Serial port of the USB-CAN analyzer")
	fs.IntVar(&flags.BaudRate, "baud", cfg.BaudRate, "Serial baud rate of the USB-CAN analyzer")
	fs.IntVar(&flags.NodeID, "node-id", cfg.NodeID, "Node ID of the device (1-127)")
	fs.StringVar(&flags.EDS, "eds", cfg.EDS, "EDS file of the device (built-in communication profile if empty)")
	fs.DurationVar(&flags.SDOTimeout, "sdo-timeout", cfg.SDOTimeout, "SDO response timeout")
	fs.StringVar(&flags.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&flags.LogFormat, "log-format", cfg.LogFormat, "Log format: console, json")
	fs.StringVar(&flags.HistoryFile, "history", cfg.HistoryFile, "Command history file")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if flags.ConfigFile != "" {
		if err := loadConfigFile(flags.ConfigFile, &cfg); err != nil {
			return Config{}, err
		}
		cfg.ConfigFile = flags.ConfigFile
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "transport":
			cfg.Transport = flags.Transport
		case "interface":
			cfg.Interface = flags.Interface
		case "port":
			cfg.Port = flags.Port
		case "baud":
			cfg.BaudRate = flags.BaudRate
		case "node-id":
			cfg.NodeID = flags.NodeID
		case "eds":
			cfg.EDS = flags.EDS
		case "sdo-timeout":
			cfg.SDOTimeout = flags.SDOTimeout
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		case "log-format":
			cfg.LogFormat = flags.LogFormat
		case "history":
			cfg.HistoryFile = flags.HistoryFile
		}
	})

	return cfg, cfg.validate()
}

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var raw fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("load config %s: %w", path, err)
		}
	case ".toml":
		meta, err := toml.Decode(string(data), &raw)
		if err != nil {
			return fmt.Errorf("load config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("load config %s: unknown keys %v", path, undecoded)
		}
	default:
		return fmt.Errorf("load config %s: unsupported file type", path)
	}

	return raw.apply(cfg)
}

func (raw fileConfig) apply(cfg *Config) error {
	if raw.Transport != nil {
		cfg.Transport = strings.TrimSpace(*raw.Transport)
	}
	if raw.Interface != nil {
		cfg.Interface = strings.TrimSpace(*raw.Interface)
	}
	if raw.Port != nil {
		cfg.Port = strings.TrimSpace(*raw.Port)
	}
	if raw.BaudRate != nil {
		cfg.BaudRate = *raw.BaudRate
	}
	if raw.NodeID != nil {
		cfg.NodeID = *raw.NodeID
	}
	if raw.EDS != nil {
		cfg.EDS = strings.TrimSpace(*raw.EDS)
	}
	if raw.SDOTimeout != nil {
		d, err := time.ParseDuration(strings.TrimSpace(*raw.SDOTimeout))
		if err != nil {
			return fmt.Errorf("parse sdo_timeout: %w", err)
		}
		cfg.SDOTimeout = d
	}
	if raw.LogLevel != nil {
		cfg.LogLevel = strings.TrimSpace(*raw.LogLevel)
	}
	if raw.LogFormat != nil {
		cfg.LogFormat = strings.TrimSpace(*raw.LogFormat)
	}
	if raw.HistoryFile != nil {
		cfg.HistoryFile = strings.TrimSpace(*raw.HistoryFile)
	}
	return nil
}

func (cfg Config) validate() error {
	switch cfg.Transport {
	case transportSocketCan:
		if cfg.Interface == "" {
			return errors.New("socketcan transport needs an interface")
		}
	case transportUSBCan:
		if cfg.Port == "" {
			return errors.New("usbcan transport needs a port")
		}
	default:
		return fmt.Errorf("unknown transport %q", cfg.Transport)
	}
	if cfg.NodeID < 1 || cfg.NodeID > 127 {
		return fmt.Errorf("node id %d out of range 1-127", cfg.NodeID)
	}
	if cfg.SDOTimeout <= 0 {
		return errors.New("sdo timeout must be positive")
	}
	if _, ok := logger.ParseLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	switch logger.Format(cfg.LogFormat) {
	case logger.FormatConsole, logger.FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}
	return nil
}
