package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Config is the root configuration of the isoplacement daemon.
type Config struct {
	Logger    LoggerConfig    `yaml:"logger" validate:"required"`
	ZooKeeper ZooKeeperConfig `yaml:"zookeeper" validate:"required"`
	Isolation IsolationConfig `yaml:"isolation"`
	HTTP      HTTPConfig      `yaml:"http" validate:"required"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	JSON  bool   `yaml:"json"`
}

type ZooKeeperConfig struct {
	Servers        []string      `yaml:"servers" validate:"required,min=1"`
	SessionTimeout time.Duration `yaml:"session_timeout" validate:"required"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" validate:"required"`
}

// IsolationConfig describes which bookie groups this instance may use.
type IsolationConfig struct {
	// IsolationBookieGroups is the raw comma-separated group list. Empty
	// disables isolation.
	IsolationBookieGroups string `yaml:"isolation_bookie_groups"`
	GroupsPath            string `yaml:"groups_path" validate:"required"`
	AvailablePath         string `yaml:"available_path" validate:"required"`
	EagerReload           bool   `yaml:"eager_reload"`
}

type HTTPConfig struct {
	Port int `yaml:"port" validate:"required,min=1,max=65535"`
}

// Default returns a baseline development config.
func Default() Config {
	return Config{
		Logger: LoggerConfig{
			Level: "INFO",
			JSON:  false,
		},
		ZooKeeper: ZooKeeperConfig{
			Servers:        []string{"127.0.0.1:2181"},
			SessionTimeout: 30 * time.Second,
			ConnectTimeout: 10 * time.Second,
		},
		Isolation: IsolationConfig{
			GroupsPath:    "/bookies",
			AvailablePath: "/ledgers/available",
		},
		HTTP: HTTPConfig{
			Port: 8080,
		},
	}
}

// Load reads a YAML file on top of Default. A missing file is not an error;
// found reports whether one was read.
func Load(path string) (cfg Config, found bool, err error) {
	cfg = Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, false, nil
		}
		return cfg, false, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, true, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, true, nil
}

// ApplyEnv overrides fields from the environment. lookup is os.LookupEnv in
// production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("ZK_SERVERS"); ok && v != "" {
		c.ZooKeeper.Servers = strings.Split(v, ",")
	}
	// set-but-empty is meaningful here: it turns isolation off
	if v, ok := lookup("ISOLATION_BOOKIE_GROUPS"); ok {
		c.Isolation.IsolationBookieGroups = v
	}
	if v, ok := lookup("ISOPLACEMENT_HTTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ISOPLACEMENT_HTTP_PORT: %w", err)
		}
		c.HTTP.Port = port
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.ZooKeeper.Servers) == 0 {
		errs = append(errs, errors.New("zookeeper.servers is empty"))
	}
	for _, s := range c.ZooKeeper.Servers {
		if s == "" {
			errs = append(errs, errors.New("zookeeper.servers has an empty entry"))
			break
		}
	}
	if c.ZooKeeper.SessionTimeout <= 0 {
		errs = append(errs, errors.New("zookeeper.session_timeout must be positive"))
	}
	if c.ZooKeeper.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("zookeeper.connect_timeout must be positive"))
	}
	if !strings.HasPrefix(c.Isolation.GroupsPath, "/") {
		errs = append(errs, fmt.Errorf("isolation.groups_path %q must be absolute", c.Isolation.GroupsPath))
	}
	if !strings.HasPrefix(c.Isolation.AvailablePath, "/") {
		errs = append(errs, fmt.Errorf("isolation.available_path %q must be absolute", c.Isolation.AvailablePath))
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.HTTP.Port))
	}
	switch strings.ToUpper(c.Logger.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		errs = append(errs, fmt.Errorf("logger.level %q is unknown", c.Logger.Level))
	}
	return errors.Join(errs...)
}
