// Package config loads server configuration from a YAML file with
// environment overrides. A .env file next to the binary is honored for
// local development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Robot is a statically configured UDP-controlled robot. Rovers that
// connect over websocket register themselves and need no entry here.
type Robot struct {
	ID            string `yaml:"id"`
	Host          string `yaml:"host"`
	ControlPort   int    `yaml:"controlPort"`
	MaxWheelSpeed int    `yaml:"maxWheelSpeed"`
}

// Admin is a privileged login. Lockdown admins may enter lockdown mode.
type Admin struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"passwordHash"` // bcrypt
	Lockdown     bool   `yaml:"lockdown"`
}

type Config struct {
	ListenAddr        string `yaml:"listenAddr"`
	ControlBindPort   int    `yaml:"controlBindPort"`
	TelemetryBindPort int    `yaml:"telemetryBindPort"`

	TurnSeconds          int `yaml:"turnSeconds"`
	IdleSeconds          int `yaml:"idleSeconds"`
	MaxIdleSkips         int `yaml:"maxIdleSkips"`
	LockdownGraceSeconds int `yaml:"lockdownGraceSeconds"`

	Robots []Robot `yaml:"robots"`
	Admins []Admin `yaml:"admins"`
}

const (
	defaultListenAddr        = ":8080"
	defaultControlBindPort   = 62000
	defaultTelemetryBindPort = 62001
	defaultRobotControlPort  = 50010
	defaultMaxWheelSpeed     = 500
)

// Load reads the YAML file at path and applies env overrides on top.
// A missing file is not an error: the result is a usable default config
// with no robots and no admins.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}
	if c.ControlBindPort == 0 {
		c.ControlBindPort = defaultControlBindPort
	}
	if c.TelemetryBindPort == 0 {
		c.TelemetryBindPort = defaultTelemetryBindPort
	}
	for i := range c.Robots {
		if c.Robots[i].ControlPort == 0 {
			c.Robots[i].ControlPort = defaultRobotControlPort
		}
		if c.Robots[i].MaxWheelSpeed == 0 {
			c.Robots[i].MaxWheelSpeed = defaultMaxWheelSpeed
		}
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ROVER_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v, ok := envInt("ROVER_CONTROL_BIND_PORT"); ok {
		c.ControlBindPort = v
	}
	if v, ok := envInt("ROVER_TELEMETRY_BIND_PORT"); ok {
		c.TelemetryBindPort = v
	}
	if v, ok := envInt("ROVER_TURN_SECONDS"); ok {
		c.TurnSeconds = v
	}
	if v, ok := envInt("ROVER_LOCKDOWN_GRACE_SECONDS"); ok {
		c.LockdownGraceSeconds = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
