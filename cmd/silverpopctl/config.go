package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jpitassi/silverpop/session"
	"github.com/jpitassi/silverpop/transport"
)

type fileConfig struct {
	Endpoint           string `toml:"endpoint"`
	Username           string `toml:"username"`
	Password           string `toml:"password"`
	PasswordEnv        string `toml:"password_env"`
	TokenParam         string `toml:"token_param"`
	Timeout            string `toml:"timeout"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
	CAFile             string `toml:"ca_file"`
	LogTransactions    bool   `toml:"log_transactions"`
	LogFaults          bool   `toml:"log_faults"`
}

type cliConfig struct {
	Session   session.Config
	Transport transport.Config
}

func defaultCLIConfig() cliConfig {
	return cliConfig{
		Session:   session.Config{TokenParam: session.DefaultTokenParam},
		Transport: transport.DefaultConfig(),
	}
}

func loadConfig(path string) (cliConfig, error) {
	cfg := defaultCLIConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return cliConfig{}, fmt.Errorf("load silverpop config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return cliConfig{}, fmt.Errorf("load silverpop config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("endpoint") {
		cfg.Session.Endpoint = strings.TrimSpace(raw.Endpoint)
	}
	if meta.IsDefined("username") {
		cfg.Session.Username = strings.TrimSpace(raw.Username)
	}
	if meta.IsDefined("password") {
		cfg.Session.Password = raw.Password
	}
	if meta.IsDefined("password_env") {
		name := strings.TrimSpace(raw.PasswordEnv)
		v, ok := os.LookupEnv(name)
		if !ok {
			return cliConfig{}, fmt.Errorf("password_env: %s is not set", name)
		}
		cfg.Session.Password = v
	}
	if meta.IsDefined("token_param") {
		cfg.Session.TokenParam = strings.TrimSpace(raw.TokenParam)
	}
	if meta.IsDefined("log_transactions") {
		cfg.Session.LogTransactions = raw.LogTransactions
	}
	if meta.IsDefined("log_faults") {
		cfg.Session.LogFaults = raw.LogFaults
	}

	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return cliConfig{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Transport.Timeout = d
	}
	if meta.IsDefined("insecure_skip_verify") {
		cfg.Transport.InsecureSkipVerify = raw.InsecureSkipVerify
	}
	if meta.IsDefined("ca_file") {
		cfg.Transport.CAFile = strings.TrimSpace(raw.CAFile)
	}

	if err := cfg.Transport.Validate(); err != nil {
		return cliConfig{}, err
	}
	return cfg, nil
}
