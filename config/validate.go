package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"pooledger/core/state"
	"pooledger/journal"
	telemetry "pooledger/observability/otel"
)

func (c *Config) normalize() {
	c.Env = strings.TrimSpace(c.Env)
	if c.Env == "" {
		c.Env = "local"
	}

	c.Node.ListenAddress = strings.TrimSpace(c.Node.ListenAddress)
	if c.Node.ListenAddress == "" {
		c.Node.ListenAddress = defaultListenAddress
	}
	c.Node.DataDir = strings.TrimSpace(c.Node.DataDir)
	if c.Node.DataDir == "" {
		c.Node.DataDir = defaultDataDir
	}
	c.Node.Database = strings.ToLower(strings.TrimSpace(c.Node.Database))
	if c.Node.Database == "" {
		c.Node.Database = DatabaseLevelDB
	}
	if c.Node.ShutdownTimeout <= 0 {
		c.Node.ShutdownTimeout = 10 * time.Second
	}

	c.Program.LendingSeed = strings.TrimSpace(c.Program.LendingSeed)
	if c.Program.LendingSeed == "" {
		c.Program.LendingSeed = defaultLendingSeed
	}
	paused := c.Program.Paused[:0]
	for _, module := range c.Program.Paused {
		if trimmed := strings.ToLower(strings.TrimSpace(module)); trimmed != "" {
			paused = append(paused, trimmed)
		}
	}
	c.Program.Paused = paused

	if c.Rent == (state.Rent{}) {
		c.Rent = state.DefaultRent()
	}

	c.Token.MintAuthority = strings.TrimSpace(c.Token.MintAuthority)
	c.Token.MintKeystore = strings.TrimSpace(c.Token.MintKeystore)

	c.Journal.Driver = strings.ToLower(strings.TrimSpace(c.Journal.Driver))
	if c.Journal.Driver == "" {
		c.Journal.Driver = journal.DriverSQLite
	}
	if c.Journal.Driver == journal.DriverSQLite && strings.TrimSpace(c.Journal.DSN) == "" {
		c.Journal.DSN = filepath.Join(c.Node.DataDir, "journal.db")
	}

	c.Telemetry.Endpoint = strings.TrimSpace(c.Telemetry.Endpoint)
	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			c.Telemetry.Endpoint = telemetry.DefaultEndpoint
		}
		if c.Telemetry.SampleRatio == 0 {
			c.Telemetry.SampleRatio = 1
		}
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.File != "" {
		if c.Logging.MaxSizeMB <= 0 {
			c.Logging.MaxSizeMB = 100
		}
		if c.Logging.MaxBackups <= 0 {
			c.Logging.MaxBackups = 5
		}
	}
}

func (c *Config) validate() error {
	if c == nil {
		return errors.New("configuration is missing")
	}
	switch c.Node.Database {
	case DatabaseLevelDB, DatabaseMemory:
	default:
		return fmt.Errorf("node: unsupported database %q", c.Node.Database)
	}
	if c.Rent.DepositPerByte == 0 {
		return errors.New("rent: DepositPerByte must be positive")
	}
	if _, err := c.MintAuthority(); err != nil {
		return fmt.Errorf("token: invalid MintAuthority: %w", err)
	}
	if c.Quota.MaxRequestsPerEpoch > 0 && c.Quota.EpochSeconds == 0 {
		return errors.New("quota: EpochSeconds must be set when MaxRequestsPerEpoch is")
	}
	switch c.Journal.Driver {
	case journal.DriverSQLite, JournalDisabled:
	case journal.DriverPostgres:
		if strings.TrimSpace(c.Journal.DSN) == "" {
			return errors.New("journal: postgres requires DSN")
		}
	default:
		return fmt.Errorf("journal: unsupported driver %q", c.Journal.Driver)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", c.Logging.Level)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio %v outside [0,1]", c.Telemetry.SampleRatio)
	}
	if c.API.Auth.Enabled && strings.TrimSpace(c.API.Auth.HMACSecret) == "" {
		return errors.New("api: auth enabled without HMACSecret")
	}
	for key, limit := range c.API.RateLimits {
		if limit.RatePerSecond <= 0 || limit.Burst <= 0 {
			return fmt.Errorf("api: rate limit %q must have positive RatePerSecond and Burst", key)
		}
	}
	return nil
}
