package config

import (
	"time"

	"pooledger/core/state"
	"pooledger/journal"
	nativecommon "pooledger/native/common"
	"pooledger/observability/logging"
	telemetry "pooledger/observability/otel"
	"pooledger/rpc"
)

// Node selects where the ledger keeps its records.
type Node struct {
	ListenAddress   string        `toml:"ListenAddress" yaml:"listen"`
	DataDir         string        `toml:"DataDir" yaml:"dataDir"`
	Database        string        `toml:"Database" yaml:"database"`
	ShutdownTimeout time.Duration `toml:"ShutdownTimeout" yaml:"shutdownTimeout"`
}

// Program configures the lending program id and module pauses.
type Program struct {
	// LendingSeed is hashed into the lending program id. Vault signers are
	// derived from that id, so changing it moves every vault.
	LendingSeed string   `toml:"LendingSeed" yaml:"lendingSeed"`
	Paused      []string `toml:"Paused" yaml:"paused"`
}

// Token configures the token program.
type Token struct {
	MintAuthority string `toml:"MintAuthority" yaml:"mintAuthority"`
	MintKeystore  string `toml:"MintKeystore" yaml:"mintKeystore"`
}

// Config is the poold configuration file.
type Config struct {
	Env       string             `toml:"Env" yaml:"env"`
	Node      Node               `toml:"Node" yaml:"node"`
	Program   Program            `toml:"Program" yaml:"program"`
	Rent      state.Rent         `toml:"Rent" yaml:"rent"`
	Token     Token              `toml:"Token" yaml:"token"`
	Quota     nativecommon.Quota `toml:"Quota" yaml:"quota"`
	Journal   journal.Config     `toml:"Journal" yaml:"journal"`
	Logging   logging.Options    `toml:"Logging" yaml:"logging"`
	Telemetry telemetry.Config   `toml:"Telemetry" yaml:"telemetry"`
	API       rpc.Config         `toml:"API" yaml:"api"`
}
