package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"pooledger/crypto"
)

const (
	DatabaseLevelDB = "leveldb"
	DatabaseMemory  = "memory"

	// JournalDisabled turns the journal off.
	JournalDisabled = "none"

	defaultListenAddress = ":8645"
	defaultDataDir       = "./pooledger-data"
	defaultLendingSeed   = "pooledger/poollend"
	defaultKeystoreName  = "mint.keystore"
)

// Load reads the configuration at path. TOML is assumed unless the file
// extension is .yaml or .yml. A missing TOML file is created with defaults
// and a freshly generated mint authority keystore.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if isYAML(path) {
			return nil, fmt.Errorf("config file %s not found", path)
		}
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if isYAML(path) {
		decoder := yaml.NewDecoder(bytes.NewReader(raw))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	} else {
		meta, err := toml.Decode(string(raw), cfg)
		if err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0])
		}
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration written by createDefault, minus the
// generated mint authority.
func Default() *Config {
	cfg := &Config{}
	cfg.normalize()
	return cfg
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.Token.MintAuthority = key.Key().String()
	cfg.Token.MintKeystore = keystorePath
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, defaultKeystoreName)
}

// LendingProgram returns the configured lending program id.
func (c *Config) LendingProgram() crypto.Key {
	return crypto.NamedKey(c.Program.LendingSeed)
}

// MintAuthority decodes the configured mint authority. A blank value yields
// the zero key, which disables minting.
func (c *Config) MintAuthority() (crypto.Key, error) {
	if strings.TrimSpace(c.Token.MintAuthority) == "" {
		return crypto.Key{}, nil
	}
	return crypto.DecodeKey(c.Token.MintAuthority)
}
