package config

import (
	"chainbridgex/internal/pow"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	API    APIConfig    `json:"api"`
	Chain  ChainConfig  `json:"chain"`
	Store  StoreConfig  `json:"store"`
	Wallet WalletConfig `json:"wallet"`
	Log    LogConfig    `json:"log"`
}

type APIConfig struct {
	ListenAddr   string   `json:"listen"`
	ReadTimeout  Duration `json:"readTimeout"`
	WriteTimeout Duration `json:"writeTimeout"`
	IdleTimeout  Duration `json:"idleTimeout"`
}

type ChainConfig struct {
	Difficulty  uint32   `json:"difficulty"` // leading zero bytes
	Workers     int      `json:"workers"`
	MineTimeout Duration `json:"mineTimeout"`
}

type StoreConfig struct {
	Backend       string   `json:"backend"` // badger|sqlite|file|memory
	Path          string   `json:"path"`
	FlushInterval Duration `json:"flushInterval"`
}

type WalletConfig struct {
	KeystorePath string `json:"keystore"`
	Password     string `json:"-"`
	MinerAddress string `json:"minerAddress"`
}

type LogConfig struct {
	Level  string `json:"level"`  // debug|info|warn|error
	Format string `json:"format"` // json|console
}

// Duration reads and writes time.Duration as a string such as "30s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func Default() Config {
	return Config{
		API: APIConfig{
			ListenAddr:   "127.0.0.1:3030",
			ReadTimeout:  Duration(10 * time.Second),
			WriteTimeout: Duration(5 * time.Minute),
			IdleTimeout:  Duration(60 * time.Second),
		},
		Chain: ChainConfig{
			Difficulty:  2,
			Workers:     1,
			MineTimeout: Duration(2 * time.Minute),
		},
		Store: StoreConfig{
			Backend:       "badger",
			Path:          "data/chain",
			FlushInterval: Duration(30 * time.Second),
		},
		Wallet: WalletConfig{
			KeystorePath: "data/keystore.json",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Parse builds the node configuration. Precedence, lowest first: defaults,
// CHAINBRIDGEX_* environment variables, the -config JSON file, explicit flags.
func Parse(args []string) (Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("chainbridgex", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var (
		configPath = fs.String("config", envOr("CHAINBRIDGEX_CONFIG", ""), "Path to a JSON config file (optional)")

		apiListen = fs.String("api.listen", envOr("CHAINBRIDGEX_API_LISTEN", cfg.API.ListenAddr), "HTTP API listen address (ip:port)")

		difficulty  = fs.Uint("chain.difficulty", uint(envOrInt("CHAINBRIDGEX_DIFFICULTY", int(cfg.Chain.Difficulty))), "Proof-of-work difficulty in leading zero bytes")
		workers     = fs.Int("chain.workers", envOrInt("CHAINBRIDGEX_WORKERS", cfg.Chain.Workers), "Parallel nonce search workers")
		mineTimeout = fs.Duration("chain.mineTimeout", envOrDuration("CHAINBRIDGEX_MINE_TIMEOUT", time.Duration(cfg.Chain.MineTimeout)), "Deadline for a single mining request")

		backend       = fs.String("store.backend", envOr("CHAINBRIDGEX_STORE_BACKEND", cfg.Store.Backend), "Storage backend: badger|sqlite|file|memory")
		storePath     = fs.String("store.path", envOr("CHAINBRIDGEX_STORE_PATH", cfg.Store.Path), "Storage location (directory for badger, file otherwise)")
		flushInterval = fs.Duration("store.flushInterval", envOrDuration("CHAINBRIDGEX_FLUSH_INTERVAL", time.Duration(cfg.Store.FlushInterval)), "How often pending transactions are flushed")

		keystore = fs.String("wallet.keystore", envOr("CHAINBRIDGEX_KEYSTORE", cfg.Wallet.KeystorePath), "Path to the miner keystore")
		miner    = fs.String("miner.address", envOr("CHAINBRIDGEX_MINER_ADDRESS", ""), "Coinbase recipient; overrides the keystore address")

		logLevel  = fs.String("log.level", envOr("CHAINBRIDGEX_LOG_LEVEL", cfg.Log.Level), "Log level: debug|info|warn|error")
		logFormat = fs.String("log.format", envOr("CHAINBRIDGEX_LOG_FORMAT", cfg.Log.Format), "Log format: json|console")
	)

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.API.ListenAddr = strings.TrimSpace(*apiListen)
	cfg.Chain.Difficulty = uint32(*difficulty)
	cfg.Chain.Workers = *workers
	cfg.Chain.MineTimeout = Duration(*mineTimeout)
	cfg.Store.Backend = strings.TrimSpace(*backend)
	cfg.Store.Path = strings.TrimSpace(*storePath)
	cfg.Store.FlushInterval = Duration(*flushInterval)
	cfg.Wallet.KeystorePath = strings.TrimSpace(*keystore)
	cfg.Wallet.MinerAddress = strings.TrimSpace(*miner)
	cfg.Wallet.Password = os.Getenv("CHAINBRIDGEX_KEYSTORE_PASSWORD")
	cfg.Log.Level = strings.TrimSpace(*logLevel)
	cfg.Log.Format = strings.TrimSpace(*logFormat)

	if p := strings.TrimSpace(*configPath); p != "" {
		explicit := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

		fileCfg, err := LoadFile(p, cfg)
		if err != nil {
			return Config{}, err
		}
		cfg = overlay(fileCfg, cfg, explicit)
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile decodes a JSON config file on top of base.
func LoadFile(path string, base Config) (Config, error) {
	data, err := ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := base
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, &Error{Message: fmt.Sprintf("failed to parse config file %s: %v", path, err), Err: err}
	}
	return cfg, nil
}

// SaveFile writes cfg as indented JSON. The keystore password is never written.
func SaveFile(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return WriteFile(path, data)
}

// overlay puts explicitly set flags back on top of the file values.
func overlay(file, flags Config, explicit map[string]bool) Config {
	out := file
	out.Wallet.Password = flags.Wallet.Password
	if explicit["api.listen"] {
		out.API.ListenAddr = flags.API.ListenAddr
	}
	if explicit["chain.difficulty"] {
		out.Chain.Difficulty = flags.Chain.Difficulty
	}
	if explicit["chain.workers"] {
		out.Chain.Workers = flags.Chain.Workers
	}
	if explicit["chain.mineTimeout"] {
		out.Chain.MineTimeout = flags.Chain.MineTimeout
	}
	if explicit["store.backend"] {
		out.Store.Backend = flags.Store.Backend
	}
	if explicit["store.path"] {
		out.Store.Path = flags.Store.Path
	}
	if explicit["store.flushInterval"] {
		out.Store.FlushInterval = flags.Store.FlushInterval
	}
	if explicit["wallet.keystore"] {
		out.Wallet.KeystorePath = flags.Wallet.KeystorePath
	}
	if explicit["miner.address"] {
		out.Wallet.MinerAddress = flags.Wallet.MinerAddress
	}
	if explicit["log.level"] {
		out.Log.Level = flags.Log.Level
	}
	if explicit["log.format"] {
		out.Log.Format = flags.Log.Format
	}
	return out
}

func validate(cfg Config) error {
	if cfg.API.ListenAddr == "" {
		return errors.New("api.listen must not be empty")
	}
	if cfg.Chain.Difficulty > pow.MaxDifficulty {
		return fmt.Errorf("chain.difficulty out of range: %d", cfg.Chain.Difficulty)
	}
	if cfg.Chain.Workers <= 0 || cfg.Chain.Workers > 256 {
		return fmt.Errorf("chain.workers out of range: %d", cfg.Chain.Workers)
	}
	if cfg.Chain.MineTimeout <= 0 {
		return errors.New("chain.mineTimeout must be positive")
	}

	switch strings.ToLower(cfg.Store.Backend) {
	case "badger", "sqlite", "file":
		if cfg.Store.Path == "" {
			return errors.New("store.path must not be empty")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid store.backend: %q", cfg.Store.Backend)
	}
	if cfg.Store.FlushInterval < 0 {
		return errors.New("store.flushInterval must not be negative")
	}

	if cfg.Wallet.MinerAddress == "" && cfg.Wallet.KeystorePath == "" {
		return errors.New("one of miner.address or wallet.keystore is required")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", cfg.Log.Level)
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log.format: %q", cfg.Log.Format)
	}
	return nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envOrInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
