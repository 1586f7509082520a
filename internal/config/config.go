package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"dragon-mcp/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App          AppConfig              `mapstructure:"app"`
	Logging      logging.Config         `mapstructure:"logging"`
	PrimaryChain string                 `mapstructure:"primary_chain"`
	Chains       map[string]ChainConfig `mapstructure:"chains"`
	Oracle       OracleConfig           `mapstructure:"oracle"`
	Lottery      LotteryConfig          `mapstructure:"lottery"`
	Signer       SignerConfig           `mapstructure:"signer"`
	HTTP         HTTPConfig             `mapstructure:"http"`
	Redis        RedisConfig            `mapstructure:"redis"`
	Database     DatabaseConfig         `mapstructure:"database"`
	Scheduler    SchedulerConfig        `mapstructure:"scheduler"`
	Alerting     AlertingConfig         `mapstructure:"alerting"`
	Export       ExportConfig           `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ChainConfig describes one network of the omniDRAGON deployment.
type ChainConfig struct {
	RPCURL            string          `mapstructure:"rpc_url"`
	EID               uint32          `mapstructure:"eid"`
	LayerZeroEndpoint string          `mapstructure:"layerzero_endpoint"`
	WrappedNative     string          `mapstructure:"wrapped_native"`
	Contracts         ContractsConfig `mapstructure:"contracts"`
}

// ContractsConfig holds contract addresses per role.
type ContractsConfig struct {
	Token   string `mapstructure:"token"`
	Oracle  string `mapstructure:"oracle"`
	Lottery string `mapstructure:"lottery"`
	Jackpot string `mapstructure:"jackpot"`
}

// OracleConfig tunes the price health checks.
type OracleConfig struct {
	HealthChains          []string      `mapstructure:"health_chains"`
	DeviationThresholdPct float64       `mapstructure:"deviation_threshold_pct"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout"`
}

// LotteryConfig parameterises lottery simulation.
type LotteryConfig struct {
	SimulationUser string `mapstructure:"simulation_user"`
}

// SignerConfig covers state-changing calls. An empty key means simulation only.
type SignerConfig struct {
	PrivateKey     string        `mapstructure:"private_key"`
	GasLimit       uint64        `mapstructure:"gas_limit"`
	ReceiptTimeout time.Duration `mapstructure:"receipt_timeout"`
}

// HTTPConfig configures the hosted API.
type HTTPConfig struct {
	Addr             string        `mapstructure:"addr"`
	Port             string        `mapstructure:"port"`
	CORSOrigins      []string      `mapstructure:"cors_origins"`
	RateLimitPerHour int           `mapstructure:"rate_limit_per_hour"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	APIKeys          APIKeyConfig  `mapstructure:"api_keys"`
}

// APIKeyConfig maps bearer credentials to roles.
type APIKeyConfig struct {
	Development string `mapstructure:"development"`
	Team        string `mapstructure:"team"`
	Admin       string `mapstructure:"admin"`
}

// RedisConfig enables a shared rate-limit counter when URL is set.
type RedisConfig struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs health snapshot cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Cooldown time.Duration  `mapstructure:"cooldown"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

const defaultContractAddress = "0x6969696969696969696969696969696969697777"

type chainDefaults struct {
	rpcURL     string
	eid        uint32
	lzEndpoint string
	wrapped    string
}

var knownChains = map[string]chainDefaults{
	"sonic":     {rpcURL: "https://rpc.soniclabs.com", eid: 30332, lzEndpoint: "0x6F475642a6e85809B1c36Fa62763669b1b48DD5B", wrapped: "0x039e2fB66102314Ce7b64Ce5Ce3E5183bc94aD38"},
	"ethereum":  {eid: 30101, lzEndpoint: "0x1a44076050125825900e736c501f859c50fE728c", wrapped: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"},
	"arbitrum":  {eid: 30110, lzEndpoint: "0x1a44076050125825900e736c501f859c50fE728c", wrapped: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"},
	"base":      {eid: 30184, lzEndpoint: "0x1a44076050125825900e736c501f859c50fE728c", wrapped: "0x4200000000000000000000000000000000000006"},
	"avalanche": {eid: 30106, lzEndpoint: "0x1a44076050125825900e736c501f859c50fE728c", wrapped: "0xB31f66AA3C1e785363F0875A1B74E27b85FD66c7"},
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DRAGONMCP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dragon-mcp")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("primary_chain", "sonic")
	for id, def := range knownChains {
		prefix := "chains." + id + "."
		v.SetDefault(prefix+"rpc_url", def.rpcURL)
		v.SetDefault(prefix+"eid", def.eid)
		v.SetDefault(prefix+"layerzero_endpoint", def.lzEndpoint)
		v.SetDefault(prefix+"wrapped_native", def.wrapped)
		v.SetDefault(prefix+"contracts.token", defaultContractAddress)
		v.SetDefault(prefix+"contracts.oracle", defaultContractAddress)
		v.SetDefault(prefix+"contracts.lottery", defaultContractAddress)
		v.SetDefault(prefix+"contracts.jackpot", "")
	}
	v.SetDefault("chains.sonic.contracts.jackpot", defaultContractAddress)

	v.SetDefault("oracle.health_chains", []string{"sonic", "ethereum", "arbitrum", "base"})
	v.SetDefault("oracle.deviation_threshold_pct", 5.0)
	v.SetDefault("oracle.request_timeout", "15s")

	v.SetDefault("lottery.simulation_user", "0x1234567890123456789012345678901234567890")

	v.SetDefault("signer.gas_limit", uint64(500000))
	v.SetDefault("signer.receipt_timeout", "120s")

	v.SetDefault("http.addr", "0.0.0.0")
	v.SetDefault("http.port", "8000")
	v.SetDefault("http.cors_origins", []string{"https://cursor.sh", "https://sonicreddragon.io"})
	v.SetDefault("http.rate_limit_per_hour", 100)
	v.SetDefault("http.request_timeout", "150s")
	v.SetDefault("http.api_keys.development", "dev-key-12345")

	v.SetDefault("redis.key_prefix", "dragonmcp:ratelimit")

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x44524147))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

// bindLegacyEnv maps the environment variable names used by existing
// deployments onto configuration keys.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"signer.private_key":             {"PRIVATE_KEY"},
		"http.port":                      {"PORT"},
		"http.api_keys.development":      {"DRAGON_MCP_API_KEY"},
		"http.api_keys.team":             {"TEAM_API_KEY"},
		"http.api_keys.admin":            {"ADMIN_API_KEY"},
		"redis.url":                      {"REDIS_URL"},
		"database.dsn":                   {"DATABASE_URL"},
		"chains.sonic.contracts.oracle":  {"PRIMARY_ORACLE_ADDRESS"},
		"chains.sonic.contracts.lottery": {"LOTTERY_MANAGER_ADDRESS"},
		"chains.sonic.contracts.jackpot": {"JACKPOT_VAULT_ADDRESS"},
	}
	for id := range knownChains {
		upper := strings.ToUpper(id)
		prefix := "chains." + id + "."
		bindings[prefix+"rpc_url"] = []string{"RPC_URL_" + upper}
		bindings[prefix+"contracts.token"] = []string{"OMNIDRAGON_ADDRESS"}
		if id != "sonic" {
			bindings[prefix+"contracts.oracle"] = []string{"ORACLE_" + upper}
			bindings[prefix+"contracts.lottery"] = []string{"LOTTERY_" + upper}
			bindings[prefix+"contracts.jackpot"] = []string{"JACKPOT_VAULT_" + upper}
		}
	}

	for key, envs := range bindings {
		// The prefixed name keeps precedence over the legacy one.
		prefixed := "DRAGONMCP_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		args := append([]string{key, prefixed}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.PrimaryChain == "" {
		return fmt.Errorf("primary_chain must be set")
	}
	if _, ok := c.Chains[c.PrimaryChain]; !ok {
		return fmt.Errorf("primary_chain %q is not a configured chain", c.PrimaryChain)
	}
	for _, id := range c.Oracle.HealthChains {
		if _, ok := c.Chains[id]; !ok {
			return fmt.Errorf("oracle.health_chains: unknown chain %q", id)
		}
	}
	if c.Oracle.DeviationThresholdPct <= 0 {
		return fmt.Errorf("oracle.deviation_threshold_pct must be greater than zero")
	}
	if c.HTTP.RateLimitPerHour <= 0 {
		return fmt.Errorf("http.rate_limit_per_hour must be greater than zero")
	}
	if c.Signer.GasLimit == 0 {
		return fmt.Errorf("signer.gas_limit must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

// ListenAddr joins the HTTP bind address and port.
func (c *Config) ListenAddr() string {
	return c.HTTP.ListenAddr()
}

// ListenAddr joins the bind address and port.
func (h HTTPConfig) ListenAddr() string {
	if strings.Contains(h.Addr, ":") {
		return h.Addr
	}
	return h.Addr + ":" + h.Port
}

// HasSigner reports whether state-changing calls may be sent.
func (c *Config) HasSigner() bool {
	return strings.TrimSpace(c.Signer.PrivateKey) != ""
}
