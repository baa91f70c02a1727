package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del monitor.
type Config struct {
	Staking StakingConfig `yaml:"staking"`
	Signals SignalsConfig `yaml:"signals"`
	Monitor MonitorConfig `yaml:"monitor"`
	Feed    FeedConfig    `yaml:"feed"`
	API     APIConfig     `yaml:"api"`
	Log     LogConfig     `yaml:"log"`
}

// StakingConfig controla el sizing y los filtros de resultados.
// El orchestrator la snapshotea al inicio de cada ciclo: es inmutable
// durante el cálculo y recargable entre ciclos.
type StakingConfig struct {
	Bankroll        float64 `yaml:"bankroll"`         // USDC
	KellyMultiplier float64 `yaml:"kelly_multiplier"` // fracción de full Kelly, 0–1
	MaxBetPct       float64 `yaml:"max_bet_pct"`      // cap del stake como fracción del bankroll
	MinEdge         float64 `yaml:"min_edge"`         // filtro: edge mínimo
	MinLiquidity    float64 `yaml:"min_liquidity"`    // filtro: profundidad mínima del book (shares)
}

// SignalsConfig configura las fuentes de probabilidad y sus pesos.
type SignalsConfig struct {
	Weights      WeightsConfig `yaml:"weights"`
	OddsCSV      string        `yaml:"odds_csv"` // ruta al CSV de odds, vacío = deshabilitado
	OddsDSN      string        `yaml:"odds_dsn"` // DSN SQLite de odds, vacío = deshabilitado
	AIEnabled    bool          `yaml:"ai_enabled"`
	AnthropicKey string        `yaml:"-"` // solo desde env, nunca desde YAML
}

// WeightsConfig son los pesos de fusión por fuente.
type WeightsConfig struct {
	Market     float64 `yaml:"market"`
	Sportsbook float64 `yaml:"sportsbook"`
	Model      float64 `yaml:"model"`
	AI         float64 `yaml:"ai"`
}

// MonitorConfig controla la cadencia del orchestrator.
type MonitorConfig struct {
	RefreshIntervalSeconds   int     `yaml:"refresh_interval_s"`
	DiscoveryIntervalSeconds int     `yaml:"discovery_interval_s"`
	StaleAfterSeconds        int     `yaml:"stale_after_s"`    // edad del book a partir de la cual el resultado se marca stale
	OrderSizeUSDC            float64 `yaml:"order_size_usdc"`  // tamaño usado para estimar slippage
	MaxMarkets               int     `yaml:"max_markets"`      // límite de mercados trackeados (0 = sin límite)
	FeeDefaultBps            float64 `yaml:"fee_default_bps"`  // fee conservador si la API no devuelve uno
}

// FeedConfig controla el stream de orderbooks y su reconexión.
type FeedConfig struct {
	Enabled             bool   `yaml:"enabled"`
	WSURL               string `yaml:"ws_url"`
	SilenceTimeoutSecs  int    `yaml:"silence_timeout_s"` // sin mensajes → posible stale → reconectar
	ReconnectBaseMillis int    `yaml:"reconnect_base_ms"`
	ReconnectCapSecs    int    `yaml:"reconnect_cap_s"`
	ReconnectMaxRetries int    `yaml:"reconnect_max_retries"` // por ventana de intentos
}

// APIConfig contiene los base URLs de las APIs REST.
type APIConfig struct {
	CLOBBase  string `yaml:"clob_base"`
	GammaBase string `yaml:"gamma_base"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el .env si existe.
// Un archivo inválido devuelve error sin tocar ninguna configuración previa:
// el caller conserva la última válida.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return &cfg, nil
}

// Validate rechaza configuraciones sin sentido en el boundary de carga.
func (c *Config) Validate() error {
	s := c.Staking
	if s.Bankroll < 0 {
		return fmt.Errorf("validate: bankroll must be >= 0, got %.2f", s.Bankroll)
	}
	if s.KellyMultiplier < 0 || s.KellyMultiplier > 1 {
		return fmt.Errorf("validate: kelly_multiplier must be in [0,1], got %.2f", s.KellyMultiplier)
	}
	if s.MaxBetPct < 0 || s.MaxBetPct > 1 {
		return fmt.Errorf("validate: max_bet_pct must be in [0,1], got %.2f", s.MaxBetPct)
	}
	if s.MinEdge < 0 || s.MinLiquidity < 0 {
		return fmt.Errorf("validate: filters must be >= 0")
	}
	w := c.Signals.Weights
	if w.Market < 0 || w.Sportsbook < 0 || w.Model < 0 || w.AI < 0 {
		return fmt.Errorf("validate: signal weights must be >= 0")
	}
	if w.Market+w.Sportsbook+w.Model+w.AI <= 0 {
		return fmt.Errorf("validate: at least one signal weight must be > 0")
	}
	return nil
}

// RefreshInterval devuelve el intervalo de refresh como time.Duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Monitor.RefreshIntervalSeconds) * time.Second
}

// DiscoveryInterval devuelve el intervalo de discovery como time.Duration.
func (c *Config) DiscoveryInterval() time.Duration {
	return time.Duration(c.Monitor.DiscoveryIntervalSeconds) * time.Second
}

// StaleAfter devuelve la edad máxima de un book antes de marcarlo stale.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Monitor.StaleAfterSeconds) * time.Second
}

// SilenceTimeout devuelve el timeout de silencio del stream.
func (c *Config) SilenceTimeout() time.Duration {
	return time.Duration(c.Feed.SilenceTimeoutSecs) * time.Second
}

// ReconnectBase devuelve el delay base de reconexión del stream.
func (c *Config) ReconnectBase() time.Duration {
	return time.Duration(c.Feed.ReconnectBaseMillis) * time.Millisecond
}

// ReconnectCap devuelve el delay máximo de reconexión del stream.
func (c *Config) ReconnectCap() time.Duration {
	return time.Duration(c.Feed.ReconnectCapSecs) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si existen.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Signals.AnthropicKey = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Staking.Bankroll == 0 {
		cfg.Staking.Bankroll = 5000
	}
	if cfg.Staking.KellyMultiplier == 0 {
		cfg.Staking.KellyMultiplier = 0.5 // half-Kelly
	}
	if cfg.Staking.MaxBetPct == 0 {
		cfg.Staking.MaxBetPct = 0.03
	}
	w := &cfg.Signals.Weights
	if w.Market == 0 && w.Sportsbook == 0 && w.Model == 0 && w.AI == 0 {
		*w = WeightsConfig{Market: 0.4, Sportsbook: 0.4, Model: 0.15, AI: 0.05}
	}
	if cfg.Monitor.RefreshIntervalSeconds <= 0 {
		cfg.Monitor.RefreshIntervalSeconds = 30
	}
	if cfg.Monitor.DiscoveryIntervalSeconds <= 0 {
		cfg.Monitor.DiscoveryIntervalSeconds = 300
	}
	if cfg.Monitor.StaleAfterSeconds <= 0 {
		cfg.Monitor.StaleAfterSeconds = 90
	}
	if cfg.Monitor.OrderSizeUSDC <= 0 {
		cfg.Monitor.OrderSizeUSDC = 100
	}
	if cfg.Monitor.FeeDefaultBps <= 0 {
		cfg.Monitor.FeeDefaultBps = 200 // 2% conservador
	}
	if cfg.Feed.WSURL == "" {
		cfg.Feed.WSURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	}
	if cfg.Feed.SilenceTimeoutSecs <= 0 {
		cfg.Feed.SilenceTimeoutSecs = 60
	}
	if cfg.Feed.ReconnectBaseMillis <= 0 {
		cfg.Feed.ReconnectBaseMillis = 500
	}
	if cfg.Feed.ReconnectCapSecs <= 0 {
		cfg.Feed.ReconnectCapSecs = 30
	}
	if cfg.Feed.ReconnectMaxRetries <= 0 {
		cfg.Feed.ReconnectMaxRetries = 10
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
