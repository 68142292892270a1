package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	AuthTransportHTTP = "http"
	AuthTransportGRPC = "grpc"

	defaultAuthTimeout       = 3 * time.Second
	defaultReadTimeout       = 10 * time.Second
	defaultWriteTimeout      = 10 * time.Second
	defaultShutdownTimeout   = 15 * time.Second
	defaultReconcileQueue    = "user.registration.orphaned"
	defaultDatabaseIsolation = "read_committed"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Auth           AuthConfig           `yaml:"auth"`
	JWT            JWTConfig            `yaml:"jwt"`
	Log            LogConfig            `yaml:"log"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
}

// ServerConfig は HTTP サーバーに関する設定です。
type ServerConfig struct {
	ListenAddr         string        `yaml:"listen_addr"`
	ReadTimeout        time.Duration `yaml:"-"`
	WriteTimeout       time.Duration `yaml:"-"`
	ShutdownTimeout    time.Duration `yaml:"-"`
	ReadTimeoutRaw     string        `yaml:"read_timeout"`
	WriteTimeoutRaw    string        `yaml:"write_timeout"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	Isolation          string        `yaml:"isolation"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// AuthConfig は認証サービスへの接続設定です。
type AuthConfig struct {
	Transport  string        `yaml:"transport"`
	BaseURL    string        `yaml:"base_url"`
	GRPCTarget string        `yaml:"grpc_target"`
	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// JWTConfig は呼び出し元ユーザーの識別に使うトークン検証設定です。
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// LogConfig はロガーの設定です。File が空の場合は標準出力のみです。
type LogConfig struct {
	Level string `yaml:"level"`
	Debug bool   `yaml:"debug"`
	File  string `yaml:"file"`
}

// ReconciliationConfig は補償失敗イベントの通知先設定です。
type ReconciliationConfig struct {
	Enabled bool   `yaml:"enabled"`
	AMQPURL string `yaml:"amqp_url"`
	Queue   string `yaml:"queue"`
}

// LoadDotEnv は .env ファイルを環境変数に読み込みます。ファイルが存在しない場合は何もしません。
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load dotenv: %w", err)
	}
	return nil
}

// Load は指定されたパスから設定ファイルを読み込み、環境変数で機密値を上書きします。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	cfg.applyEnvOverrides(os.LookupEnv)

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnvOverrides(lookup func(string) (string, bool)) {
	if v, ok := lookup("DATABASE_PASSWORD"); ok {
		c.Database.Password = v
	}
	if v, ok := lookup("DATABASE_HOST"); ok {
		c.Database.Host = v
	}
	if v, ok := lookup("DATABASE_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			c.Database.Port = port
		}
	}
	if v, ok := lookup("AUTH_BASE_URL"); ok {
		c.Auth.BaseURL = v
	}
	if v, ok := lookup("AUTH_GRPC_TARGET"); ok {
		c.Auth.GRPCTarget = v
	}
	if v, ok := lookup("JWT_SECRET"); ok {
		c.JWT.Secret = v
	}
	if v, ok := lookup("AMQP_URL"); ok {
		c.Reconciliation.AMQPURL = v
	}
}

func (c *Config) validateAndNormalize() error {
	if err := c.Server.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Auth.validateAndNormalize(); err != nil {
		return err
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("config: jwt.secret must be set")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Reconciliation.Enabled {
		if c.Reconciliation.AMQPURL == "" {
			return fmt.Errorf("config: reconciliation.amqp_url must be set when enabled")
		}
		if c.Reconciliation.Queue == "" {
			c.Reconciliation.Queue = defaultReconcileQueue
		}
	}
	return nil
}

func (s *ServerConfig) validateAndNormalize() error {
	if s.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}

	var err error
	if s.ReadTimeout, err = parseDurationOrDefault(s.ReadTimeoutRaw, defaultReadTimeout); err != nil {
		return fmt.Errorf("config: server.read_timeout: %w", err)
	}
	if s.WriteTimeout, err = parseDurationOrDefault(s.WriteTimeoutRaw, defaultWriteTimeout); err != nil {
		return fmt.Errorf("config: server.write_timeout: %w", err)
	}
	if s.ShutdownTimeout, err = parseDurationOrDefault(s.ShutdownTimeoutRaw, defaultShutdownTimeout); err != nil {
		return fmt.Errorf("config: server.shutdown_timeout: %w", err)
	}
	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	switch d.Isolation {
	case "":
		d.Isolation = defaultDatabaseIsolation
	case "read_committed", "repeatable_read", "serializable":
	default:
		return fmt.Errorf("config: database.isolation %q is not supported", d.Isolation)
	}

	var err error
	if d.ConnMaxLifetime, err = parseDurationOrDefault(d.ConnMaxLifetimeRaw, 0); err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	if d.ConnMaxIdleTime, err = parseDurationOrDefault(d.ConnMaxIdleTimeRaw, 0); err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	return nil
}

func (a *AuthConfig) validateAndNormalize() error {
	a.Transport = strings.ToLower(strings.TrimSpace(a.Transport))
	if a.Transport == "" {
		a.Transport = AuthTransportHTTP
	}

	switch a.Transport {
	case AuthTransportHTTP:
		if a.BaseURL == "" {
			return fmt.Errorf("config: auth.base_url must be set for http transport")
		}
		if _, err := url.ParseRequestURI(a.BaseURL); err != nil {
			return fmt.Errorf("config: auth.base_url: %w", err)
		}
	case AuthTransportGRPC:
		if a.GRPCTarget == "" {
			return fmt.Errorf("config: auth.grpc_target must be set for grpc transport")
		}
	default:
		return fmt.Errorf("config: auth.transport %q is not supported", a.Transport)
	}

	timeout, err := parseDurationOrDefault(a.TimeoutRaw, defaultAuthTimeout)
	if err != nil {
		return fmt.Errorf("config: auth.timeout: %w", err)
	}
	a.Timeout = timeout
	return nil
}

func parseDurationOrDefault(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	return time.ParseDuration(raw)
}

// DSN は pgx / golang-migrate 用の接続文字列を返します。認証情報はエスケープされます。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}
