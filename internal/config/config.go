package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// jwtSecretEnv overrides auth.jwt_secret so the secret can stay out of the file.
const jwtSecretEnv = "JWT_SECRET"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Env             string   `yaml:"env"`
	BaseURL         string   `yaml:"base_url"`
	ShortCodeLength int      `yaml:"short_code_length"`
	Storage         string   `yaml:"storage"`
	HTTPServer      `yaml:"http_server"`
	Postgres        `yaml:"postgres"`
	Auth            Auth     `yaml:"auth"`
	Recorder        Recorder `yaml:"recorder"`
	Geo             Geo      `yaml:"geo"`
	Sweeper         Sweeper  `yaml:"sweeper"`
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Postgres struct {
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DB              string        `yaml:"db"`
	SSLMode         string        `yaml:"sslmode"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MigrationsPath  string        `yaml:"migrations_path"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
	MigrationsPath:  "file://migrations",
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

// Auth configures owner bearer tokens. An empty secret disables owner endpoints.
type Auth struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// Recorder tunes the click recording worker pool.
type Recorder struct {
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`
	GeoTimeout     time.Duration `yaml:"geo_timeout"`
	PersistTimeout time.Duration `yaml:"persist_timeout"`
}

var defaultRecorder = Recorder{
	Workers:        4,
	QueueSize:      1024,
	GeoTimeout:     2 * time.Second,
	PersistTimeout: 5 * time.Second,
}

// Geo configures IP geolocation. Setting memcache_addr shares the cache
// between instances.
type Geo struct {
	Enabled      bool          `yaml:"enabled"`
	PrimaryURL   string        `yaml:"primary_url"`
	FallbackURL  string        `yaml:"fallback_url"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	MemcacheAddr string        `yaml:"memcache_addr"`
}

var defaultGeo = Geo{
	Enabled:     true,
	PrimaryURL:  "https://ipapi.co",
	FallbackURL: "http://ip-api.com",
	CacheTTL:    10 * time.Minute,
}

// Sweeper schedules the deactivation of expired links. An empty schedule
// disables it.
type Sweeper struct {
	Schedule string        `yaml:"schedule"`
	Timeout  time.Duration `yaml:"timeout"`
}

var defaultSweeper = Sweeper{
	Schedule: "@every 1m",
	Timeout:  30 * time.Second,
}

func Load(path string) (*Config, error) {
	const op = "config.Load"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
	}
	defer f.Close()

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	if secret := os.Getenv(jwtSecretEnv); secret != "" {
		cfg.Auth.JWTSecret = secret
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.Storage != StoragePostgres && cfg.Storage != StorageMemory {
		return fmt.Errorf("%w: unknown storage %q", ErrInvalidConfig, cfg.Storage)
	}

	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return fmt.Errorf("%w: base_url must be an http or https url", ErrInvalidConfig)
	}

	return nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.BaseURL = "http://localhost:8080"
	cfg.ShortCodeLength = 7
	cfg.Storage = StoragePostgres
	cfg.HTTPServer = defaultHTTPServer
	cfg.Postgres = defaultPostgres
	cfg.Recorder = defaultRecorder
	cfg.Geo = defaultGeo
	cfg.Sweeper = defaultSweeper
}
