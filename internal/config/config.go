package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	DBMaxConns          int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns          int32         `env:"DB_MIN_CONNS" envDefault:"1"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"30m"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"30s"`
	DBConnectTimeout    time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"5s"`

	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET,required,notEmpty"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET,required,notEmpty"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	JWTIssuer          string        `env:"JWT_ISSUER" envDefault:"authkeeper"`
	BcryptCost         int           `env:"BCRYPT_COST" envDefault:"12"`

	AppBaseURL                string   `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`
	ForgotPasswordRedirectURL string   `env:"FORGOT_PASSWORD_REDIRECT_URL,required,notEmpty"`
	CookieSecure              bool     `env:"COOKIE_SECURE" envDefault:"true"`
	CORSOrigins               []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"mail.authkeeper@example.com"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"Authkeeper"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	EmailRateLimit  int           `env:"EMAIL_RATE_LIMIT" envDefault:"3"`
	EmailRateWindow time.Duration `env:"EMAIL_RATE_WINDOW" envDefault:"10m"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogDev   bool   `env:"LOG_DEV" envDefault:"false"`
}

var ErrSharedTokenSecret = errors.New("access and refresh token secrets must differ")

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate revisa invariantes que las etiquetas no pueden expresar.
func (c *Config) Validate() error {
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return ErrSharedTokenSecret
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return errors.New("db pool sizes must satisfy 0 <= min <= max and max > 0")
	}
	if c.DBConnectTimeout <= 0 {
		return errors.New("db connect timeout must be positive")
	}
	return nil
}
