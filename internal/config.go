package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0" validate:"required"`
	HTTPPort             int           `env:"HTTP_PORT,default=8080" validate:"min=1,max=65535"`
	GRPCPort             int           `env:"GRPC_PORT,default=9090" validate:"min=1,max=65535"`
	DebugPort            int           `env:"DEBUG_PORT" validate:"min=0,max=65535"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true" validate:"required"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	JWTSecret            string        `env:"JWT_SECRET,required=true" validate:"min=32"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h" validate:"gt=0"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS,default=*"`
	BufferSize           int           `env:"BUFFER_SIZE,default=1024" validate:"gt=0"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64" validate:"gt=0"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s" validate:"gt=0"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=1s" validate:"gt=0"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s" validate:"gt=0"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`
	LimitMessages        int           `env:"LIMIT_MESSAGES,default=100" validate:"gt=0"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=4000" validate:"gt=0"`
	UnreadCacheSize      int64         `env:"UNREAD_CACHE_SIZE,default=10000" validate:"min=0"`
	CensoredDir          string        `env:"CENSORED_DIR"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	AdminUsername        string        `env:"ADMIN_USERNAME"`
	AdminPassword        string        `env:"ADMIN_PASSWORD" validate:"required_with=AdminUsername"`
}

// LoadConfig reads an optional .env file then the environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(config); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// Origins splits ALLOWED_ORIGINS, an empty list or "*" allows every origin.
func (c Config) Origins() []string {
	var res []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			res = append(res, o)
		}
	}
	return res
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
