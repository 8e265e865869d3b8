// Path: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Config holds application configuration for the ATM API.
type Config struct {
	Port              string        `mapstructure:"PORT" validate:"required,numeric"`
	AppEnv            string        `mapstructure:"APP_ENV" validate:"oneof=dev qa prod"`
	JWTSecret         string        `mapstructure:"JWT_SECRET" validate:"required,min=16"`
	MaxFailedAttempts int           `mapstructure:"MAX_FAILED_ATTEMPTS" validate:"min=1,max=10"`
	LockDuration      time.Duration `mapstructure:"LOCK_DURATION" validate:"required"`
	SessionTTL        time.Duration `mapstructure:"SESSION_TTL" validate:"required"`
	PinHashCost       int           `mapstructure:"PIN_HASH_COST" validate:"min=4,max=31"`
	CorsOrigins       string        `mapstructure:"CORS_ORIGINS"`
}

// Load reads the environment (already populated from .env by the caller) into Config
// and validates it.
func Load(logger *zap.Logger) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	// Default values
	v.SetDefault("PORT", "3000")
	v.SetDefault("APP_ENV", "prod")
	v.SetDefault("MAX_FAILED_ATTEMPTS", 3)
	v.SetDefault("LOCK_DURATION", time.Hour)
	v.SetDefault("SESSION_TTL", 2*time.Minute)
	v.SetDefault("PIN_HASH_COST", bcrypt.DefaultCost)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	var cfg Config
	if err := parseStructEnv(v, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, formatConfigErrors(logger, err)
	}
	return &cfg, nil
}

// parseStructEnv binds env vars to struct fields using the mapstructure tag.
func parseStructEnv(v *viper.Viper, cfg interface{}) error {
	t := reflect.TypeOf(cfg).Elem()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("mapstructure")
		if err := v.BindEnv(tag); err != nil {
			return err
		}
	}
	return v.Unmarshal(cfg)
}

func formatConfigErrors(logger *zap.Logger, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		// never log the value itself, JWT_SECRET is one of these fields
		logger.Error("invalid config value",
			zap.String("field", fe.Field()),
			zap.String("rule", fe.Tag()),
			zap.String("param", fe.Param()),
		)
		fields = append(fields, fe.Field())
	}
	return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
}
