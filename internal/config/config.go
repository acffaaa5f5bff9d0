package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// Policy holds the operating constants of the trip subsystem. They are
// injected into the services rather than read ad hoc so tests can run
// against varied policies.
type Policy struct {
	// BoardingWindowMin is the minutes-until-departure threshold at or
	// below which a schedule is "boarding".
	BoardingWindowMin int `validate:"gt=0"`
	// SoonWindowMin is the threshold for "soon". Must sit above the
	// boarding window.
	SoonWindowMin int `validate:"gt=0,gtefield=BoardingWindowMin"`
	// UpcomingHoursAhead bounds the forward window of the upcoming
	// schedules listing.
	UpcomingHoursAhead int `validate:"gt=0"`
	// DriverBufferMin is the minimum gap between a driver's trips when the
	// auto assigner picks drivers dynamically.
	DriverBufferMin int `validate:"gte=5"`
	// DefaultDepotID is used by the auto assigner when a schedule carries
	// no depot of its own.
	DefaultDepotID int64 `validate:"gt=0"`
}

// Config is the full application configuration.
type Config struct {
	Port      string `validate:"required"`
	JWTSecret string `validate:"required"`
	Policy    Policy `validate:"required"`
}

// DefaultPolicy returns the stock operating policy.
func DefaultPolicy() Policy {
	return Policy{
		BoardingWindowMin:  15,
		SoonWindowMin:      30,
		UpcomingHoursAhead: 3,
		DriverBufferMin:    5,
		DefaultDepotID:     1,
	}
}

// LoadFromEnv builds a Config from environment variables, falling back to
// the defaults above, and validates it.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Port:      getEnv("API_PORT", "8080"),
		JWTSecret: getEnv("JWT_SECRET", "dev-only-secret"),
		Policy: Policy{
			BoardingWindowMin:  getEnvInt("BOARDING_WINDOW_MIN", 15),
			SoonWindowMin:      getEnvInt("SOON_WINDOW_MIN", 30),
			UpcomingHoursAhead: getEnvInt("UPCOMING_HOURS_AHEAD", 3),
			DriverBufferMin:    getEnvInt("DRIVER_BUFFER_MIN", 5),
			DefaultDepotID:     int64(getEnvInt("DEFAULT_DEPOT_ID", 1)),
		},
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
