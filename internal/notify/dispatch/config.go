package dispatch

import (
	"time"

	"shift-notify/internal/common/config"
)

type Config struct {
	// FailureRateThreshold triggers a warning when a channel's
	// failures/(successes+failures) reaches it.
	FailureRateThreshold float64
	EmailTimeout         time.Duration
	// EmailRatePerSec paces email sends; zero means unpaced.
	EmailRatePerSec    float64
	DefaultCountryCode string
}

func DefaultConfig() Config {
	return Config{
		FailureRateThreshold: 0.10,
		EmailTimeout:         15 * time.Second,
	}
}

// ConfigFrom maps the notifications section of the service configuration.
func ConfigFrom(n config.NotificationConfig) Config {
	return Config{
		FailureRateThreshold: n.FailureRateThreshold,
		EmailTimeout:         config.GetDuration(n.Email.Timeout),
		EmailRatePerSec:      n.Email.RatePerSec,
		DefaultCountryCode:   n.SMS.DefaultCountryCode,
	}
}
