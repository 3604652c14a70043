package core

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	PairingMethodQR   = "qr"
	PairingMethodCode = "code"
)

// Config holds all environment-driven settings. The reconnect knobs exist
// because the retry policy must be a single shared configuration, not
// something each caller re-derives.
type Config struct {
	Number        string
	Port          int
	PairingMethod string // "qr" or "code"
	AuthDir       string
	SettingsFile  string
	LogLevel      string

	ReconnectBase        time.Duration
	ReconnectCeiling     time.Duration
	ReconnectJitter      bool
	MaxReconnectAttempts int // 0 = retry forever
	WipeOnMaxFail        bool
	WipeRetryDelay       time.Duration
	HealthCheckInterval  time.Duration // 0 disables the liveness watchdog

	StatusWebhookURL string
}

func Load() (*Config, error) {
	cfg := &Config{
		Number:               envStr("WHATSAPP_NUMBER", ""),
		Port:                 envInt("PORT", 8080),
		PairingMethod:        envStr("PAIRING_METHOD", "qr"),
		AuthDir:              envStr("AUTH_DIR", "auth_info"),
		SettingsFile:         envStr("SETTINGS_FILE", "settings.json"),
		LogLevel:             envStr("LOG_LEVEL", "info"),
		ReconnectBase:        envDuration("RECONNECT_BASE", 2*time.Second),
		ReconnectCeiling:     envDuration("RECONNECT_CEILING", 60*time.Second),
		ReconnectJitter:      envBool("RECONNECT_JITTER", true),
		MaxReconnectAttempts: envInt("MAX_RECONNECT_ATTEMPTS", 0),
		WipeOnMaxFail:        envBool("WIPE_ON_MAX_FAIL", false),
		WipeRetryDelay:       envDuration("WIPE_RETRY_DELAY", 5*time.Second),
		HealthCheckInterval:  envDuration("HEALTH_CHECK_INTERVAL", 30*time.Second),
		StatusWebhookURL:     envStr("STATUS_WEBHOOK_URL", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.PairingMethod != PairingMethodQR && c.PairingMethod != PairingMethodCode {
		return fmt.Errorf("PAIRING_METHOD must be \"qr\" or \"code\", got %q", c.PairingMethod)
	}
	if c.AuthDir == "" {
		return fmt.Errorf("AUTH_DIR must not be empty")
	}
	if c.ReconnectBase <= 0 {
		return fmt.Errorf("RECONNECT_BASE must be positive, got %v", c.ReconnectBase)
	}
	if c.ReconnectCeiling < c.ReconnectBase {
		return fmt.Errorf("RECONNECT_CEILING (%v) must be >= RECONNECT_BASE (%v)", c.ReconnectCeiling, c.ReconnectBase)
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("MAX_RECONNECT_ATTEMPTS must be >= 0, got %d", c.MaxReconnectAttempts)
	}
	if c.HealthCheckInterval < 0 {
		return fmt.Errorf("HEALTH_CHECK_INTERVAL must be >= 0, got %v", c.HealthCheckInterval)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
