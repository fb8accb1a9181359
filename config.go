package sessionkit

import (
	"errors"
	"time"
)

// Config defines a public type used by sessionkit APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Provider ProviderConfig
	Renewal  RenewalConfig
	Store    StoreConfig
	Events   EventsConfig
	Metrics  MetricsConfig
}

/*
====================================
PROVIDER CONFIG
====================================
*/

// ProviderConfig defines a public type used by sessionkit APIs.
//
// ProviderConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ProviderConfig struct {
	BaseURL        string
	Realm          string
	ClientID       string
	TokenURL       string // overrides BaseURL/Realm derivation when set
	RequestTimeout time.Duration
}

/*
====================================
RENEWAL CONFIG
====================================
*/

// RenewalConfig defines a public type used by sessionkit APIs.
//
// RenewalConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RenewalConfig struct {
	// ExpiryMargin is how close to access-token expiry a renewal becomes due.
	ExpiryMargin time.Duration
	// CheckInterval is the scheduler tick period. It must be strictly
	// smaller than ExpiryMargin or a due renewal could be missed entirely.
	CheckInterval time.Duration
	// MaxSoftFailures is how many consecutive transient renewal failures
	// are tolerated before the session is forced out.
	MaxSoftFailures int
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig defines a public type used by sessionkit APIs.
//
// StoreConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StoreConfig struct {
	RedisPrefix string
}

/*
====================================
EVENTS CONFIG
====================================
*/

// EventsConfig defines a public type used by sessionkit APIs.
//
// EventsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by sessionkit APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULTS
====================================
*/

func defaultConfig() Config {
	return Config{
		Provider: ProviderConfig{
			ClientID:       "ent-frontend",
			RequestTimeout: 10 * time.Second,
		},
		Renewal: RenewalConfig{
			ExpiryMargin:    5 * time.Minute,
			CheckInterval:   1 * time.Minute,
			MaxSoftFailures: 5,
		},
		Store: StoreConfig{
			RedisPrefix: "ps",
		},
		Events: EventsConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Provider
	if c.Provider.RequestTimeout <= 0 {
		return errors.New("Provider RequestTimeout must be > 0")
	}

	// Renewal
	if c.Renewal.ExpiryMargin <= 0 {
		return errors.New("Renewal ExpiryMargin must be > 0")
	}
	if c.Renewal.CheckInterval <= 0 {
		return errors.New("Renewal CheckInterval must be > 0")
	}
	if c.Renewal.CheckInterval >= c.Renewal.ExpiryMargin {
		return errors.New("Renewal CheckInterval must be < ExpiryMargin")
	}
	if c.Renewal.MaxSoftFailures < 1 {
		return errors.New("Renewal MaxSoftFailures must be >= 1")
	}

	// Store
	if c.Store.RedisPrefix == "" {
		return errors.New("Store RedisPrefix must not be empty")
	}

	// Events
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0 when Events are enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
