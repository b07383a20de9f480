// Package config provides configuration for the orchestrator.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the orchestrator server configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Policy file (yaml). Empty means compiled-in defaults.
	PolicyFile string

	// Concurrency
	MaxConcurrentCases int

	// Timeouts
	ProviderTimeout time.Duration
	ShutdownTimeout time.Duration

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		HTTPPort:           getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:        getEnv("DATABASE_URL", "file:sentinel.db?cache=shared&mode=rwc"),
		PolicyFile:         getEnv("POLICY_FILE", ""),
		MaxConcurrentCases: getEnvInt("MAX_CONCURRENT_CASES", 16),
		ProviderTimeout:    time.Duration(getEnvInt("PROVIDER_TIMEOUT_MS", 10000)) * time.Millisecond,
		ShutdownTimeout:    time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_MS", 10000)) * time.Millisecond,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// SelectorWeights are the scoring weights for next-agent selection.
// They are tunable configuration, not invariants; ties are always broken by
// the static priority order.
type SelectorWeights struct {
	Handoff  float64 `yaml:"handoff"`
	FollowUp float64 `yaml:"follow_up"`
	Base     float64 `yaml:"base"`
}

// RetryPolicy bounds provider retries inside tool dispatch.
type RetryPolicy struct {
	MaxAttempts   int `yaml:"max_attempts"`
	BaseBackoffMs int `yaml:"base_backoff_ms"`
	MaxBackoffMs  int `yaml:"max_backoff_ms"`
	JitterMs      int `yaml:"jitter_ms"`
}

// BreakerPolicy configures the provider circuit breaker.
type BreakerPolicy struct {
	TripThreshold int `yaml:"trip_threshold"`
	CooldownMs    int `yaml:"cooldown_ms"`
}

// Policy is the process-wide, read-only policy configuration: the tool
// whitelist, the action risk table, turn limits, and tuning knobs. Loaded
// once at startup and shared by all cases.
type Policy struct {
	Whitelist          []string        `yaml:"whitelist"`
	RiskLevels         map[string]int  `yaml:"risk_levels"`
	RiskThreshold      int             `yaml:"risk_threshold"`
	MaxTurns           int             `yaml:"max_turns"`
	TerminationPhrases []string        `yaml:"termination_phrases"`
	Selector           SelectorWeights `yaml:"selector"`
	Retry              RetryPolicy     `yaml:"retry"`
	Breaker            BreakerPolicy   `yaml:"breaker"`
	ApprovalWaitMs     int             `yaml:"approval_wait_ms"`
}

// ApprovalWait returns the wait budget for a pending approval.
func (p *Policy) ApprovalWait() time.Duration {
	return time.Duration(p.ApprovalWaitMs) * time.Millisecond
}

// Whitelisted reports whether the action is on the static whitelist.
func (p *Policy) Whitelisted(action string) bool {
	for _, a := range p.Whitelist {
		if a == action {
			return true
		}
	}
	return false
}

// RiskLevel returns the configured risk level for an action. Unknown actions
// are treated as maximum risk so they always escalate.
func (p *Policy) RiskLevel(action string) int {
	if level, ok := p.RiskLevels[action]; ok {
		return level
	}
	return p.RiskThreshold
}

// DefaultPolicy returns the compiled-in policy configuration.
func DefaultPolicy() *Policy {
	return &Policy{
		Whitelist: []string{
			"identity.verify",
			"tax.lookup",
			"sanctions.screen",
			"account.freeze",
		},
		RiskLevels: map[string]int{
			"identity.verify":  1,
			"tax.lookup":       1,
			"sanctions.screen": 2,
			"account.freeze":   3,
		},
		RiskThreshold:      3,
		MaxTurns:           24,
		TerminationPhrases: []string{"FINDINGS COMPLETE", "case closed"},
		Selector: SelectorWeights{
			Handoff:  3,
			FollowUp: 2,
			Base:     1,
		},
		Retry: RetryPolicy{
			MaxAttempts:   3,
			BaseBackoffMs: 100,
			MaxBackoffMs:  2000,
			JitterMs:      50,
		},
		Breaker: BreakerPolicy{
			TripThreshold: 5,
			CooldownMs:    30000,
		},
		ApprovalWaitMs: 600000,
	}
}

// LoadPolicyFile reads a yaml policy file, falling back to defaults for any
// field the file leaves unset.
func LoadPolicyFile(path string) (*Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	if policy.MaxTurns <= 0 {
		return nil, fmt.Errorf("policy max_turns must be positive")
	}
	if policy.Retry.MaxAttempts <= 0 {
		return nil, fmt.Errorf("policy retry.max_attempts must be positive")
	}
	return policy, nil
}
