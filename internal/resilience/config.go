package resilience

import "time"

// FromConfig builds a RetryConfig from configuration values, keeping base
// for anything left at zero.
func FromConfig(base RetryConfig, maxAttempts int, initialBackoff, maxBackoff time.Duration, multiplier float64) RetryConfig {
	if maxAttempts > 0 {
		base.MaxAttempts = maxAttempts
	}
	if initialBackoff > 0 {
		base.InitialBackoff = initialBackoff
	}
	if maxBackoff > 0 {
		base.MaxBackoff = maxBackoff
	}
	if multiplier > 0 {
		base.Multiplier = multiplier
	}
	return base
}
