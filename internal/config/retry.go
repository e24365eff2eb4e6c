package config

import "nimbus/pkg/retry"

// Policy converts the declarative retry settings into an executable policy,
// falling back to the library defaults for anything left unset.
func (r RetryConfig) Policy() retry.Policy {
	policy := retry.DefaultPolicy()
	if r.MaxAttempts > 0 {
		policy.MaxAttempts = r.MaxAttempts
	}
	if r.InitialInterval > 0 {
		policy.InitialInterval = r.InitialInterval
	}
	if r.MaxInterval > 0 {
		policy.MaxInterval = r.MaxInterval
	}
	if r.Multiplier > 0 {
		policy.Multiplier = r.Multiplier
	}
	if r.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = r.MaxElapsedTime
	}
	return policy
}
