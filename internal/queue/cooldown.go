package queue

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"dropcast/internal/config"
)

// CooldownPolicy shapes the waits between posts.
type CooldownPolicy struct {
	Base          time.Duration
	JitterMin     time.Duration
	JitterMax     time.Duration
	EmptyInterval time.Duration
	BackoffFactor float64
	MaxBackoff    time.Duration
	FreezeDefault time.Duration
}

// PolicyFromConfig converts the [publish] section into a policy.
func PolicyFromConfig(cfg config.Publish) CooldownPolicy {
	seconds := func(v int) time.Duration { return time.Duration(v) * time.Second }
	return CooldownPolicy{
		Base:          seconds(cfg.BaseInterval),
		JitterMin:     seconds(cfg.JitterMin),
		JitterMax:     seconds(cfg.JitterMax),
		EmptyInterval: seconds(cfg.EmptyInterval),
		BackoffFactor: cfg.BackoffFactor,
		MaxBackoff:    seconds(cfg.MaxBackoff),
		FreezeDefault: seconds(cfg.FreezeDefault),
	}
}

// Validate checks the policy bounds.
func (p CooldownPolicy) Validate() error {
	switch {
	case p.Base < 0:
		return fmt.Errorf("base interval %s is negative", p.Base)
	case p.JitterMin < 0 || p.JitterMax < p.JitterMin:
		return fmt.Errorf("jitter band [%s, %s] is invalid", p.JitterMin, p.JitterMax)
	case p.EmptyInterval <= 0:
		return fmt.Errorf("empty interval %s must be positive", p.EmptyInterval)
	case p.BackoffFactor < 1:
		return fmt.Errorf("backoff factor %v must be >= 1", p.BackoffFactor)
	case p.MaxBackoff < p.Base:
		return fmt.Errorf("max backoff %s is below the base interval %s", p.MaxBackoff, p.Base)
	}
	return nil
}

// interval computes the next wait. failures grows the posting interval by
// BackoffFactor per consecutive failure, capped at MaxBackoff.
func (p CooldownPolicy) interval(nothingToPost bool, failures int, jitter time.Duration) time.Duration {
	if nothingToPost {
		return p.EmptyInterval
	}
	next := p.Base + jitter
	if failures <= 0 {
		return next
	}
	grown := float64(next) * math.Pow(p.BackoffFactor, float64(failures))
	if p.MaxBackoff > 0 && (grown > float64(p.MaxBackoff) || math.IsInf(grown, 1)) {
		return p.MaxBackoff
	}
	return time.Duration(grown)
}

// UniformJitter draws uniformly from [min, max].
func UniformJitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)+1))
}
