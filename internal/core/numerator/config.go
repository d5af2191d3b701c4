package numerator

import (
	"stockkeeper/internal/core/code"
)

// Strategy defines how sequence values are obtained.
type Strategy int

const (
	// StrategyStrict increments the counter row inside the caller's transaction.
	// The row lock serializes allocations per bucket and a rollback returns
	// the value, so sequences have no gaps.
	StrategyStrict Strategy = iota

	// StrategyCached reserves ranges of values outside of any transaction and
	// hands them out from memory. Values are never duplicated but may be
	// skipped after a rollback or restart.
	StrategyCached
)

// DefaultRangeSize is the number of values reserved at once by StrategyCached.
const DefaultRangeSize = 50

// Options configures allocation for one entity type.
type Options struct {
	Strategy  Strategy
	RangeSize int
}

// DefaultOptions returns strict allocation.
func DefaultOptions() Options {
	return Options{Strategy: StrategyStrict}
}

// Policy maps entity types to their allocation options.
// Types missing from the map use DefaultOptions.
type Policy map[code.EntityType]Options

// For returns the options for t.
func (p Policy) For(t code.EntityType) Options {
	if o, ok := p[t]; ok {
		if o.Strategy == StrategyCached && o.RangeSize <= 0 {
			o.RangeSize = DefaultRangeSize
		}
		return o
	}
	return DefaultOptions()
}

// CachedPolicy builds a policy where the listed types use range caching.
func CachedPolicy(types []code.EntityType, rangeSize int) Policy {
	p := make(Policy, len(types))
	for _, t := range types {
		p[t] = Options{Strategy: StrategyCached, RangeSize: rangeSize}
	}
	return p
}
