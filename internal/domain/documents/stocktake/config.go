package stocktake

import "stockpost/internal/core/numerator"

const (
	// NumberPrefix for stock-take numbers (ST-2026-00001)
	NumberPrefix = "ST"

	// NumeratorStrategy uses strict mode for gap-free numbering
	NumeratorStrategy = numerator.StrategyStrict
)
