package movement

import "stockpost/internal/core/numerator"

const (
	// NumberPrefix is the document number prefix (MOV-2026-00001).
	NumberPrefix = "MOV"

	// AdjustmentNumberPrefix is used for adjustments synthesized from
	// stock-take variances (ADJ-2026-00001).
	AdjustmentNumberPrefix = "ADJ"

	// NumeratorStrategy uses Strict numbering to avoid gaps for
	// balance-affecting documents.
	NumeratorStrategy = numerator.StrategyStrict
)
