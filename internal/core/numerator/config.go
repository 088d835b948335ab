package numerator

// Strategy selects how numbers are allocated.
type Strategy int

const (
	// StrategyStrict takes every number from the database with
	// UPDATE ... RETURNING. Gap-free, one round trip per number.
	StrategyStrict Strategy = iota

	// StrategyCached reserves a range in the database and hands numbers
	// out from memory. Faster, but a restart abandons the unused tail
	// of the range.
	StrategyCached
)

// Options tunes a single allocation call.
type Options struct {
	Strategy Strategy

	// RangeSize is how many numbers StrategyCached reserves per round
	// trip. Zero means 50.
	RangeSize int64
}

// DefaultOptions allocates strictly.
func DefaultOptions() *Options {
	return &Options{Strategy: StrategyStrict}
}

// Config describes the shape of numbers for one document type.
type Config struct {
	// Prefix of the sequence, "MOV" for movements, "ST" for stock takes.
	Prefix string

	// IncludeYear embeds the period year into the number.
	IncludeYear bool

	// PadWidth is the minimum digit count, left-padded with zeros.
	PadWidth int

	// ResetPeriod restarts the counter: "year", "month" or "never".
	ResetPeriod string
}

// DefaultConfig returns the house format, PREFIX-YEAR-00001 resetting
// yearly.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: "year",
	}
}
