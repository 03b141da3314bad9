package analytics

import "math"

const (
	defaultPrice  = 100
	defaultVolume = 0
)

// ValidationResult is the outcome of Validate: either the snapshot is
// accepted as-is, accepted after sanitization, or rejected fatally.
type ValidationResult struct {
	OK        bool
	Fatal     bool
	Errors    []ValidationError
	Sanitized Snapshot
}

// Validate checks a raw snapshot against the required-field, level-shape,
// and crossed-book invariants, attempting one sanitize-and-revalidate pass
// on non-fatal numeric anomalies.
func Validate(snap Snapshot) ValidationResult {
	errs := check(snap)
	if hasFatal(errs) {
		return ValidationResult{OK: false, Fatal: true, Errors: errs}
	}
	if len(errs) == 0 {
		return ValidationResult{OK: true, Sanitized: snap}
	}

	sanitized := sanitize(snap)
	errs2 := check(sanitized)
	if hasFatal(errs2) {
		return ValidationResult{OK: false, Fatal: true, Errors: append(errs, errs2...)}
	}
	return ValidationResult{OK: true, Sanitized: sanitized, Errors: append(errs, errs2...)}
}

func check(snap Snapshot) []ValidationError {
	var errs []ValidationError

	if len(snap.Bids) == 0 {
		errs = append(errs, ValidationError{Field: "bids", Message: "required field missing", Fatal: true})
	}
	if len(snap.Asks) == 0 {
		errs = append(errs, ValidationError{Field: "asks", Message: "required field missing", Fatal: true})
	}
	if snap.MidPrice == 0 {
		errs = append(errs, ValidationError{Field: "mid_price", Message: "required field missing", Fatal: true})
	}
	if hasFatal(errs) {
		return errs
	}

	for i, lvl := range snap.Bids {
		errs = append(errs, checkLevel("bids", i, lvl)...)
	}
	for i, lvl := range snap.Asks {
		errs = append(errs, checkLevel("asks", i, lvl)...)
	}
	if hasFatal(errs) {
		return errs
	}

	bestBid := snap.Bids[0].Price
	bestAsk := snap.Asks[0].Price
	if !(bestBid < bestAsk) {
		errs = append(errs, ValidationError{Field: "book", Message: "crossed book: best_bid >= best_ask", Fatal: false})
	} else {
		spread := bestAsk - bestBid
		if spread > 0.1*bestAsk {
			errs = append(errs, ValidationError{Field: "spread", Message: "spread exceeds 10% of best ask", Fatal: false})
		}
	}

	return errs
}

func checkLevel(side string, i int, lvl Level) []ValidationError {
	var errs []ValidationError
	if !isFinitePositive(lvl.Price) {
		errs = append(errs, ValidationError{Field: side, Message: "non-finite or non-positive price", Fatal: false})
	}
	if !isFiniteNonNegative(lvl.Volume) {
		errs = append(errs, ValidationError{Field: side, Message: "non-finite or negative volume", Fatal: false})
	}
	return errs
}

func isFinitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func isFiniteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func hasFatal(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Fatal {
			return true
		}
	}
	return false
}

// sanitize replaces non-finite or out-of-range numeric fields with typed
// defaults. It never touches the required-field fatal conditions (those
// are never reached here since check() short-circuits before sanitize).
func sanitize(snap Snapshot) Snapshot {
	out := snap
	out.Bids = sanitizeLevels(snap.Bids)
	out.Asks = sanitizeLevels(snap.Asks)
	return out
}

func sanitizeLevels(levels []Level) []Level {
	out := make([]Level, len(levels))
	for i, lvl := range levels {
		p, v := lvl.Price, lvl.Volume
		if !isFinitePositive(p) {
			p = defaultPrice
		}
		if !isFiniteNonNegative(v) {
			v = defaultVolume
		}
		out[i] = Level{Price: p, Volume: v}
	}
	return out
}
