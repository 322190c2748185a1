package models

// StrategyKind names a policy for choosing which collectors to use and how
// to sequence them. The zero value StrategyAuto means "let the selector
// decide"; any other value carried by a request is an explicit override.
type StrategyKind string

const (
	// StrategyAuto defers strategy choice to the selector
	StrategyAuto StrategyKind = ""
	// StrategyHybrid resolves into progressive, parallel, or adaptive
	// execution based on request shape
	StrategyHybrid StrategyKind = "hybrid"
	// StrategyBrowserFirst runs the browser backend, falling back to the
	// API backend on failure
	StrategyBrowserFirst StrategyKind = "browser_first"
	// StrategyAPIFirst runs the API backend, falling back to the browser
	// backend on failure
	StrategyAPIFirst StrategyKind = "api_first"
	// StrategyBrowserOnly runs only the browser backend, no fallback
	StrategyBrowserOnly StrategyKind = "browser_only"
	// StrategyAPIOnly runs only the API backend, no fallback
	StrategyAPIOnly StrategyKind = "api_only"
)

// StrategyPriority is the deterministic tie-break order used when two
// strategies score equally. Earlier entries win.
var StrategyPriority = []StrategyKind{
	StrategyHybrid,
	StrategyBrowserFirst,
	StrategyAPIFirst,
	StrategyBrowserOnly,
	StrategyAPIOnly,
}

// CandidateStrategies lists every strategy the selector scores.
func CandidateStrategies() []StrategyKind {
	out := make([]StrategyKind, len(StrategyPriority))
	copy(out, StrategyPriority)
	return out
}

// Valid reports whether s is a known strategy kind (StrategyAuto included).
func (s StrategyKind) Valid() bool {
	switch s {
	case StrategyAuto, StrategyHybrid, StrategyBrowserFirst, StrategyAPIFirst,
		StrategyBrowserOnly, StrategyAPIOnly:
		return true
	}
	return false
}

// IsOverride reports whether s is an explicit, non-default strategy choice.
// Explicit overrides always win selection and are never scored.
func (s StrategyKind) IsOverride() bool {
	return s != StrategyAuto
}

// PriorityRank returns the tie-break rank of s; lower wins. Unknown kinds
// rank last.
func (s StrategyKind) PriorityRank() int {
	for i, k := range StrategyPriority {
		if k == s {
			return i
		}
	}
	return len(StrategyPriority)
}
