package trials

import "github.com/goliatone/go-trials/store"

// Policy selects how a resolver reacts to a suspicious condition.
type Policy int

const (
	// PolicyFail aborts resolution with an error.
	PolicyFail Policy = iota
	// PolicyWarn records the condition and continues.
	PolicyWarn
)

// Settings collects resolution-wide behaviour toggles. The zero value is
// not useful, use DefaultSettings and override fields as needed.
type Settings struct {
	// Keys governs which entry names config blocks may produce.
	Keys store.KeyRules
	// ReadOnlyConfig treats the resolved configuration as frozen:
	// post-resolution overrides are warned about and reported to audit
	// observers. Unset, overrides are routine debug-level adjustments.
	ReadOnlyConfig bool
	// ProtectedWrites controls config blocks writing into fallback
	// namespaces owned by other components.
	ProtectedWrites Policy
	// AddedKeys controls override paths that no block declares and no
	// captured function consumes.
	AddedKeys Policy
	// LegacyRNG switches derived random sources from PCG to the legacy
	// math/rand generator for reproducing old runs.
	LegacyRNG bool
}

// DefaultSettings returns the standard strict configuration.
func DefaultSettings() Settings {
	return Settings{
		Keys:            store.DefaultKeyRules(),
		ReadOnlyConfig:  true,
		ProtectedWrites: PolicyFail,
		AddedKeys:       PolicyFail,
	}
}
