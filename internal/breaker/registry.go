package breaker

import "flap/internal/store"

// Well-known manual circuit ids. Manual circuits are operator kill switches;
// they are never tripped automatically.
const (
	CircuitKillSwitchGlobal  = "kill_switch_global"
	CircuitKillSwitchAI      = "kill_switch_ai"
	CircuitKillSwitchDisplay = "kill_switch_display"
)

// Definition declares a circuit that must exist at process start.
type Definition struct {
	ID               string
	Type             store.CircuitType
	DefaultState     store.State
	FailureThreshold int
}

// DefaultFailureThreshold is the trip threshold for provider circuits unless
// configuration overrides it.
const DefaultFailureThreshold = 3

// ManualCircuits returns the static registry of operator kill switches.
func ManualCircuits() []Definition {
	return []Definition{
		{ID: CircuitKillSwitchGlobal, Type: store.CircuitTypeManual, DefaultState: store.StateOn},
		{ID: CircuitKillSwitchAI, Type: store.CircuitTypeManual, DefaultState: store.StateOn},
		{ID: CircuitKillSwitchDisplay, Type: store.CircuitTypeManual, DefaultState: store.StateOn},
	}
}

// ProviderCircuitID derives the circuit id for a named provider binding.
func ProviderCircuitID(provider string) string {
	return "provider:" + provider
}

// ProviderCircuit builds the registry entry for one provider binding.
func ProviderCircuit(provider string, failureThreshold int) Definition {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	return Definition{
		ID:               ProviderCircuitID(provider),
		Type:             store.CircuitTypeProvider,
		DefaultState:     store.StateOn,
		FailureThreshold: failureThreshold,
	}
}
