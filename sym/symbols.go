// Package sym defines canonical symbols for foundation subsystem log markers.
// These symbols are stable across CLI output and documentation; loggers attach
// them as the "symbol" field so subsystem activity is scannable in a stream.
package sym

// Subsystem infrastructure symbols.
const (
	DB     = "⊔" // database/storage layer
	Fetch  = "⇣" // tracked fetch execution
	Valid  = "⊨" // contract validation
	Health = "✚" // source health aggregation
	Sweep  = "⌛" // retention sweeps of aged metadata
	Serve  = "⟴" // HTTP/WebSocket surface
)
