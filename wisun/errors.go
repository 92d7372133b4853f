package wisun

import "errors"

var (
	// ErrTimeout means a wait exceeded its budget.
	ErrTimeout = errors.New("wisun: timed out waiting for module response")

	// ErrNotJoined means a UDP send was requested before join.
	ErrNotJoined = errors.New("wisun: not joined to a PAN")

	// ErrNoPropertyMap means a property read was requested before the
	// meter's property map was loaded.
	ErrNoPropertyMap = errors.New("wisun: property map is not initialized")
)

// CommandError means the module rejected a command with FAIL, or an
// expected event arrived as its negative counterpart.
type CommandError struct {
	Reason string
}

func (e *CommandError) Error() string {
	return "wisun: command failed: " + e.Reason
}

// ScanError means every scan duration was exhausted without finding a
// PAN.
type ScanError struct {
	Reason string
}

func (e *ScanError) Error() string {
	return "wisun: scan failed: " + e.Reason
}
