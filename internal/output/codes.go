// Package output provides JSON/Markdown output formatting and error handling.
package output

// Exit codes.
const (
	ExitOK         = 0 // Success
	ExitUsage      = 1 // Invalid arguments or flags
	ExitNotFound   = 2 // Entity not found
	ExitValidation = 3 // Payload rejected by the store
	ExitServer     = 4 // Simulated server failure
	ExitTimeout    = 5 // Request did not settle in time
	ExitCancelled  = 6 // Interrupted before a result arrived
	ExitInternal   = 7 // Anything else
)

// Error codes for JSON envelope.
const (
	CodeUsage      = "usage"
	CodeNotFound   = "not_found"
	CodeValidation = "validation"
	CodeServer     = "server_error"
	CodeTimeout    = "timeout"
	CodeCancelled  = "cancelled"
	CodeInternal   = "internal"
)

// ExitCodeFor returns the exit code for a given error code.
func ExitCodeFor(code string) int {
	switch code {
	case CodeUsage:
		return ExitUsage
	case CodeNotFound:
		return ExitNotFound
	case CodeValidation:
		return ExitValidation
	case CodeServer:
		return ExitServer
	case CodeTimeout:
		return ExitTimeout
	case CodeCancelled:
		return ExitCancelled
	default:
		return ExitInternal
	}
}
