package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (T001-T009)
	// ============================================

	"T001": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration file",
		Detail:     "tracestream.json could not be parsed as JSON.",
		Suggestion: "Check the file for trailing commas and quote every key and string value.",
	},
	"T002": {
		Category:   CategoryConfig,
		Message:    "Configuration validation failed",
		Detail:     "One of the values in tracestream.json is out of range.",
		Suggestion: "Run `tracestream serve --help` to see the accepted values.",
	},
	"T003": {
		Category: CategoryConfig,
		Message:  "Configuration file unreadable",
		Detail:   "The configuration file exists but could not be read.",
	},

	// ============================================
	// Network Errors (T010-T019)
	// ============================================

	"T010": {
		Category:   CategoryNetwork,
		Message:    "No port available",
		Detail:     "Every port in the trace streamer range is already in use on 127.0.0.1.",
		Suggestion: "Stop the other emulator instance or choose another range with --port-start.",
	},
	"T011": {
		Category:   CategoryNetwork,
		Message:    "Status endpoint failed",
		Detail:     "The HTTP status server could not listen on the configured address.",
		Suggestion: "Pick a free address with --status-addr or disable it with --status-addr=\"\".",
	},
	"T012": {
		Category:   CategoryNetwork,
		Message:    "No trace streamer found",
		Detail:     "Nothing accepted a connection on any port in the range.",
		Suggestion: "Start the emulator or `tracestream serve` first.",
	},

	// ============================================
	// Protocol Errors (T020-T029)
	// ============================================

	"T020": {
		Category: CategoryProtocol,
		Message:  "Handshake failed",
		Detail:   "The server did not answer Hello with a HelloAck. It may speak a different major version.",
	},
	"T021": {
		Category: CategoryProtocol,
		Message:  "Connection closed unexpectedly",
		Detail:   "The server closed the connection before acknowledging Goodbye.",
	},

	// ============================================
	// ROM Errors (T030-T039)
	// ============================================

	"T030": {
		Category:   CategoryROM,
		Message:    "ROM file unreadable",
		Suggestion: "Check the path given with --rom.",
	},
	"T031": {
		Category: CategoryROM,
		Message:  "Invalid iNES header",
		Detail:   "The file does not start with the iNES magic \"NES\\x1A\" or is shorter than its header claims.",
	},

	// ============================================
	// CLI Errors (T040-T049)
	// ============================================

	"T040": {
		Category: CategoryCLI,
		Message:  "Invalid flag value",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
