package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Hook Usage Errors (H001-H019)
	// ============================================

	"H001": {
		Category: CategoryUsage,
		Message:  "Key is required",
		Detail:   "State hooks address their backing store by key and cannot run with an empty one.",
	},
	"H002": {
		Category: CategoryUsage,
		Message:  "Owner is required",
		Detail:   "Hooks keep their state in the owner's hook slots and must be called with a non-nil owner.",
	},
	"H003": {
		Category: CategoryUsage,
		Message:  "Missing required argument",
		Detail:   "A required hook argument was nil or zero.",
	},
	"H004": {
		Category: CategoryUsage,
		Message:  "Effect function is required",
		Detail:   "UseAsyncEffect needs a non-nil function to run.",
	},
	"H005": {
		Category: CategoryUsage,
		Message:  "Backing store is required",
		Detail:   "The hook was called with a nil store, jar or provider.",
	},
	"H006": {
		Category: CategoryUsage,
		Message:  "Hook order changed",
		Detail:   "Hooks must be called in the same order on every render.",
	},
	"H007": {
		Category: CategoryUsage,
		Message:  "Owner disposed",
		Detail:   "The owner has been disposed; its hooks can no longer render.",
	},

	// ============================================
	// Storage Errors (H040-H059)
	// ============================================

	"H040": {
		Category: CategoryStorage,
		Message:  "Store unavailable",
		Detail:   "The backing store could not be opened.",
	},
	"H041": {
		Category: CategoryStorage,
		Message:  "Unknown storage backend",
		Detail:   "Supported backends are memory, sqlite, redis and s3.",
	},

	// ============================================
	// Config Errors (H080-H099)
	// ============================================

	"H080": {
		Category: CategoryConfig,
		Message:  "Invalid config file",
		Detail:   "The statesync.json file contains invalid JSON.",
	},
	"H081": {
		Category: CategoryConfig,
		Message:  "Invalid environment",
		Detail:   "A STATESYNC_* environment variable could not be parsed.",
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
