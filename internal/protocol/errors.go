package protocol

// Error codes for protocol responses and error events.
const (
	// ErrCodeInvalidRequest indicates the request was malformed.
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	// ErrCodeInvalidCommand indicates an unknown command was sent.
	ErrCodeInvalidCommand = "INVALID_COMMAND"
	// ErrCodeInvalidParams indicates the command parameters were invalid.
	ErrCodeInvalidParams = "INVALID_PARAMS"
	// ErrCodeMessageTooLarge indicates a line exceeded the size limit.
	ErrCodeMessageTooLarge = "MESSAGE_TOO_LARGE"
	// ErrCodeTooSoon indicates the minimum interval has not elapsed.
	ErrCodeTooSoon = "INSUFFICIENT_TIME_ELAPSED"
	// ErrCodeNoInterfaces indicates no interface passed the filter.
	ErrCodeNoInterfaces = "NO_INTERFACES_FOUND"
	// ErrCodeSourceUnavailable indicates interface counters could not be read.
	ErrCodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	// ErrCodeInternalError indicates an unexpected internal error.
	ErrCodeInternalError = "INTERNAL_ERROR"
)
