package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrAlreadyRunning  ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrWatchConfig     ErrorCode = "watch_config_failed"
	ErrMissingSetting  ErrorCode = "missing_setting"
	ErrInvalidSetting  ErrorCode = "invalid_setting"
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Process errors
	ErrProcessSpawn   ErrorCode = "process_spawn_failed"
	ErrProcessOutput  ErrorCode = "process_output_failed"
	ErrInvalidCommand ErrorCode = "invalid_command"

	// Provider errors
	ErrUnknownProvider     ErrorCode = "unknown_provider"
	ErrUnknownMetric       ErrorCode = "unknown_metric"
	ErrMalformedUUIDOutput ErrorCode = "malformed_uuid_output"
	ErrNoData              ErrorCode = "no_data"
	ErrParse               ErrorCode = "parse_failed"

	// Monitor errors
	ErrRefreshBusy ErrorCode = "refresh_in_progress"
	ErrClosed      ErrorCode = "monitor_closed"

	// Lifecycle errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"
	ErrTimeout        ErrorCode = "operation_timeout"
	ErrCanceled       ErrorCode = "operation_canceled"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:            "Internal error occurred",
	ErrInvalidArgument:     "Invalid argument provided",
	ErrAlreadyRunning:      "Another instance is already running",
	ErrInvalidConfig:       "Invalid configuration",
	ErrBindFlags:           "Failed to bind flags",
	ErrReadConfig:          "Failed to read config file",
	ErrWatchConfig:         "Failed to watch config file",
	ErrMissingSetting:      "Required setting is not set",
	ErrInvalidSetting:      "Setting value out of range",
	ErrInvalidLogLevel:     "Invalid log level",
	ErrProcessSpawn:        "GPU monitoring command failed",
	ErrProcessOutput:       "GPU monitoring command produced no usable output",
	ErrInvalidCommand:      "Invalid command shape",
	ErrUnknownProvider:     "Unknown provider",
	ErrUnknownMetric:       "Unknown property",
	ErrMalformedUUIDOutput: "Malformed GPU UUID output",
	ErrNoData:              "Processor returned no data for this property",
	ErrParse:               "Value is not a valid number",
	ErrRefreshBusy:         "Refresh already in progress",
	ErrClosed:              "Monitor is closed",
	ErrInitFailed:          "Initialization failed",
	ErrShutdownFailed:      "Shutdown failed",
	ErrTimeout:             "Operation timed out",
	ErrCanceled:            "Operation canceled",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
