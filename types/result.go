package types

// Result is the uniform envelope returned to the presentation layer.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// OK wraps data in a successful Result.
func OK(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail builds a failed Result with a caller-facing message.
func Fail(message string) Result {
	return Result{Success: false, Error: message}
}
