package domain

// Result is the outcome of a user-facing operation. Expected failures such as
// a duplicate email or insufficient funds are reported here with Success set
// to false; they are never returned as errors.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Ok builds a successful Result.
func Ok(message string) Result {
	return Result{Success: true, Message: message}
}

// Fail builds a rejected Result.
func Fail(message string) Result {
	return Result{Success: false, Message: message}
}
