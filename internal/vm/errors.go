package vm

import (
	"errors"
	"fmt"
)

// Recoverable operation outcomes. Callers match these with errors.Is and
// turn them into status messages rather than failures.
var (
	// ErrNotFound means no record exists under the requested name.
	ErrNotFound = errors.New("VM not found")

	// ErrExists means a record already exists under the requested name.
	ErrExists = errors.New("VM already exists")

	// ErrAlreadyRunning means start was a no-op because the process is up.
	ErrAlreadyRunning = errors.New("VM already running")

	// ErrNotRunning means stop was a no-op because no process was found.
	ErrNotRunning = errors.New("VM not running")

	// ErrVMRunning rejects an operation that requires the VM to be stopped.
	ErrVMRunning = errors.New("VM is running")

	// ErrConfirmationDenied aborts a destructive operation cleanly.
	ErrConfirmationDenied = errors.New("confirmation denied")
)

// ErrDownloadFailed is fatal to the enclosing provisioning workflow;
// nothing is persisted when it occurs.
var ErrDownloadFailed = errors.New("image download failed")

// ValidationError reports a malformed record field. It is always resolved
// at the input boundary and never reaches persisted state.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
