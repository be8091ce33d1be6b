package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dokzlo13/lightcmd/internal/command"
)

// ErrHubOperation is matched by every error that comes out of a failed hub call.
var ErrHubOperation = errors.New("hub operation failed")

// OperationFailure records a single failed hub call.
type OperationFailure struct {
	Zone   command.ZoneID
	Kind   command.Kind
	Device string // empty for zone-level operations
	Err    error
}

func (f OperationFailure) Error() string {
	if f.Device != "" {
		return fmt.Sprintf("%s %s device %s: %v", f.Zone, f.Kind, f.Device, f.Err)
	}
	return fmt.Sprintf("%s %s: %v", f.Zone, f.Kind, f.Err)
}

func (f OperationFailure) Unwrap() error {
	return f.Err
}

// DispatchError collects every failure of a best-effort dispatch.
type DispatchError struct {
	Failures []OperationFailure
	Attempts int
}

func (e *DispatchError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%s: %d of %d operations failed: %s",
		ErrHubOperation, len(e.Failures), e.Attempts, strings.Join(msgs, "; "))
}

// Unwrap exposes ErrHubOperation and the individual failures to errors.Is/As.
func (e *DispatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures)+1)
	errs = append(errs, ErrHubOperation)
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}
