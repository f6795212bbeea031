package activities

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/cx-tal-miterani/flight-ticketing/internal/errs"
)

// NonRetryableErrorTypes lists the application error types a retry policy
// must not retry.
func NonRetryableErrorTypes() []string {
	kinds := []errs.Kind{
		errs.KindValidation,
		errs.KindNotFound,
		errs.KindFlightNotBookable,
		errs.KindTicketNotFound,
		errs.KindNoSeatAvailable,
		errs.KindConstraintViolation,
	}
	types := make([]string, len(kinds))
	for i, k := range kinds {
		types[i] = k.String()
	}
	return types
}

// ToApplicationError carries a classified error across the workflow
// boundary. The error kind becomes the application error type and the
// caller-facing diagnostic travels as the first detail.
func ToApplicationError(err error) error {
	if err == nil {
		return nil
	}
	kind := errs.KindOf(err)
	diag := errs.Diagnostic(err)
	if errs.ClientAttributable(err) {
		return temporal.NewNonRetryableApplicationError(err.Error(), kind.String(), err, diag)
	}
	return temporal.NewApplicationError(err.Error(), kind.String(), diag)
}

// FromApplicationError recovers the classified error from a workflow or
// activity failure. Failures with no application error are transient.
func FromApplicationError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		var timeoutErr *temporal.TimeoutError
		if errors.As(err, &timeoutErr) {
			return errs.Transient("check-in timed out", err)
		}
		return errs.Transient("check-in workflow failed", err)
	}

	kind := errs.ParseKind(appErr.Type())
	var diag string
	if appErr.HasDetails() {
		_ = appErr.Details(&diag)
	}
	return errs.New(kind, diag, nil)
}
