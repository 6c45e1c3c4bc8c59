package domain

import (
	"errors"
	"fmt"
)

// Domain-level sentinels. The service layer maps them onto apperror codes.
var (
	ErrZeroAddress = errors.New("zero address")
)

// PendingTransferError reports a transfer that was submitted but whose
// outcome could not be observed. It is neither a success nor a failure.
type PendingTransferError struct {
	Reference string
	Err       error
}

func (e *PendingTransferError) Error() string {
	return fmt.Sprintf("transfer %s pending: %v", e.Reference, e.Err)
}

func (e *PendingTransferError) Unwrap() error {
	return e.Err
}
