package messenger

import (
	"errors"
	"fmt"
)

// Sentinel errors, checked with errors.Is.
var (
	// ErrConfigInvalid is returned by New when Options is malformed.
	ErrConfigInvalid = errors.New("messenger: invalid configuration")

	// ErrNotInitialized is returned by operations that need the local
	// encryption keypair before init has run: Register and Update in either
	// signing mode, and Send in external-signer mode.
	ErrNotInitialized = errors.New("messenger: not initialized")

	// ErrConfirmTimeout is returned when a submission never reaches
	// confirmed/finalized within the poll budget.
	ErrConfirmTimeout = errors.New("messenger: confirmation timeout")

	// ErrSendPartialFailure is the sentinel wrapped by SendPartialFailureError.
	ErrSendPartialFailure = errors.New("messenger: send partial failure")
)

// SendPartialFailureError is returned by Send when a chunk submission
// fails, including the first one (then Signatures is empty). Signatures
// holds the transaction signatures for every chunk that landed before the
// failure, in chunk_index order;
// FailedChunkIndex is the 0-based index of the first chunk that failed.
type SendPartialFailureError struct {
	Signatures       []string
	FailedChunkIndex int
	Err              error
}

func (e *SendPartialFailureError) Error() string {
	return fmt.Sprintf("messenger: send partial failure at chunk %d (%d chunks landed): %v",
		e.FailedChunkIndex, len(e.Signatures), e.Err)
}

func (e *SendPartialFailureError) Unwrap() error {
	return ErrSendPartialFailure
}

// ConfirmTimeoutError carries the known signature of a submission that
// never confirmed, so the caller can reconcile against the chain directly.
type ConfirmTimeoutError struct {
	Signature string
}

func (e *ConfirmTimeoutError) Error() string {
	return fmt.Sprintf("messenger: confirmation timeout for signature %s", e.Signature)
}

func (e *ConfirmTimeoutError) Unwrap() error {
	return ErrConfirmTimeout
}
