package verifying

import (
	"errors"
	"fmt"

	"github.com/spacemeshos/post-engine/shared"
)

// Result is the outcome of a proof verification. Invalid means the proof was checked and
// rejected, Failed means the check could not be completed.
type Result int

const (
	Ok Result = iota
	Invalid
	InvalidArgument
	FailedToCreateVerifier
	Failed
)

var (
	ErrInvalidProof              = errors.New("invalid proof")
	ErrFailedToCreateVerifier    = errors.New("failed to create verifier")
	ErrVerificationFailed        = errors.New("verification failed")
	ErrVerifierClosed            = errors.New("verifier is closed")
	ErrOracleParamsMismatch      = errors.New("oracle params of config and verifier differ")
	errUnexpectedVerifyingResult = errors.New("unexpected verification result")
)

func (r Result) String() string {
	switch r {
	case Ok:
		return "ok"
	case Invalid:
		return "invalid"
	case InvalidArgument:
		return "invalid_argument"
	case FailedToCreateVerifier:
		return "failed_to_create_verifier"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// Err returns the sentinel error of r, nil for Ok.
func (r Result) Err() error {
	switch r {
	case Ok:
		return nil
	case Invalid:
		return ErrInvalidProof
	case InvalidArgument:
		return shared.ErrInvalidArgument
	case FailedToCreateVerifier:
		return ErrFailedToCreateVerifier
	case Failed:
		return ErrVerificationFailed
	default:
		return errUnexpectedVerifyingResult
	}
}

// fail builds the error of a non-Ok result from its sentinel and a description.
// format may wrap a cause with %w.
func fail(r Result, format string, args ...any) (Result, error) {
	return r, fmt.Errorf("%w: "+format, append([]any{r.Err()}, args...)...)
}
