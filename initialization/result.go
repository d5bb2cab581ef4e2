package initialization

import (
	"errors"
	"fmt"

	"github.com/spacemeshos/post-engine/compute"
	"github.com/spacemeshos/post-engine/shared"
)

// InitializeResult is the outcome of deriving a range of labels.
type InitializeResult int

const (
	InitializeOk InitializeResult = iota
	InitializeOkNonceNotFound
	InitializeInvalidLabelsRange
	InitializeError
	InitializeInvalidArgument
	InitializeFailedToGetProviders
)

var (
	ErrInitializationFailed = errors.New("initialization failed")
	ErrUnknown              = errors.New("unknown error")
)

func (r InitializeResult) String() string {
	switch r {
	case InitializeOk:
		return "ok"
	case InitializeOkNonceNotFound:
		return "ok_nonce_not_found"
	case InitializeInvalidLabelsRange:
		return "invalid_labels_range"
	case InitializeError:
		return "error"
	case InitializeInvalidArgument:
		return "invalid_argument"
	case InitializeFailedToGetProviders:
		return "failed_to_get_providers"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// InitResultToError converts an InitializeResult to a Go error. Both Ok results map to nil.
func InitResultToError(r InitializeResult) error {
	switch r {
	case InitializeOk, InitializeOkNonceNotFound:
		return nil
	case InitializeInvalidLabelsRange:
		return shared.ErrInvalidLabelsRange
	case InitializeError:
		return ErrInitializationFailed
	case InitializeInvalidArgument:
		return shared.ErrInvalidArgument
	case InitializeFailedToGetProviders:
		return compute.ErrFetchProviders
	default:
		return ErrUnknown
	}
}

// ResultFromError classifies the outcome of an initialization.
func ResultFromError(err error, nonce *uint64) InitializeResult {
	switch {
	case err == nil && nonce != nil:
		return InitializeOk
	case err == nil:
		return InitializeOkNonceNotFound
	case errors.Is(err, shared.ErrInvalidLabelsRange):
		return InitializeInvalidLabelsRange
	case errors.Is(err, shared.ErrInvalidArgument), errors.Is(err, compute.ErrInvalidProviderID):
		return InitializeInvalidArgument
	case errors.Is(err, compute.ErrFetchProviders):
		return InitializeFailedToGetProviders
	default:
		return InitializeError
	}
}
