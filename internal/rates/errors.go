package rates

import (
	"context"
	"errors"

	"github.com/creco/imaikura/pkg/httputil"
)

// FetchErrorKind classifies a failed rate fetch
type FetchErrorKind string

const (
	KindNetwork FetchErrorKind = "network"
	KindAPI     FetchErrorKind = "api"
	KindPayload FetchErrorKind = "payload"
)

// NetworkErrorMessage is shown when the provider could not be reached
const NetworkErrorMessage = "ネットワーク接続を確認してください"

// FetchError is the classified reason the fetcher fell back
type FetchError struct {
	Kind    FetchErrorKind `json:"kind"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
}

func (e *FetchError) Error() string {
	return e.Message
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether retrying could plausibly help
func (e *FetchError) IsNetworkError() bool {
	return e != nil && e.Kind == KindNetwork
}

func classify(err error) *FetchError {
	switch {
	case httputil.IsNetworkError(err), errors.Is(err, context.DeadlineExceeded):
		return &FetchError{Kind: KindNetwork, Message: NetworkErrorMessage, Err: err}
	case errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrMissingCurrency):
		return &FetchError{Kind: KindPayload, Message: err.Error(), Err: err}
	default:
		return &FetchError{Kind: KindAPI, Message: err.Error(), Err: err}
	}
}
