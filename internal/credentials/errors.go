package credentials

import "fmt"

// FetchError wraps a failure to reach or parse a credential endpoint with
// the provider name that was making the request.
type FetchError struct {
	Provider string
	Err      error
}

func (e *FetchError) Error() string { return fmt.Sprintf("credentials: %s: %v", e.Provider, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

func wrapFetch(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &FetchError{Provider: provider, Err: err}
}
