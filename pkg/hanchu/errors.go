package hanchu

import "fmt"

// AuthError covers rejected credentials and sessions rejected mid-call.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("hanchu: auth error: %s", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NetworkError covers timeouts, connection failures and non-2xx transport errors.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("hanchu: network error: %s", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// MalformedPayloadError means the response parsed but is missing a field the
// reading's validity depends on (device serial match, timestamp).
type MalformedPayloadError struct {
	Field  string
	Reason string
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("hanchu: malformed payload: field %q: %s", e.Field, e.Reason)
}

// RejectedByDeviceError means the cloud accepted the HTTP call but rejected
// the requested command.
type RejectedByDeviceError struct {
	Code int
	Msg  string
}

func (e *RejectedByDeviceError) Error() string {
	return fmt.Sprintf("hanchu: command rejected (code %d): %s", e.Code, e.Msg)
}
