package device

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error (reset, broken pipe, unreachable)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates a connect or I/O timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates the device refused the connection
	ErrTypeConnectionRefused
	// ErrTypeValidation indicates an out-of-range command argument
	ErrTypeValidation
	// ErrTypeEncoding indicates a command could not be framed (e.g. payload too large)
	ErrTypeEncoding
	// ErrTypeDecode indicates a received frame could not be decoded
	ErrTypeDecode
	// ErrTypeUnknown indicates an unknown or unexpected error
	ErrTypeUnknown
)

// NetworkErrorSubtype provides more specific network error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorConnectionReset
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
)

var (
	// ErrNotConnected is returned by a write attempt when the session has no socket
	ErrNotConnected = errors.New("not connected")

	// ErrNoStatus is returned by SetTimer before any status has been received
	ErrNoStatus = errors.New("no device status received yet")

	// ErrClosed is returned by every operation after Close
	ErrClosed = errors.New("session closed")
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeEncoding:
		return "Encoding Error"
	case ErrTypeDecode:
		return "Decode Error"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError represents an error that occurred while talking to a device
type DeviceError struct {
	Type           ErrorType           // Category of error
	Message        string              // Human-readable error message
	Err            error               // Underlying error (if any)
	NetworkSubtype NetworkErrorSubtype // More specific network error type
	DeviceAddr     string              // Device address (for context)
	Retryable      bool                // Whether the error is retryable
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError analyzes a dial/read/write error and returns a typed DeviceError
func ClassifyNetworkError(err error, addr string) *DeviceError {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) {
		return &DeviceError{
			Type:           ErrTypeTimeout,
			Message:        "Device did not respond in time",
			Err:            err,
			NetworkSubtype: NetworkErrorTimeout,
			DeviceAddr:     addr,
			Retryable:      true,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return &DeviceError{
				Type:           ErrTypeConnectionRefused,
				Message:        "Device refused connection",
				Err:            err,
				NetworkSubtype: NetworkErrorConnectionRefused,
				DeviceAddr:     addr,
				Retryable:      true,
			}
		case errors.Is(opErr.Err, syscall.ECONNRESET), errors.Is(opErr.Err, syscall.EPIPE):
			return &DeviceError{
				Type:           ErrTypeNetwork,
				Message:        "Connection reset by device",
				Err:            err,
				NetworkSubtype: NetworkErrorConnectionReset,
				DeviceAddr:     addr,
				Retryable:      true,
			}
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			return &DeviceError{
				Type:           ErrTypeNetwork,
				Message:        "Host unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorHostUnreachable,
				DeviceAddr:     addr,
				Retryable:      true,
			}
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			return &DeviceError{
				Type:           ErrTypeNetwork,
				Message:        "Network unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorNetworkUnreachable,
				DeviceAddr:     addr,
				Retryable:      true,
			}
		}
	}

	return &DeviceError{
		Type:           ErrTypeNetwork,
		Message:        "Network error occurred",
		Err:            err,
		NetworkSubtype: NetworkErrorGeneral,
		DeviceAddr:     addr,
		Retryable:      true,
	}
}

// NewNetworkError creates a network-level error with automatic classification
func NewNetworkError(message string, err error, addr string) *DeviceError {
	classified := ClassifyNetworkError(err, addr)
	if classified == nil {
		return &DeviceError{
			Type:       ErrTypeNetwork,
			Message:    message,
			DeviceAddr: addr,
			Retryable:  true,
		}
	}
	classified.Message = message
	return classified
}

// NewValidationError creates a validation error
func NewValidationError(format string, args ...any) *DeviceError {
	return &DeviceError{
		Type:      ErrTypeValidation,
		Message:   fmt.Sprintf(format, args...),
		Retryable: false,
	}
}

// NewEncodingError creates an encoding error
func NewEncodingError(message string, err error) *DeviceError {
	return &DeviceError{
		Type:      ErrTypeEncoding,
		Message:   message,
		Err:       err,
		Retryable: false,
	}
}

// NewDecodeError creates a decode error
func NewDecodeError(message string, err error, addr string) *DeviceError {
	return &DeviceError{
		Type:       ErrTypeDecode,
		Message:    message,
		Err:        err,
		DeviceAddr: addr,
		Retryable:  true,
	}
}

func asDeviceError(err error) (*DeviceError, bool) {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr, true
	}
	return nil, false
}

// IsNetworkError checks if an error is a network error (including timeout and connection refused)
func IsNetworkError(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Type == ErrTypeNetwork ||
			devErr.Type == ErrTypeTimeout ||
			devErr.Type == ErrTypeConnectionRefused
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Type == ErrTypeValidation
	}
	return false
}

// IsEncodingError checks if an error is an encoding error
func IsEncodingError(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Type == ErrTypeEncoding
	}
	return false
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	if devErr, ok := asDeviceError(err); ok {
		return devErr.Retryable
	}
	return false
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	if errors.Is(err, ErrClosed) {
		return "Session closed"
	}
	if errors.Is(err, ErrNoStatus) {
		return "No status received from device yet - try again shortly"
	}

	devErr, ok := asDeviceError(err)
	if !ok {
		return err.Error()
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return "Device not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Device refused connection - is another client connected?"
	case ErrTypeNetwork:
		switch devErr.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			return "Device unreachable - check network connection"
		case NetworkErrorNetworkUnreachable:
			return "Network unreachable - check WiFi connection"
		case NetworkErrorConnectionReset:
			return "Device closed the connection - check the local key"
		default:
			return "Network error - check connection"
		}
	case ErrTypeEncoding:
		return "Command too large for a single frame"
	case ErrTypeDecode:
		return "Failed to decode device response"
	default:
		return devErr.Message
	}
}
