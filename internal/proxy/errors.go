package proxy

import "errors"

// Proxy connectivity errors.
//
// Design decision: We define specific error types rather than wrapping all
// errors generically. This allows callers to handle different failure modes
// appropriately (e.g., retry on timeout, but fail fast on a wrong proxy
// type).
var (
	// ErrNotSOCKS5 is returned when the configured proxy address responds
	// but does not speak the SOCKS5 protocol. This typically happens when
	// connecting to an HTTP proxy or a different service on the expected
	// port.
	ErrNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy")

	// ErrCannotConnect is returned when we cannot establish a TCP connection
	// to the proxy address. This usually means the proxy is not running or
	// the address is incorrect.
	ErrCannotConnect = errors.New("cannot connect to proxy")

	// ErrTimeout is returned when the connection to the proxy times out.
	ErrTimeout = errors.New("timeout connecting to proxy")

	// ErrInvalidAddress is returned when the proxy address format is
	// invalid. Expected format is "host:port".
	ErrInvalidAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrTorNotRunning is returned when the embedded Tor daemon is used
	// before Start succeeded.
	ErrTorNotRunning = errors.New("embedded Tor daemon is not running")
)

// Status represents the result of checking the proxy connection.
type Status int

const (
	// StatusOK indicates the proxy is a working SOCKS5 proxy.
	StatusOK Status = iota

	// StatusWrongType indicates the address responded with something other
	// than the SOCKS5 protocol.
	StatusWrongType

	// StatusCannotConnect indicates we could not establish a connection.
	StatusCannotConnect

	// StatusTimeout indicates the connection attempt timed out.
	StatusTimeout
)

// String returns a human-readable description of the proxy status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWrongType:
		return "wrong type (not SOCKS5)"
	case StatusCannotConnect:
		return "cannot connect"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error returns the appropriate error for this status, or nil if OK.
func (s Status) Error() error {
	switch s {
	case StatusOK:
		return nil
	case StatusWrongType:
		return ErrNotSOCKS5
	case StatusCannotConnect:
		return ErrCannotConnect
	case StatusTimeout:
		return ErrTimeout
	default:
		return errors.New("unknown proxy status")
	}
}
