package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout is the timeout for checking if the proxy is available.
// We use a short timeout here because this is just a connectivity check,
// not an actual request through the proxy.
const checkProxyTimeout = 2 * time.Second

// Client provides SOCKS5 proxy connectivity for generated traffic.
// It wraps a SOCKS5 dialer and creates HTTP clients that route all
// requests through the proxy.
type Client struct {
	// proxyAddress is the SOCKS5 proxy address in "host:port" format.
	proxyAddress string

	// dialer is the SOCKS5 dialer. We cache this to avoid recreating it
	// for each connection.
	dialer proxy.Dialer

	// timeout is the default timeout for HTTP clients created by this
	// client.
	timeout time.Duration
}

// NewClient creates a new proxy client with the given address and timeout.
//
// The proxyAddress must be in "host:port" format (e.g., "127.0.0.1:9050").
// The timeout is used as the default for HTTP clients created by this
// client.
//
// This function validates the proxy address format but does not verify
// that the proxy is actually running. Call CheckConnection() to verify.
//
// Design decision: We don't connect to the proxy in the constructor because:
// 1. It allows creating the client even when the proxy isn't running yet
// 2. It separates object creation from network operations
// 3. It allows for better testing with mock proxies
func NewClient(proxyAddress string, timeout time.Duration) (*Client, error) {
	if !isValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidAddress
	}

	// nil auth: SOCKS ports on localhost tunnels and Tor don't require it.
	dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	return &Client{
		proxyAddress: proxyAddress,
		dialer:       dialer,
		timeout:      timeout,
	}, nil
}

// isValidProxyAddress checks if the address is in valid "host:port" format.
// We use a simple check rather than a full URL parser because the format
// is very specific (no scheme, no path, just host and port).
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return portNum >= 1 && portNum <= 65535
}

// SOCKS5 protocol constants
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthNoAccept = 0xFF
	socks5CmdConnect   = 0x01
	socks5AddrDomain   = 0x03

	// socks5TestHost is a synthetic hostname used for SOCKS5 verification.
	// The .invalid TLD is reserved and can never resolve; we only need to
	// verify the proxy responds to SOCKS5 CONNECT requests, not that the
	// connection succeeds.
	socks5TestHost = "connectivity-check.invalid"
)

// CheckConnection verifies that the proxy is running and speaks SOCKS5.
// It returns a Status indicating the result of the check.
//
// The check works by performing a SOCKS5 protocol handshake to verify:
// 1. The proxy speaks the SOCKS5 protocol
// 2. The proxy accepts connections without authentication
// 3. The proxy processes CONNECT requests
//
// This is more robust than checking HTTP response strings: a non-SOCKS
// service listening on the port cannot accidentally mimic proper SOCKS5
// protocol behavior.
func (c *Client) CheckConnection(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return StatusTimeout
		}
		return StatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return StatusCannotConnect
	}

	// Step 1: version negotiation. Client sends version, method count, and
	// the methods it offers; we offer no-authentication only.
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return StatusCannotConnect
	}

	// Server responds with version and the selected auth method.
	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return StatusTimeout
		}
		return StatusWrongType
	}

	if authResp[0] != socks5Version {
		return StatusWrongType
	}
	if authResp[1] == socks5AuthNoAccept || authResp[1] != socks5AuthNone {
		return StatusWrongType
	}

	// Step 2: send a CONNECT for a host that cannot exist. Any well-formed
	// reply (success or failure code) proves the proxy actually processes
	// SOCKS5 requests rather than just accepting the handshake.
	testPort := uint16(80)
	connectReq := []byte{
		socks5Version,
		socks5CmdConnect,
		0x00, // reserved
		socks5AddrDomain,
		byte(len(socks5TestHost)),
	}
	connectReq = append(connectReq, []byte(socks5TestHost)...)
	connectReq = append(connectReq, byte(testPort>>8), byte(testPort&0xFF))

	if _, err := conn.Write(connectReq); err != nil {
		return StatusCannotConnect
	}

	connectResp := make([]byte, 4)
	if _, err := io.ReadFull(conn, connectResp); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return StatusTimeout
		}
		return StatusWrongType
	}

	if connectResp[0] != socks5Version {
		return StatusWrongType
	}

	return StatusOK
}

// NewHTTPClient creates an HTTP client configured to use the proxy.
// The returned client routes all requests through the SOCKS5 proxy.
//
// Design decisions:
// - TLS verification stays on: the traffic visits ordinary clearnet sites
//   and must behave exactly like a browser would
// - We enable cookies via a cookie jar so revisits within a run look like
//   a continuing browser session
// - Redirect limit is 10 to prevent redirect loops while allowing normal
//   redirects
// - Compression stays enabled for the same blend-in reason: browsers send
//   Accept-Encoding and so do we
func (c *Client) NewHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext:         c.DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// DialContext establishes a TCP connection through the proxy with context
// support.
//
// Design decision: We wrap the basic Dial with context support because
// the proxy.Dialer interface doesn't support context directly. If the
// context is cancelled, the goroutine returns the error but the underlying
// connection attempt may continue briefly. This is a known limitation of
// the approach.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)

	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ProxyAddress returns the configured proxy address.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}
