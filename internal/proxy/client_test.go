package proxy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		wantErr error
	}{
		{name: "valid localhost", address: "127.0.0.1:9050"},
		{name: "valid hostname", address: "proxy.internal:1080"},
		{name: "missing port", address: "127.0.0.1", wantErr: ErrInvalidAddress},
		{name: "missing host", address: ":9050", wantErr: ErrInvalidAddress},
		{name: "port zero", address: "127.0.0.1:0", wantErr: ErrInvalidAddress},
		{name: "port out of range", address: "127.0.0.1:70000", wantErr: ErrInvalidAddress},
		{name: "non-numeric port", address: "127.0.0.1:abc", wantErr: ErrInvalidAddress},
		{name: "empty", address: "", wantErr: ErrInvalidAddress},
		{name: "url instead of host:port", address: "socks5://127.0.0.1:9050", wantErr: ErrInvalidAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := NewClient(tt.address, 5*time.Second)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewClient(%q) error = %v, want %v", tt.address, err, tt.wantErr)
			}
			if tt.wantErr == nil {
				if client.ProxyAddress() != tt.address {
					t.Errorf("ProxyAddress() = %q, want %q", client.ProxyAddress(), tt.address)
				}
			}
		})
	}
}

func TestClient_NewHTTPClient(t *testing.T) {
	t.Parallel()

	client, err := NewClient("127.0.0.1:9050", 7*time.Second)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	httpClient := client.NewHTTPClient()
	if httpClient.Timeout != 7*time.Second {
		t.Errorf("Timeout = %v, want 7s", httpClient.Timeout)
	}
	if httpClient.Jar == nil {
		t.Error("HTTP client has no cookie jar")
	}
	if httpClient.CheckRedirect == nil {
		t.Error("HTTP client has no redirect limit")
	}
}

func TestClient_NewHTTPClient_honorsRequestContext(t *testing.T) {
	t.Parallel()

	// A listener that accepts the connection but never answers the SOCKS5
	// handshake, so the dial stalls until the request context expires.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer ln.Close()

	connCh := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		connCh <- conn
	}()
	defer func() {
		select {
		case conn := <-connCh:
			conn.Close()
		default:
		}
	}()

	client, err := NewClient(ln.Addr().String(), 30*time.Second)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	httpClient := client.NewHTTPClient()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.invalid/", nil)
	if err != nil {
		t.Fatalf("http.NewRequestWithContext() error = %v", err)
	}

	start := time.Now()
	resp, err := httpClient.Do(req) //nolint:bodyclose // The request must fail
	if err == nil {
		resp.Body.Close()
		t.Fatal("Do() succeeded against a stalled proxy, want context error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do() error = %v, want %v", err, context.DeadlineExceeded)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Do() took %v to observe the expired context", elapsed)
	}
}

func TestClient_CheckConnection(t *testing.T) {
	t.Parallel()

	t.Run("no listener", func(t *testing.T) {
		t.Parallel()

		// Reserve a port and close it so nothing is listening there.
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("net.Listen() error = %v", err)
		}
		addr := ln.Addr().String()
		ln.Close()

		client, err := NewClient(addr, time.Second)
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}

		if status := client.CheckConnection(context.Background()); status != StatusCannotConnect {
			t.Errorf("CheckConnection() = %v, want %v", status, StatusCannotConnect)
		}
	})

	t.Run("non-SOCKS listener", func(t *testing.T) {
		t.Parallel()

		// A listener that answers with something that is not SOCKS5.
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("net.Listen() error = %v", err)
		}
		defer ln.Close()

		go func() {
			for {
				conn, err := ln.Accept()
				if err != nil {
					return
				}
				_, _ = conn.Write([]byte("HTTP/1.1 400 Bad Request\r\n\r\n"))
				conn.Close()
			}
		}()

		client, err := NewClient(ln.Addr().String(), time.Second)
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}

		if status := client.CheckConnection(context.Background()); status != StatusWrongType {
			t.Errorf("CheckConnection() = %v, want %v", status, StatusWrongType)
		}
	})
}

func TestStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status  Status
		text    string
		wantErr error
	}{
		{StatusOK, "OK", nil},
		{StatusWrongType, "wrong type (not SOCKS5)", ErrNotSOCKS5},
		{StatusCannotConnect, "cannot connect", ErrCannotConnect},
		{StatusTimeout, "timeout", ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()

			if got := tt.status.String(); got != tt.text {
				t.Errorf("String() = %q, want %q", got, tt.text)
			}
			if err := tt.status.Error(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Error() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
