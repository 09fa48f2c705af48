package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Host != "0.0.0.0" {
		t.Fatalf("Host = %q; want %q", cfg.Host, "0.0.0.0")
	}
	if cfg.Port != 8080 {
		t.Fatalf("Port = %d; want %d", cfg.Port, 8080)
	}
	if cfg.ReadTimeout != 30*time.Second {
		t.Fatalf("ReadTimeout = %v; want %v", cfg.ReadTimeout, 30*time.Second)
	}
	if cfg.WriteTimeout != 180*time.Second {
		t.Fatalf("WriteTimeout = %v; want %v", cfg.WriteTimeout, 180*time.Second)
	}
	if cfg.IdleTimeout != 60*time.Second {
		t.Fatalf("IdleTimeout = %v; want %v", cfg.IdleTimeout, 60*time.Second)
	}
}

func TestNewServer_ConfiguresAddressAndHandler(t *testing.T) {
	cfg := Config{Host: "127.0.0.1", Port: 18080, ReadTimeout: time.Second, WriteTimeout: 2 * time.Second, IdleTimeout: 3 * time.Second}
	s := NewServer(http.NotFoundHandler(), cfg, nil)

	if s == nil {
		t.Fatal("NewServer() returned nil")
	}
	if s.Addr() != "127.0.0.1:18080" {
		t.Fatalf("Addr = %q; want %q", s.Addr(), "127.0.0.1:18080")
	}
	if s.http.Handler == nil {
		t.Fatal("Handler should not be nil")
	}
	if s.http.WriteTimeout != 2*time.Second {
		t.Fatalf("WriteTimeout = %v; want 2s", s.http.WriteTimeout)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close() //nolint:errcheck
	return l.Addr().(*net.TCPAddr).Port
}

func TestServer_StartServeShutdown(t *testing.T) {
	port := freePort(t)
	closed := 0
	s := NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), Config{Host: "127.0.0.1", Port: port}, nil, closerFunc(func() error { closed++; return nil }))

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	url := "http://127.0.0.1:" + strconv.Itoa(port) + "/"
	var resp *http.Response
	var err error
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url) //nolint:gosec,noctx
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never came up: %v", err)
	}
	resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("expected 418, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Start should return nil after Shutdown, got %v", err)
	}
	if closed != 1 {
		t.Errorf("closer called %d times; want 1", closed)
	}
}

func TestServer_Shutdown_ReportsCloseErrors(t *testing.T) {
	boom := errors.New("boom")
	s := NewServer(http.NotFoundHandler(), Config{Host: "127.0.0.1", Port: 0}, nil,
		closerFunc(func() error { return boom }))

	if err := s.Shutdown(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected close error, got %v", err)
	}
}
