package app

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abrezinsky/standings/internal/auth"
	"github.com/abrezinsky/standings/internal/config"
	"github.com/abrezinsky/standings/internal/logger"
)

func quietLogger() logger.Logger {
	return logger.NewWithOptions(logger.Options{Level: slog.LevelError, Writer: io.Discard})
}

func testConfig() *config.Config {
	return &config.Config{
		Port:          8080,
		DBPath:        ":memory:",
		BaseURL:       "https://standings.example.com",
		CacheTTL:      time.Minute,
		WarmInterval:  time.Minute,
		DisableWarmer: true,
	}
}

func createTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(quietLogger(), cfg, auth.New("test-token"))
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestNew_InitializesApp(t *testing.T) {
	a := createTestApp(t, testConfig())

	if a.handlers == nil {
		t.Error("expected handlers to be initialized")
	}
	if a.repo == nil {
		t.Error("expected repo to be initialized")
	}
	if a.warmer != nil {
		t.Error("expected no warmer when disabled")
	}
	if a.BaseURL() != "https://standings.example.com" {
		t.Errorf("expected configured base URL, got %q", a.BaseURL())
	}
}

func TestNew_StartsWarmerWhenEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.DisableWarmer = false

	a := createTestApp(t, cfg)
	if a.warmer == nil {
		t.Fatal("expected warmer to be initialized")
	}
}

func TestNew_FailsWithBadDBPath(t *testing.T) {
	cfg := testConfig()
	cfg.DBPath = "/nonexistent/path/db.sqlite"

	if _, err := New(quietLogger(), cfg, auth.New("test-token")); err == nil {
		t.Error("expected error for invalid db path")
	}
}

func TestNewMailer(t *testing.T) {
	cfg := testConfig()
	if _, ok := newMailer(quietLogger(), cfg).(interface{ Endpoint() string }); ok {
		t.Error("expected log client without a relay URL")
	}

	cfg.MailerURL = "https://relay.example.com/send"
	client, ok := newMailer(quietLogger(), cfg).(interface{ Endpoint() string })
	if !ok || client.Endpoint() != cfg.MailerURL {
		t.Error("expected relay client for the configured URL")
	}
}

func TestApp_Router_ServesRequests(t *testing.T) {
	a := createTestApp(t, testConfig())

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/standings/leaderboard", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestApp_Run_StopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find a free port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	cfg := testConfig()
	cfg.Port = port
	a := createTestApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + l.Addr().String() + "/healthz")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never came up: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDefaultBaseURL(t *testing.T) {
	lan := mockNetworkProvider{interfaces: []networkInterface{
		mockInterface{flags: net.FlagUp, addrs: []net.Addr{&net.IPNet{IP: net.ParseIP("192.168.1.100")}}},
	}}
	none := mockNetworkProvider{err: net.ErrClosed}

	tests := []struct {
		name     string
		baseURL  string
		provider networkProvider
		want     string
	}{
		{"replaces localhost", "http://localhost:8080", lan, "http://192.168.1.100:8080"},
		{"keeps configured host", "https://standings.example.com", lan, "https://standings.example.com"},
		{"keeps localhost without LAN", "http://localhost:8080", none, "http://localhost:8080"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := defaultBaseURL(tt.baseURL, tt.provider); got != tt.want {
				t.Errorf("defaultBaseURL(%q) = %q, want %q", tt.baseURL, got, tt.want)
			}
		})
	}
}

// mockInterface implements networkInterface for testing
type mockInterface struct {
	flags net.Flags
	addrs []net.Addr
	err   error
}

func (m mockInterface) Flags() net.Flags {
	return m.flags
}

func (m mockInterface) Addrs() ([]net.Addr, error) {
	return m.addrs, m.err
}

// mockNetworkProvider implements networkProvider for testing
type mockNetworkProvider struct {
	interfaces []networkInterface
	err        error
}

func (m mockNetworkProvider) Interfaces() ([]networkInterface, error) {
	return m.interfaces, m.err
}

func TestGetPreferredIP(t *testing.T) {
	tests := []struct {
		name     string
		provider mockNetworkProvider
		want     string
	}{
		{
			name:     "network error",
			provider: mockNetworkProvider{err: net.ErrClosed},
			want:     "localhost",
		},
		{
			name: "addrs error",
			provider: mockNetworkProvider{interfaces: []networkInterface{
				mockInterface{flags: net.FlagUp, err: net.ErrClosed},
			}},
			want: "localhost",
		},
		{
			name: "skips down and loopback interfaces",
			provider: mockNetworkProvider{interfaces: []networkInterface{
				mockInterface{flags: 0, addrs: []net.Addr{&net.IPNet{IP: net.ParseIP("10.0.0.1")}}},
				mockInterface{flags: net.FlagUp | net.FlagLoopback, addrs: []net.Addr{&net.IPNet{IP: net.ParseIP("10.0.0.2")}}},
			}},
			want: "localhost",
		},
		{
			name: "ip addr",
			provider: mockNetworkProvider{interfaces: []networkInterface{
				mockInterface{flags: net.FlagUp, addrs: []net.Addr{&net.IPAddr{IP: net.ParseIP("10.0.0.5")}}},
			}},
			want: "10.0.0.5",
		},
		{
			name: "prefers private over public",
			provider: mockNetworkProvider{interfaces: []networkInterface{
				mockInterface{flags: net.FlagUp, addrs: []net.Addr{
					&net.IPNet{IP: net.ParseIP("8.8.8.8")},
					&net.IPNet{IP: net.ParseIP("172.20.0.3")},
				}},
			}},
			want: "172.20.0.3",
		},
		{
			name: "public fallback",
			provider: mockNetworkProvider{interfaces: []networkInterface{
				mockInterface{flags: net.FlagUp, addrs: []net.Addr{&net.IPNet{IP: net.ParseIP("8.8.8.8")}}},
			}},
			want: "8.8.8.8",
		},
		{
			name: "skips ipv6 and loopback addresses",
			provider: mockNetworkProvider{interfaces: []networkInterface{
				mockInterface{flags: net.FlagUp, addrs: []net.Addr{
					&net.IPNet{IP: net.ParseIP("fe80::1")},
					&net.IPNet{IP: net.ParseIP("127.0.0.1")},
				}},
			}},
			want: "localhost",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getPreferredIP(tt.provider); got != tt.want {
				t.Errorf("getPreferredIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetPreferredIP_RealNetwork(t *testing.T) {
	ip := getPreferredIP(realNetworkProvider{})
	if ip == "localhost" {
		return
	}
	if parsed := net.ParseIP(ip); parsed == nil || parsed.To4() == nil {
		t.Errorf("expected IPv4 address or localhost, got %q", ip)
	}
}
