package httputil

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewSecureClient_DefaultOptions(t *testing.T) {
	client := NewSecureClient(ClientOptions{})

	if client.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", client.Timeout)
	}

	transport := client.Transport.(*http.Transport)
	if !transport.DisableCompression {
		t.Error("Expected DisableCompression to be true")
	}
}

func TestNewSecureClient_CustomTimeout(t *testing.T) {
	client := NewSecureClient(ClientOptions{Timeout: 5 * time.Minute})

	if client.Timeout != 5*time.Minute {
		t.Errorf("Expected timeout 5m, got %v", client.Timeout)
	}
}

func TestNewSecureClient_UserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	client := NewSecureClient(ClientOptions{UserAgent: "wasmedgeup/test"})
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if got != "wasmedgeup/test" {
		t.Errorf("User-Agent = %q, want %q", got, "wasmedgeup/test")
	}
}

func TestNewSecureClient_RedirectBlocked(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"http downgrade", "http://example.com/evil", "non-HTTPS"},
		{"private ip", "https://192.168.1.1/admin", "private"},
		{"loopback", "https://127.0.0.1/evil", "loopback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, tt.target, http.StatusFound)
			}))
			defer server.Close()

			client := NewSecureClient(ClientOptions{})
			client.Transport = server.Client().Transport

			resp, err := client.Get(server.URL)
			if resp != nil {
				resp.Body.Close()
			}
			if err == nil {
				t.Fatal("Expected redirect error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected %q in error, got: %v", tt.want, err)
			}
		})
	}
}

func TestRedirectChecker_TooManyRedirects(t *testing.T) {
	checker := makeRedirectChecker(3)

	via := make([]*http.Request, 3)
	req, _ := http.NewRequest("GET", "https://example.com/page4", nil)

	err := checker(req, via)
	if err == nil {
		t.Fatal("Expected error for too many redirects, got nil")
	}
	if !strings.Contains(err.Error(), "too many redirects") {
		t.Errorf("Expected 'too many redirects' in error, got: %v", err)
	}
}

func TestValidateIP(t *testing.T) {
	tests := []struct {
		ip      string
		blocked bool
	}{
		{"10.0.0.1", true},
		{"172.16.5.4", true},
		{"192.168.0.1", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"169.254.169.254", true},
		{"224.0.0.1", true},
		{"0.0.0.0", true},
		{"140.82.112.3", false},
		{"2606:50c0:8000::153", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			err := ValidateIP(net.ParseIP(tt.ip), "host.example")
			if (err != nil) != tt.blocked {
				t.Errorf("ValidateIP(%s) error = %v, blocked %v", tt.ip, err, tt.blocked)
			}
			if err != nil && !strings.Contains(err.Error(), "host.example") {
				t.Errorf("expected host in error, got: %v", err)
			}
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.DialTimeout != 15*time.Second {
		t.Errorf("Expected default DialTimeout 15s, got %v", opts.DialTimeout)
	}
	if opts.MaxRedirects != 10 {
		t.Errorf("Expected default MaxRedirects 10, got %d", opts.MaxRedirects)
	}
}

func TestUserAgent(t *testing.T) {
	if ua := UserAgent(); !strings.HasPrefix(ua, "wasmedgeup/") || len(ua) == len("wasmedgeup/") {
		t.Errorf("UserAgent() = %q, want wasmedgeup/<version>", ua)
	}
}
