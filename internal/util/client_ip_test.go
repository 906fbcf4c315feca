package util

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	proxies, err := NewTrustedProxies([]string{"10.0.0.0/8", "192.168.1.10"})
	if err != nil {
		t.Fatalf("new trusted proxies: %v", err)
	}

	cases := []struct {
		name    string
		remote  string
		headers map[string]string
		trusted *TrustedProxies
		want    string
	}{
		{
			name:    "direct caller ignores spoofed headers",
			remote:  "198.51.100.10:52000",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.5", "X-Real-IP": "203.0.113.6"},
			want:    "198.51.100.10",
		},
		{
			name:    "untrusted peer ignores headers even when proxies are configured",
			remote:  "198.51.100.10:52000",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.5"},
			trusted: proxies,
			want:    "198.51.100.10",
		},
		{
			name:    "single hop behind ingress",
			remote:  "10.1.2.3:443",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.5"},
			trusted: proxies,
			want:    "203.0.113.5",
		},
		{
			name:    "client-supplied prefix is skipped",
			remote:  "192.168.1.10:8080",
			headers: map[string]string{"X-Forwarded-For": "1.2.3.4, 203.0.113.5, 10.0.0.7"},
			trusted: proxies,
			want:    "203.0.113.5",
		},
		{
			name:    "garbage forwarded header falls back to x-real-ip",
			remote:  "10.1.2.3:443",
			headers: map[string]string{"X-Forwarded-For": "unknown", "X-Real-IP": "203.0.113.9"},
			trusted: proxies,
			want:    "203.0.113.9",
		},
		{
			name:    "only proxies in chain returns leftmost",
			remote:  "10.1.2.3:443",
			headers: map[string]string{"X-Forwarded-For": "10.0.0.5, 10.0.0.6"},
			trusted: proxies,
			want:    "10.0.0.5",
		},
		{
			name:   "ipv6 peer",
			remote: "[2001:db8::1]:9000",
			want:   "2001:db8::1",
		},
		{
			name:   "unparseable remote addr is returned as is",
			remote: "pipe",
			want:   "pipe",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/auth/login", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req, tc.trusted); got != tc.want {
				t.Fatalf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewTrustedProxies(t *testing.T) {
	if p, err := NewTrustedProxies(nil); err != nil || p != nil {
		t.Fatalf("empty list: %v %v", p, err)
	}
	if _, err := NewTrustedProxies([]string{"10.0.0.0/8", " ", "::1"}); err != nil {
		t.Fatalf("valid entries: %v", err)
	}
	for _, bad := range []string{"10.0.0.0/33", "proxy.internal"} {
		if _, err := NewTrustedProxies([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
