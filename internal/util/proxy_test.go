package util

import (
	"net/http"
	"testing"
	"time"
)

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://plain-proxy:3128", "http://tls-proxy:3129", "internal.example.com")

	cases := []struct {
		target string
		want   string
	}{
		{"http://api.example.com/v1", "http://plain-proxy:3128"},
		{"https://api.example.com/v1", "http://tls-proxy:3129"},
		{"https://internal.example.com/v1", ""},
	}
	for _, tc := range cases {
		req, _ := http.NewRequest(http.MethodGet, tc.target, nil)
		got, err := proxy(req)
		if err != nil {
			t.Fatalf("%s: proxy error: %v", tc.target, err)
		}
		if tc.want == "" {
			if got != nil {
				t.Errorf("%s: expected direct connection, got %s", tc.target, got)
			}
			continue
		}
		if got == nil || got.String() != tc.want {
			t.Errorf("%s: expected %s, got %v", tc.target, tc.want, got)
		}
	}
}

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient(7*time.Second, "", "", "")
	if client.Timeout != 7*time.Second {
		t.Errorf("expected timeout 7s, got %v", client.Timeout)
	}
	if _, ok := client.Transport.(*http.Transport); !ok {
		t.Error("expected *http.Transport")
	}
}
