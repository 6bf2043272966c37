package util

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.0.0.0/8", " 192.168.1.10 ", ""})
	require.NoError(t, err)

	cases := []struct {
		name    string
		remote  string
		xff     string
		xrip    string
		trusted *TrustedProxies
		want    string
	}{
		{name: "untrusted peer ignores headers", remote: "198.51.100.10:1234", xff: "203.0.113.5", xrip: "203.0.113.6", want: "198.51.100.10"},
		{name: "trusted peer uses forwarded", remote: "10.0.0.20:1234", xff: "203.0.113.5", trusted: trusted, want: "203.0.113.5"},
		{name: "rightmost untrusted hop", remote: "10.0.0.20:1234", xff: "198.51.100.1, 203.0.113.5, 10.0.0.10", trusted: trusted, want: "203.0.113.5"},
		{name: "all hops trusted falls back to first", remote: "192.168.1.10:80", xff: "10.1.1.1, 10.2.2.2", trusted: trusted, want: "10.1.1.1"},
		{name: "real ip when no forwarded", remote: "10.0.0.20:1234", xrip: "203.0.113.9", trusted: trusted, want: "203.0.113.9"},
		{name: "garbage forwarded entries skipped", remote: "10.0.0.20:1234", xff: "nope, 203.0.113.7", trusted: trusted, want: "203.0.113.7"},
		{name: "mapped ipv4 peer", remote: "[::ffff:198.51.100.3]:443", want: "198.51.100.3"},
		{name: "ipv6 peer", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "unparseable remote returned raw", remote: "pipe", want: "pipe"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/commands", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.xrip != "" {
				req.Header.Set("X-Real-IP", tc.xrip)
			}
			require.Equal(t, tc.want, ClientIP(req, tc.trusted))
		})
	}
}

func TestNewTrustedProxies(t *testing.T) {
	none, err := NewTrustedProxies([]string{" ", ""})
	require.NoError(t, err)
	require.Nil(t, none)

	_, err = NewTrustedProxies([]string{"10.0.0.0/33"})
	require.Error(t, err)
	_, err = NewTrustedProxies([]string{"proxy.local"})
	require.ErrorContains(t, err, "proxy.local")
}

func TestVisitorCountry(t *testing.T) {
	cases := map[string]struct {
		headers map[string]string
		want    string
	}{
		"cloudflare":       {map[string]string{"CF-IPCountry": "se"}, "SE"},
		"fallback header":  {map[string]string{"X-Country-Code": " my "}, "MY"},
		"unknown skipped":  {map[string]string{"CF-IPCountry": "XX", "X-Country-Code": "DE"}, "DE"},
		"malformed":        {map[string]string{"CF-IPCountry": "T1"}, ""},
		"too long":         {map[string]string{"CF-IPCountry": "SWE"}, ""},
		"missing":          {nil, ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tc.want, VisitorCountry(req))
		})
	}
}

func TestUserAgentTruncated(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("User-Agent", strings.Repeat("é", maxUserAgentLen+20))
	require.Equal(t, maxUserAgentLen, len([]rune(UserAgent(req))))

	req.Header.Set("User-Agent", " curl/8.0 ")
	require.Equal(t, "curl/8.0", UserAgent(req))
}
