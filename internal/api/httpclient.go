package api

import (
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// newHTTPClient creates the shared client for backend calls. The cookie jar
// carries the session cookie on every request. Timeout 0 leaves requests
// bounded only by the transport limits below.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		MaxConnsPerHost:     10,
		ForceAttemptHTTP2:   true,
	}

	// cookiejar.New only fails for a non-nil Options with a broken PublicSuffixList
	jar, _ := cookiejar.New(nil)

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		Jar:       jar,
	}
}
