// SPDX-License-Identifier: AGPL-3.0-or-later
// rtrproxy - an RPKI route-origin data-plane proxy
// Copyright (C) 2023-2026 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package jsonclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// HTTPOptions configures the outbound fetch (spec section 6.2).
type HTTPOptions struct {
	UserAgent    string
	BindAddress  string
	ProxyURL     string
	CACertFiles  []string
	IdentityFile string
	SkipVerify   bool
}

// Fetcher retrieves a JSON document from an http(s):// or file:// URL,
// remembering the validator so subsequent fetches can use conditional
// GET (spec section 4.4: "SHOULD use conditional requests").
type Fetcher struct {
	url    string
	client *http.Client

	etag         string
	lastModified string
}

// NewFetcher builds a Fetcher for remote. An http.Client is configured
// per opts only for http(s) remotes; file:// remotes never dial out.
func NewFetcher(remote string, opts HTTPOptions) (*Fetcher, error) {
	f := &Fetcher{url: remote}
	if strings.HasPrefix(remote, "file://") {
		return f, nil
	}

	transport := &http.Transport{}
	if opts.ProxyURL != "" {
		proxy, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("jsonclient: invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}
	if opts.BindAddress != "" {
		localAddr, err := net.ResolveTCPAddr("tcp", opts.BindAddress+":0")
		if err != nil {
			return nil, fmt.Errorf("jsonclient: invalid bind address: %w", err)
		}
		dialer := &net.Dialer{LocalAddr: localAddr}
		transport.DialContext = dialer.DialContext
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: opts.SkipVerify} //nolint:gosec // operator opt-in
	if len(opts.CACertFiles) > 0 {
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		for _, f := range opts.CACertFiles {
			pem, err := os.ReadFile(f)
			if err != nil {
				return nil, fmt.Errorf("jsonclient: read CA cert %s: %w", f, err)
			}
			pool.AppendCertsFromPEM(pem)
		}
		tlsConfig.RootCAs = pool
	}
	if opts.IdentityFile != "" {
		pem, err := os.ReadFile(opts.IdentityFile)
		if err != nil {
			return nil, fmt.Errorf("jsonclient: read identity file: %w", err)
		}
		cert, err := tls.X509KeyPair(pem, pem)
		if err != nil {
			return nil, fmt.Errorf("jsonclient: parse identity file: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	transport.TLSClientConfig = tlsConfig

	f.client = &http.Client{Transport: transport, Timeout: 60 * time.Second}
	return f, nil
}

// FetchResult reports what Fetch observed.
type FetchResult struct {
	Body       []byte
	NotChanged bool // the server returned 304 Not Modified
}

// Fetch retrieves the document, sending conditional headers if a prior
// fetch recorded a validator. A 304 response yields NotChanged=true
// with no body.
func (f *Fetcher) Fetch(ctx context.Context, userAgent string) (FetchResult, error) {
	if strings.HasPrefix(f.url, "file://") {
		body, err := os.ReadFile(strings.TrimPrefix(f.url, "file://"))
		if err != nil {
			return FetchResult{}, fmt.Errorf("jsonclient: read file: %w", err)
		}
		return FetchResult{Body: body}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("jsonclient: build request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	if f.etag != "" {
		req.Header.Set("If-None-Match", f.etag)
	}
	if f.lastModified != "" {
		req.Header.Set("If-Modified-Since", f.lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("jsonclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return FetchResult{NotChanged: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return FetchResult{}, fmt.Errorf("jsonclient: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{}, fmt.Errorf("jsonclient: read body: %w", err)
	}
	if etag := resp.Header.Get("ETag"); etag != "" {
		f.etag = etag
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		f.lastModified = lm
	}
	return FetchResult{Body: body}, nil
}
