// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mapasync/internal/models"
)

// DefaultHTTPTimeout bounds a place list request when no client is given.
const DefaultHTTPTimeout = 10 * time.Second

// maxErrorBody limits how much of an error response is kept for the message.
const maxErrorBody = 512

// ErrUnexpectedStatus is wrapped by Places for non-2xx responses.
var ErrUnexpectedStatus = errors.New("unexpected status")

// PlacesClient reads the place list from a relay.
type PlacesClient struct {
	endpoint string
	client   *http.Client
}

// NewPlacesClient returns a client for the relay at base, e.g.
// "http://localhost:5000". A nil httpClient gets DefaultHTTPTimeout.
func NewPlacesClient(base string, httpClient *http.Client) *PlacesClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &PlacesClient{
		endpoint: strings.TrimRight(base, "/") + "/mapa",
		client:   httpClient,
	}
}

// Places performs GET {base}/mapa and decodes the flat array.
func (p *PlacesClient) Places(ctx context.Context) ([]models.Place, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", p.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("get %s: %w %d: %s", p.endpoint, ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var list []models.Place
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode place list: %w", err)
	}
	return list, nil
}

// websocketURL maps an http(s) relay base to its ws(s) /ws endpoint.
func websocketURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}
