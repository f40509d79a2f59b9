// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/bureau-foundation/roomgpt/lib/netutil"
	"github.com/bureau-foundation/roomgpt/lib/secret"
	"github.com/bureau-foundation/roomgpt/lib/version"
)

// apiPrefix is the client-server API root every endpoint hangs off.
const apiPrefix = "/_matrix/client/v3"

// deviceDisplayName labels the device a password login creates.
const deviceDisplayName = "roomgpt"

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// HomeserverURL is the homeserver base URL, for example
	// "https://matrix.example.org". A trailing slash is ignored.
	HomeserverURL string

	// HTTPClient carries every request. Nil means http.DefaultClient.
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client talks to one homeserver without credentials. Sessions created
// from it share its transport.
type Client struct {
	homeserver string
	transport  *http.Client
	logger     *slog.Logger
}

// NewClient validates config and returns a Client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.HomeserverURL == "" {
		return nil, errors.New("messaging: HomeserverURL is required")
	}
	parsed, err := url.Parse(config.HomeserverURL)
	if err != nil {
		return nil, fmt.Errorf("messaging: invalid HomeserverURL %q: %w", config.HomeserverURL, err)
	}
	switch parsed.Scheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("messaging: HomeserverURL %q: scheme must be http or https", config.HomeserverURL)
	}

	client := &Client{
		// Endpoints are appended as already-escaped strings, so the
		// base is kept as text rather than as a *url.URL.
		homeserver: strings.TrimRight(config.HomeserverURL, "/"),
		transport:  config.HTTPClient,
		logger:     config.Logger,
	}
	if client.transport == nil {
		client.transport = http.DefaultClient
	}
	if client.logger == nil {
		client.logger = slog.Default()
	}
	return client, nil
}

// HomeserverURL returns the base URL the client talks to.
func (c *Client) HomeserverURL() string {
	return c.homeserver
}

// CloseIdleConnections drops pooled connections so the next request
// dials afresh. The sync loop calls it after a failed poll.
func (c *Client) CloseIdleConnections() {
	c.transport.CloseIdleConnections()
}

// Login exchanges a username and password for a DirectSession. The
// caller keeps ownership of password.
func (c *Client) Login(ctx context.Context, username string, password *secret.Buffer) (*DirectSession, error) {
	switch {
	case username == "":
		return nil, errors.New("messaging: login needs a username")
	case password == nil:
		return nil, errors.New("messaging: login needs a password")
	}

	request := LoginRequest{
		Type:                     "m.login.password",
		Identifier:               &UserIdentifier{Type: "m.id.user", User: username},
		Password:                 password.String(),
		InitialDeviceDisplayName: deviceDisplayName,
	}
	var auth AuthResponse
	if err := c.invoke(ctx, call{method: http.MethodPost, path: endpoint("login"), body: request}, &auth); err != nil {
		return nil, fmt.Errorf("messaging: login as %s: %w", username, err)
	}
	if auth.AccessToken == "" {
		return nil, fmt.Errorf("messaging: login as %s: homeserver returned no access token", username)
	}

	session, err := c.newSession(auth.UserID, auth.DeviceID, auth.AccessToken)
	if err != nil {
		return nil, err
	}
	c.logger.Info("logged in to matrix", "user_id", auth.UserID, "device_id", auth.DeviceID)
	return session, nil
}

// SessionFromToken wraps a stored access token in a DirectSession
// without contacting the homeserver; WhoAmI checks it. The caller must
// Close the session.
func (c *Client) SessionFromToken(userID, accessToken string) (*DirectSession, error) {
	return c.newSession(userID, "", accessToken)
}

// call describes one client-server API request. token is nil for the
// unauthenticated endpoints and body nil for requests without one.
type call struct {
	method string
	path   string
	query  url.Values
	token  *secret.Buffer
	body   any
}

// endpoint escapes each segment and joins them under apiPrefix.
func endpoint(segments ...string) string {
	var path strings.Builder
	path.WriteString(apiPrefix)
	for _, segment := range segments {
		path.WriteByte('/')
		path.WriteString(url.PathEscape(segment))
	}
	return path.String()
}

// invoke performs request and decodes a successful response into out.
// out may be nil when the response carries nothing of interest.
func (c *Client) invoke(ctx context.Context, request call, out any) error {
	body, err := c.roundTrip(ctx, request)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", request.path, err)
	}
	return nil
}

// roundTrip sends request and returns the body of a 2xx response. A
// homeserver error body becomes a *MatrixError; anything else becomes
// an error quoting the start of the body.
func (c *Client) roundTrip(ctx context.Context, request call) ([]byte, error) {
	target := c.homeserver + request.path
	if len(request.query) > 0 {
		target += "?" + request.query.Encode()
	}

	var payload io.Reader
	if request.body != nil {
		encoded, err := json.Marshal(request.body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s request: %w", request.path, err)
		}
		payload = bytes.NewReader(encoded)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, request.method, target, payload)
	if err != nil {
		return nil, err
	}
	httpRequest.Header.Set("User-Agent", version.UserAgent())
	if payload != nil {
		httpRequest.Header.Set("Content-Type", "application/json")
	}
	if request.token != nil {
		httpRequest.Header.Set("Authorization", "Bearer "+request.token.String())
	}

	response, err := c.transport.Do(httpRequest)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", request.path, err)
	}
	if response.StatusCode/100 == 2 {
		return body, nil
	}
	return nil, responseError(request, response.StatusCode, body)
}

// responseError interprets a non-2xx body.
func responseError(request call, status int, body []byte) error {
	var matrixErr MatrixError
	if json.Unmarshal(body, &matrixErr) == nil && matrixErr.Code != "" {
		matrixErr.StatusCode = status
		return &matrixErr
	}
	return fmt.Errorf("%s %s: unexpected %d response: %s",
		request.method, request.path, status, netutil.ErrorBody(bytes.NewReader(body)))
}
