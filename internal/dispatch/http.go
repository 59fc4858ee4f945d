package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/cowork/internal/ir"
	"github.com/roach88/cowork/internal/wire"
)

// HTTPTransport posts each event to POST {Endpoint}/v1/events.
type HTTPTransport struct {
	Endpoint string
	// Token is sent as a bearer token when set.
	Token string
	// UserID is sent as X-User-ID when Token is empty (servers running
	// without a JWT secret).
	UserID string
	Client *http.Client
}

// NewHTTPTransport creates a transport with a 10s client timeout.
func NewHTTPTransport(endpoint, token string) *HTTPTransport {
	return &HTTPTransport{
		Endpoint: endpoint,
		Token:    token,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, ev ir.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return Permanent(fmt.Errorf("encode event: %w", err))
	}

	url := strings.TrimRight(t.Endpoint, "/") + "/v1/events"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range AuthHeader(t.Token, t.UserID) {
		req.Header[k] = v
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	apiErr := decodeAPIError(resp)
	switch {
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return apiErr
	default:
		return Permanent(apiErr)
	}
}

// AuthHeader builds the credentials header shared by both transports.
func AuthHeader(token, userID string) http.Header {
	h := http.Header{}
	switch {
	case token != "":
		h.Set("Authorization", "Bearer "+token)
	case userID != "":
		h.Set("X-User-ID", userID)
	}
	return h
}

func decodeAPIError(resp *http.Response) error {
	var body wire.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil || body.Error.Code == "" {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return fmt.Errorf("http %d: %w", resp.StatusCode, &body.Error)
}

// APIErrorOf extracts the server's structured error, if any.
func APIErrorOf(err error) (*wire.APIError, bool) {
	var apiErr *wire.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
