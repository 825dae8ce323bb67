package main

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

	"github.com/sundayezeilo/filelinks/internal/httpx"
)

// adminClient calls the bearer-protected operator API.
type adminClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAdminClient(opts *globalOptions) (*adminClient, error) {
	if opts.token == "" {
		return nil, errors.New("--token (or ADMIN_API_TOKEN) is required")
	}
	return &adminClient{
		baseURL: strings.TrimRight(opts.apiURL, "/"),
		token:   opts.token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// do sends body as JSON and decodes a 2xx response into out when out is non-nil.
func (c *adminClient) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr httpx.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("server returned %d %s: %s", resp.StatusCode, apiErr.Error, apiErr.Message)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
