package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxResponseBody = 1 << 20

// providerResponse is the status and raw body of a provider call
type providerResponse struct {
	Status int
	Body   []byte
}

func (r providerResponse) ok() bool {
	return r.Status >= 200 && r.Status < 300
}

func postJSON(ctx context.Context, client *http.Client, endpoint string, payload any, header http.Header) (providerResponse, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return providerResponse{}, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return providerResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	return do(client, req)
}

func postForm(ctx context.Context, client *http.Client, endpoint string, form url.Values, user, pass string) (providerResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return providerResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(user, pass)
	return do(client, req)
}

func do(client *http.Client, req *http.Request) (providerResponse, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return providerResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return providerResponse{}, fmt.Errorf("read response: %w", err)
	}
	return providerResponse{Status: resp.StatusCode, Body: body}, nil
}

func defaultClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{}
}
