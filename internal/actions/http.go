package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rendis/gaiaflow/pkg/schema"
)

const (
	defaultHTTPTimeout     = 30 * time.Second
	defaultMaxResponseSize = 4 * 1024 * 1024
)

// HTTPRequest performs an HTTP call.
//
// Parameters: url (required), method (GET), headers (map), body (strings are
// sent verbatim, anything else as JSON), timeout, allow_error_status (bool),
// output_var (receives the decoded body).
//
// Output: status_code, headers (first value per name), body (decoded JSON
// when the response is JSON, a string otherwise). A status of 400 or more
// fails the step unless allow_error_status is set.
type HTTPRequest struct {
	Client          *http.Client
	MaxResponseSize int64
}

func (h *HTTPRequest) Description() string { return "Perform an HTTP request" }

func (h *HTTPRequest) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	url, err := requireString("http.request", inv.Params, "url")
	if err != nil {
		return nil, err
	}
	method := strings.ToUpper(stringParam(inv.Params, "method", http.MethodGet))

	reqCtx, cancel := context.WithTimeout(ctx, durationParam(inv.Params, "timeout", defaultHTTPTimeout))
	defer cancel()

	body, contentType, err := encodeBody(inv.Params["body"])
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(reqCtx, method, url, body)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "http.request: build request: %v", err).WithCause(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range stringMapParam(inv.Params, "headers") {
		req.Header.Set(k, v)
	}

	resp, err := h.client().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, schema.NewError(schema.ErrCodeCancelled, "http.request: cancelled").WithCause(ctx.Err())
		}
		if reqCtx.Err() != nil {
			return nil, schema.NewErrorf(schema.ErrCodeTimeout, "http.request: %s %s timed out", method, url).WithCause(err)
		}
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "http.request: %s %s: %v", method, url, err).WithCause(err)
	}
	defer resp.Body.Close()

	limit := h.MaxResponseSize
	if limit <= 0 {
		limit = defaultMaxResponseSize
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "http.request: read response: %v", err).WithCause(err)
	}

	headers := make(map[string]any, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	decoded := decodeBody(raw, resp.Header.Get("Content-Type"))
	output := map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        decoded,
	}
	res := withOutputVar(inv.Params, output, decoded)

	if resp.StatusCode >= http.StatusBadRequest && !boolParam(inv.Params, "allow_error_status", false) {
		return res, schema.NewErrorf(schema.ErrCodeExecution, "http.request: %s %s returned status %d", method, url, resp.StatusCode)
	}
	return res, nil
}

func (h *HTTPRequest) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return http.DefaultClient
}

func encodeBody(v any) (io.Reader, string, error) {
	switch b := v.(type) {
	case nil:
		return nil, "", nil
	case string:
		return strings.NewReader(b), "", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", schema.NewErrorf(schema.ErrCodeValidation, "http.request: encode body: %v", err).WithCause(err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

func decodeBody(raw []byte, contentType string) any {
	if len(raw) == 0 {
		return ""
	}
	if strings.Contains(contentType, "json") || json.Valid(raw) {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return string(raw)
}

