package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// listEnvelope covers the paginated shapes list endpoints may return.
type listEnvelope struct {
	Results json.RawMessage `json:"results"`
	Data    json.RawMessage `json:"data"`
}

// DecodeList accepts every list shape the API emits (a bare JSON array,
// {"results": [...]} or {"data": [...]}) and yields the same slice for
// equal underlying data.
func DecodeList[T any](raw json.RawMessage) ([]T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}
	var envelope listEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	inner := envelope.Results
	if inner == nil {
		inner = envelope.Data
	}
	if inner == nil {
		return nil, fmt.Errorf("decode list: unrecognized response shape")
	}
	if err := json.Unmarshal(inner, &items); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return items, nil
}

// List fetches path and decodes the response with DecodeList.
func List[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, &raw); err != nil {
		return nil, err
	}
	return DecodeList[T](raw)
}
