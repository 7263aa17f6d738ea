package aggregate

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rendis/flowcanvas/pkg/schema"
)

// eventCountQuery accepts a response that is either a bare event list or an
// object carrying a count or an events list.
const eventCountQuery = `.response | if type == "array" then length
  elif (.count | type) == "number" then .count
  else ((.events // []) | length) end`

// CountEvents asks the event search endpoint (<base>/events/search) how many
// events match params.
func (p *APIProvider) CountEvents(ctx context.Context, params schema.EventSearchParams) (int, error) {
	var n int
	err := p.call(ctx, "events", func(ctx context.Context) error {
		var err error
		n, err = p.countEvents(ctx, params)
		return err
	})
	return n, err
}

func (p *APIProvider) countEvents(ctx context.Context, params schema.EventSearchParams) (int, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return 0, schema.NewError(schema.ErrCodeProvider, "encode event search").WithCause(err)
	}
	endpoint := p.baseURL + "/events/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, schema.NewErrorf(schema.ErrCodeProvider, "build request for %s", endpoint).WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, schema.NewErrorf(schema.ErrCodeProvider, "search events of %q", params.ActionID).WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return 0, schema.NewErrorf(schema.ErrCodeProvider, "search events of %q: unexpected status %d", params.ActionID, resp.StatusCode).
			WithDetails(map[string]any{"status": resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return 0, schema.NewErrorf(schema.ErrCodeProvider, "read events of %q", params.ActionID).WithCause(err)
	}
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return 0, schema.NewError(schema.ErrCodeDecode, "event search response is not JSON").WithCause(err)
	}

	out, err := p.jq.EvaluateNormalized(ctx, eventCountQuery, map[string]any{"response": raw})
	if err != nil {
		return 0, err
	}
	return toCount(out)
}

func toCount(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, schema.NewErrorf(schema.ErrCodeDecode, "event count is %T, not a number", v)
	}
}
