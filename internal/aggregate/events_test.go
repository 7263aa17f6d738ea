package aggregate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rendis/flowcanvas/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIProviderCountEvents(t *testing.T) {
	var got schema.EventSearchParams
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/events/search", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		switch got.ActionID {
		case "list":
			_, _ = w.Write([]byte(`[{"id":1},{"id":2},{"id":3}]`))
		case "count":
			_, _ = w.Write([]byte(`{"count":42}`))
		case "wrapped":
			_, _ = w.Write([]byte(`{"events":[{"id":1}]}`))
		case "broken":
			_, _ = w.Write([]byte(`<html>`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	p := NewAPIProvider(srv.URL, WithHTTPClient(srv.Client()))
	ctx := context.Background()

	tests := []struct {
		action string
		want   int
	}{
		{"list", 3},
		{"count", 42},
		{"wrapped", 1},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			n, err := p.CountEvents(ctx, schema.DefaultEventSearchParams("wf-1", tt.action))
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
			assert.Equal(t, 1000, got.Limit)
			assert.Equal(t, "published_at", got.OrderBy)
		})
	}

	_, err := p.CountEvents(ctx, schema.DefaultEventSearchParams("wf-1", "broken"))
	assert.True(t, schema.HasCode(err, schema.ErrCodeDecode))

	_, err = p.CountEvents(ctx, schema.DefaultEventSearchParams("wf-1", "down"))
	assert.True(t, schema.HasCode(err, schema.ErrCodeProvider))
}
