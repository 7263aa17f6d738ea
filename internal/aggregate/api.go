package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rendis/flowcanvas/internal/expressions"
	"github.com/rendis/flowcanvas/pkg/schema"
)

// workflowResponseQuery reshapes a workflow API response (workflow fields,
// a React Flow object with nodes and edges, webhook and schedules) into a
// graph document. React Flow handle ids are not carried over; edges attach to
// the default handles.
const workflowResponseQuery = `{
  id: (.id // ""),
  title: (.title // ""),
  nodes: [ (.object.nodes // [])[] | {
    id: .id,
    kind: (if .type == "trigger" then "trigger" else "action" end),
    type: (.data.type // ""),
    title: (.data.title // ""),
    status: (.data.status // "offline"),
    is_configured: (if .type == "trigger" then (.data.isConfigured // false) else false end),
    number_of_events: (if .type == "trigger" then 0 else (.data.numberOfEvents // 0) end)
  } ],
  edges: [ (.object.edges // [])[] | {
    id: (.id // ""),
    source: .source,
    target: .target
  } ],
  workflow: {
    webhook: {
      id: (.webhook.id // ""),
      status: (.webhook.status // "offline"),
      method: (.webhook.method // ""),
      url: (.webhook.url // ""),
      entrypoint_ref: (.webhook.entrypoint_ref // "")
    },
    schedules: [ (.schedules // [])[] | select((.cron // "") != "") | {
      id: (.id // ""),
      cron: .cron,
      entrypoint_ref: (.entrypoint_ref // "")
    } ]
  },
  entrypoint: (.entrypoint // "")
}`

// apiDocument is the shape produced by workflowResponseQuery.
type apiDocument struct {
	schema.GraphDocument
	Entrypoint string `json:"entrypoint"`
}

// APIProvider fetches workflows from an HTTP API returning workflow
// responses at <base>/workflows/<id>.
type APIProvider struct {
	baseURL string
	token   string
	client  *http.Client
	jq      *expressions.GoJQEngine
	retry   RetryPolicy
	breaker *Breaker
}

// APIOption configures an APIProvider.
type APIOption func(*APIProvider)

// WithToken sends a bearer token with every request.
func WithToken(token string) APIOption {
	return func(p *APIProvider) { p.token = token }
}

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) APIOption {
	return func(p *APIProvider) { p.client = c }
}

// WithRetry replaces the default retry policy.
func WithRetry(policy RetryPolicy) APIOption {
	return func(p *APIProvider) { p.retry = policy }
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *Breaker) APIOption {
	return func(p *APIProvider) { p.breaker = b }
}

// NewAPIProvider creates a provider for the API at baseURL.
func NewAPIProvider(baseURL string, opts ...APIOption) *APIProvider {
	p := &APIProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		jq:      expressions.NewGoJQEngine(),
		retry:   DefaultRetryPolicy(),
		breaker: NewBreaker(DefaultBreakerConfig()),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Load fetches and decodes one workflow. Transient failures are retried.
func (p *APIProvider) Load(ctx context.Context, workflowID string) (*schema.GraphDocument, error) {
	var doc *schema.GraphDocument
	err := p.call(ctx, "load", func(ctx context.Context) error {
		var err error
		doc, err = p.load(ctx, workflowID)
		return err
	})
	return doc, err
}

func (p *APIProvider) load(ctx context.Context, workflowID string) (*schema.GraphDocument, error) {
	endpoint := p.baseURL + "/workflows/" + url.PathEscape(workflowID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeProvider, "build request for %s", endpoint).WithCause(err)
	}
	req.Header.Set("Accept", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeProvider, "fetch workflow %q", workflowID).WithCause(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, notFound(workflowID)
	case resp.StatusCode >= 300:
		return nil, schema.NewErrorf(schema.ErrCodeProvider, "fetch workflow %q: unexpected status %d", workflowID, resp.StatusCode).
			WithDetails(map[string]any{"status": resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeProvider, "read workflow %q", workflowID).WithCause(err)
	}

	doc, err := p.DecodeWorkflowResponse(ctx, body)
	if err != nil {
		return nil, err
	}
	if doc.ID == "" {
		doc.ID = workflowID
	}
	return doc, nil
}

// DecodeWorkflowResponse turns a raw workflow response into a graph document.
// The workflow entrypoint becomes the trigger's entrypoint when it names an
// action node of the graph.
func (p *APIProvider) DecodeWorkflowResponse(ctx context.Context, body []byte) (*schema.GraphDocument, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, schema.NewError(schema.ErrCodeDecode, "workflow response is not a JSON object").WithCause(err)
	}

	out, err := p.jq.Evaluate(ctx, workflowResponseQuery, raw)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeDecode, "reshape workflow response").WithCause(err)
	}

	b, err := json.Marshal(out)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeDecode, "encode reshaped workflow").WithCause(err)
	}
	var ad apiDocument
	if err := json.Unmarshal(b, &ad); err != nil {
		return nil, schema.NewError(schema.ErrCodeDecode, fmt.Sprintf("decode reshaped workflow: %v", err)).WithCause(err)
	}

	doc := ad.GraphDocument
	if ad.Entrypoint != "" {
		linkEntrypoint(&doc, ad.Entrypoint)
	}
	return &doc, nil
}

func linkEntrypoint(doc *schema.GraphDocument, entrypoint string) {
	isAction := false
	for _, n := range doc.Nodes {
		if n.ID == entrypoint && n.Kind == schema.NodeKindAction {
			isAction = true
			break
		}
	}
	if !isAction {
		return
	}
	for i := range doc.Nodes {
		if doc.Nodes[i].Kind == schema.NodeKindTrigger {
			doc.Nodes[i].EntrypointID = entrypoint
		}
	}
}

var _ Provider = (*APIProvider)(nil)
