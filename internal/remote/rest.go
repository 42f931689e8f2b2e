package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds each backend request.
const DefaultTimeout = 30 * time.Second

// RESTGateway implements Gateway over the PostgREST dialect served by
// Supabase at <base>/rest/v1/<table>.
type RESTGateway struct {
	baseURL string
	key     string
	client  *http.Client
}

// RESTOption configures a RESTGateway.
type RESTOption func(*RESTGateway)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) RESTOption {
	return func(g *RESTGateway) {
		if c != nil {
			g.client = c
		}
	}
}

// NewRESTGateway creates a gateway for the project at baseURL using key as
// both the apikey header and the bearer token.
func NewRESTGateway(baseURL, key string, opts ...RESTOption) *RESTGateway {
	g := &RESTGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Select implements Gateway.
func (g *RESTGateway) Select(ctx context.Context, table string, q Query, dest any) error {
	params := url.Values{}
	if len(q.Columns) > 0 {
		params.Set("select", strings.Join(q.Columns, ","))
	} else {
		params.Set("select", "*")
	}
	addFilterParams(params, q.Filters)
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	body, err := g.do(ctx, "select", table, http.MethodGet, params, nil, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return decodeError("select", table, err)
	}
	return nil
}

// Upsert implements Gateway.
func (g *RESTGateway) Upsert(ctx context.Context, table string, rows any, opts UpsertOptions) error {
	payload, err := json.Marshal(rows)
	if err != nil {
		return requestError("upsert", table, 0, "encode rows", err)
	}

	params := url.Values{}
	if opts.OnConflict != "" {
		params.Set("on_conflict", opts.OnConflict)
	}
	resolution := "resolution=merge-duplicates"
	if opts.IgnoreDuplicates {
		resolution = "resolution=ignore-duplicates"
	}
	headers := map[string]string{"Prefer": resolution + ",return=minimal"}

	_, err = g.do(ctx, "upsert", table, http.MethodPost, params, payload, headers)
	return err
}

// Insert implements Gateway.
func (g *RESTGateway) Insert(ctx context.Context, table string, row any, dest any) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return requestError("insert", table, 0, "encode row", err)
	}
	headers := map[string]string{"Prefer": "return=representation"}

	body, err := g.do(ctx, "insert", table, http.MethodPost, nil, payload, headers)
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return decodeError("insert", table, err)
	}
	if len(rows) == 0 {
		return decodeError("insert", table, fmt.Errorf("no row returned"))
	}
	if err := json.Unmarshal(rows[0], dest); err != nil {
		return decodeError("insert", table, err)
	}
	return nil
}

// Update implements Gateway.
func (g *RESTGateway) Update(ctx context.Context, table string, patch map[string]any, filters ...Filter) error {
	payload, err := json.Marshal(patch)
	if err != nil {
		return requestError("update", table, 0, "encode patch", err)
	}
	params := url.Values{}
	addFilterParams(params, filters)
	headers := map[string]string{"Prefer": "return=minimal"}

	_, err = g.do(ctx, "update", table, http.MethodPatch, params, payload, headers)
	return err
}

// Ping implements Gateway by reading a single dining hall id.
func (g *RESTGateway) Ping(ctx context.Context) error {
	var rows []struct {
		ID int64 `json:"id"`
	}
	return g.Select(ctx, TableDiningHalls, Query{Columns: []string{"id"}, Limit: 1}, &rows)
}

// Close implements Gateway.
func (g *RESTGateway) Close() error {
	g.client.CloseIdleConnections()
	return nil
}

func (g *RESTGateway) do(ctx context.Context, op, table, method string, params url.Values, payload []byte, headers map[string]string) ([]byte, error) {
	endpoint := g.baseURL + "/rest/v1/" + table
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, requestError(op, table, 0, "build request", err)
	}
	req.Header.Set("apikey", g.key)
	req.Header.Set("Authorization", "Bearer "+g.key)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, connectionError(op, table, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, connectionError(op, table, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, requestError(op, table, resp.StatusCode, errorMessage(respBody), nil)
	}
	return respBody, nil
}

// errorMessage extracts the PostgREST error message, falling back to the raw
// body.
func errorMessage(body []byte) string {
	var pgErr struct {
		Message string `json:"message"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(body, &pgErr); err == nil && pgErr.Message != "" {
		if pgErr.Details != "" {
			return pgErr.Message + ": " + pgErr.Details
		}
		return pgErr.Message
	}
	return strings.TrimSpace(string(body))
}

// addFilterParams renders filters in PostgREST syntax.
func addFilterParams(params url.Values, filters []Filter) {
	for _, f := range filters {
		switch f.kind {
		case filterEq:
			params.Add(f.column, "eq."+fmt.Sprint(f.value))
		case filterIn:
			quoted := make([]string, len(f.values))
			for i, v := range f.values {
				quoted[i] = quoteValue(v)
			}
			params.Add(f.column, "in.("+strings.Join(quoted, ",")+")")
		case filterAnyEq:
			parts := make([]string, len(f.columns))
			for i, c := range f.columns {
				parts[i] = c + ".eq." + fmt.Sprint(f.value)
			}
			params.Add("or", "("+strings.Join(parts, ",")+")")
		}
	}
}

// quoteValue double-quotes an in-list value so reserved characters survive.
func quoteValue(v string) string {
	return `"` + strings.ReplaceAll(strings.ReplaceAll(v, `\`, `\\`), `"`, `\"`) + `"`
}

// TestConnection reports whether a backend at baseURL accepts key.
func TestConnection(ctx context.Context, baseURL, key string, opts ...RESTOption) error {
	g := NewRESTGateway(baseURL, key, opts...)
	defer g.Close()
	return g.Ping(ctx)
}
