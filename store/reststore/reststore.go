// Package reststore implements store.Backend against a PostgREST-style HTTP table
// API, as exposed by hosted Postgres services.
//
// Tables are addressed as {BaseURL}/{table}. Filters, projection and ordering use
// PostgREST query syntax, and writes ask for the affected rows back with
// "Prefer: return=representation".
package reststore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/wispberry-tech/wispy-admin/store"
)

var _ store.Backend = (*Client)(nil)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DefaultTimeout bounds a single request when Config.Timeout is zero
const DefaultTimeout = 30 * time.Second

// Config configures the REST backend
type Config struct {
	BaseURL string // e.g. https://project.example.co/rest/v1
	APIKey  string // sent as the apikey header, and as bearer token when no other credential is set
	Schema  string // optional; selects a non-default exposed schema

	// Credentials, in order of precedence
	TokenSource       oauth2.TokenSource
	ClientCredentials *clientcredentials.Config

	HTTPClient *http.Client // base transport; defaults to http.DefaultClient
	Timeout    time.Duration
}

// Client is a REST-backed store.Backend
type Client struct {
	baseURL    string
	apiKey     string
	schema     string
	httpClient *http.Client
}

// New creates a REST backend client
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid REST base URL %q", cfg.BaseURL)
	}

	baseClient := cfg.HTTPClient
	if baseClient == nil {
		baseClient = http.DefaultClient
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, baseClient)

	var ts oauth2.TokenSource
	switch {
	case cfg.TokenSource != nil:
		ts = cfg.TokenSource
	case cfg.ClientCredentials != nil:
		ts = cfg.ClientCredentials.TokenSource(ctx)
	case cfg.APIKey != "":
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey, TokenType: "Bearer"})
	}

	httpClient := baseClient
	if ts != nil {
		httpClient = oauth2.NewClient(ctx, ts)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	// copy so the caller's client keeps its own timeout
	c := *httpClient
	c.Timeout = timeout

	return &Client{
		baseURL:    base.String(),
		apiKey:     cfg.APIKey,
		schema:     cfg.Schema,
		httpClient: &c,
	}, nil
}

func (c *Client) Select(ctx context.Context, table string, columns []string, order store.Order) ([]store.Row, error) {
	params, err := selectParams(columns)
	if err != nil {
		return nil, err
	}
	if _, err := ident(order.Column); err != nil {
		return nil, err
	}
	dir := "asc"
	if order.Direction == store.Desc {
		dir = "desc"
	}
	params.Set("order", order.Column+"."+dir+".nullslast,"+store.ColumnID+".asc")

	var rows []store.Row
	if err := c.doRequest(ctx, http.MethodGet, table, params, nil, "", &rows); err != nil {
		return nil, fmt.Errorf("reststore.Select %s: %w", table, err)
	}
	if rows == nil {
		rows = []store.Row{}
	}
	return rows, nil
}

func (c *Client) SelectByID(ctx context.Context, table string, columns []string, id string) (store.Row, error) {
	params, err := selectParams(columns)
	if err != nil {
		return nil, err
	}
	params.Set(store.ColumnID, "eq."+id)

	var rows []store.Row
	if err := c.doRequest(ctx, http.MethodGet, table, params, nil, "", &rows); err != nil {
		return nil, fmt.Errorf("reststore.SelectByID %s: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (c *Client) Insert(ctx context.Context, table string, columns []string, values store.Row) (store.Row, error) {
	params, err := selectParams(columns)
	if err != nil {
		return nil, err
	}
	if err := checkWritable(values); err != nil {
		return nil, err
	}

	var rows []store.Row
	if err := c.doRequest(ctx, http.MethodPost, table, params, values, "return=representation", &rows); err != nil {
		return nil, fmt.Errorf("reststore.Insert %s: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("reststore.Insert %s: no row returned", table)
	}
	return rows[0], nil
}

func (c *Client) Update(ctx context.Context, table string, columns []string, id string, values store.Row) (store.Row, error) {
	params, err := selectParams(columns)
	if err != nil {
		return nil, err
	}
	if err := checkWritable(values); err != nil {
		return nil, err
	}
	params.Set(store.ColumnID, "eq."+id)

	// updated_at is stamped by the database trigger
	var rows []store.Row
	if err := c.doRequest(ctx, http.MethodPatch, table, params, values, "return=representation", &rows); err != nil {
		return nil, fmt.Errorf("reststore.Update %s: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, store.ErrNoRows
	}
	return rows[0], nil
}

func (c *Client) Delete(ctx context.Context, table string, id string) error {
	params := url.Values{}
	params.Set(store.ColumnID, "eq."+id)
	if err := c.doRequest(ctx, http.MethodDelete, table, params, nil, "return=minimal", nil); err != nil {
		return fmt.Errorf("reststore.Delete %s: %w", table, err)
	}
	return nil
}

// Ping fetches the API root
func (c *Client) Ping(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodGet, "", nil, nil, "", nil); err != nil {
		return fmt.Errorf("reststore.Ping: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, table string, params url.Values, body any, prefer string, out any) error {
	path := c.baseURL + "/"
	if table != "" {
		if _, err := ident(table); err != nil {
			return err
		}
		path += url.PathEscape(table)
	}
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	if c.schema != "" {
		if method == http.MethodGet || method == http.MethodHead {
			req.Header.Set("Accept-Profile", c.schema)
		} else {
			req.Header.Set("Content-Profile", c.schema)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		dec := json.NewDecoder(resp.Body)
		dec.UseNumber()
		if err := dec.Decode(out); err != nil && err != io.EOF {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// decodeError reads a PostgREST error body. Gateways in front of PostgREST may
// answer with a bare message or plain text instead.
func decodeError(resp *http.Response) error {
	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
	if readErr != nil {
		return &store.Error{Status: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
	}

	var apiErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
		Hint    string `json:"hint"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(respBody, &apiErr) == nil {
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error
		}
		if msg != "" || apiErr.Code != "" {
			detail := apiErr.Details
			if apiErr.Hint != "" {
				detail = strings.TrimSpace(detail + " " + apiErr.Hint)
			}
			return &store.Error{Code: apiErr.Code, Status: resp.StatusCode, Message: msg, Detail: detail}
		}
	}
	return &store.Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
}

func selectParams(columns []string) (url.Values, error) {
	fields := []string{store.ColumnID, store.ColumnCreatedAt, store.ColumnUpdatedAt}
	for _, col := range columns {
		if col == store.ColumnID || col == store.ColumnCreatedAt || col == store.ColumnUpdatedAt {
			continue
		}
		if _, err := ident(col); err != nil {
			return nil, err
		}
		fields = append(fields, col)
	}
	params := url.Values{}
	params.Set("select", strings.Join(fields, ","))
	return params, nil
}

func checkWritable(values store.Row) error {
	for k := range values {
		if k == store.ColumnID || k == store.ColumnCreatedAt || k == store.ColumnUpdatedAt {
			return fmt.Errorf("column %s is assigned by the store", k)
		}
		if _, err := ident(k); err != nil {
			return err
		}
	}
	return nil
}

func ident(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return name, nil
}
