package network

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/kinveysync/internal/client/models"
	"github.com/dmitrijs2005/kinveysync/internal/common"
	"github.com/dmitrijs2005/kinveysync/internal/logging"
	"github.com/dmitrijs2005/kinveysync/internal/query"
)

// HTTPManager is a Manager over the REST appdata API:
//
//	GET|POST          /appdata/{app}/{collection}
//	GET|PUT|DELETE    /appdata/{app}/{collection}/{id}
//	GET               /appdata/{app}/{collection}/_count
//	POST              /user/{app}/login, /user/{app}
type HTTPManager struct {
	baseURL *url.URL
	creds   Credentials
	client  *http.Client
	timeout time.Duration
	logger  logging.Logger

	mu    sync.RWMutex
	token string
}

type HTTPOption func(*HTTPManager)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(m *HTTPManager) { m.client = c }
}

// WithRequestTimeout bounds every request. Zero leaves the caller's context
// in charge.
func WithRequestTimeout(d time.Duration) HTTPOption {
	return func(m *HTTPManager) { m.timeout = d }
}

func WithHTTPLogger(l logging.Logger) HTTPOption {
	return func(m *HTTPManager) { m.logger = l }
}

func NewHTTPManager(baseURL string, creds Credentials, opts ...HTTPOption) (*HTTPManager, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}
	m := &HTTPManager{
		baseURL: u,
		creds:   creds,
		client:  &http.Client{},
		logger:  logging.Nop{},
	}
	for _, o := range opts {
		o(m)
	}
	m.logger = m.logger.With("module", "network/http")
	return m, nil
}

func (m *HTTPManager) SetAuthToken(token string) {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
}

func (m *HTTPManager) authorization() string {
	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()
	if token != "" {
		return common.AuthSchemeKinvey + " " + token
	}
	raw := m.creds.AppKey + ":" + m.creds.AppSecret
	return common.AuthSchemeBasic + " " + base64.StdEncoding.EncodeToString([]byte(raw))
}

func (m *HTTPManager) endpoint(params url.Values, segments ...string) string {
	u := *m.baseURL
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u.Path = m.baseURL.Path + "/" + strings.Join(escaped, "/")
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

func (m *HTTPManager) collectionURL(collection string, params url.Values, extra ...string) string {
	segments := append([]string{"appdata", m.creds.AppKey, collection}, extra...)
	return m.endpoint(params, segments...)
}

func queryParams(q *query.Query, paginate bool) (url.Values, error) {
	params := url.Values{}
	if q == nil {
		return params, nil
	}
	if len(q.Predicates()) > 0 {
		filter, err := q.FilterJSON()
		if err != nil {
			return nil, err
		}
		params.Set("query", filter)
	}
	if !paginate {
		return params, nil
	}
	if len(q.SortFields()) > 0 {
		params.Set("sort", q.SortJSON())
	}
	if q.Skip() > 0 {
		params.Set("skip", strconv.Itoa(q.Skip()))
	}
	if q.Limit() > 0 {
		params.Set("limit", strconv.Itoa(q.Limit()))
	}
	return params, nil
}

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"description"`
}

func statusError(op string, resp *http.Response) error {
	var body errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &body)

	var sentinel error
	switch resp.StatusCode {
	case http.StatusNotFound:
		sentinel = ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = ErrUnauthorized
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		sentinel = ErrTimeout
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		sentinel = ErrUnavailable
	case http.StatusConflict:
		sentinel = ErrConflict
	case http.StatusBadRequest:
		sentinel = ErrBadRequest
	}
	se := &StatusError{Code: resp.StatusCode, Name: body.Error, Description: body.Description}
	if sentinel == nil {
		return fmt.Errorf("%s: %w", op, se)
	}
	return fmt.Errorf("%s: %w: %w", op, sentinel, se)
}

// do sends a request and decodes a 2xx JSON body into out (when non-nil).
func (m *HTTPManager) do(ctx context.Context, op, method, target string, in, out any) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set(common.AuthorizationHeader, m.authorization())
	req.Header.Set(common.APIVersionHeader, common.APIVersion)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Debug(ctx, "request failed", "op", op, "url", target, "error", err)
		return transportError(op, err)
	}
	defer resp.Body.Close()
	m.logger.Debug(ctx, "request done", "op", op, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return transportError(op, ctx.Err())
		}
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}

func (m *HTTPManager) GetByID(ctx context.Context, collection, id string) (models.Entity, error) {
	var e models.Entity
	if err := m.do(ctx, "get "+collection, http.MethodGet, m.collectionURL(collection, nil, id), nil, &e); err != nil {
		return nil, err
	}
	return e, nil
}

func (m *HTTPManager) Find(ctx context.Context, collection string, q *query.Query) ([]models.Entity, error) {
	params, err := queryParams(q, true)
	if err != nil {
		return nil, err
	}
	var items []models.Entity
	if err := m.do(ctx, "find "+collection, http.MethodGet, m.collectionURL(collection, params), nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Entity{}
	}
	return items, nil
}

type countBody struct {
	Count int `json:"count"`
}

func (m *HTTPManager) Count(ctx context.Context, collection string, q *query.Query) (int, error) {
	params, err := queryParams(q, false)
	if err != nil {
		return 0, err
	}
	var out countBody
	if err := m.do(ctx, "count "+collection, http.MethodGet, m.collectionURL(collection, params, "_count"), nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (m *HTTPManager) Create(ctx context.Context, collection string, e models.Entity) (models.Entity, error) {
	var out models.Entity
	if err := m.do(ctx, "create "+collection, http.MethodPost, m.collectionURL(collection, nil), e, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *HTTPManager) Update(ctx context.Context, collection string, e models.Entity) (models.Entity, error) {
	id := e.ID()
	if id == "" {
		return nil, fmt.Errorf("update %s: %w: entity has no _id", collection, ErrBadRequest)
	}
	var out models.Entity
	if err := m.do(ctx, "update "+collection, http.MethodPut, m.collectionURL(collection, nil, id), e, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *HTTPManager) Delete(ctx context.Context, collection, id string) (int, error) {
	var out countBody
	if err := m.do(ctx, "delete "+collection, http.MethodDelete, m.collectionURL(collection, nil, id), nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (m *HTTPManager) DeleteByQuery(ctx context.Context, collection string, q *query.Query) (int, error) {
	params, err := queryParams(q, false)
	if err != nil {
		return 0, err
	}
	var out countBody
	if err := m.do(ctx, "delete "+collection, http.MethodDelete, m.collectionURL(collection, params), nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

type credentialsBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Group posts the aggregation to the collection's _group endpoint.
func (m *HTTPManager) Group(ctx context.Context, collection string, a query.Aggregation, condition *query.Query) ([]query.Group, error) {
	body, err := query.EncodeAggregation(a, condition)
	if err != nil {
		return nil, err
	}
	var out []query.Group
	if err := m.do(ctx, "group "+collection, http.MethodPost, m.collectionURL(collection, nil, "_group"), json.RawMessage(body), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *HTTPManager) Login(ctx context.Context, username, password string) (*models.User, error) {
	var out models.Entity
	target := m.endpoint(nil, "user", m.creds.AppKey, "login")
	if err := m.do(ctx, "login", http.MethodPost, target, credentialsBody{username, password}, &out); err != nil {
		return nil, err
	}
	return models.UserFromEntity(out), nil
}

func (m *HTTPManager) Signup(ctx context.Context, username, password string) (*models.User, error) {
	var out models.Entity
	target := m.endpoint(nil, "user", m.creds.AppKey)
	if err := m.do(ctx, "signup", http.MethodPost, target, credentialsBody{username, password}, &out); err != nil {
		return nil, err
	}
	return models.UserFromEntity(out), nil
}

// Ping performs the appdata handshake.
func (m *HTTPManager) Ping(ctx context.Context) error {
	return m.do(ctx, "ping", http.MethodGet, m.endpoint(nil, "appdata", m.creds.AppKey), nil, nil)
}

func (m *HTTPManager) Close() error {
	m.client.CloseIdleConnections()
	return nil
}
