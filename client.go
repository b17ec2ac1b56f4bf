/*
Copyright (c) 2025-present, Nudibranches Technologies SAS.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package gotrino

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"k8s.io/utils/ptr"
)

// Client drives statements through the coordinator's paginated
// statement API. A client carries one evolving session; the only
// cross-query coupling is that session, mirroring how the server
// evolves it through response headers.
type Client struct {
	httpClient *http.Client
	auth       Auth
	maxAttempt int
	url        *url.URL

	fetcher         SegmentFetcher
	spoolingEnabled bool

	mu      sync.RWMutex
	session *session
}

type clientOptions struct {
	port     int
	secure   bool
	noVerify bool

	auth            Auth
	insecureAuth    bool
	maxAttempt      int
	rootCert        *Certificate
	httpClient      *http.Client
	fetcher         SegmentFetcher
	maxConcurrent   int
	spoolingEnabled bool

	sessionMutators []func(*session)
}

// ClientOption configures a client under construction.
type ClientOption func(*clientOptions)

func withSession(f func(*session)) ClientOption {
	return func(o *clientOptions) {
		o.sessionMutators = append(o.sessionMutators, f)
	}
}

func WithPort(port int) ClientOption {
	return func(o *clientOptions) { o.port = port }
}

// WithSecure selects https for the coordinator URL.
func WithSecure(secure bool) ClientOption {
	return func(o *clientOptions) { o.secure = secure }
}

// WithNoVerify disables TLS certificate verification.
func WithNoVerify(noVerify bool) ClientOption {
	return func(o *clientOptions) { o.noVerify = noVerify }
}

func WithSource(source string) ClientOption {
	return withSession(func(s *session) { s.source = source })
}

func WithTraceToken(token string) ClientOption {
	return withSession(func(s *session) { s.traceToken = ptr.To(token) })
}

func WithClientTag(tag string) ClientOption {
	return withSession(func(s *session) { s.clientTags[tag] = struct{}{} })
}

func WithClientInfo(info string) ClientOption {
	return withSession(func(s *session) { s.clientInfo = ptr.To(info) })
}

func WithCatalog(catalog string) ClientOption {
	return withSession(func(s *session) { s.catalog = ptr.To(catalog) })
}

func WithSchema(schema string) ClientOption {
	return withSession(func(s *session) { s.schema = ptr.To(schema) })
}

func WithPath(path string) ClientOption {
	return withSession(func(s *session) { s.path = ptr.To(path) })
}

func WithTimezone(tz string) ClientOption {
	return withSession(func(s *session) { s.timezone = ptr.To(tz) })
}

func WithProperty(k, v string) ClientOption {
	return withSession(func(s *session) { s.properties[k] = v })
}

func WithResourceEstimate(k, v string) ClientOption {
	return withSession(func(s *session) { s.resourceEstimates[k] = v })
}

func WithExtraCredential(k, v string) ClientOption {
	return withSession(func(s *session) { s.extraCredentials[k] = v })
}

func WithPreparedStatement(name, statement string) ClientOption {
	return withSession(func(s *session) { s.preparedStatements[name] = statement })
}

func WithRole(catalog string, role SelectedRole) ClientOption {
	return withSession(func(s *session) { s.roles[catalog] = role })
}

func WithTransactionID(id string) ClientOption {
	return withSession(func(s *session) { s.transactionID = id })
}

func WithRequestTimeout(d time.Duration) ClientOption {
	return withSession(func(s *session) { s.requestTimeout = d })
}

// WithCompressionDisabled asks for identity transfer encoding on every
// request.
func WithCompressionDisabled(disabled bool) ClientOption {
	return withSession(func(s *session) { s.compressionDisabled = disabled })
}

// WithSpoolingEncoding requests the spooled protocol with the given
// payload encoding. An unrecognized name is replaced by json+zstd.
func WithSpoolingEncoding(name string) ClientOption {
	return withSession(func(s *session) {
		enc, err := ParseEncoding(name)
		if err != nil {
			slog.Warn("unrecognized spooling encoding, using default", "encoding", name, "default", DefaultEncoding)
			enc = DefaultEncoding
		}
		s.spoolingEncoding = &enc
	})
}

func WithAuth(auth Auth) ClientOption {
	return func(o *clientOptions) { o.auth = auth }
}

// WithInsecureAuth allows sending credentials over plaintext HTTP.
func WithInsecureAuth() ClientOption {
	return func(o *clientOptions) { o.insecureAuth = true }
}

// WithMaxAttempt bounds how many times a single request is tried when
// the coordinator answers 503.
func WithMaxAttempt(n int) ClientOption {
	return func(o *clientOptions) { o.maxAttempt = n }
}

func WithRootCertificate(cert *Certificate) ClientOption {
	return func(o *clientOptions) { o.rootCert = cert }
}

// WithHTTPClient supplies the underlying HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = client }
}

// WithSegmentFetcher replaces the fetcher used for spooled segments.
func WithSegmentFetcher(fetcher SegmentFetcher) ClientOption {
	return func(o *clientOptions) { o.fetcher = fetcher }
}

// WithMaxConcurrentSegments bounds parallel segment fetches.
func WithMaxConcurrentSegments(n int) ClientOption {
	return func(o *clientOptions) { o.maxConcurrent = n }
}

// WithoutSpooling turns off spooled-protocol support; a spooled page
// then fails the query instead of being fetched.
func WithoutSpooling() ClientOption {
	return func(o *clientOptions) { o.spoolingEnabled = false }
}

// NewClient builds a client for the coordinator at host. Host is
// either a bare hostname, combined with WithPort and WithSecure, or a
// full http(s) URL.
func NewClient(user, host string, options ...ClientOption) (*Client, error) {
	opts := clientOptions{
		port:            8080,
		maxAttempt:      3,
		spoolingEnabled: true,
	}
	sess := newSession(user)
	for _, o := range options {
		o(&opts)
	}
	for _, m := range opts.sessionMutators {
		m(sess)
	}

	base, err := resolveBaseURL(host, opts.port, opts.secure)
	if err != nil {
		return nil, err
	}
	sess.url = base

	slog.Info("session url", "url", base.String())

	if opts.auth != nil && base.Scheme == "http" && !opts.insecureAuth {
		return nil, ErrBasicAuthWithHTTP
	}

	httpClient := opts.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: sess.requestTimeout}
		if opts.noVerify || opts.rootCert != nil {
			cfg := &tls.Config{InsecureSkipVerify: opts.noVerify}
			if opts.rootCert != nil {
				cfg.RootCAs = opts.rootCert.pool()
			}
			httpClient.Transport = &http.Transport{TLSClientConfig: cfg}
		}
	}

	fetcher := opts.fetcher
	if fetcher == nil {
		f := NewSegmentFetcher(httpClient)
		if opts.maxConcurrent > 0 {
			f.WithMaxConcurrent(opts.maxConcurrent)
		}
		fetcher = f
	}

	return &Client{
		httpClient:      httpClient,
		auth:            opts.auth,
		maxAttempt:      max(opts.maxAttempt, 1),
		url:             base.JoinPath("v1", "statement"),
		fetcher:         fetcher,
		spoolingEnabled: opts.spoolingEnabled,
		session:         sess,
	}, nil
}

func resolveBaseURL(host string, port int, secure bool) (*url.URL, error) {
	if strings.Contains(host, "://") {
		u, err := url.Parse(host)
		if err != nil || u.Host == "" {
			return nil, &InvalidHostError{Host: host}
		}
		return u, nil
	}
	scheme := "http"
	if secure {
		scheme = "https"
	}
	u, err := url.Parse(fmt.Sprintf("%s://%s:%d", scheme, host, port))
	if err != nil {
		return nil, &InvalidHostError{Host: host}
	}
	return u, nil
}

// ExecuteResult is the terminal status of a statement driven by
// Execute.
type ExecuteResult struct {
	UpdateType  *string
	UpdateCount *uint64
}

// QueryResult is one typed page: the raw wire page plus the rows it
// carried, reconciled against T. Pages whose data arrived spooled are
// only materialized here when every segment is inline; remote segments
// need the full driver in GetAll.
type QueryResult[T any] struct {
	QueryResults
	DataSet *DataSet[T]
}

// Get submits sql and returns the first page, typed against T.
func Get[T any](ctx context.Context, c *Client, sql string) (*QueryResult[T], error) {
	page, err := c.postRetry(ctx, sql)
	if err != nil {
		return nil, err
	}
	return typedPage[T](c, page)
}

// GetNext polls one page from a nextUri, typed against T.
func GetNext[T any](ctx context.Context, c *Client, uri string) (*QueryResult[T], error) {
	page, err := c.getNextRetry(ctx, uri)
	if err != nil {
		return nil, err
	}
	return typedPage[T](c, page)
}

func typedPage[T any](c *Client, page *QueryResults) (*QueryResult[T], error) {
	result := &QueryResult[T]{QueryResults: *page}
	if page.Data == nil || len(page.Columns) == 0 {
		return result, nil
	}

	if rows, ok := page.Data.Direct(); ok {
		ds, err := dataSetFromRaw[T](page.Columns, rows)
		if err != nil {
			return nil, err
		}
		result.DataSet = ds
		return result, nil
	}

	spooled, _ := page.Data.Spooled()
	ds, err := parseInlineSegments[T](c, page.Columns, spooled)
	if err != nil {
		return nil, err
	}
	result.DataSet = ds
	return result, nil
}

// parseInlineSegments is the in-body shortcut for spooled data whose
// segments are all inline. A remote segment on this path is a protocol
// error: only the full page loop may fetch.
func parseInlineSegments[T any](c *Client, columns []Column, spooled *SpooledData) (*DataSet[T], error) {
	if !c.spoolingEnabled {
		return nil, internalErrorf("spooling support is not enabled on this client")
	}
	encoding, err := ParseEncoding(spooled.Encoding)
	if err != nil {
		return nil, err
	}

	var rows []json.RawMessage
	for i := range spooled.Segments {
		segment := &spooled.Segments[i]
		if !segment.IsInline() {
			return nil, internalErrorf("remote spooled segments are not supported in this code path, use GetAll instead")
		}
		data, err := base64Decode(segment.Data)
		if err != nil {
			return nil, errors.Wrapf(err, "segment %d", i)
		}
		segRows, err := decodeSegmentRows(data, encoding)
		if err != nil {
			return nil, errors.Wrapf(err, "segment %d", i)
		}
		rows = append(rows, segRows...)
	}
	return dataSetFromRaw[T](columns, rows)
}

func decodeSegmentRows(data []byte, encoding Encoding) ([]json.RawMessage, error) {
	text, err := Decompress(data, encoding)
	if err != nil {
		return nil, err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal([]byte(text), &rows); err != nil {
		return nil, errors.Wrap(err, "segment payload is not a row array")
	}
	return rows, nil
}

type accState int

const (
	accUndecided accState = iota
	accDirect
	accSpooled
)

// GetAll submits sql and drives the query to completion, merging every
// page into one result set of T rows.
func GetAll[T any](ctx context.Context, c *Client, sql string) (*DataSet[T], error) {
	page, err := c.postRetry(ctx, sql)
	if err != nil {
		return nil, err
	}

	var (
		state   = accUndecided
		result  *DataSet[T]
		columns []Column
		sticky  bool
	)

	for {
		if page.Error != nil {
			return nil, pageError(page.Error)
		}
		if !sticky && page.Columns != nil {
			columns, sticky = page.Columns, true
		}

		if page.Data != nil {
			pageColumns := page.Columns
			if pageColumns == nil {
				pageColumns = columns
			}
			ds, nextState, err := accumulate[T](ctx, c, state, pageColumns, page.Data)
			if err != nil {
				return nil, err
			}
			state = nextState
			if result == nil {
				result = ds
			} else if err := result.Merge(ds); err != nil {
				return nil, err
			}
		}

		if page.NextURI == nil {
			break
		}
		if page, err = c.getNextRetry(ctx, *page.NextURI); err != nil {
			return nil, err
		}
	}

	if result != nil {
		return result, nil
	}
	if sticky {
		// drained pages of a schema-less or rowless statement
		provided, err := TyFromColumns(columns)
		if err != nil {
			return nil, err
		}
		return &DataSet[T]{columns: provided.Fields}, nil
	}
	return nil, ErrEmptyData
}

func accumulate[T any](ctx context.Context, c *Client, state accState, columns []Column, data *QueryData) (*DataSet[T], accState, error) {
	if rows, ok := data.Direct(); ok {
		if state == accSpooled {
			return nil, state, internalErrorf("protocol switched from spooled to direct data mid-query")
		}
		ds, err := dataSetFromRaw[T](columns, rows)
		return ds, accDirect, err
	}

	if state == accDirect {
		return nil, state, internalErrorf("protocol switched from direct to spooled data mid-query")
	}
	spooled, _ := data.Spooled()
	ds, err := fetchSpooled[T](ctx, c, columns, spooled)
	return ds, accSpooled, err
}

// fetchSpooled retrieves and decodes every segment of a spooled page,
// then types the combined rows through the reconciler.
func fetchSpooled[T any](ctx context.Context, c *Client, columns []Column, spooled *SpooledData) (*DataSet[T], error) {
	if !c.spoolingEnabled {
		return nil, internalErrorf("spooling support is not enabled on this client")
	}
	encoding, err := ParseEncoding(spooled.Encoding)
	if err != nil {
		return nil, err
	}

	payloads, err := c.fetcher.FetchAll(ctx, spooled.Segments)
	if err != nil {
		return nil, err
	}

	var rows []json.RawMessage
	for i, payload := range payloads {
		segRows, err := decodeSegmentRows(payload, encoding)
		if err != nil {
			return nil, errors.Wrapf(err, "segment %d", i)
		}
		rows = append(rows, segRows...)
	}
	return dataSetFromRaw[T](columns, rows)
}

func pageError(qe *QueryError) error {
	if qe.ErrorCode == 4 {
		return &ForbiddenError{Message: qe.Message}
	}
	return errorFromQueryError(*qe)
}

// Execute drives sql to completion without accumulating rows, then
// reads the terminal status document from the last nextUri observed.
func (c *Client) Execute(ctx context.Context, sql string) (*ExecuteResult, error) {
	page, err := c.postRetry(ctx, sql)
	if err != nil {
		return nil, err
	}

	finalURI := page.NextURI
	for {
		if page.Error != nil {
			return nil, pageError(page.Error)
		}
		if page.NextURI == nil {
			break
		}
		finalURI = page.NextURI
		if page, err = c.getNextRetry(ctx, *page.NextURI); err != nil {
			return nil, err
		}
	}

	if finalURI == nil {
		return nil, internalErrorf("no next URI available for execution result")
	}

	result, err := c.getRetryResult(ctx, *finalURI)
	if err != nil {
		return nil, err
	}
	if result.Error != nil {
		return nil, pageError(result.Error)
	}
	return &ExecuteResult{UpdateType: result.UpdateType, UpdateCount: result.UpdateCount}, nil
}

// Cancel aborts a running query.
func (c *Client) Cancel(ctx context.Context, queryID string) error {
	uri := c.baseURL().JoinPath("v1", "query", queryID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, uri.String(), nil)
	if err != nil {
		return &TransportError{wrapErr: err}
	}
	c.prepareHeaders(req)
	if err := c.applyAuth(req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{wrapErr: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

func (c *Client) baseURL() *url.URL {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.url
}

//////////////////////////////////////////////////////////////////////
// transport

func (c *Client) retryPolicy(ctx context.Context) backoff.BackOff {
	policy := backoff.NewExponentialBackOff(backoff.WithMaxInterval(2 * time.Second))
	return backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxAttempt-1)), ctx)
}

// needRetry reports whether an error is worth another attempt. Only a
// 503 from the coordinator is.
func needRetry(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusServiceUnavailable
}

func retryQuery(ctx context.Context, c *Client, op func() (*QueryResults, error)) (*QueryResults, error) {
	return backoff.RetryWithData(func() (*QueryResults, error) {
		page, err := op()
		if err != nil && !needRetry(err) {
			return nil, backoff.Permanent(err)
		}
		return page, err
	}, c.retryPolicy(ctx))
}

func (c *Client) postRetry(ctx context.Context, sql string) (*QueryResults, error) {
	return retryQuery(ctx, c, func() (*QueryResults, error) {
		return c.post(ctx, sql)
	})
}

func (c *Client) getNextRetry(ctx context.Context, uri string) (*QueryResults, error) {
	return retryQuery(ctx, c, func() (*QueryResults, error) {
		return c.getNext(ctx, uri)
	})
}

// post submits the statement text to /v1/statement under the full
// session header projection.
func (c *Client) post(ctx context.Context, sql string) (*QueryResults, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url.String(), strings.NewReader(sql))
	if err != nil {
		return nil, &TransportError{wrapErr: err}
	}
	c.sessionHeaders(req)
	return c.send(req)
}

// getNext polls a nextUri with the prepare-only header subset.
func (c *Client) getNext(ctx context.Context, uri string) (*QueryResults, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, &TransportError{wrapErr: err}
	}
	c.prepareHeaders(req)
	return c.send(req)
}

func (c *Client) getRetryResult(ctx context.Context, uri string) (*retryResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, &TransportError{wrapErr: err}
	}
	c.prepareHeaders(req)
	if err := c.applyAuth(req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{wrapErr: err}
	}
	defer resp.Body.Close()

	result := &retryResult{}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return nil, &TransportError{wrapErr: err}
	}
	return result, nil
}

func (c *Client) sessionHeaders(req *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	addSessionHeaders(req.Header, c.session)
}

func (c *Client) prepareHeaders(req *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	addPrepareHeaders(req.Header, c.session)
}

func (c *Client) applyAuth(req *http.Request) error {
	if c.auth == nil {
		return nil
	}
	return c.auth.apply(req)
}

// send performs the request, projects response headers onto the
// session before the body is parsed, and decodes the page.
func (c *Client) send(req *http.Request) (*QueryResults, error) {
	if err := c.applyAuth(req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{wrapErr: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	c.mu.Lock()
	updateSession(c.session, resp.Header)
	c.mu.Unlock()

	page := &QueryResults{}
	if err := json.NewDecoder(resp.Body).Decode(page); err != nil {
		return nil, &TransportError{wrapErr: err}
	}
	return page, nil
}
