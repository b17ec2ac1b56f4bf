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
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// SegmentFetcher retrieves spooled segment payloads. The returned
// bytes are transport-decoded only; codec decompression per the page
// encoding happens in the driver.
type SegmentFetcher interface {
	Fetch(ctx context.Context, segment *Segment) ([]byte, error)
	FetchAll(ctx context.Context, segments []Segment) ([][]byte, error)
}

// HTTPSegmentFetcher fetches remote segments over a shared HTTP
// client with bounded concurrency.
type HTTPSegmentFetcher struct {
	httpClient    *http.Client
	maxConcurrent int
}

var _ SegmentFetcher = &HTTPSegmentFetcher{}

func defaultMaxConcurrentSegments() int {
	return max(runtime.NumCPU(), 1)
}

// NewSegmentFetcher returns a fetcher over the given HTTP client, with
// concurrency bounded by the detected hardware parallelism.
func NewSegmentFetcher(httpClient *http.Client) *HTTPSegmentFetcher {
	return &HTTPSegmentFetcher{
		httpClient:    httpClient,
		maxConcurrent: defaultMaxConcurrentSegments(),
	}
}

// WithMaxConcurrent bounds the number of in-flight segment fetches.
// Values below one are clamped to one.
func (f *HTTPSegmentFetcher) WithMaxConcurrent(count int) *HTTPSegmentFetcher {
	f.maxConcurrent = max(count, 1)
	return f
}

// Fetch returns a single segment's payload: base64-decoded bytes for
// an inline segment, the transport-decoded response body for a remote
// one. Remote fetches acknowledge the segment afterwards, best-effort.
func (f *HTTPSegmentFetcher) Fetch(ctx context.Context, segment *Segment) ([]byte, error) {
	if segment.IsInline() {
		return base64Decode(segment.Data)
	}

	data, err := f.fetchRemote(ctx, segment)
	if err != nil {
		return nil, err
	}
	if segment.AckURI != "" {
		if err := f.acknowledge(ctx, segment); err != nil {
			slog.Warn("failed to acknowledge segment", "ackUri", segment.AckURI, "error", err)
		}
	}
	return data, nil
}

// FetchAll fetches every segment, at most maxConcurrent at a time.
// Results are ordered by segment index regardless of completion order;
// the first failure cancels the remaining fetches.
func (f *HTTPSegmentFetcher) FetchAll(ctx context.Context, segments []Segment) ([][]byte, error) {
	slog.Debug("fetching segments", "count", len(segments), "maxConcurrent", f.maxConcurrent)

	results := make([][]byte, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.maxConcurrent)
	for idx := range segments {
		idx := idx
		g.Go(func() error {
			data, err := f.Fetch(gctx, &segments[idx])
			if err != nil {
				if segments[idx].IsInline() {
					return errors.Wrapf(err, "failed to fetch inline segment #%d", idx)
				}
				return errors.Wrapf(err, "failed to fetch remote segment #%d (URI: %s)", idx, segments[idx].URI)
			}
			results[idx] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (f *HTTPSegmentFetcher) fetchRemote(ctx context.Context, segment *Segment) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, segment.URI, nil)
	if err != nil {
		return nil, &TransportError{wrapErr: err}
	}
	addSegmentHeaders(req, segment.Headers)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{wrapErr: errors.Wrapf(err, "failed to fetch remote segment from %s", segment.URI)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       "failed to fetch segment from " + segment.URI,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{wrapErr: errors.Wrap(err, "failed to read response body")}
	}

	switch encoding := strings.ToLower(resp.Header.Get("Content-Encoding")); encoding {
	case "gzip":
		return gunzip(body)
	case "identity", "":
		return body, nil
	default:
		slog.Warn("unknown Content-Encoding, treating as uncompressed", "encoding", encoding, "uri", segment.URI)
		return body, nil
	}
}

// acknowledge tells the spooling store the segment has been consumed.
// Failures never propagate to the query.
func (f *HTTPSegmentFetcher) acknowledge(ctx context.Context, segment *Segment) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, segment.AckURI, nil)
	if err != nil {
		return err
	}
	addSegmentHeaders(req, segment.Headers)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to send acknowledgment to %s", segment.AckURI)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("acknowledgment returned non-success status: %d", resp.StatusCode)
	}
	return nil
}

func addSegmentHeaders(req *http.Request, headers map[string][]string) {
	for name, values := range headers {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}
}
