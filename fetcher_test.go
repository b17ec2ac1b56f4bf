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
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/onsi/gomega"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
)

func TestFetchInlineSegment(t *testing.T) {
	g := gomega.NewWithT(t)

	fetcher := NewSegmentFetcher(http.DefaultClient)
	data, err := fetcher.Fetch(context.Background(), &Segment{
		Type: "inline",
		Data: base64.StdEncoding.EncodeToString([]byte(`[[1]]`)),
	})
	g.Expect(err).To(BeNil())
	g.Expect(string(data)).To(Equal(`[[1]]`))

	_, err = fetcher.Fetch(context.Background(), &Segment{Type: "inline", Data: "!!!"})
	g.Expect(err).ToNot(BeNil())
}

func TestFetchRemoteSegmentWithHeadersAndAck(t *testing.T) {
	g := gomega.NewWithT(t)
	httpClient := &http.Client{}
	httpmock.ActivateNonDefault(httpClient)
	defer httpmock.DeactivateAndReset()

	acked := atomic.Bool{}
	httpmock.RegisterResponder("GET", "http://storage/segment.json", func(r *http.Request) (*http.Response, error) {
		g.Expect(r.Header.Values("X-Token")).To(Equal([]string{"t"}))
		return httpmock.NewStringResponse(http.StatusOK, `[[42,"x"]]`), nil
	})
	httpmock.RegisterResponder("POST", "http://storage/segment.ack", func(r *http.Request) (*http.Response, error) {
		g.Expect(r.Header.Values("X-Token")).To(Equal([]string{"t"}))
		acked.Store(true)
		return httpmock.NewStringResponse(http.StatusOK, ""), nil
	})

	fetcher := NewSegmentFetcher(httpClient)
	data, err := fetcher.Fetch(context.Background(), &Segment{
		Type:    "spooled",
		URI:     "http://storage/segment.json",
		AckURI:  "http://storage/segment.ack",
		Headers: map[string][]string{"X-Token": {"t"}},
	})
	g.Expect(err).To(BeNil())
	g.Expect(string(data)).To(Equal(`[[42,"x"]]`))
	g.Expect(acked.Load()).To(BeTrue())
}

func TestFetchRemoteSegmentGzipTransport(t *testing.T) {
	g := gomega.NewWithT(t)
	httpClient := &http.Client{}
	httpmock.ActivateNonDefault(httpClient)
	defer httpmock.DeactivateAndReset()

	compressed := gzipCompress(t, `[[42,"x"]]`)
	httpmock.RegisterResponder("GET", "http://storage/segment.json", func(r *http.Request) (*http.Response, error) {
		resp := &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(compressed)),
			Header:     http.Header{"Content-Encoding": []string{"gzip"}},
		}
		return resp, nil
	})

	fetcher := NewSegmentFetcher(httpClient)
	data, err := fetcher.Fetch(context.Background(), &Segment{Type: "spooled", URI: "http://storage/segment.json"})
	g.Expect(err).To(BeNil())
	g.Expect(string(data)).To(Equal(`[[42,"x"]]`))
}

// an unknown Content-Encoding passes the body through untouched
func TestFetchRemoteSegmentUnknownEncoding(t *testing.T) {
	g := gomega.NewWithT(t)
	httpClient := &http.Client{}
	httpmock.ActivateNonDefault(httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "http://storage/segment.json", func(r *http.Request) (*http.Response, error) {
		resp := &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader([]byte(`[[1]]`))),
			Header:     http.Header{"Content-Encoding": []string{"br"}},
		}
		return resp, nil
	})

	fetcher := NewSegmentFetcher(httpClient)
	data, err := fetcher.Fetch(context.Background(), &Segment{Type: "spooled", URI: "http://storage/segment.json"})
	g.Expect(err).To(BeNil())
	g.Expect(string(data)).To(Equal(`[[1]]`))
}

func TestFetchRemoteSegmentNotOk(t *testing.T) {
	g := gomega.NewWithT(t)
	httpClient := &http.Client{}
	httpmock.ActivateNonDefault(httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "http://storage/missing.json",
		httpmock.NewStringResponder(http.StatusForbidden, "denied"))

	fetcher := NewSegmentFetcher(httpClient)
	_, err := fetcher.Fetch(context.Background(), &Segment{Type: "spooled", URI: "http://storage/missing.json"})
	g.Expect(err).ToNot(BeNil())

	var httpErr *HTTPError
	g.Expect(errors.As(err, &httpErr)).To(BeTrue())
	g.Expect(httpErr.StatusCode).To(Equal(http.StatusForbidden))
	g.Expect(httpErr.Body).To(ContainSubstring("http://storage/missing.json"))
}

// ack failures are logged, never surfaced
func TestAckFailureDoesNotFailFetch(t *testing.T) {
	g := gomega.NewWithT(t)
	httpClient := &http.Client{}
	httpmock.ActivateNonDefault(httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "http://storage/segment.json",
		httpmock.NewStringResponder(http.StatusOK, `[[1]]`))
	httpmock.RegisterResponder("POST", "http://storage/segment.ack",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "busy"))

	fetcher := NewSegmentFetcher(httpClient)
	data, err := fetcher.Fetch(context.Background(), &Segment{
		Type:   "spooled",
		URI:    "http://storage/segment.json",
		AckURI: "http://storage/segment.ack",
	})
	g.Expect(err).To(BeNil())
	g.Expect(string(data)).To(Equal(`[[1]]`))
}

func TestFetchAllOrderingAndConcurrency(t *testing.T) {
	g := gomega.NewWithT(t)
	httpClient := &http.Client{}
	httpmock.ActivateNonDefault(httpClient)
	defer httpmock.DeactivateAndReset()

	const segmentCount = 8
	const maxConcurrent = 2

	var mu sync.Mutex
	inFlight, peak := 0, 0

	segments := make([]Segment, segmentCount)
	for i := 0; i < segmentCount; i++ {
		uri := fmt.Sprintf("http://storage/segment-%d.json", i)
		segments[i] = Segment{Type: "spooled", URI: uri}
		body := fmt.Sprintf(`[[%d]]`, i)
		httpmock.RegisterResponder("GET", uri, func(r *http.Request) (*http.Response, error) {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
			return httpmock.NewStringResponse(http.StatusOK, body), nil
		})
	}

	fetcher := NewSegmentFetcher(httpClient).WithMaxConcurrent(maxConcurrent)
	results, err := fetcher.FetchAll(context.Background(), segments)
	g.Expect(err).To(BeNil())
	g.Expect(results).To(HaveLen(segmentCount))
	for i, data := range results {
		g.Expect(string(data)).To(Equal(fmt.Sprintf(`[[%d]]`, i)))
	}
	g.Expect(peak).To(BeNumerically("<=", maxConcurrent))
}

func TestFetchAllFailsOnFirstError(t *testing.T) {
	g := gomega.NewWithT(t)
	httpClient := &http.Client{}
	httpmock.ActivateNonDefault(httpClient)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "http://storage/good.json",
		httpmock.NewStringResponder(http.StatusOK, `[[1]]`))
	httpmock.RegisterResponder("GET", "http://storage/bad.json",
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	fetcher := NewSegmentFetcher(httpClient)
	_, err := fetcher.FetchAll(context.Background(), []Segment{
		{Type: "spooled", URI: "http://storage/good.json"},
		{Type: "spooled", URI: "http://storage/bad.json"},
	})
	g.Expect(err).ToNot(BeNil())
	g.Expect(err.Error()).To(ContainSubstring("segment #1"))
}
