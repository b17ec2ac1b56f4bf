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
	"encoding/base64"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/onsi/gomega"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
)

const idNameColumns = `[
	{"name":"id","type":"bigint","typeSignature":{"rawType":"bigint","arguments":[]}},
	{"name":"name","type":"varchar","typeSignature":{"rawType":"varchar","arguments":[2147483647]}}
]`

type idName struct {
	ID   int64  `trino:"id"`
	Name string `trino:"name"`
}

func TestGetAllSpooledInlineZstd(t *testing.T) {
	g := gomega.NewWithT(t)
	client := newTestClient(t, g)

	segment1 := base64.StdEncoding.EncodeToString(zstdCompress(t, `[[1,"alice"]]`))
	segment2 := base64.StdEncoding.EncodeToString(zstdCompress(t, `[[2,"bob"]]`))

	httpmock.RegisterResponder("POST", coordinator+"/v1/statement",
		httpmock.NewStringResponder(http.StatusOK,
			`{"id":"s1","infoUri":"`+coordinator+`/ui/s1","columns":`+idNameColumns+`,
			"data":{"encoding":"json+zstd","segments":[
				{"type":"inline","data":"`+segment1+`","metadata":{"rowsCount":1}},
				{"type":"inline","data":"`+segment2+`","metadata":{"rowsCount":1}}
			]},"stats":{"state":"FINISHED"},"warnings":[]}`))

	ds, err := GetAll[idName](context.Background(), client, "SELECT id, name FROM users")
	g.Expect(err).To(BeNil())
	g.Expect(ds.Rows()).To(Equal([]idName{{ID: 1, Name: "alice"}, {ID: 2, Name: "bob"}}))
}

func TestGetAllSpooledRemoteWithAckAndGzip(t *testing.T) {
	g := gomega.NewWithT(t)
	client := newTestClient(t, g)

	acked := atomic.Bool{}
	httpmock.RegisterResponder("POST", coordinator+"/v1/statement",
		httpmock.NewStringResponder(http.StatusOK,
			`{"id":"s2","infoUri":"`+coordinator+`/ui/s2","columns":`+idNameColumns+`,
			"data":{"encoding":"json","segments":[
				{"type":"spooled","uri":"http://storage/seg-0.json","ackUri":"http://storage/seg-0.ack","headers":{"X-Token":["t"]},"metadata":{"rowsCount":1}}
			]},"stats":{"state":"FINISHED"},"warnings":[]}`))
	httpmock.RegisterResponder("GET", "http://storage/seg-0.json", func(r *http.Request) (*http.Response, error) {
		g.Expect(r.Header.Get("X-Token")).To(Equal("t"))
		resp := httpmock.NewBytesResponse(http.StatusOK, gzipCompress(t, `[[42,"x"]]`))
		resp.Header.Set("Content-Encoding", "gzip")
		return resp, nil
	})
	// the ack answering 503 must not fail the query
	httpmock.RegisterResponder("POST", "http://storage/seg-0.ack", func(r *http.Request) (*http.Response, error) {
		g.Expect(r.Header.Get("X-Token")).To(Equal("t"))
		acked.Store(true)
		return httpmock.NewStringResponse(http.StatusServiceUnavailable, "busy"), nil
	})

	ds, err := GetAll[idName](context.Background(), client, "SELECT id, name FROM t")
	g.Expect(err).To(BeNil())
	g.Expect(ds.Rows()).To(Equal([]idName{{ID: 42, Name: "x"}}))
	g.Expect(acked.Load()).To(BeTrue())
}

func TestGetAllSpooledMergesAcrossPages(t *testing.T) {
	g := gomega.NewWithT(t)
	client := newTestClient(t, g)

	segment1 := base64.StdEncoding.EncodeToString([]byte(`[[1,"alice"]]`))
	segment2 := base64.StdEncoding.EncodeToString([]byte(`[[2,"bob"]]`))

	httpmock.RegisterResponder("POST", coordinator+"/v1/statement",
		httpmock.NewStringResponder(http.StatusOK,
			`{"id":"s3","infoUri":"`+coordinator+`/ui/s3","nextUri":"`+coordinator+`/v1/statement/s3/1","columns":`+idNameColumns+`,
			"data":{"encoding":"json","segments":[{"type":"inline","data":"`+segment1+`","metadata":{}}]},
			"stats":{"state":"RUNNING"},"warnings":[]}`))
	httpmock.RegisterResponder("GET", coordinator+"/v1/statement/s3/1",
		httpmock.NewStringResponder(http.StatusOK,
			`{"id":"s3","infoUri":"`+coordinator+`/ui/s3",
			"data":{"encoding":"json","segments":[{"type":"inline","data":"`+segment2+`","metadata":{}}]},
			"stats":{"state":"FINISHED"},"warnings":[]}`))

	ds, err := GetAll[idName](context.Background(), client, "SELECT id, name FROM t")
	g.Expect(err).To(BeNil())
	g.Expect(ds.Rows()).To(Equal([]idName{{ID: 1, Name: "alice"}, {ID: 2, Name: "bob"}}))
}

// a query switching between direct and spooled delivery is a protocol
// violation
func TestProtocolCrossingIsFatal(t *testing.T) {
	g := gomega.NewWithT(t)
	client := newTestClient(t, g)

	segment := base64.StdEncoding.EncodeToString([]byte(`[[1,"alice"]]`))
	httpmock.RegisterResponder("POST", coordinator+"/v1/statement",
		httpmock.NewStringResponder(http.StatusOK,
			`{"id":"s4","infoUri":"`+coordinator+`/ui/s4","nextUri":"`+coordinator+`/v1/statement/s4/1","columns":`+idNameColumns+`,"data":[[1,"alice"]],"stats":{"state":"RUNNING"},"warnings":[]}`))
	httpmock.RegisterResponder("GET", coordinator+"/v1/statement/s4/1",
		httpmock.NewStringResponder(http.StatusOK,
			`{"id":"s4","infoUri":"`+coordinator+`/ui/s4",
			"data":{"encoding":"json","segments":[{"type":"inline","data":"`+segment+`","metadata":{}}]},
			"stats":{"state":"FINISHED"},"warnings":[]}`))

	_, err := GetAll[idName](context.Background(), client, "SELECT id, name FROM t")
	g.Expect(err).ToNot(BeNil())

	var internal *InternalError
	g.Expect(errors.As(err, &internal)).To(BeTrue())
	g.Expect(err.Error()).To(ContainSubstring("switched from direct to spooled"))
}

func TestSpoolingDisabled(t *testing.T) {
	g := gomega.NewWithT(t)
	client := newTestClient(t, g, WithoutSpooling())

	segment := base64.StdEncoding.EncodeToString([]byte(`[[1,"alice"]]`))
	httpmock.RegisterResponder("POST", coordinator+"/v1/statement",
		httpmock.NewStringResponder(http.StatusOK,
			`{"id":"s5","infoUri":"`+coordinator+`/ui/s5","columns":`+idNameColumns+`,
			"data":{"encoding":"json","segments":[{"type":"inline","data":"`+segment+`","metadata":{}}]},
			"stats":{"state":"FINISHED"},"warnings":[]}`))

	_, err := GetAll[idName](context.Background(), client, "SELECT id, name FROM t")
	g.Expect(err).ToNot(BeNil())
	g.Expect(err.Error()).To(ContainSubstring("spooling support is not enabled"))
}

func TestUnknownServerEncodingFails(t *testing.T) {
	g := gomega.NewWithT(t)
	client := newTestClient(t, g)

	segment := base64.StdEncoding.EncodeToString([]byte(`[[1,"alice"]]`))
	httpmock.RegisterResponder("POST", coordinator+"/v1/statement",
		httpmock.NewStringResponder(http.StatusOK,
			`{"id":"s6","infoUri":"`+coordinator+`/ui/s6","columns":`+idNameColumns+`,
			"data":{"encoding":"json+snappy","segments":[{"type":"inline","data":"`+segment+`","metadata":{}}]},
			"stats":{"state":"FINISHED"},"warnings":[]}`))

	_, err := GetAll[idName](context.Background(), client, "SELECT id, name FROM t")
	g.Expect(err).ToNot(BeNil())
	g.Expect(err.Error()).To(ContainSubstring("unsupported spooling encoding"))
}

// the in-body shortcut on Get materializes inline segments but refuses
// remote ones
func TestGetInlineSegmentShortcut(t *testing.T) {
	g := gomega.NewWithT(t)
	client := newTestClient(t, g)

	segment := base64.StdEncoding.EncodeToString(zstdCompress(t, `[[1,"alice"]]`))
	httpmock.RegisterResponder("POST", coordinator+"/v1/statement",
		httpmock.NewStringResponder(http.StatusOK,
			`{"id":"s7","infoUri":"`+coordinator+`/ui/s7","columns":`+idNameColumns+`,
			"data":{"encoding":"json+zstd","segments":[{"type":"inline","data":"`+segment+`","metadata":{}}]},
			"stats":{"state":"FINISHED"},"warnings":[]}`))

	page, err := Get[idName](context.Background(), client, "SELECT id, name FROM t")
	g.Expect(err).To(BeNil())
	g.Expect(page.DataSet.Rows()).To(Equal([]idName{{ID: 1, Name: "alice"}}))
}

func TestGetRemoteSegmentShortcutIsFatal(t *testing.T) {
	g := gomega.NewWithT(t)
	client := newTestClient(t, g)

	httpmock.RegisterResponder("POST", coordinator+"/v1/statement",
		httpmock.NewStringResponder(http.StatusOK,
			`{"id":"s8","infoUri":"`+coordinator+`/ui/s8","columns":`+idNameColumns+`,
			"data":{"encoding":"json","segments":[{"type":"spooled","uri":"http://storage/seg.json","metadata":{}}]},
			"stats":{"state":"FINISHED"},"warnings":[]}`))

	_, err := Get[idName](context.Background(), client, "SELECT id, name FROM t")
	g.Expect(err).ToNot(BeNil())
	g.Expect(err.Error()).To(ContainSubstring("use GetAll instead"))
}
