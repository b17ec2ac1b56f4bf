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
	"net/http"
	"testing"

	"github.com/onsi/gomega"
	. "github.com/onsi/gomega"
	"k8s.io/utils/ptr"
)

func TestKVRoundTrip(t *testing.T) {
	g := gomega.NewWithT(t)

	pairs := [][2]string{
		{"key", "value"},
		{"k", "a value with spaces"},
		{"k", "semi;colon=ish&stuff"},
		{"k", "ünïcode"},
	}
	for _, pair := range pairs {
		k, v, ok := decodeKV(encodeKV(pair[0], pair[1]))
		g.Expect(ok).To(BeTrue())
		g.Expect(k).To(Equal(pair[0]))
		g.Expect(v).To(Equal(pair[1]))
	}

	// both + and %20 decode to a space
	_, v, ok := decodeKV("k=a+b")
	g.Expect(ok).To(BeTrue())
	g.Expect(v).To(Equal("a b"))
	_, v, ok = decodeKV("k=a%20b")
	g.Expect(ok).To(BeTrue())
	g.Expect(v).To(Equal("a b"))

	_, _, ok = decodeKV("novalue")
	g.Expect(ok).To(BeFalse())
	_, _, ok = decodeKV("a=b=c")
	g.Expect(ok).To(BeFalse())
}

func TestSessionHeaderProjection(t *testing.T) {
	g := gomega.NewWithT(t)

	s := newSession("alice")
	s.source = "my-app"
	s.traceToken = ptr.To("trace-1")
	s.clientTags["etl"] = struct{}{}
	s.clientTags["batch"] = struct{}{}
	s.clientInfo = ptr.To("info")
	s.catalog = ptr.To("hive")
	s.schema = ptr.To("default")
	s.path = ptr.To("hive.default")
	s.timezone = ptr.To("Europe/Paris")
	s.properties["query_max_memory"] = "1 GB"
	s.resourceEstimates["cpu_time"] = "10s"
	s.roles["hive"] = NamedRole("admin")
	s.roles["system"] = AllRoles()
	s.extraCredentials["token"] = "secret"
	s.preparedStatements["q1"] = "SELECT 1"
	enc := EncodingJSONZstd
	s.spoolingEncoding = &enc

	h := http.Header{}
	addSessionHeaders(h, s)

	g.Expect(h.Get("X-Trino-User")).To(Equal("alice"))
	g.Expect(h.Get("User-Agent")).To(Equal("go-trino-client"))
	g.Expect(h.Get("Accept-Encoding")).To(BeEmpty())
	g.Expect(h.Get("X-Trino-Source")).To(Equal("my-app"))
	g.Expect(h.Get("X-Trino-Trace-Token")).To(Equal("trace-1"))
	g.Expect(h.Get("X-Trino-Client-Tags")).To(Equal("batch,etl"))
	g.Expect(h.Get("X-Trino-Client-Info")).To(Equal("info"))
	g.Expect(h.Get("X-Trino-Catalog")).To(Equal("hive"))
	g.Expect(h.Get("X-Trino-Schema")).To(Equal("default"))
	g.Expect(h.Get("X-Trino-Path")).To(Equal("hive.default"))
	g.Expect(h.Get("X-Trino-Time-Zone")).To(Equal("Europe/Paris"))
	g.Expect(h.Values("X-Trino-Session")).To(ConsistOf("query_max_memory=1+GB"))
	g.Expect(h.Values("X-Trino-Resource-Estimate")).To(ConsistOf("cpu_time=10s"))
	g.Expect(h.Values("X-Trino-Role")).To(ConsistOf("hive=ROLE%7Badmin%7D", "system=ALL"))
	g.Expect(h.Values("X-Trino-Extra-Credential")).To(ConsistOf("token=secret"))
	g.Expect(h.Values("X-Trino-Prepared-Statement")).To(ConsistOf("q1=SELECT+1"))
	g.Expect(h.Get("X-Trino-Transaction-Id")).To(Equal("NONE"))
	g.Expect(h.Get("X-Trino-Client-Capabilities")).To(Equal("PATH,PARAMETRIC_DATETIME"))
	g.Expect(h.Get("X-Trino-Query-Data-Encoding")).To(Equal("json+zstd"))
}

func TestSessionHeaderOmitsUnsetSlots(t *testing.T) {
	g := gomega.NewWithT(t)

	s := newSession("alice")
	h := http.Header{}
	addSessionHeaders(h, s)

	for _, header := range []string{
		"X-Trino-Trace-Token", "X-Trino-Client-Tags", "X-Trino-Client-Info",
		"X-Trino-Catalog", "X-Trino-Schema", "X-Trino-Path", "X-Trino-Time-Zone",
		"X-Trino-Session", "X-Trino-Resource-Estimate", "X-Trino-Role",
		"X-Trino-Extra-Credential", "X-Trino-Prepared-Statement",
		"X-Trino-Query-Data-Encoding",
	} {
		g.Expect(h.Values(header)).To(BeEmpty(), header)
	}
	g.Expect(h.Get("X-Trino-Transaction-Id")).To(Equal("NONE"))
}

func TestPrepareHeaderSubset(t *testing.T) {
	g := gomega.NewWithT(t)

	s := newSession("alice")
	s.catalog = ptr.To("hive")
	s.compressionDisabled = true

	h := http.Header{}
	addPrepareHeaders(h, s)

	g.Expect(h.Get("X-Trino-User")).To(Equal("alice"))
	g.Expect(h.Get("User-Agent")).To(Equal("go-trino-client"))
	g.Expect(h.Get("Accept-Encoding")).To(Equal("identity"))
	// polls never re-send the scope headers
	g.Expect(h.Get("X-Trino-Catalog")).To(BeEmpty())
}

func TestResponseHeaderProjection(t *testing.T) {
	g := gomega.NewWithT(t)

	s := newSession("alice")
	s.properties["stale"] = "1"
	s.preparedStatements["old"] = "SELECT 0"

	h := http.Header{}
	h.Set("X-Trino-Set-Catalog", "hive")
	h.Set("X-Trino-Set-Schema", "sales")
	h.Set("X-Trino-Set-Path", "hive.sales")
	h.Add("X-Trino-Set-Session", "query_max_memory=1+GB")
	h.Add("X-Trino-Set-Session", "join_distribution_type=PARTITIONED")
	h.Add("X-Trino-Clear-Session", "stale")
	h.Add("X-Trino-Set-Role", "hive=ROLE%7Badmin%7D")
	h.Add("X-Trino-Set-Role", "system=NONE")
	h.Add("X-Trino-Added-Prepare", "q1=SELECT+1")
	h.Add("X-Trino-Deallocated-Prepare", "old")
	h.Set("X-Trino-Started-Transaction-Id", "tx-123")
	updateSession(s, h)

	g.Expect(*s.catalog).To(Equal("hive"))
	g.Expect(*s.schema).To(Equal("sales"))
	g.Expect(*s.path).To(Equal("hive.sales"))
	g.Expect(s.properties).To(Equal(map[string]string{
		"query_max_memory":       "1 GB",
		"join_distribution_type": "PARTITIONED",
	}))
	g.Expect(s.roles["hive"]).To(Equal(NamedRole("admin")))
	g.Expect(s.roles["system"]).To(Equal(NoRole()))
	g.Expect(s.preparedStatements).To(Equal(map[string]string{"q1": "SELECT 1"}))
	g.Expect(s.transactionID).To(Equal("tx-123"))

	// any value on the clear header resets the sentinel
	h = http.Header{}
	h.Set("X-Trino-Clear-Transaction-Id", "true")
	updateSession(s, h)
	g.Expect(s.transactionID).To(Equal("NONE"))
}

// malformed map headers leave the slot unchanged
func TestResponseHeaderParseFailureIsIgnored(t *testing.T) {
	g := gomega.NewWithT(t)

	s := newSession("alice")
	h := http.Header{}
	h.Add("X-Trino-Set-Session", "notakvpair")
	h.Add("X-Trino-Set-Role", "hive=SOMETHING{weird}")
	updateSession(s, h)

	g.Expect(s.properties).To(BeEmpty())
	g.Expect(s.roles).To(BeEmpty())
}

func TestParseSelectedRole(t *testing.T) {
	g := gomega.NewWithT(t)

	role, err := ParseSelectedRole("ALL")
	g.Expect(err).To(BeNil())
	g.Expect(role).To(Equal(AllRoles()))
	g.Expect(role.String()).To(Equal("ALL"))

	role, err = ParseSelectedRole("NONE")
	g.Expect(err).To(BeNil())
	g.Expect(role).To(Equal(NoRole()))

	role, err = ParseSelectedRole("ROLE{admin}")
	g.Expect(err).To(BeNil())
	name, ok := role.Role()
	g.Expect(ok).To(BeTrue())
	g.Expect(name).To(Equal("admin"))
	g.Expect(role.String()).To(Equal("ROLE{admin}"))

	_, err = ParseSelectedRole("admin")
	g.Expect(err).ToNot(BeNil())
}
