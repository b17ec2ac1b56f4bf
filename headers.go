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
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	headerUser               = "X-Trino-User"
	headerSource             = "X-Trino-Source"
	headerTraceToken         = "X-Trino-Trace-Token"
	headerClientTags         = "X-Trino-Client-Tags"
	headerClientInfo         = "X-Trino-Client-Info"
	headerCatalog            = "X-Trino-Catalog"
	headerSchema             = "X-Trino-Schema"
	headerPath               = "X-Trino-Path"
	headerTimeZone           = "X-Trino-Time-Zone"
	headerSession            = "X-Trino-Session"
	headerResourceEstimate   = "X-Trino-Resource-Estimate"
	headerRole               = "X-Trino-Role"
	headerExtraCredential    = "X-Trino-Extra-Credential"
	headerPreparedStatement  = "X-Trino-Prepared-Statement"
	headerTransaction        = "X-Trino-Transaction-Id"
	headerClientCapabilities = "X-Trino-Client-Capabilities"
	headerQueryDataEncoding  = "X-Trino-Query-Data-Encoding"

	headerSetCatalog           = "X-Trino-Set-Catalog"
	headerSetSchema            = "X-Trino-Set-Schema"
	headerSetPath              = "X-Trino-Set-Path"
	headerSetSession           = "X-Trino-Set-Session"
	headerClearSession         = "X-Trino-Clear-Session"
	headerSetRole              = "X-Trino-Set-Role"
	headerAddedPrepare         = "X-Trino-Added-Prepare"
	headerDeallocatedPrepare   = "X-Trino-Deallocated-Prepare"
	headerStartedTransactionID = "X-Trino-Started-Transaction-Id"
	headerClearTransactionID   = "X-Trino-Clear-Transaction-Id"
)

const (
	userAgent          = "go-trino-client"
	clientCapabilities = "PATH,PARAMETRIC_DATETIME"
)

// addPrepareHeaders sets the subset of headers every request carries,
// including follow-up polls on a nextUri.
func addPrepareHeaders(h http.Header, s *session) {
	h.Set(headerUser, s.user)
	h.Set("User-Agent", userAgent)
	if s.compressionDisabled {
		h.Set("Accept-Encoding", "identity")
	}
}

// addSessionHeaders projects the full session onto a statement
// submission.
func addSessionHeaders(h http.Header, s *session) {
	addPrepareHeaders(h, s)
	h.Set(headerSource, s.source)

	if s.traceToken != nil {
		h.Set(headerTraceToken, *s.traceToken)
	}
	if len(s.clientTags) > 0 {
		h.Set(headerClientTags, s.joinedClientTags())
	}
	if s.clientInfo != nil {
		h.Set(headerClientInfo, *s.clientInfo)
	}
	if s.catalog != nil {
		h.Set(headerCatalog, *s.catalog)
	}
	if s.schema != nil {
		h.Set(headerSchema, *s.schema)
	}
	if s.path != nil {
		h.Set(headerPath, *s.path)
	}
	if s.timezone != nil {
		h.Set(headerTimeZone, *s.timezone)
	}

	addHeaderMap(h, headerSession, s.properties)
	addHeaderMap(h, headerResourceEstimate, s.resourceEstimates)
	for name, role := range s.roles {
		h.Add(headerRole, encodeKV(name, role.String()))
	}
	addHeaderMap(h, headerExtraCredential, s.extraCredentials)
	addHeaderMap(h, headerPreparedStatement, s.preparedStatements)

	h.Set(headerTransaction, s.transactionID)
	h.Set(headerClientCapabilities, clientCapabilities)
	if s.spoolingEncoding != nil {
		h.Set(headerQueryDataEncoding, s.spoolingEncoding.String())
	}
}

func addHeaderMap(h http.Header, header string, m map[string]string) {
	for k, v := range m {
		h.Add(header, encodeKV(k, v))
	}
}

// updateSession applies the response-header projection. It runs on
// every 2xx response, before the body is parsed, so session updates
// stick even when the body is later rejected. Header values that fail
// to parse are logged and leave the slot unchanged.
func updateSession(s *session, h http.Header) {
	if v := h.Get(headerSetCatalog); v != "" {
		s.catalog = &v
	}
	if v := h.Get(headerSetSchema); v != "" {
		s.schema = &v
	}
	if v := h.Get(headerSetPath); v != "" {
		s.path = &v
	}

	setHeaderMap(s.properties, h, headerSetSession)
	for _, key := range h.Values(headerClearSession) {
		delete(s.properties, key)
	}

	for _, value := range h.Values(headerSetRole) {
		k, v, ok := decodeKV(value)
		if !ok {
			slog.Warn("decode header failed", "header", headerSetRole, "value", value)
			continue
		}
		role, err := ParseSelectedRole(v)
		if err != nil {
			slog.Warn("parse role failed", "value", v, "error", err)
			continue
		}
		s.roles[k] = role
	}

	setHeaderMap(s.preparedStatements, h, headerAddedPrepare)
	for _, key := range h.Values(headerDeallocatedPrepare) {
		delete(s.preparedStatements, key)
	}

	if v := h.Get(headerStartedTransactionID); v != "" {
		s.transactionID = v
	}
	if len(h.Values(headerClearTransactionID)) > 0 {
		s.transactionID = NoTransaction
	}
}

func setHeaderMap(m map[string]string, h http.Header, header string) {
	for _, value := range h.Values(header) {
		k, v, ok := decodeKV(value)
		if !ok {
			slog.Warn("decode header failed", "header", header, "value", value)
			continue
		}
		m[k] = v
	}
}

// encodeKV renders a single form-urlencoded pair for a map-valued
// header.
func encodeKV(k, v string) string {
	return k + "=" + url.QueryEscape(v)
}

// decodeKV parses a single k=v pair; the value accepts both `+` and
// `%HH` escapes.
func decodeKV(s string) (string, string, bool) {
	kv := strings.Split(s, "=")
	if len(kv) != 2 {
		return "", "", false
	}
	v, err := url.QueryUnescape(kv[1])
	if err != nil {
		return "", "", false
	}
	return kv[0], v, true
}
