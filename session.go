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
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// NoTransaction is the transaction id sent while no transaction is
// open.
const NoTransaction = "NONE"

type roleKind int

const (
	roleAll roleKind = iota
	roleNone
	roleNamed
)

// SelectedRole is the role taken in a catalog: all available roles,
// none, or one named role.
type SelectedRole struct {
	kind roleKind
	role string
}

func AllRoles() SelectedRole {
	return SelectedRole{kind: roleAll}
}

func NoRole() SelectedRole {
	return SelectedRole{kind: roleNone}
}

func NamedRole(name string) SelectedRole {
	return SelectedRole{kind: roleNamed, role: name}
}

// Role returns the role name of a named selection.
func (r SelectedRole) Role() (string, bool) {
	return r.role, r.kind == roleNamed
}

func (r SelectedRole) String() string {
	switch r.kind {
	case roleNone:
		return "NONE"
	case roleNamed:
		return fmt.Sprintf("ROLE{%s}", r.role)
	default:
		return "ALL"
	}
}

// ParseSelectedRole parses the wire form of a role: ALL, NONE or
// ROLE{name}.
func ParseSelectedRole(s string) (SelectedRole, error) {
	switch {
	case s == "ALL":
		return AllRoles(), nil
	case s == "NONE":
		return NoRole(), nil
	case strings.HasPrefix(s, "ROLE{") && strings.HasSuffix(s, "}"):
		return NamedRole(s[len("ROLE{") : len(s)-1]), nil
	default:
		return SelectedRole{}, internalErrorf("invalid role: %s", s)
	}
}

// session is the evolving per-client state communicated through
// request and response headers. It is created once by the builder and
// only ever mutated by the response-header projection, under the
// client's lock.
type session struct {
	user       string
	source     string
	traceToken *string
	clientTags map[string]struct{}
	clientInfo *string

	catalog  *string
	schema   *string
	path     *string
	timezone *string

	properties         map[string]string
	resourceEstimates  map[string]string
	extraCredentials   map[string]string
	preparedStatements map[string]string
	roles              map[string]SelectedRole

	transactionID string

	compressionDisabled bool
	spoolingEncoding    *Encoding

	url            *url.URL
	requestTimeout time.Duration
}

func newSession(user string) *session {
	return &session{
		user:               user,
		source:             "go-trino",
		clientTags:         map[string]struct{}{},
		properties:         map[string]string{},
		resourceEstimates:  map[string]string{},
		extraCredentials:   map[string]string{},
		preparedStatements: map[string]string{},
		roles:              map[string]SelectedRole{},
		transactionID:      NoTransaction,
		requestTimeout:     30 * time.Second,
	}
}

// joinedClientTags renders the tag set in a stable order.
func (s *session) joinedClientTags() string {
	tags := make([]string, 0, len(s.clientTags))
	for tag := range s.clientTags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return strings.Join(tags, ",")
}
