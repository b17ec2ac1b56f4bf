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
	"encoding/json"
)

// DataAttributes is the open metadata bag attached to a segment. Three
// well-known long attributes have accessors; everything else stays
// available through Get.
type DataAttributes struct {
	attributes map[string]json.RawMessage
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *DataAttributes) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &a.attributes)
}

// MarshalJSON implements json.Marshaler.
func (a DataAttributes) MarshalJSON() ([]byte, error) {
	if a.attributes == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a.attributes)
}

// Get returns the raw JSON of an attribute.
func (a DataAttributes) Get(name string) (json.RawMessage, bool) {
	v, ok := a.attributes[name]
	return v, ok
}

func (a DataAttributes) long(name string) (uint64, bool) {
	raw, ok := a.attributes[name]
	if !ok {
		return 0, false
	}
	var v uint64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

// RowOffset is the offset of the segment's first row in the result.
func (a DataAttributes) RowOffset() (uint64, bool) {
	return a.long("rowOffset")
}

// RowsCount is the number of rows in the segment.
func (a DataAttributes) RowsCount() (uint64, bool) {
	return a.long("rowsCount")
}

// SegmentSize is the size of the segment payload in bytes.
func (a DataAttributes) SegmentSize() (uint64, bool) {
	return a.long("segmentSize")
}

// Segment is one chunk of spooled result data, either carried inline
// as base64 or referenced by URI. The two shapes are told apart by
// which fields are populated, not by the type tag.
type Segment struct {
	Type     string              `json:"type,omitempty"`
	Data     string              `json:"data,omitempty"`
	URI      string              `json:"uri,omitempty"`
	AckURI   string              `json:"ackUri,omitempty"`
	Headers  map[string][]string `json:"headers,omitempty"`
	Metadata DataAttributes      `json:"metadata"`
}

// IsInline reports whether the segment payload is carried in-body.
func (s *Segment) IsInline() bool {
	return s.URI == ""
}
