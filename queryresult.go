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
	"encoding/json"
)

// QueryResults is one page of the statement polling sequence.
type QueryResults struct {
	ID               string      `json:"id"`
	InfoURI          string      `json:"infoUri"`
	PartialCancelURI *string     `json:"partialCancelUri,omitempty"`
	NextURI          *string     `json:"nextUri,omitempty"`
	Columns          []Column    `json:"columns,omitempty"`
	Data             *QueryData  `json:"data,omitempty"`
	Error            *QueryError `json:"error,omitempty"`
	Stats            Stat        `json:"stats"`
	Warnings         []Warning   `json:"warnings"`
	UpdateType       *string     `json:"updateType,omitempty"`
	UpdateCount      *uint64     `json:"updateCount,omitempty"`
}

// QueryData is the page data union: a JSON array of positional rows on
// the direct protocol, an encoding-plus-segments object on the spooled
// protocol. The two are told apart by JSON shape, not a discriminator.
type QueryData struct {
	direct  []json.RawMessage
	spooled *SpooledData
}

// SpooledData references the segments holding a page's rows.
type SpooledData struct {
	Encoding string    `json:"encoding"`
	Segments []Segment `json:"segments"`
}

// Direct returns the page's inline rows, each still raw JSON.
func (d *QueryData) Direct() ([]json.RawMessage, bool) {
	return d.direct, d.spooled == nil
}

// Spooled returns the page's segment references.
func (d *QueryData) Spooled() (*SpooledData, bool) {
	return d.spooled, d.spooled != nil
}

// UnmarshalJSON dispatches on the first non-whitespace byte: `[` is a
// direct page, `{` a spooled one.
func (d *QueryData) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		spooled := &SpooledData{}
		if err := json.Unmarshal(data, spooled); err != nil {
			return err
		}
		*d = QueryData{spooled: spooled}
		return nil
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	*d = QueryData{direct: rows}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d *QueryData) MarshalJSON() ([]byte, error) {
	if d.spooled != nil {
		return json.Marshal(d.spooled)
	}
	return json.Marshal(d.direct)
}

// QueryError is the server's error object on a failed page.
type QueryError struct {
	Message       string         `json:"message"`
	ErrorCode     int64          `json:"errorCode"`
	ErrorName     string         `json:"errorName"`
	ErrorType     string         `json:"errorType"`
	ErrorLocation *ErrorLocation `json:"errorLocation,omitempty"`
}

// ErrorLocation points at the statement text that caused the error.
type ErrorLocation struct {
	LineNumber   int64 `json:"lineNumber"`
	ColumnNumber int64 `json:"columnNumber"`
}

// Warning is a non-fatal notice attached to a page.
type Warning struct {
	WarningCode WarningCode `json:"warningCode"`
	Message     string      `json:"message"`
}

type WarningCode struct {
	Code int64  `json:"code"`
	Name string `json:"name"`
}

// Stat is the server's progress snapshot, present on every page.
type Stat struct {
	State              string  `json:"state"`
	Queued             bool    `json:"queued"`
	Scheduled          bool    `json:"scheduled"`
	ProgressPercentage float64 `json:"progressPercentage,omitempty"`
	Nodes              int     `json:"nodes"`
	TotalSplits        int     `json:"totalSplits"`
	QueuedSplits       int     `json:"queuedSplits"`
	RunningSplits      int     `json:"runningSplits"`
	CompletedSplits    int     `json:"completedSplits"`
	CPUTimeMillis      int64   `json:"cpuTimeMillis"`
	WallTimeMillis     int64   `json:"wallTimeMillis"`
	QueuedTimeMillis   int64   `json:"queuedTimeMillis"`
	ElapsedTimeMillis  int64   `json:"elapsedTimeMillis"`
	ProcessedRows      int64   `json:"processedRows"`
	ProcessedBytes     int64   `json:"processedBytes"`
	PhysicalInputBytes int64   `json:"physicalInputBytes"`
	PeakMemoryBytes    int64   `json:"peakMemoryBytes"`
	SpilledBytes       int64   `json:"spilledBytes"`
}

// retryResult is the terminal status document Execute reads from the
// final nextUri after the page loop drains.
type retryResult struct {
	ID          string      `json:"id"`
	InfoURI     string      `json:"infoUri"`
	Stats       Stat        `json:"stats"`
	Error       *QueryError `json:"error,omitempty"`
	UpdateType  *string     `json:"updateType,omitempty"`
	UpdateCount *uint64     `json:"updateCount,omitempty"`
}
