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
	"fmt"
)

// RawType is one of the raw type tokens the server uses in type
// signatures. The string forms are exact, including the mixed-case
// digest types.
type RawType int

const (
	RawBigint RawType = iota
	RawInteger
	RawSmallint
	RawTinyint
	RawBoolean
	RawDate
	RawDecimal
	RawReal
	RawDouble
	RawHyperLogLog
	RawQDigest
	RawP4HyperLogLog
	RawIntervalDayToSecond
	RawIntervalYearToMonth
	RawTimestamp
	RawTimestampWithTimeZone
	RawTime
	RawTimeWithTimeZone
	RawVarbinary
	RawVarchar
	RawChar
	RawRow
	RawArray
	RawMap
	RawJSON
	RawIPAddress
	RawUUID
	RawUnknown
)

var rawTypeNames = map[RawType]string{
	RawBigint:                "bigint",
	RawInteger:               "integer",
	RawSmallint:              "smallint",
	RawTinyint:               "tinyint",
	RawBoolean:               "boolean",
	RawDate:                  "date",
	RawDecimal:               "decimal",
	RawReal:                  "real",
	RawDouble:                "double",
	RawHyperLogLog:           "HyperLogLog",
	RawQDigest:               "qdigest",
	RawP4HyperLogLog:         "P4HyperLogLog",
	RawIntervalDayToSecond:   "interval day to second",
	RawIntervalYearToMonth:   "interval year to month",
	RawTimestamp:             "timestamp",
	RawTimestampWithTimeZone: "timestamp with time zone",
	RawTime:                  "time",
	RawTimeWithTimeZone:      "time with time zone",
	RawVarbinary:             "varbinary",
	RawVarchar:               "varchar",
	RawChar:                  "char",
	RawRow:                   "row",
	RawArray:                 "array",
	RawMap:                   "map",
	RawJSON:                  "json",
	RawIPAddress:             "ipaddress",
	RawUUID:                  "uuid",
	RawUnknown:               "unknown",
}

var rawTypesByName = func() map[string]RawType {
	m := make(map[string]RawType, len(rawTypeNames))
	for ty, name := range rawTypeNames {
		m[name] = ty
	}
	return m
}()

// ParseRawType returns the token for a server raw-type string. The
// match is case-sensitive where the server is.
func ParseRawType(s string) (RawType, bool) {
	ty, ok := rawTypesByName[s]
	return ty, ok
}

func (t RawType) String() string {
	if s, ok := rawTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("rawtype(%d)", int(t))
}

// MarshalJSON implements json.Marshaler.
func (t RawType) MarshalJSON() ([]byte, error) {
	s, ok := rawTypeNames[t]
	if !ok {
		return nil, fmt.Errorf("unknown raw type %d", int(t))
	}
	return json.Marshal(s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *RawType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	ty, ok := ParseRawType(s)
	if !ok {
		return fmt.Errorf("invalid raw type: %q", s)
	}
	*t = ty
	return nil
}
