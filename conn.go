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
	"database/sql/driver"
	"net/http"
)

// Compile time validation that our types implement the expected interfaces
var (
	_ driver.Conn           = &Conn{}
	_ driver.Pinger         = &Conn{}
	_ driver.ExecerContext  = &Conn{}
	_ driver.QueryerContext = &Conn{}
)

var errNotSupported = &ClientError{message: "feature is not supported"}

// Conn is a connection to a coordinator. Stateful and not
// multi-goroutine safe; the session it mutates belongs to the shared
// client.
type Conn struct {
	client *Client
}

// Begin implements driver.Conn. Explicit transaction control goes
// through START TRANSACTION statements and the transaction id header.
func (*Conn) Begin() (driver.Tx, error) {
	return nil, errNotSupported
}

// Close implements driver.Conn.
func (c *Conn) Close() error {
	c.client = nil
	return nil
}

// Prepare implements driver.Conn.
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	if c.client == nil {
		return nil, driver.ErrBadConn
	}
	return &statement{c: c, query: query, isOpen: true}, nil
}

// Ping checks the coordinator's info endpoint.
func (c *Conn) Ping(ctx context.Context) error {
	if c.client == nil {
		return driver.ErrBadConn
	}
	uri := c.client.baseURL().JoinPath("v1", "info")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return err
	}
	if err := c.client.applyAuth(req); err != nil {
		return err
	}
	resp, err := c.client.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return driver.ErrBadConn
	}
	return nil
}

// ExecContext runs a statement that returns no rows.
func (c *Conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if c == nil || c.client == nil {
		return nil, driver.ErrBadConn
	}
	if len(args) > 0 {
		return nil, errNotSupported
	}

	res, err := c.client.Execute(ctx, query)
	if err != nil {
		return nil, err
	}
	return &result{updateCount: res.UpdateCount}, nil
}

// QueryContext runs a statement and materializes its pages into rows.
func (c *Conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if c == nil || c.client == nil {
		return nil, driver.ErrBadConn
	}
	if len(args) > 0 {
		return nil, errNotSupported
	}

	ds, err := GetAll[Row](ctx, c.client, query)
	if err != nil {
		return nil, err
	}
	return newResultRows(ds), nil
}

type result struct {
	updateCount *uint64
}

// LastInsertId implements driver.Result.
func (r *result) LastInsertId() (int64, error) {
	return -1, errNotSupported
}

// RowsAffected implements driver.Result.
func (r *result) RowsAffected() (int64, error) {
	if r.updateCount == nil {
		return -1, nil
	}
	return int64(*r.updateCount), nil
}
