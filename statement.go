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
)

// Compile time validation that our types implement the expected interfaces
var (
	_ driver.Stmt             = &statement{}
	_ driver.StmtExecContext  = &statement{}
	_ driver.StmtQueryContext = &statement{}
)

type errStatementClosed struct{}

func (*errStatementClosed) Error() string { return "statement is closed" }

type statement struct {
	c      *Conn
	query  string
	isOpen bool
}

// Close implements driver.Stmt.
func (s *statement) Close() error {
	s.isOpen = false
	return nil
}

// NumInput implements driver.Stmt. Parameter binding beyond
// server-assigned prepared statements is not supported.
func (s *statement) NumInput() int {
	return 0
}

// Exec implements driver.Stmt.
func (s *statement) Exec(args []driver.Value) (driver.Result, error) {
	if !s.isOpen {
		return nil, &errStatementClosed{}
	}
	return s.ExecContext(context.Background(), nil)
}

// ExecContext executes a query that doesn't return rows, such as an
// INSERT or UPDATE.
func (s *statement) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	if !s.isOpen {
		return nil, &errStatementClosed{}
	}
	return s.c.ExecContext(ctx, s.query, args)
}

// Query implements driver.Stmt.
func (s *statement) Query(args []driver.Value) (driver.Rows, error) {
	if !s.isOpen {
		return nil, &errStatementClosed{}
	}
	return s.QueryContext(context.Background(), nil)
}

// QueryContext executes a query that may return rows, such as a
// SELECT.
func (s *statement) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	if !s.isOpen {
		return nil, &errStatementClosed{}
	}
	return s.c.QueryContext(ctx, s.query, args)
}
