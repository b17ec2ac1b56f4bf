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
	"database/sql"
	"database/sql/driver"
	"fmt"
	"net/url"

	"k8s.io/utils/ptr"
)

// Compile time validation that our types implement the expected interfaces
var (
	_ driver.Driver        = Driver{}
	_ driver.DriverContext = Driver{}
	_ driver.Connector     = &connector{}
)

func init() {
	sql.Register("trino", &Driver{})
}

// Driver is the database/sql driver over the statement API.
type Driver struct{}

type connector struct {
	client *Client
}

// OpenConnector parses a DSN of the form
// http(s)://user[:password]@host:port?catalog=...&schema=...&source=...
// and returns a connector over a freshly built client.
func (Driver) OpenConnector(dsn string) (driver.Connector, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid uri: %w", err)
	}
	params := u.Query()

	user := "trino"
	options := []ClientOption{WithSecure(u.Scheme == "https")}
	if u.User != nil {
		if name := u.User.Username(); name != "" {
			user = name
		}
		if password, ok := u.User.Password(); ok {
			auth, err := NewBasicAuth(u.User.Username(), ptr.To(password))
			if err != nil {
				return nil, err
			}
			options = append(options, WithAuth(auth))
		}
	}
	if params.Has("catalog") {
		options = append(options, WithCatalog(params.Get("catalog")))
	}
	if params.Has("schema") {
		options = append(options, WithSchema(params.Get("schema")))
	}
	if params.Has("source") {
		options = append(options, WithSource(params.Get("source")))
	}
	if params.Has("encoding") {
		options = append(options, WithSpoolingEncoding(params.Get("encoding")))
	}

	host := u.Scheme + "://" + u.Host
	client, err := NewClient(user, host, options...)
	if err != nil {
		return nil, err
	}
	return &connector{client: client}, nil
}

// Open returns a new connection to the database. (sql.DB compatibility)
func (d Driver) Open(dsn string) (driver.Conn, error) {
	connector, err := d.OpenConnector(dsn)
	if err != nil {
		return nil, err
	}
	return connector.Connect(context.Background())
}

// NewConnector wraps an already-configured client for sql.OpenDB.
func NewConnector(client *Client) driver.Connector {
	return &connector{client: client}
}

// Connect returns a connection to the database. The returned connection
// must only be used by one goroutine at a time.
func (c *connector) Connect(context.Context) (driver.Conn, error) {
	return &Conn{client: c.client}, nil
}

// Driver returns the underlying Driver of the Connector for backward
// compatibility with sql.DB.
func (*connector) Driver() driver.Driver {
	return Driver{}
}
