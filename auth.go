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

	"golang.org/x/oauth2"
)

// Auth is an authentication mode applied to every request the client
// sends.
type Auth interface {
	apply(req *http.Request) error
}

type basicAuth struct {
	username string
	password *string
}

// NewBasicAuth authenticates with HTTP Basic. A nil password sends the
// username alone.
func NewBasicAuth(username string, password *string) (Auth, error) {
	if username == "" {
		return nil, ErrEmptyAuth
	}
	return &basicAuth{username: username, password: password}, nil
}

func (a *basicAuth) apply(req *http.Request) error {
	password := ""
	if a.password != nil {
		password = *a.password
	}
	req.SetBasicAuth(a.username, password)
	return nil
}

type bearerAuth struct {
	tokens TokenManager
}

// NewBearerAuth authenticates with a static bearer token, typically a
// JWT.
func NewBearerAuth(token string) (Auth, error) {
	if token == "" {
		return nil, ErrEmptyAuth
	}
	return &bearerAuth{tokens: NewStaticTokenManager(token)}, nil
}

// NewTokenSourceAuth authenticates with bearer tokens minted by an
// oauth2 token source, refreshed by the source as they expire.
func NewTokenSourceAuth(source oauth2.TokenSource) Auth {
	return &bearerAuth{tokens: &oauthTokenManager{source: oauth2.ReuseTokenSource(nil, source)}}
}

func (a *bearerAuth) apply(req *http.Request) error {
	token, err := a.tokens.GetToken()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// TokenManager supplies the bearer token for each request.
type TokenManager interface {
	GetToken() (string, error)
}

type staticTokenManager struct {
	token string
}

func NewStaticTokenManager(token string) TokenManager {
	return &staticTokenManager{token: token}
}

func (t *staticTokenManager) GetToken() (string, error) {
	return t.token, nil
}

type oauthTokenManager struct {
	source oauth2.TokenSource
}

func (t *oauthTokenManager) GetToken() (string, error) {
	token, err := t.source.Token()
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}
