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
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/pkg/errors"
)

// Certificate is an opaque root certificate handle accepted by the
// client builder.
type Certificate struct {
	cert *x509.Certificate
}

// ReadPEMCertificate loads a PEM-encoded certificate from disk.
func ReadPEMCertificate(path string) (*Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read certificate")
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found in certificate file")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse certificate")
	}
	return &Certificate{cert: cert}, nil
}

// ReadDERCertificate loads a DER-encoded certificate from disk.
func ReadDERCertificate(path string) (*Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read certificate")
	}
	cert, err := x509.ParseCertificate(data)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse certificate")
	}
	return &Certificate{cert: cert}, nil
}

// pool builds the root pool handed to the TLS configuration.
func (c *Certificate) pool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(c.cert)
	return pool
}
