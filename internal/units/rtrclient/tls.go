// SPDX-License-Identifier: AGPL-3.0-or-later
// rtrproxy - an RPKI route-origin data-plane proxy
// Copyright (C) 2023-2026 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package rtrclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// loadCAPool returns the system root pool augmented with any extra CA
// certificate PEM files configured for this remote (spec section 6.2's
// cacerts option). A nil/empty list yields the system pool unmodified.
func loadCAPool(files []string) (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	for _, f := range files {
		pem, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read CA cert %s: %w", f, err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", f)
		}
	}
	return pool, nil
}

// loadIdentity loads a combined certificate+key PEM file for client
// certificate authentication (spec section 6.2's identity option).
func loadIdentity(path string) (tls.Certificate, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read identity file %s: %w", path, err)
	}
	cert, err := tls.X509KeyPair(pem, pem)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("parse identity file %s: %w", path, err)
	}
	return cert, nil
}
