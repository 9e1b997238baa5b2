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

package pdu

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/philhofer/fwd"
)

// ErrOversized is returned by Decode when a PDU's declared length
// exceeds maxLength.
var ErrOversized = errors.New("pdu: oversized PDU")

// ErrTruncated is returned when a PDU's declared length is too short
// to hold its mandatory fields.
var ErrTruncated = errors.New("pdu: truncated PDU body")

// ReadHeader reads and decodes the common 8-byte header from r,
// rejecting declared lengths above maxLength.
func ReadHeader(r *fwd.Reader, maxLength uint32) (Header, error) {
	buf, err := r.Next(HeaderLen)
	if err != nil {
		return Header{}, fmt.Errorf("pdu: read header: %w", err)
	}
	h := Header{
		Version:           Version(buf[0]),
		PDUType:           Type(buf[1]),
		SessionOrReserved: binary.BigEndian.Uint16(buf[2:4]),
		Length:            binary.BigEndian.Uint32(buf[4:8]),
	}
	if h.Length < HeaderLen {
		return h, ErrTruncated
	}
	if maxLength > 0 && h.Length > maxLength {
		return h, ErrOversized
	}
	return h, nil
}

// Decode reads one full PDU (header already consumed into h) from r
// and returns its typed body. version is the connection's negotiated
// version, needed to interpret End of Data's variable body shape.
func Decode(r *fwd.Reader, h Header, version Version) (PDU, error) {
	bodyLen := int(h.Length) - HeaderLen
	var body []byte
	if bodyLen > 0 {
		var err error
		body, err = r.Next(bodyLen)
		if err != nil {
			return nil, fmt.Errorf("pdu: read body: %w", err)
		}
	}

	switch h.PDUType {
	case TypeSerialNotify:
		if len(body) < 4 {
			return nil, ErrTruncated
		}
		return SerialNotify{SessionID: h.SessionOrReserved, Serial: binary.BigEndian.Uint32(body[0:4])}, nil
	case TypeSerialQuery:
		if len(body) < 4 {
			return nil, ErrTruncated
		}
		return SerialQuery{SessionID: h.SessionOrReserved, Serial: binary.BigEndian.Uint32(body[0:4])}, nil
	case TypeResetQuery:
		return ResetQuery{}, nil
	case TypeCacheResponse:
		return CacheResponse{SessionID: h.SessionOrReserved}, nil
	case TypeIPv4Prefix:
		if len(body) < 12 {
			return nil, ErrTruncated
		}
		var prefix [4]byte
		copy(prefix[:], body[4:8])
		return IPv4Prefix{
			Flags:     Flag(body[0]),
			PrefixLen: body[1],
			MaxLen:    body[2],
			Prefix:    prefix,
			ASN:       binary.BigEndian.Uint32(body[8:12]),
		}, nil
	case TypeIPv6Prefix:
		if len(body) < 24 {
			return nil, ErrTruncated
		}
		var prefix [16]byte
		copy(prefix[:], body[4:20])
		return IPv6Prefix{
			Flags:     Flag(body[0]),
			PrefixLen: body[1],
			MaxLen:    body[2],
			Prefix:    prefix,
			ASN:       binary.BigEndian.Uint32(body[20:24]),
		}, nil
	case TypeEndOfData:
		if version == Version0 {
			if len(body) < 4 {
				return nil, ErrTruncated
			}
			return EndOfData{SessionID: h.SessionOrReserved, Serial: binary.BigEndian.Uint32(body[0:4])}, nil
		}
		if len(body) < 16 {
			return nil, ErrTruncated
		}
		return EndOfData{
			SessionID: h.SessionOrReserved,
			Serial:    binary.BigEndian.Uint32(body[0:4]),
			Refresh:   binary.BigEndian.Uint32(body[4:8]),
			Retry:     binary.BigEndian.Uint32(body[8:12]),
			Expire:    binary.BigEndian.Uint32(body[12:16]),
		}, nil
	case TypeCacheReset:
		return CacheReset{}, nil
	case TypeRouterKey:
		if len(body) < 24 {
			return nil, ErrTruncated
		}
		var ski [20]byte
		copy(ski[:], body[0:20])
		spki := make([]byte, len(body)-24)
		copy(spki, body[24:])
		return RouterKey{Flags: Flag(h.SessionOrReserved >> 8), SKI: ski, ASN: binary.BigEndian.Uint32(body[20:24]), SPKI: spki}, nil
	case TypeASPA:
		if len(body) < 4 || (len(body)-4)%4 != 0 {
			return nil, ErrTruncated
		}
		providers := make([]uint32, (len(body)-4)/4)
		for i := range providers {
			providers[i] = binary.BigEndian.Uint32(body[4+i*4 : 8+i*4])
		}
		return ASPA{Flags: Flag(h.SessionOrReserved >> 8), Customer: binary.BigEndian.Uint32(body[0:4]), Providers: providers}, nil
	case TypeErrorReport:
		if len(body) < 4 {
			return nil, ErrTruncated
		}
		encapLen := binary.BigEndian.Uint32(body[0:4])
		off := 4
		if uint32(len(body)) < uint32(off)+encapLen+4 {
			return nil, ErrTruncated
		}
		encap := append([]byte(nil), body[off:off+int(encapLen)]...)
		off += int(encapLen)
		textLen := binary.BigEndian.Uint32(body[off : off+4])
		off += 4
		if uint32(len(body)) < uint32(off)+textLen {
			return nil, ErrTruncated
		}
		text := string(body[off : off+int(textLen)])
		return ErrorReport{Code: ErrorCode(h.SessionOrReserved), EncapsulatedPDU: encap, Text: text}, nil
	default:
		return nil, fmt.Errorf("pdu: unknown PDU type %d", h.PDUType)
	}
}
