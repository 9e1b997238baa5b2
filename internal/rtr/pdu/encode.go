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

	"github.com/philhofer/fwd"
)

// PDU is any RTR protocol data unit that can be framed onto the wire.
type PDU interface {
	Type() Type
	// Encode writes this PDU's header and body to w using the given
	// negotiated version (EndOfData's body shape depends on it).
	Encode(w *fwd.Writer, version Version) error
}

func writeHeader(w *fwd.Writer, version Version, t Type, sessionOrReserved uint16, length uint32) error {
	var buf [HeaderLen]byte
	buf[0] = byte(version)
	buf[1] = byte(t)
	binary.BigEndian.PutUint16(buf[2:4], sessionOrReserved)
	binary.BigEndian.PutUint32(buf[4:8], length)
	_, err := w.Write(buf[:])
	return err
}

// SerialNotify is the server→client "new data available" PDU.
type SerialNotify struct {
	SessionID uint16
	Serial    uint32
}

func (SerialNotify) Type() Type { return TypeSerialNotify }

func (p SerialNotify) Encode(w *fwd.Writer, version Version) error {
	if err := writeHeader(w, version, TypeSerialNotify, p.SessionID, HeaderLen+4); err != nil {
		return err
	}
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], p.Serial)
	_, err := w.Write(buf[:])
	return err
}

// SerialQuery is the client→server "I have serial N" PDU.
type SerialQuery struct {
	SessionID uint16
	Serial    uint32
}

func (SerialQuery) Type() Type { return TypeSerialQuery }

func (p SerialQuery) Encode(w *fwd.Writer, version Version) error {
	if err := writeHeader(w, version, TypeSerialQuery, p.SessionID, HeaderLen+4); err != nil {
		return err
	}
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], p.Serial)
	_, err := w.Write(buf[:])
	return err
}

// ResetQuery is the client→server "send full dataset" PDU.
type ResetQuery struct{}

func (ResetQuery) Type() Type { return TypeResetQuery }

func (ResetQuery) Encode(w *fwd.Writer, version Version) error {
	return writeHeader(w, version, TypeResetQuery, 0, HeaderLen)
}

// CacheResponse marks the start of a serial or reset delta.
type CacheResponse struct {
	SessionID uint16
}

func (CacheResponse) Type() Type { return TypeCacheResponse }

func (p CacheResponse) Encode(w *fwd.Writer, version Version) error {
	return writeHeader(w, version, TypeCacheResponse, p.SessionID, HeaderLen)
}

// IPv4Prefix carries one IPv4 VRP add or withdraw.
type IPv4Prefix struct {
	Flags     Flag
	PrefixLen uint8
	MaxLen    uint8
	Prefix    [4]byte
	ASN       uint32
}

func (IPv4Prefix) Type() Type { return TypeIPv4Prefix }

func (p IPv4Prefix) Encode(w *fwd.Writer, version Version) error {
	if err := writeHeader(w, version, TypeIPv4Prefix, 0, HeaderLen+12); err != nil {
		return err
	}
	var buf [12]byte
	buf[0] = byte(p.Flags)
	buf[1] = p.PrefixLen
	buf[2] = p.MaxLen
	buf[3] = 0
	copy(buf[4:8], p.Prefix[:])
	binary.BigEndian.PutUint32(buf[8:12], p.ASN)
	_, err := w.Write(buf[:])
	return err
}

// IPv6Prefix carries one IPv6 VRP add or withdraw.
type IPv6Prefix struct {
	Flags     Flag
	PrefixLen uint8
	MaxLen    uint8
	Prefix    [16]byte
	ASN       uint32
}

func (IPv6Prefix) Type() Type { return TypeIPv6Prefix }

func (p IPv6Prefix) Encode(w *fwd.Writer, version Version) error {
	if err := writeHeader(w, version, TypeIPv6Prefix, 0, HeaderLen+24); err != nil {
		return err
	}
	var buf [24]byte
	buf[0] = byte(p.Flags)
	buf[1] = p.PrefixLen
	buf[2] = p.MaxLen
	buf[3] = 0
	copy(buf[4:20], p.Prefix[:])
	binary.BigEndian.PutUint32(buf[20:24], p.ASN)
	_, err := w.Write(buf[:])
	return err
}

// RouterKey carries one router-key add or withdraw. Flags occupies
// octet 2 of the header (the high byte of the header's third/fourth
// octet pair), per RFC 8210 section 5.10.
type RouterKey struct {
	Flags Flag
	SKI   [20]byte
	ASN   uint32
	SPKI  []byte
}

func (RouterKey) Type() Type { return TypeRouterKey }

func (p RouterKey) Encode(w *fwd.Writer, version Version) error {
	length := uint32(HeaderLen + 20 + 4 + len(p.SPKI))
	if err := writeHeader(w, version, TypeRouterKey, uint16(p.Flags)<<8, length); err != nil {
		return err
	}
	if _, err := w.Write(p.SKI[:]); err != nil {
		return err
	}
	var asnBuf [4]byte
	binary.BigEndian.PutUint32(asnBuf[:], p.ASN)
	if _, err := w.Write(asnBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(p.SPKI)
	return err
}

// ASPA carries one Autonomous System Provider Authorization add or
// withdraw: Providers empty means withdrawal of Customer's record.
// Flags occupies octet 2 of the header, same placement as RouterKey,
// per 8210bis.
type ASPA struct {
	Flags     Flag
	Customer  uint32
	Providers []uint32
}

func (ASPA) Type() Type { return TypeASPA }

func (p ASPA) Encode(w *fwd.Writer, version Version) error {
	length := uint32(HeaderLen + 4 + 4*len(p.Providers))
	if err := writeHeader(w, version, TypeASPA, uint16(p.Flags)<<8, length); err != nil {
		return err
	}
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], p.Customer)
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	for _, asn := range p.Providers {
		binary.BigEndian.PutUint32(buf[:], asn)
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

// EndOfData commits the current delta with the new (session, serial,
// refresh, retry, expire). Version 0 carries only the serial number;
// versions 1 and 2 also carry the three interval fields.
type EndOfData struct {
	SessionID uint16
	Serial    uint32
	Refresh   uint32
	Retry     uint32
	Expire    uint32
}

func (EndOfData) Type() Type { return TypeEndOfData }

func (p EndOfData) Encode(w *fwd.Writer, version Version) error {
	if version == Version0 {
		if err := writeHeader(w, version, TypeEndOfData, p.SessionID, HeaderLen+4); err != nil {
			return err
		}
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], p.Serial)
		_, err := w.Write(buf[:])
		return err
	}
	if err := writeHeader(w, version, TypeEndOfData, p.SessionID, HeaderLen+16); err != nil {
		return err
	}
	var buf [16]byte
	binary.BigEndian.PutUint32(buf[0:4], p.Serial)
	binary.BigEndian.PutUint32(buf[4:8], p.Refresh)
	binary.BigEndian.PutUint32(buf[8:12], p.Retry)
	binary.BigEndian.PutUint32(buf[12:16], p.Expire)
	_, err := w.Write(buf[:])
	return err
}

// CacheReset tells the client its serial is stale; it must Reset Query.
type CacheReset struct{}

func (CacheReset) Type() Type { return TypeCacheReset }

func (CacheReset) Encode(w *fwd.Writer, version Version) error {
	return writeHeader(w, version, TypeCacheReset, 0, HeaderLen)
}

// ErrorReport carries a fatal protocol error, the PDU that triggered
// it (if any), and a diagnostic text.
type ErrorReport struct {
	Code            ErrorCode
	EncapsulatedPDU []byte
	Text            string
}

func (ErrorReport) Type() Type { return TypeErrorReport }

func (p ErrorReport) Encode(w *fwd.Writer, version Version) error {
	length := uint32(HeaderLen + 4 + len(p.EncapsulatedPDU) + 4 + len(p.Text))
	if err := writeHeader(w, version, TypeErrorReport, uint16(p.Code), length); err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p.EncapsulatedPDU)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if len(p.EncapsulatedPDU) > 0 {
		if _, err := w.Write(p.EncapsulatedPDU); err != nil {
			return err
		}
	}
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p.Text)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if len(p.Text) > 0 {
		if _, err := w.Write([]byte(p.Text)); err != nil {
			return err
		}
	}
	return nil
}
