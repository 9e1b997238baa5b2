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

// Package pdu implements RPKI-to-Router protocol (RFC 6810/8210 and
// the 8210bis ASPA extension) PDU framing: the fixed 8-byte header
// shared by every PDU type, and the per-type body encode/decode
// helpers used by both the client and server state machines.
package pdu

import "fmt"

// Type identifies the PDU type octet.
type Type uint8

const (
	TypeSerialNotify  Type = 0
	TypeSerialQuery   Type = 1
	TypeResetQuery    Type = 2
	TypeCacheResponse Type = 3
	TypeIPv4Prefix    Type = 4
	TypeIPv6Prefix    Type = 6
	TypeEndOfData     Type = 7
	TypeCacheReset    Type = 8
	TypeRouterKey     Type = 9
	TypeErrorReport   Type = 10
	TypeASPA          Type = 11
)

func (t Type) String() string {
	switch t {
	case TypeSerialNotify:
		return "SerialNotify"
	case TypeSerialQuery:
		return "SerialQuery"
	case TypeResetQuery:
		return "ResetQuery"
	case TypeCacheResponse:
		return "CacheResponse"
	case TypeIPv4Prefix:
		return "IPv4Prefix"
	case TypeIPv6Prefix:
		return "IPv6Prefix"
	case TypeEndOfData:
		return "EndOfData"
	case TypeCacheReset:
		return "CacheReset"
	case TypeRouterKey:
		return "RouterKey"
	case TypeErrorReport:
		return "ErrorReport"
	case TypeASPA:
		return "ASPA"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Version is a negotiated protocol version: 0, 1, or 2.
type Version uint8

const (
	Version0 Version = 0
	Version1 Version = 1
	Version2 Version = 2
)

// Flag is the announce/withdraw bit carried by every data PDU.
type Flag uint8

const (
	FlagWithdraw Flag = 0
	FlagAnnounce Flag = 1
)

// HeaderLen is the size in bytes of the common PDU header: version(1),
// type(1), session-id-or-reserved(2), length(4).
const HeaderLen = 8

// DefaultMaxLength is the safe default cap on an accepted PDU's total
// length, per spec section 4.4.
const DefaultMaxLength = 64 * 1024

// ErrorCode is the numeric code carried by an Error Report PDU.
type ErrorCode uint16

const (
	ErrCorruptData                ErrorCode = 0
	ErrInternalError              ErrorCode = 1
	ErrNoDataAvailable            ErrorCode = 2
	ErrInvalidRequest             ErrorCode = 3
	ErrUnsupportedProtocolVersion ErrorCode = 4
	ErrUnsupportedPDUType         ErrorCode = 5
	ErrWithdrawalOfUnknownRecord  ErrorCode = 6
	ErrDuplicateAnnouncement      ErrorCode = 7
	ErrUnexpectedProtocolVersion  ErrorCode = 8
)

// Header is the decoded common 8-byte PDU header. SessionOrReserved
// holds the session id for PDUs that carry one, or the reserved/flags
// field otherwise; callers interpret it per Type.
type Header struct {
	Version           Version
	PDUType           Type
	SessionOrReserved uint16
	Length            uint32
}
