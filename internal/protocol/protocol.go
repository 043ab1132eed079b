// Package protocol defines the DNS wire constants and enumerations shared by
// the message codec and the resolver: record classes and types, opcodes,
// response codes, and the RFC 1035 size limits.
package protocol

import "fmt"

// RecordClass is a DNS CLASS value.
type RecordClass uint16

const (
	ClassIN      RecordClass = 1
	ClassCS      RecordClass = 2
	ClassCH      RecordClass = 3
	ClassHS      RecordClass = 4
	ClassAny     RecordClass = 255 // wildcard query class "*"
)

func (c RecordClass) String() string {
	switch c {
	case ClassIN:
		return "IN"
	case ClassCS:
		return "CS"
	case ClassCH:
		return "CH"
	case ClassHS:
		return "HS"
	case ClassAny:
		return "*"
	default:
		return fmt.Sprintf("CLASS%d", uint16(c))
	}
}

// RecordType is a DNS TYPE value.
type RecordType uint16

const (
	TypeA     RecordType = 1
	TypeNS    RecordType = 2
	TypeMD    RecordType = 3
	TypeMF    RecordType = 4
	TypeCNAME RecordType = 5
	TypeSOA   RecordType = 6
	TypeMB    RecordType = 7
	TypeMG    RecordType = 8
	TypeMR    RecordType = 9
	TypeNULL  RecordType = 10
	TypeWKS   RecordType = 11
	TypePTR   RecordType = 12
	TypeHINFO RecordType = 13
	TypeMINFO RecordType = 14
	TypeMX    RecordType = 15
	TypeTXT   RecordType = 16
	TypeAAAA  RecordType = 28
	TypeSRV   RecordType = 33

	// TypeAXFR, TypeMAILB, TypeMAILA, and TypeAny are QTYPE-only values: they
	// never appear as a stored record's type, only as a question's qtype.
	TypeAXFR  RecordType = 252
	TypeMAILB RecordType = 253
	TypeMAILA RecordType = 254
	TypeAny   RecordType = 255
)

func (t RecordType) String() string {
	switch t {
	case TypeA:
		return "A"
	case TypeNS:
		return "NS"
	case TypeMD:
		return "MD"
	case TypeMF:
		return "MF"
	case TypeCNAME:
		return "CNAME"
	case TypeSOA:
		return "SOA"
	case TypeMB:
		return "MB"
	case TypeMG:
		return "MG"
	case TypeMR:
		return "MR"
	case TypeNULL:
		return "NULL"
	case TypeWKS:
		return "WKS"
	case TypePTR:
		return "PTR"
	case TypeHINFO:
		return "HINFO"
	case TypeMINFO:
		return "MINFO"
	case TypeMX:
		return "MX"
	case TypeTXT:
		return "TXT"
	case TypeAAAA:
		return "AAAA"
	case TypeSRV:
		return "SRV"
	case TypeAXFR:
		return "AXFR"
	case TypeMAILB:
		return "MAILB"
	case TypeMAILA:
		return "MAILA"
	case TypeAny:
		return "*"
	default:
		return fmt.Sprintf("TYPE%d", uint16(t))
	}
}

// CompressibleInRDATA reports whether names embedded in this record type's
// RDATA should be compression candidates when serialised. Only the
// RFC 1035-era types compress; newer types (SRV) do not, per the spec's
// resolution of the inconsistent-source-behaviour open question.
func (t RecordType) CompressibleInRDATA() bool {
	switch t {
	case TypeNS, TypeMD, TypeMF, TypeCNAME, TypeSOA, TypeMB, TypeMG, TypeMR, TypePTR, TypeMINFO, TypeMX:
		return true
	default:
		return false
	}
}

// IsKnownQueryType reports whether t is one of the RR types or QTYPE-only
// family codes this engine recognises as a question's qtype (spec §6: an
// unknown qtype gets Refused rather than NoError/NXDOMAIN).
func (t RecordType) IsKnownQueryType() bool {
	switch t {
	case TypeA, TypeNS, TypeMD, TypeMF, TypeCNAME, TypeSOA, TypeMB, TypeMG, TypeMR,
		TypeNULL, TypeWKS, TypePTR, TypeHINFO, TypeMINFO, TypeMX, TypeTXT, TypeAAAA, TypeSRV,
		TypeAXFR, TypeMAILB, TypeMAILA, TypeAny:
		return true
	default:
		return false
	}
}

// IsKnownQueryClass reports whether c is IN/CS/CH/HS or the wildcard class.
func (c RecordClass) IsKnownQueryClass() bool {
	switch c {
	case ClassIN, ClassCS, ClassCH, ClassHS, ClassAny:
		return true
	default:
		return false
	}
}

// Opcode is a DNS header OPCODE value.
type Opcode uint8

const (
	OpcodeQuery  Opcode = 0
	OpcodeIQuery Opcode = 1
	OpcodeStatus Opcode = 2
)

func (o Opcode) String() string {
	switch o {
	case OpcodeQuery:
		return "Query"
	case OpcodeIQuery:
		return "Inverse"
	case OpcodeStatus:
		return "Status"
	default:
		return fmt.Sprintf("Opcode%d", uint8(o))
	}
}

// Rcode is a DNS header RCODE value.
type Rcode uint8

const (
	RcodeNoError        Rcode = 0
	RcodeFormatError    Rcode = 1
	RcodeServerFailure  Rcode = 2
	RcodeNameError      Rcode = 3
	RcodeNotImplemented Rcode = 4
	RcodeRefused        Rcode = 5
)

func (r Rcode) String() string {
	switch r {
	case RcodeNoError:
		return "NoError"
	case RcodeFormatError:
		return "FormatError"
	case RcodeServerFailure:
		return "ServerFailure"
	case RcodeNameError:
		return "NameError"
	case RcodeNotImplemented:
		return "NotImplemented"
	case RcodeRefused:
		return "Refused"
	default:
		return fmt.Sprintf("Rcode%d", uint8(r))
	}
}

const (
	// HeaderSize is the fixed 12-octet DNS message header size.
	HeaderSize = 12
	// MaxUDPPayload is the payload size above which a UDP response must be
	// truncated (no EDNS(0) support, per the Non-goals).
	MaxUDPPayload = 512
	// MaxTCPMessage is the largest message a 16-bit TCP length prefix can
	// carry.
	MaxTCPMessage = 65535
	// MaxSectionCount is the largest count a 16-bit section counter can
	// hold.
	MaxSectionCount = 65535
	// DefaultPort is the standard port DNS is served on.
	DefaultPort = 53
	// CompressionPointerMask marks the top two bits of a length octet that
	// indicate a compression pointer rather than a label length.
	CompressionPointerMask = 0xC0
	// CompressionOffsetMask extracts the 14-bit offset from a 2-byte
	// pointer once the top byte's pointer bits are cleared.
	CompressionOffsetMask = 0x3FFF
	// MaxCompressionJumps bounds the number of pointer hops followed while
	// decoding a single name, guarding against pathological chains.
	MaxCompressionJumps = 128
)
