// Package message implements the DNS wire message model and its codec:
// parsing a byte slice into a Message and serialising a Message back to wire
// format, including name-pointer compression, per RFC 1035 §4.
package message

import (
	"net"

	"github.com/kelanmoore/homedns/internal/name"
	"github.com/kelanmoore/homedns/internal/protocol"
)

// Header is the fixed 12-octet DNS message header.
type Header struct {
	ID                 uint16
	IsResponse         bool
	Opcode             protocol.Opcode
	IsAuthoritative    bool
	IsTruncated        bool
	RecursionDesired   bool
	RecursionAvailable bool
	Rcode              protocol.Rcode
}

// Question is one entry of the question section.
type Question struct {
	Name  name.Name
	Type  protocol.RecordType
	Class protocol.RecordClass
}

// RDATA is implemented by every typed resource-data payload. Type reports
// the wire TYPE value this rdata encodes as, independent of the owner
// record's declared type (the two always agree in a well-formed message).
type RDATA interface {
	Type() protocol.RecordType
}

// RDATA_A is an IPv4 address record.
type RDATA_A struct{ Addr net.IP }

func (RDATA_A) Type() protocol.RecordType { return protocol.TypeA }

// RDATA_AAAA is an IPv6 address record.
type RDATA_AAAA struct{ Addr net.IP }

func (RDATA_AAAA) Type() protocol.RecordType { return protocol.TypeAAAA }

// RDATA_Name covers the single-domain-name RDATA types: NS, MD, MF, CNAME,
// MB, MG, MR, PTR.
type RDATA_Name struct {
	RRType protocol.RecordType
	Name   name.Name
}

func (r RDATA_Name) Type() protocol.RecordType { return r.RRType }

// RDATA_SOA is start-of-authority data.
type RDATA_SOA struct {
	MName   name.Name
	RName   name.Name
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

func (RDATA_SOA) Type() protocol.RecordType { return protocol.TypeSOA }

// RDATA_MX is mail-exchange data.
type RDATA_MX struct {
	Preference uint16
	Exchange   name.Name
}

func (RDATA_MX) Type() protocol.RecordType { return protocol.TypeMX }

// RDATA_MINFO is mailbox-responsibility data.
type RDATA_MINFO struct {
	RMailbx name.Name
	EMailbx name.Name
}

func (RDATA_MINFO) Type() protocol.RecordType { return protocol.TypeMINFO }

// RDATA_HINFO is host-information data: two character-strings.
type RDATA_HINFO struct {
	CPU string
	OS  string
}

func (RDATA_HINFO) Type() protocol.RecordType { return protocol.TypeHINFO }

// RDATA_TXT is a list of character-strings.
type RDATA_TXT struct{ Strings []string }

func (RDATA_TXT) Type() protocol.RecordType { return protocol.TypeTXT }

// RDATA_SRV is RFC 2782 service-location data. Target names are never
// compressed on write, per the spec's resolution of the inconsistent
// source behaviour.
type RDATA_SRV struct {
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   name.Name
}

func (RDATA_SRV) Type() protocol.RecordType { return protocol.TypeSRV }

// RDATA_Unknown is the catch-all for any record type this codec does not
// model structurally (including WKS/NULL): the raw octets are preserved
// byte-for-byte so round-trips are exact.
type RDATA_Unknown struct {
	Tag     protocol.RecordType
	Octets  []byte
}

func (r RDATA_Unknown) Type() protocol.RecordType { return r.Tag }

// ResourceRecord is one RR: an owner name, typed rdata, class, and TTL.
type ResourceRecord struct {
	Name  name.Name
	Data  RDATA
	Class protocol.RecordClass
	TTL   uint32
}

// Message is a complete DNS message: header plus the four sections. Counts
// are derived from the slice lengths at serialise time, never stored
// separately.
type Message struct {
	Header      Header
	Questions   []Question
	Answers     []ResourceRecord
	Authority   []ResourceRecord
	Additional  []ResourceRecord
}
