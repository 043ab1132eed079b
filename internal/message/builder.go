package message

import (
	"encoding/binary"

	homeerrors "github.com/kelanmoore/homedns/internal/errors"
	"github.com/kelanmoore/homedns/internal/protocol"
)

// Serialise encodes m to wire format. Question and owner names are
// compression candidates; RDATA name fields compress only for the
// RFC1035-era record types (RecordType.CompressibleInRDATA), per the
// spec's resolution of the source's inconsistent behaviour. Section counts
// exceeding 65535 produce a CounterTooLarge-kind WireFormatError instead of
// a silently wrapped count.
func Serialise(m *Message) ([]byte, error) {
	if len(m.Questions) > protocol.MaxSectionCount ||
		len(m.Answers) > protocol.MaxSectionCount ||
		len(m.Authority) > protocol.MaxSectionCount ||
		len(m.Additional) > protocol.MaxSectionCount {
		return nil, &homeerrors.WireFormatError{
			Operation: "serialise message",
			Offset:    -1,
			Message:   "section exceeds 65535 entries (CounterTooLarge)",
		}
	}

	buf := make([]byte, protocol.HeaderSize)
	writeHeader(buf, m.Header, len(m.Questions), len(m.Answers), len(m.Authority), len(m.Additional))

	table := make(compressionTable)

	for _, q := range m.Questions {
		buf = encodeName(buf, q.Name, table, true)
		buf = appendUint16(buf, uint16(q.Type))
		buf = appendUint16(buf, uint16(q.Class))
	}

	for _, section := range [][]ResourceRecord{m.Answers, m.Authority, m.Additional} {
		for _, rr := range section {
			var err error
			buf, err = encodeRR(buf, rr, table)
			if err != nil {
				return nil, err
			}
		}
	}

	return buf, nil
}

func writeHeader(buf []byte, h Header, qd, an, ns, ar int) {
	binary.BigEndian.PutUint16(buf[0:2], h.ID)

	var flags uint16
	if h.IsResponse {
		flags |= 0x8000
	}
	flags |= uint16(h.Opcode&0x0F) << 11
	if h.IsAuthoritative {
		flags |= 0x0400
	}
	if h.IsTruncated {
		flags |= 0x0200
	}
	if h.RecursionDesired {
		flags |= 0x0100
	}
	if h.RecursionAvailable {
		flags |= 0x0080
	}
	flags |= uint16(h.Rcode & 0x0F)
	binary.BigEndian.PutUint16(buf[2:4], flags)

	binary.BigEndian.PutUint16(buf[4:6], uint16(qd))
	binary.BigEndian.PutUint16(buf[6:8], uint16(an))
	binary.BigEndian.PutUint16(buf[8:10], uint16(ns))
	binary.BigEndian.PutUint16(buf[10:12], uint16(ar))
}

func appendUint16(buf []byte, v uint16) []byte {
	return append(buf, byte(v>>8), byte(v))
}

func appendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func encodeRR(buf []byte, rr ResourceRecord, table compressionTable) ([]byte, error) {
	buf = encodeName(buf, rr.Name, table, true)
	buf = appendUint16(buf, uint16(rr.Data.Type()))
	buf = appendUint16(buf, uint16(rr.Class))
	buf = appendUint32(buf, rr.TTL)

	rdlenPos := len(buf)
	buf = appendUint16(buf, 0) // placeholder, back-patched below

	rdataStart := len(buf)
	compressRData := rr.Data.Type().CompressibleInRDATA()
	var err error
	buf, err = encodeRDATA(buf, rr.Data, table, compressRData)
	if err != nil {
		return nil, err
	}
	rdlength := len(buf) - rdataStart
	if rdlength > protocol.MaxSectionCount {
		return nil, &homeerrors.WireFormatError{
			Operation: "serialise rdata",
			Offset:    -1,
			Message:   "rdata exceeds 65535 octets (CounterTooLarge)",
		}
	}
	binary.BigEndian.PutUint16(buf[rdlenPos:rdlenPos+2], uint16(rdlength))
	return buf, nil
}

func encodeRDATA(buf []byte, data RDATA, table compressionTable, compress bool) ([]byte, error) {
	switch d := data.(type) {
	case RDATA_A:
		ip4 := d.Addr.To4()
		if ip4 == nil {
			return nil, &homeerrors.ValidationError{Field: "A.Addr", Value: d.Addr.String(), Message: "not an IPv4 address"}
		}
		return append(buf, ip4...), nil

	case RDATA_AAAA:
		ip16 := d.Addr.To16()
		if ip16 == nil {
			return nil, &homeerrors.ValidationError{Field: "AAAA.Addr", Value: d.Addr.String(), Message: "not an IPv6 address"}
		}
		return append(buf, ip16...), nil

	case RDATA_Name:
		return encodeName(buf, d.Name, table, compress), nil

	case RDATA_SOA:
		buf = encodeName(buf, d.MName, table, compress)
		buf = encodeName(buf, d.RName, table, compress)
		buf = appendUint32(buf, d.Serial)
		buf = appendUint32(buf, d.Refresh)
		buf = appendUint32(buf, d.Retry)
		buf = appendUint32(buf, d.Expire)
		buf = appendUint32(buf, d.Minimum)
		return buf, nil

	case RDATA_MX:
		buf = appendUint16(buf, d.Preference)
		buf = encodeName(buf, d.Exchange, table, compress)
		return buf, nil

	case RDATA_MINFO:
		buf = encodeName(buf, d.RMailbx, table, compress)
		buf = encodeName(buf, d.EMailbx, table, compress)
		return buf, nil

	case RDATA_HINFO:
		buf = appendCharString(buf, d.CPU)
		buf = appendCharString(buf, d.OS)
		return buf, nil

	case RDATA_TXT:
		for _, s := range d.Strings {
			buf = appendCharString(buf, s)
		}
		return buf, nil

	case RDATA_SRV:
		buf = appendUint16(buf, d.Priority)
		buf = appendUint16(buf, d.Weight)
		buf = appendUint16(buf, d.Port)
		// SRV target names are never compressed, per spec's open-question
		// resolution, regardless of the caller's compress argument.
		return encodeName(buf, d.Target, table, false), nil

	case RDATA_Unknown:
		return append(buf, d.Octets...), nil

	default:
		return nil, &homeerrors.ValidationError{Field: "rdata", Value: data.Type().String(), Message: "unrecognised rdata implementation"}
	}
}

func appendCharString(buf []byte, s string) []byte {
	if len(s) > 255 {
		s = s[:255]
	}
	buf = append(buf, byte(len(s)))
	return append(buf, []byte(s)...)
}
