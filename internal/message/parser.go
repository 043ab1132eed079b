package message

import (
	"encoding/binary"
	"net"
	"strconv"

	homeerrors "github.com/kelanmoore/homedns/internal/errors"
	"github.com/kelanmoore/homedns/internal/protocol"
)

// Deserialise parses a complete wire-format DNS message. It returns a
// WireFormatError (one of Incomplete/HeaderTooShort/QuestionTooShort/
// RRTooShort/RRInvalid/NameTooShort/NameTooLong/NamePointerInvalid/
// NameLabelInvalid per spec §7) on any malformed input.
func Deserialise(msg []byte) (*Message, error) {
	if len(msg) < 2 {
		return nil, &homeerrors.WireFormatError{
			Operation: "parse header",
			Offset:    0,
			Message:   "message shorter than 2 octets, no id recoverable",
		}
	}

	header, err := parseHeader(msg)
	if err != nil {
		return nil, err
	}

	offset := protocol.HeaderSize

	questions := make([]Question, 0, header.qdcount)
	for i := uint16(0); i < header.qdcount; i++ {
		q, next, err := parseQuestion(msg, offset)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
		offset = next
	}

	answers, offset, err := parseRRs(msg, offset, header.ancount)
	if err != nil {
		return nil, err
	}
	authority, offset, err := parseRRs(msg, offset, header.nscount)
	if err != nil {
		return nil, err
	}
	additional, _, err := parseRRs(msg, offset, header.arcount)
	if err != nil {
		return nil, err
	}

	return &Message{
		Header:     header.Header,
		Questions:  questions,
		Answers:    answers,
		Authority:  authority,
		Additional: additional,
	}, nil
}

// wireHeader carries the decoded Header plus the section counts, which are
// not retained on Message itself (they are derived at serialise time).
type wireHeader struct {
	Header
	qdcount, ancount, nscount, arcount uint16
}

func parseHeader(msg []byte) (wireHeader, error) {
	if len(msg) < protocol.HeaderSize {
		return wireHeader{}, &homeerrors.WireFormatError{
			Operation: "parse header",
			Offset:    0,
			Message:   "message too short for 12-octet header",
			Err:       headerTooShort(msg),
		}
	}

	id := binary.BigEndian.Uint16(msg[0:2])
	flags := binary.BigEndian.Uint16(msg[2:4])

	h := wireHeader{
		Header: Header{
			ID:                 id,
			IsResponse:         flags&0x8000 != 0,
			Opcode:             protocol.Opcode((flags >> 11) & 0x0F),
			IsAuthoritative:    flags&0x0400 != 0,
			IsTruncated:        flags&0x0200 != 0,
			RecursionDesired:   flags&0x0100 != 0,
			RecursionAvailable: flags&0x0080 != 0,
			Rcode:              protocol.Rcode(flags & 0x000F),
		},
		qdcount: binary.BigEndian.Uint16(msg[4:6]),
		ancount: binary.BigEndian.Uint16(msg[6:8]),
		nscount: binary.BigEndian.Uint16(msg[8:10]),
		arcount: binary.BigEndian.Uint16(msg[10:12]),
	}
	return h, nil
}

func headerTooShort(msg []byte) error {
	return &homeerrors.ValidationError{Field: "header", Value: len(msg), Message: "fewer than 12 octets"}
}

func parseQuestion(msg []byte, offset int) (Question, int, error) {
	n, next, err := parseName(msg, offset)
	if err != nil {
		return Question{}, offset, err
	}
	if next+4 > len(msg) {
		return Question{}, offset, &homeerrors.WireFormatError{
			Operation: "parse question",
			Offset:    next,
			Message:   "truncated question: missing QTYPE/QCLASS",
		}
	}
	qtype := protocol.RecordType(binary.BigEndian.Uint16(msg[next : next+2]))
	qclass := protocol.RecordClass(binary.BigEndian.Uint16(msg[next+2 : next+4]))
	return Question{Name: n, Type: qtype, Class: qclass}, next + 4, nil
}

func parseRRs(msg []byte, offset int, count uint16) ([]ResourceRecord, int, error) {
	rrs := make([]ResourceRecord, 0, count)
	for i := uint16(0); i < count; i++ {
		rr, next, err := parseRR(msg, offset)
		if err != nil {
			return nil, offset, err
		}
		rrs = append(rrs, rr)
		offset = next
	}
	return rrs, offset, nil
}

func parseRR(msg []byte, offset int) (ResourceRecord, int, error) {
	n, next, err := parseName(msg, offset)
	if err != nil {
		return ResourceRecord{}, offset, err
	}
	if next+10 > len(msg) {
		return ResourceRecord{}, offset, &homeerrors.WireFormatError{
			Operation: "parse resource record",
			Offset:    next,
			Message:   "truncated record: missing TYPE/CLASS/TTL/RDLENGTH",
		}
	}
	rtype := protocol.RecordType(binary.BigEndian.Uint16(msg[next : next+2]))
	class := protocol.RecordClass(binary.BigEndian.Uint16(msg[next+2 : next+4]))
	ttl := binary.BigEndian.Uint32(msg[next+4 : next+8])
	rdlength := binary.BigEndian.Uint16(msg[next+8 : next+10])
	next += 10

	if next+int(rdlength) > len(msg) {
		return ResourceRecord{}, offset, &homeerrors.WireFormatError{
			Operation: "parse resource record",
			Offset:    next,
			Message:   "truncated RDATA",
		}
	}
	rdata := msg[next : next+int(rdlength)]

	data, err := parseRDATA(msg, rtype, next, rdata)
	if err != nil {
		return ResourceRecord{}, offset, err
	}

	return ResourceRecord{Name: n, Data: data, Class: class, TTL: ttl}, next + int(rdlength), nil
}

// parseRDATA decodes rdata into a typed RDATA value. absoluteRDataOffset is
// rdata's offset within msg, needed because name fields inside RDATA
// (NS/CNAME/SOA/MX/PTR/...) may themselves use message-relative compression
// pointers.
func parseRDATA(msg []byte, rtype protocol.RecordType, absoluteRDataOffset int, rdata []byte) (RDATA, error) {
	switch rtype {
	case protocol.TypeA:
		if len(rdata) != 4 {
			return nil, rdataLengthMismatch("A", 4, len(rdata))
		}
		return RDATA_A{Addr: net.IPv4(rdata[0], rdata[1], rdata[2], rdata[3])}, nil

	case protocol.TypeAAAA:
		if len(rdata) != 16 {
			return nil, rdataLengthMismatch("AAAA", 16, len(rdata))
		}
		ip := make(net.IP, 16)
		copy(ip, rdata)
		return RDATA_AAAA{Addr: ip}, nil

	case protocol.TypeNS, protocol.TypeMD, protocol.TypeMF, protocol.TypeCNAME,
		protocol.TypeMB, protocol.TypeMG, protocol.TypeMR, protocol.TypePTR:
		n, end, err := parseName(msg, absoluteRDataOffset)
		if err != nil {
			return nil, err
		}
		if end != absoluteRDataOffset+len(rdata) {
			return nil, rdataLengthMismatch(rtype.String(), len(rdata), end-absoluteRDataOffset)
		}
		return RDATA_Name{RRType: rtype, Name: n}, nil

	case protocol.TypeSOA:
		mname, off1, err := parseName(msg, absoluteRDataOffset)
		if err != nil {
			return nil, err
		}
		rname, off2, err := parseName(msg, off1)
		if err != nil {
			return nil, err
		}
		if off2+20 != absoluteRDataOffset+len(rdata) {
			return nil, rdataLengthMismatch("SOA", len(rdata), off2+20-absoluteRDataOffset)
		}
		return RDATA_SOA{
			MName:   mname,
			RName:   rname,
			Serial:  binary.BigEndian.Uint32(msg[off2 : off2+4]),
			Refresh: binary.BigEndian.Uint32(msg[off2+4 : off2+8]),
			Retry:   binary.BigEndian.Uint32(msg[off2+8 : off2+12]),
			Expire:  binary.BigEndian.Uint32(msg[off2+12 : off2+16]),
			Minimum: binary.BigEndian.Uint32(msg[off2+16 : off2+20]),
		}, nil

	case protocol.TypeMX:
		if len(rdata) < 2 {
			return nil, rdataLengthMismatch("MX", 2, len(rdata))
		}
		pref := binary.BigEndian.Uint16(rdata[0:2])
		exch, end, err := parseName(msg, absoluteRDataOffset+2)
		if err != nil {
			return nil, err
		}
		if end != absoluteRDataOffset+len(rdata) {
			return nil, rdataLengthMismatch("MX", len(rdata), end-absoluteRDataOffset)
		}
		return RDATA_MX{Preference: pref, Exchange: exch}, nil

	case protocol.TypeMINFO:
		rmailbx, off1, err := parseName(msg, absoluteRDataOffset)
		if err != nil {
			return nil, err
		}
		emailbx, off2, err := parseName(msg, off1)
		if err != nil {
			return nil, err
		}
		if off2 != absoluteRDataOffset+len(rdata) {
			return nil, rdataLengthMismatch("MINFO", len(rdata), off2-absoluteRDataOffset)
		}
		return RDATA_MINFO{RMailbx: rmailbx, EMailbx: emailbx}, nil

	case protocol.TypeHINFO:
		cpu, n1, err := parseCharString(rdata, 0)
		if err != nil {
			return nil, err
		}
		osStr, n2, err := parseCharString(rdata, n1)
		if err != nil {
			return nil, err
		}
		if n2 != len(rdata) {
			return nil, rdataLengthMismatch("HINFO", len(rdata), n2)
		}
		return RDATA_HINFO{CPU: cpu, OS: osStr}, nil

	case protocol.TypeTXT:
		var strs []string
		pos := 0
		for pos < len(rdata) {
			s, next, err := parseCharString(rdata, pos)
			if err != nil {
				return nil, err
			}
			strs = append(strs, s)
			pos = next
		}
		return RDATA_TXT{Strings: strs}, nil

	case protocol.TypeSRV:
		if len(rdata) < 6 {
			return nil, rdataLengthMismatch("SRV", 6, len(rdata))
		}
		priority := binary.BigEndian.Uint16(rdata[0:2])
		weight := binary.BigEndian.Uint16(rdata[2:4])
		port := binary.BigEndian.Uint16(rdata[4:6])
		target, end, err := parseName(msg, absoluteRDataOffset+6)
		if err != nil {
			return nil, err
		}
		if end != absoluteRDataOffset+len(rdata) {
			return nil, rdataLengthMismatch("SRV", len(rdata), end-absoluteRDataOffset)
		}
		return RDATA_SRV{Priority: priority, Weight: weight, Port: port, Target: target}, nil

	default:
		octets := make([]byte, len(rdata))
		copy(octets, rdata)
		return RDATA_Unknown{Tag: rtype, Octets: octets}, nil
	}
}

func parseCharString(buf []byte, offset int) (string, int, error) {
	if offset >= len(buf) {
		return "", offset, &homeerrors.WireFormatError{
			Operation: "parse character-string",
			Offset:    offset,
			Message:   "truncated character-string length",
		}
	}
	l := int(buf[offset])
	if offset+1+l > len(buf) {
		return "", offset, &homeerrors.WireFormatError{
			Operation: "parse character-string",
			Offset:    offset,
			Message:   "truncated character-string data",
		}
	}
	return string(buf[offset+1 : offset+1+l]), offset + 1 + l, nil
}

func rdataLengthMismatch(rtype string, want, got int) error {
	return &homeerrors.WireFormatError{
		Operation: "parse rdata",
		Offset:    -1,
		Message:   rtype + " rdata did not consume exactly RDLENGTH octets",
		Err:       &homeerrors.ValidationError{Field: "rdlength", Value: got, Message: "expected about " + strconv.Itoa(want)},
	}
}
