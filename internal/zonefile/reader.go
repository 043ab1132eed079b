package zonefile

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"

	homeerrors "github.com/kelanmoore/homedns/internal/errors"
	"github.com/kelanmoore/homedns/internal/message"
	"github.com/kelanmoore/homedns/internal/name"
	"github.com/kelanmoore/homedns/internal/protocol"
	"github.com/kelanmoore/homedns/internal/zone"
)

// Read parses master-file text of the form Write produces: an optional
// "$ORIGIN <name>" line, an optional "@ IN SOA <mname> <rname> <serial>
// <refresh> <retry> <expire> <minimum>" line establishing the zone's
// authority (its TTL is taken to be its minimum field, the one value the
// grammar doesn't otherwise carry), and zero or more "<owner> <ttl> IN
// <type> <rdata...>" record lines.
//
// There is no deserialiser in the material this grammar is grounded on (only
// a writer); Read is written to accept exactly what Write emits, including
// both relative (no trailing dot, resolved against the current origin) and
// absolute (trailing dot) owner and rdata names.
func Read(text string) (*zone.Zone, error) {
	origin := name.Root
	sawOrigin := false
	var z *zone.Zone

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields, err := tokenizeLine(scanner.Text())
		if err != nil {
			return nil, loadErr(lineNo, err)
		}
		if len(fields) == 0 {
			continue
		}

		if fields[0] == "$ORIGIN" {
			if z != nil {
				return nil, loadErr(lineNo, fmt.Errorf("$ORIGIN must precede every record"))
			}
			if sawOrigin {
				return nil, loadErr(lineNo, fmt.Errorf("duplicate $ORIGIN directive"))
			}
			if len(fields) != 2 {
				return nil, loadErr(lineNo, fmt.Errorf("$ORIGIN takes exactly one argument"))
			}
			tok, err := unescapeToken(fields[1])
			if err != nil {
				return nil, loadErr(lineNo, err)
			}
			o, err := name.Parse(tok)
			if err != nil {
				return nil, loadErr(lineNo, err)
			}
			origin = o
			sawOrigin = true
			continue
		}

		if z == nil {
			z = zone.New(origin)
		}

		rr, err := parseRecordLine(fields, z)
		if err != nil {
			return nil, loadErr(lineNo, err)
		}
		if err := z.AddRecord(rr); err != nil {
			return nil, loadErr(lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &homeerrors.LoadError{Source: "zone file", Err: err}
	}
	if z == nil {
		z = zone.New(origin)
	}
	return z, nil
}

func loadErr(lineNo int, err error) error {
	return &homeerrors.LoadError{Source: fmt.Sprintf("zone file line %d", lineNo), Err: err}
}

func parseRecordLine(fields []string, z *zone.Zone) (message.ResourceRecord, error) {
	if len(fields) < 3 {
		return message.ResourceRecord{}, fmt.Errorf("record line has too few fields")
	}
	apex := z.Apex()

	owner, err := parseDomain(fields[0], apex)
	if err != nil {
		return message.ResourceRecord{}, err
	}

	if fields[1] == "IN" {
		if len(fields) != 10 || fields[2] != "SOA" {
			return message.ResourceRecord{}, fmt.Errorf("malformed SOA line")
		}
		mname, err := parseDomain(fields[3], apex)
		if err != nil {
			return message.ResourceRecord{}, err
		}
		rname, err := parseDomain(fields[4], apex)
		if err != nil {
			return message.ResourceRecord{}, err
		}
		nums, err := parseUint32s(fields[5:10])
		if err != nil {
			return message.ResourceRecord{}, err
		}
		return message.ResourceRecord{
			Name: owner, Class: protocol.ClassIN, TTL: nums[4],
			Data: message.RDATA_SOA{
				MName: mname, RName: rname,
				Serial: nums[0], Refresh: nums[1], Retry: nums[2], Expire: nums[3], Minimum: nums[4],
			},
		}, nil
	}

	ttl, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return message.ResourceRecord{}, fmt.Errorf("invalid ttl %q: %w", fields[1], err)
	}
	if fields[2] != "IN" {
		return message.ResourceRecord{}, fmt.Errorf("expected class IN, got %q", fields[2])
	}
	if len(fields) < 4 {
		return message.ResourceRecord{}, fmt.Errorf("record line missing a type")
	}
	rtype, err := parseRecordType(fields[3])
	if err != nil {
		return message.ResourceRecord{}, err
	}
	data, err := parseRDATA(rtype, fields[4:], apex)
	if err != nil {
		return message.ResourceRecord{}, err
	}
	return message.ResourceRecord{Name: owner, Class: protocol.ClassIN, TTL: uint32(ttl), Data: data}, nil
}

func parseDomain(token string, apex name.Name) (name.Name, error) {
	if token == "@" {
		return apex, nil
	}
	unescaped, err := unescapeToken(token)
	if err != nil {
		return name.Name{}, err
	}
	return name.ParseRelative(unescaped, apex)
}

func parseUint32s(fields []string) ([5]uint32, error) {
	var out [5]uint32
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return out, fmt.Errorf("invalid integer %q: %w", f, err)
		}
		out[i] = uint32(v)
	}
	return out, nil
}

var recordTypeNames = map[string]protocol.RecordType{
	"A": protocol.TypeA, "NS": protocol.TypeNS, "MD": protocol.TypeMD, "MF": protocol.TypeMF,
	"CNAME": protocol.TypeCNAME, "SOA": protocol.TypeSOA, "MB": protocol.TypeMB, "MG": protocol.TypeMG,
	"MR": protocol.TypeMR, "NULL": protocol.TypeNULL, "WKS": protocol.TypeWKS, "PTR": protocol.TypePTR,
	"HINFO": protocol.TypeHINFO, "MINFO": protocol.TypeMINFO, "MX": protocol.TypeMX, "TXT": protocol.TypeTXT,
	"AAAA": protocol.TypeAAAA, "SRV": protocol.TypeSRV,
}

func parseRecordType(s string) (protocol.RecordType, error) {
	if t, ok := recordTypeNames[s]; ok {
		return t, nil
	}
	if strings.HasPrefix(s, "TYPE") {
		if n, err := strconv.ParseUint(s[4:], 10, 16); err == nil {
			return protocol.RecordType(n), nil
		}
	}
	return 0, fmt.Errorf("unknown record type %q", s)
}

func parseRDATA(rtype protocol.RecordType, fields []string, apex name.Name) (message.RDATA, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("record line missing rdata")
	}

	switch rtype {
	case protocol.TypeA:
		ip := net.ParseIP(fields[0])
		if ip == nil || ip.To4() == nil {
			return nil, fmt.Errorf("invalid IPv4 address %q", fields[0])
		}
		return message.RDATA_A{Addr: ip.To4()}, nil

	case protocol.TypeAAAA:
		ip := net.ParseIP(fields[0])
		if ip == nil {
			return nil, fmt.Errorf("invalid IPv6 address %q", fields[0])
		}
		return message.RDATA_AAAA{Addr: ip}, nil

	case protocol.TypeNS, protocol.TypeMD, protocol.TypeMF, protocol.TypeCNAME,
		protocol.TypeMB, protocol.TypeMG, protocol.TypeMR, protocol.TypePTR:
		n, err := parseDomain(fields[0], apex)
		if err != nil {
			return nil, err
		}
		return message.RDATA_Name{RRType: rtype, Name: n}, nil

	case protocol.TypeMINFO:
		if len(fields) < 2 {
			return nil, fmt.Errorf("MINFO requires two domain names")
		}
		rm, err := parseDomain(fields[0], apex)
		if err != nil {
			return nil, err
		}
		em, err := parseDomain(fields[1], apex)
		if err != nil {
			return nil, err
		}
		return message.RDATA_MINFO{RMailbx: rm, EMailbx: em}, nil

	case protocol.TypeMX:
		if len(fields) < 2 {
			return nil, fmt.Errorf("MX requires a preference and an exchange")
		}
		pref, err := strconv.ParseUint(fields[0], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid MX preference %q: %w", fields[0], err)
		}
		exch, err := parseDomain(fields[1], apex)
		if err != nil {
			return nil, err
		}
		return message.RDATA_MX{Preference: uint16(pref), Exchange: exch}, nil

	case protocol.TypeHINFO:
		if len(fields) < 2 {
			return nil, fmt.Errorf("HINFO requires a CPU and an OS string")
		}
		cpu, err := unescapeToken(fields[0])
		if err != nil {
			return nil, err
		}
		osStr, err := unescapeToken(fields[1])
		if err != nil {
			return nil, err
		}
		return message.RDATA_HINFO{CPU: cpu, OS: osStr}, nil

	case protocol.TypeTXT:
		strs := make([]string, len(fields))
		for i, f := range fields {
			s, err := unescapeToken(f)
			if err != nil {
				return nil, err
			}
			strs[i] = s
		}
		return message.RDATA_TXT{Strings: strs}, nil

	case protocol.TypeSRV:
		if len(fields) < 4 {
			return nil, fmt.Errorf("SRV requires priority, weight, port, and a target")
		}
		priority, err := strconv.ParseUint(fields[0], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid SRV priority %q: %w", fields[0], err)
		}
		weight, err := strconv.ParseUint(fields[1], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid SRV weight %q: %w", fields[1], err)
		}
		port, err := strconv.ParseUint(fields[2], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid SRV port %q: %w", fields[2], err)
		}
		target, err := parseDomain(fields[3], apex)
		if err != nil {
			return nil, err
		}
		return message.RDATA_SRV{Priority: uint16(priority), Weight: uint16(weight), Port: uint16(port), Target: target}, nil

	default:
		octets, err := unescapeToken(fields[0])
		if err != nil {
			return nil, err
		}
		return message.RDATA_Unknown{Tag: rtype, Octets: []byte(octets)}, nil
	}
}

// tokenizeLine splits a line into whitespace-separated fields, treating a
// double-quoted run as one field (spaces inside it don't separate) and
// leaving backslash escapes untouched for unescapeToken to resolve.
func tokenizeLine(line string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	hasCur := false

	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			hasCur = true
			i++
		case c == '\\' && i+1 < len(line):
			cur.WriteByte(c)
			cur.WriteByte(line[i+1])
			hasCur = true
			i += 2
		case !inQuotes && (c == ' ' || c == '\t'):
			if hasCur {
				fields = append(fields, cur.String())
				cur.Reset()
				hasCur = false
			}
			i++
		default:
			cur.WriteByte(c)
			hasCur = true
			i++
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("unterminated quoted string")
	}
	if hasCur {
		fields = append(fields, cur.String())
	}
	return fields, nil
}

// unescapeToken reverses escapeOctets: "\c" for a structurally-escaped
// character, "\DDD" for a 3-digit decimal octet value, anything else passed
// through literally.
func unescapeToken(s string) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(s) {
			return "", fmt.Errorf("trailing backslash in %q", s)
		}
		next := s[i+1]
		if next >= '0' && next <= '9' {
			if i+4 > len(s) {
				return "", fmt.Errorf("incomplete decimal escape in %q", s)
			}
			d1, d2, d3 := s[i+1], s[i+2], s[i+3]
			if d1 < '0' || d1 > '9' || d2 < '0' || d2 > '9' || d3 < '0' || d3 > '9' {
				return "", fmt.Errorf("invalid decimal escape in %q", s)
			}
			v := int(d1-'0')*100 + int(d2-'0')*10 + int(d3-'0')
			if v > 255 {
				return "", fmt.Errorf("escape value out of range in %q", s)
			}
			b.WriteByte(byte(v))
			i += 4
			continue
		}
		b.WriteByte(next)
		i += 2
	}
	return b.String(), nil
}
