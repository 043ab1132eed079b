// Package hostsfile implements the hosts-file line grammar spec §6
// describes: one record per line, "<ip> <name> [<name>...]", '#' starts a
// comment, ASCII only, a trailing dot on a name is optional.
//
// Each line has any comment cut off and is then split on whitespace; the
// characters are not checked for being ASCII. A bare IPv6 address parses
// like any other address, and only a zone identifier (the "%lo0" in
// "fe80::1%lo0") causes the line to be skipped silently, where the original
// parser (src/hosts/deserialise.rs) skipped every IPv6 line outright.
package hostsfile

import (
	"bufio"
	"fmt"
	"net"
	"strings"

	homeerrors "github.com/kelanmoore/homedns/internal/errors"
	"github.com/kelanmoore/homedns/internal/hosts"
	"github.com/kelanmoore/homedns/internal/name"
)

// Read parses hosts-file text into a Hosts mapping.
func Read(text string) (*hosts.Hosts, error) {
	h := hosts.New()

	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		ip, names, err := parseLine(scanner.Text())
		if err != nil {
			return nil, &homeerrors.LoadError{Source: fmt.Sprintf("hosts file line %d", lineNo), Err: err}
		}
		if ip == nil {
			continue
		}
		for _, n := range names {
			if v4 := ip.To4(); v4 != nil {
				h.AddV4(n, v4)
			} else {
				h.AddV6(n, ip)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &homeerrors.LoadError{Source: "hosts file", Err: err}
	}
	return h, nil
}

// parseLine parses one line, returning a nil ip (no error) for a blank
// line, a comment-only line, a line with no names, or a line whose address
// carries an IPv6 zone identifier.
func parseLine(line string) (net.IP, []name.Name, error) {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		line = line[:idx]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil, nil
	}

	addrToken := fields[0]
	if strings.ContainsRune(addrToken, '%') {
		return nil, nil, nil
	}

	ip := net.ParseIP(addrToken)
	if ip == nil {
		return nil, nil, &homeerrors.ValidationError{
			Field: "address", Value: addrToken, Message: "could not parse address",
		}
	}

	if len(fields) == 1 {
		return nil, nil, nil
	}

	names := make([]name.Name, 0, len(fields)-1)
	for _, tok := range fields[1:] {
		n, err := name.Parse(tok)
		if err != nil {
			return nil, nil, &homeerrors.ValidationError{
				Field: "name", Value: tok, Message: "could not parse name",
			}
		}
		names = append(names, n)
	}
	return ip, names, nil
}

// Write renders h as one "<ip> <name>" line per address/owner pair. The
// grouping the original writer does (multiple names sharing one address
// line) carries no semantic weight Read depends on, so each pair gets its
// own line for simplicity; round-tripping only requires the resulting
// mapping to match, not the exact text.
func Write(h *hosts.Hosts) string {
	var b strings.Builder
	h.ForEachV4(func(owner name.Name, ip net.IP) {
		b.WriteString(ip.String())
		b.WriteByte(' ')
		b.WriteString(writeName(owner))
		b.WriteByte('\n')
	})
	h.ForEachV6(func(owner name.Name, ip net.IP) {
		b.WriteString(ip.String())
		b.WriteByte(' ')
		b.WriteString(writeName(owner))
		b.WriteByte('\n')
	})
	return b.String()
}

func writeName(n name.Name) string {
	s := n.String()
	if s == "." {
		return "."
	}
	return strings.TrimSuffix(s, ".")
}
