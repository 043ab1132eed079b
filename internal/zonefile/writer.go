// Package zonefile implements the master-file textual format used to load
// and persist zones: the BIND-style grammar spec §6 describes, grounded in
// the octet-escaping rules of the original serialiser (see serialise_octets
// in lib-dns-types' zones/serialise.rs).
package zonefile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kelanmoore/homedns/internal/message"
	"github.com/kelanmoore/homedns/internal/name"
	"github.com/kelanmoore/homedns/internal/zone"
)

// Write renders z as master-file text: an optional "$ORIGIN" line when the
// apex isn't root, the SOA as "@ IN SOA ..." when the zone is authoritative,
// then every other record grouped by owner name and sorted root-first.
//
// Owner names are written relative to the apex (no trailing dot) whenever
// possible, and absolute (trailing dot) otherwise; Read parses both forms
// uniformly via name.ParseRelative, so the two functions round-trip.
func Write(z *zone.Zone) string {
	var b strings.Builder
	apex := z.Apex()

	if !apex.IsRoot() {
		fmt.Fprintf(&b, "$ORIGIN %s\n\n", escapeToken(apex.String()))
	}
	if soa, ok := z.SOA(); ok {
		soaData := soa.Data.(message.RDATA_SOA)
		fmt.Fprintf(&b, "@ IN SOA %s %s %d %d %d %d %d\n\n",
			serialiseDomain(z, soaData.MName), serialiseDomain(z, soaData.RName),
			soaData.Serial, soaData.Refresh, soaData.Retry, soaData.Expire, soaData.Minimum)
	}

	type group struct {
		owner name.Name
		rrs   []message.ResourceRecord
	}
	byOwner := map[string]*group{}
	var owners []string

	z.ForEachRecord(func(rr message.ResourceRecord, isWildcard bool) bool {
		if _, isSOA := rr.Data.(message.RDATA_SOA); isSOA {
			return true
		}
		key := rr.Name.String()
		g, ok := byOwner[key]
		if !ok {
			g = &group{owner: rr.Name}
			byOwner[key] = g
			owners = append(owners, key)
		}
		g.rrs = append(g.rrs, rr)
		return true
	})

	sort.Slice(owners, func(i, j int) bool {
		return byOwner[owners[i]].owner.Less(byOwner[owners[j]].owner)
	})

	for _, key := range owners {
		g := byOwner[key]
		owner := serialiseDomain(z, g.owner)
		for _, rr := range g.rrs {
			fmt.Fprintf(&b, "%s %d IN %s %s\n", owner, rr.TTL, rr.Data.Type(), serialiseRDATA(z, rr.Data))
		}
		b.WriteByte('\n')
	}

	return b.String()
}

// serialiseDomain renders n relative to z's apex when that's unambiguous
// (an authoritative zone, non-root apex, n under the apex), and as an
// absolute dotted string otherwise.
func serialiseDomain(z *zone.Zone, n name.Name) string {
	apex := z.Apex()
	if apex.IsRoot() || !z.IsAuthoritative() || !n.IsSubdomainOf(apex) {
		return escapeToken(n.String())
	}
	if n.Equal(apex) {
		return "@"
	}
	labels := n.Labels()
	relative := labels[:len(labels)-len(apex.Labels())]
	return escapeToken(strings.Join(relative, "."))
}

// serialiseRDATA renders one RDATA value's type-specific textual form.
func serialiseRDATA(z *zone.Zone, data message.RDATA) string {
	switch d := data.(type) {
	case message.RDATA_A:
		return d.Addr.String()
	case message.RDATA_AAAA:
		return d.Addr.String()
	case message.RDATA_Name:
		return serialiseDomain(z, d.Name)
	case message.RDATA_MX:
		return fmt.Sprintf("%d %s", d.Preference, serialiseDomain(z, d.Exchange))
	case message.RDATA_MINFO:
		return fmt.Sprintf("%s %s", serialiseDomain(z, d.RMailbx), serialiseDomain(z, d.EMailbx))
	case message.RDATA_HINFO:
		return fmt.Sprintf("%s %s", escapeQuoted(d.CPU), escapeQuoted(d.OS))
	case message.RDATA_TXT:
		parts := make([]string, len(d.Strings))
		for i, s := range d.Strings {
			parts[i] = escapeQuoted(s)
		}
		return strings.Join(parts, " ")
	case message.RDATA_SRV:
		return fmt.Sprintf("%d %d %d %s", d.Priority, d.Weight, d.Port, serialiseDomain(z, d.Target))
	case message.RDATA_SOA:
		// Only reached if an SOA-typed RR appears outside the dedicated SOA
		// line, which AddRecord/Write never produce; kept total for safety.
		return fmt.Sprintf("%s %s %d %d %d %d %d",
			serialiseDomain(z, d.MName), serialiseDomain(z, d.RName), d.Serial, d.Refresh, d.Retry, d.Expire, d.Minimum)
	case message.RDATA_Unknown:
		return escapeQuoted(string(d.Octets))
	default:
		return ""
	}
}

// escapeToken escapes an unquoted token: backslash-escape the characters
// that are structurally significant in the grammar, decimal-escape (\DDD)
// control and non-ASCII bytes, and decimal-escape a literal space (the
// field separator).
func escapeToken(s string) string {
	return escapeOctets(s, false)
}

// escapeQuoted escapes and wraps s in a quoted character-string, where a
// literal space needs no escaping.
func escapeQuoted(s string) string {
	return escapeOctets(s, true)
}

func escapeOctets(s string, quoted bool) string {
	var b strings.Builder
	if quoted {
		b.WriteByte('"')
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\' || c == ';' || c == '(' || c == ')':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c < 32 || c > 126 || (c == ' ' && !quoted):
			b.WriteByte('\\')
			b.WriteByte('0' + (c/100)%10)
			b.WriteByte('0' + (c/10)%10)
			b.WriteByte('0' + c%10)
		default:
			b.WriteByte(c)
		}
	}
	if quoted {
		b.WriteByte('"')
	}
	return b.String()
}
