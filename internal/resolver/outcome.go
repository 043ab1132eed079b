package resolver

import "github.com/kelanmoore/homedns/internal/message"

// Kind selects which fields of a ResolvedRecord are meaningful, mirroring
// spec §4.3's three terminal outcomes of resolution.
type Kind int

const (
	// Authoritative means a zone marked authoritative answered the
	// question directly (possibly empty RRs, i.e. NODATA).
	Authoritative Kind = iota
	// AuthoritativeNameError means an authoritative zone has no node for
	// this name at all (NXDOMAIN).
	AuthoritativeNameError
	// NonAuthoritative means the answer came from a non-authoritative
	// source: a hosts-derived zone, the cache, or an upstream nameserver.
	NonAuthoritative
)

// ResolvedRecord is the final outcome of resolving one question, via
// whichever of the three strategies (non-recursive, recursive, forwarding)
// was used.
type ResolvedRecord struct {
	Kind Kind

	// Authoritative / NonAuthoritative
	RRs []message.ResourceRecord

	// Authoritative: records for the response's authority section, which
	// the transport copies in as they are. The resolution strategies leave
	// it empty, so an authoritative NODATA answer carries no SOA.
	AuthorityRRs []message.ResourceRecord

	// AuthoritativeNameError: the SOA to place in the authority section.
	SOA *message.ResourceRecord

	// NonAuthoritative: the SOA backing a negative-cache style answer, if
	// the upstream supplied one. Usually nil.
	NegativeSOA *message.ResourceRecord
}
