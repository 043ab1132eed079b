package message

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/kelanmoore/homedns/internal/name"
	"github.com/kelanmoore/homedns/internal/protocol"
)

// NewQueryID draws a random 16-bit transaction id, matching the teacher's
// crypto/rand-backed id generation for outbound queries.
func NewQueryID() uint16 {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is not recoverable in any meaningful way;
		// fall back to a fixed id rather than panicking the caller.
		return 0
	}
	return binary.BigEndian.Uint16(b[:])
}

// NewQuery builds a single-question outbound query message with a fresh
// random id and the given recursion-desired flag, as used by
// query_nameserver (spec §4.7).
func NewQuery(qname name.Name, qtype protocol.RecordType, qclass protocol.RecordClass, recursionDesired bool) *Message {
	return &Message{
		Header: Header{
			ID:               NewQueryID(),
			Opcode:           protocol.OpcodeQuery,
			RecursionDesired: recursionDesired,
		},
		Questions: []Question{{Name: qname, Type: qtype, Class: qclass}},
	}
}

// ResponseMatchesRequest implements response_matches_request (§4.7): same
// id, QR=1, opcode matches, TC=0, rcode=NoError, and the question section
// echoes back exactly.
func ResponseMatchesRequest(req, resp *Message) bool {
	if resp.Header.ID != req.Header.ID {
		return false
	}
	if !resp.Header.IsResponse {
		return false
	}
	if resp.Header.Opcode != req.Header.Opcode {
		return false
	}
	if resp.Header.IsTruncated {
		return false
	}
	if resp.Header.Rcode != protocol.RcodeNoError {
		return false
	}
	if len(resp.Questions) != len(req.Questions) {
		return false
	}
	for i, q := range req.Questions {
		rq := resp.Questions[i]
		if !q.Name.Equal(rq.Name) || q.Type != rq.Type || q.Class != rq.Class {
			return false
		}
	}
	return true
}
