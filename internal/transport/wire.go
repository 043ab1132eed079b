package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	homeerrors "github.com/kelanmoore/homedns/internal/errors"
	"github.com/kelanmoore/homedns/internal/protocol"
)

// truncationFlagByte is the header byte (offset 2) carrying the TC bit.
const truncationFlagByte = 2
const truncationBit = 0x02

// sendUDPBytes implements spec §4.7's send_udp_bytes helper: truncate to
// MaxUDPPayload octets and set TC if the serialised message is too large,
// otherwise clear TC. It never mutates the caller's slice.
func sendUDPBytes(serialised []byte) []byte {
	if len(serialised) > protocol.MaxUDPPayload {
		out := make([]byte, protocol.MaxUDPPayload)
		copy(out, serialised)
		out[truncationFlagByte] |= truncationBit
		return out
	}
	out := make([]byte, len(serialised))
	copy(out, serialised)
	if len(out) > truncationFlagByte {
		out[truncationFlagByte] &^= truncationBit
	}
	return out
}

// sendTCPBytes implements send_tcp_bytes: a big-endian 16-bit length prefix
// followed by the message, truncating (and setting TC) if the message
// exceeds MaxTCPMessage octets.
func sendTCPBytes(serialised []byte) []byte {
	payload := serialised
	if len(payload) > protocol.MaxTCPMessage {
		truncated := make([]byte, protocol.MaxTCPMessage)
		copy(truncated, payload)
		truncated[truncationFlagByte] |= truncationBit
		payload = truncated
	}
	out := make([]byte, 2+len(payload))
	binary.BigEndian.PutUint16(out, uint16(len(payload)))
	copy(out[2:], payload)
	return out
}

// readTCPBytes implements read_tcp_bytes: read the 16-bit length prefix,
// then exactly that many octets, via the pooled TCP scratch buffer.
func readTCPBytes(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, &homeerrors.NetworkError{Operation: "read tcp length prefix", Err: err}
	}
	n := binary.BigEndian.Uint16(lenBuf[:])

	bufPtr := getTCPBuffer()
	defer putTCPBuffer(bufPtr)
	scratch := (*bufPtr)[:n]
	if n > 0 {
		if _, err := io.ReadFull(r, scratch); err != nil {
			return nil, &homeerrors.NetworkError{Operation: "read tcp message", Err: err, Details: fmt.Sprintf("expected %d octets", n)}
		}
	}

	out := make([]byte, n)
	copy(out, scratch)
	return out, nil
}
