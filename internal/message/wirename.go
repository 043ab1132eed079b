package message

import (
	"strings"

	homeerrors "github.com/kelanmoore/homedns/internal/errors"
	"github.com/kelanmoore/homedns/internal/name"
	"github.com/kelanmoore/homedns/internal/protocol"
)

// parseName reads a domain name starting at offset in msg, following
// compression pointers as needed, and returns the decoded name and the
// offset immediately after the name's own encoding (which, for a name
// ending in a pointer, is the byte right after the 2-byte pointer, not
// anywhere inside the target).
func parseName(msg []byte, offset int) (name.Name, int, error) {
	var labels []string
	pos := offset
	endOffset := -1 // offset to return once the first pointer (if any) is hit
	jumps := 0

	for {
		if pos >= len(msg) {
			return name.Name{}, offset, &homeerrors.WireFormatError{
				Operation: "parse name",
				Offset:    pos,
				Message:   "truncated name: ran off end of message",
			}
		}

		lengthByte := msg[pos]

		if lengthByte&protocol.CompressionPointerMask == protocol.CompressionPointerMask {
			if pos+2 > len(msg) {
				return name.Name{}, offset, &homeerrors.WireFormatError{
					Operation: "parse name",
					Offset:    pos,
					Message:   "truncated compression pointer",
				}
			}
			pointerOffset := (int(lengthByte&^protocol.CompressionPointerMask) << 8) | int(msg[pos+1])
			if pointerOffset >= pos {
				return name.Name{}, offset, &homeerrors.WireFormatError{
					Operation: "parse name",
					Offset:    pos,
					Message:   "compression pointer does not point strictly backward",
				}
			}
			if endOffset == -1 {
				endOffset = pos + 2
			}
			jumps++
			if jumps > protocol.MaxCompressionJumps {
				return name.Name{}, offset, &homeerrors.WireFormatError{
					Operation: "parse name",
					Offset:    pos,
					Message:   "too many compression pointer jumps",
				}
			}
			pos = pointerOffset
			continue
		}

		if lengthByte&protocol.CompressionPointerMask != 0 {
			// Top two bits set only one of the two (64-191): invalid per
			// RFC 1035 (only 00 = label, 11 = pointer are defined).
			return name.Name{}, offset, &homeerrors.WireFormatError{
				Operation: "parse name",
				Offset:    pos,
				Message:   "invalid label length byte (reserved bit pattern)",
			}
		}

		labelLen := int(lengthByte)
		pos++
		if labelLen == 0 {
			break
		}
		if labelLen > name.MaxLabelLength {
			return name.Name{}, offset, &homeerrors.WireFormatError{
				Operation: "parse name",
				Offset:    pos,
				Message:   "label exceeds 63 octets",
			}
		}
		if pos+labelLen > len(msg) {
			return name.Name{}, offset, &homeerrors.WireFormatError{
				Operation: "parse name",
				Offset:    pos,
				Message:   "truncated label",
			}
		}
		labels = append(labels, strings.ToLower(string(msg[pos:pos+labelLen])))
		pos += labelLen
	}

	if endOffset == -1 {
		endOffset = pos
	}

	n := name.FromLabels(labels)
	totalOctets := 1
	for _, l := range labels {
		totalOctets += len(l) + 1
	}
	if totalOctets > name.MaxNameLength {
		return name.Name{}, offset, &homeerrors.WireFormatError{
			Operation: "parse name",
			Offset:    offset,
			Message:   "name exceeds 255 wire octets",
		}
	}

	return n, endOffset, nil
}

// compressionTable maps a fully-qualified name already written to the
// message, rendered as its lowercase dotted string, to the offset in the
// buffer where its encoding began.
type compressionTable map[string]int

// encodeName appends name n's wire encoding to buf, using a pointer into an
// earlier occurrence when compress is true and one is available within the
// 14-bit offset range; otherwise it writes the labels in full and (if
// compress) records the starting offset for future reuse.
func encodeName(buf []byte, n name.Name, table compressionTable, compress bool) []byte {
	labels := n.Labels()

	for i := 0; i < len(labels); i++ {
		suffix := name.FromLabels(labels[i:])
		key := suffix.String()

		if compress {
			if ptrOffset, ok := table[key]; ok && ptrOffset <= protocol.CompressionOffsetMask {
				ptr := uint16(protocol.CompressionPointerMask)<<8 | uint16(ptrOffset)
				buf = append(buf, byte(ptr>>8), byte(ptr))
				return buf
			}
		}

		if compress && len(buf) <= protocol.CompressionOffsetMask {
			table[key] = len(buf)
		}

		buf = append(buf, byte(len(labels[i])))
		buf = append(buf, []byte(labels[i])...)
	}

	buf = append(buf, 0x00)
	return buf
}
