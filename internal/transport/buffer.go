package transport

import (
	"sync"

	"github.com/kelanmoore/homedns/internal/protocol"
)

// udpBufferPool holds receive buffers sized for the maximum unfragmented DNS
// UDP payload this engine ever reads (spec §4.7 step 2: "receive up to 512
// bytes"). Pooling avoids a fresh allocation on every datagram, the same
// trade the teacher's transport package makes for its mDNS receive path.
var udpBufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, protocol.MaxUDPPayload)
		return &buf
	},
}

// tcpBufferPool holds buffers for the largest length-prefixed TCP message
// (spec §4.7/§5: up to 65535 octets).
var tcpBufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, protocol.MaxTCPMessage)
		return &buf
	},
}

func getUDPBuffer() *[]byte { return udpBufferPool.Get().(*[]byte) }
func putUDPBuffer(b *[]byte) { udpBufferPool.Put(b) }

func getTCPBuffer() *[]byte { return tcpBufferPool.Get().(*[]byte) }
func putTCPBuffer(b *[]byte) { tcpBufferPool.Put(b) }
