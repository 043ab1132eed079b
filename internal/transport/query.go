package transport

import (
	"context"
	"errors"
	"net"
	"time"

	homeerrors "github.com/kelanmoore/homedns/internal/errors"
	"github.com/kelanmoore/homedns/internal/message"
)

// UpstreamTimeout is the per-attempt deadline for a single UDP or TCP
// upstream query (spec §4.7, §5).
const UpstreamTimeout = 5 * time.Second

// UpstreamQuerier implements resolver.Querier (spec §4.7's
// query_nameserver): UDP first, falling back to TCP on failure or
// truncation, validating the response before handing it back.
type UpstreamQuerier struct{}

// Query sends question q to addr:53 with the given recursion-desired flag
// and returns the validated response.
func (UpstreamQuerier) Query(ctx context.Context, addr net.IP, q message.Question, recursionDesired bool) (*message.Message, error) {
	req := message.NewQuery(q.Name, q.Type, q.Class, recursionDesired)
	payload, err := message.Serialise(req)
	if err != nil {
		return nil, err
	}

	dest := net.JoinHostPort(addr.String(), "53")

	resp, err := queryUDP(ctx, dest, payload)
	if err != nil || resp == nil || resp.Header.IsTruncated {
		resp, err = queryTCP(ctx, dest, payload)
		if err != nil {
			return nil, err
		}
	}

	if !message.ResponseMatchesRequest(req, resp) {
		return nil, &homeerrors.NetworkError{Operation: "query nameserver", Err: errInvalidResponse, Details: dest}
	}
	return resp, nil
}

var errInvalidResponse = errors.New("response did not match the request")

func queryUDP(ctx context.Context, dest string, payload []byte) (*message.Message, error) {
	actx, cancel := context.WithTimeout(ctx, UpstreamTimeout)
	defer cancel()

	conn, err := (&net.Dialer{}).DialContext(actx, "udp4", dest)
	if err != nil {
		return nil, &homeerrors.NetworkError{Operation: "dial upstream udp", Err: err, Details: dest}
	}
	defer conn.Close()

	deadline, _ := actx.Deadline()
	_ = conn.SetDeadline(deadline)

	if _, err := conn.Write(payload); err != nil {
		return nil, &homeerrors.NetworkError{Operation: "send upstream udp query", Err: err, Details: dest}
	}

	bufPtr := getUDPBuffer()
	defer putUDPBuffer(bufPtr)
	buf := *bufPtr

	n, err := conn.Read(buf)
	if err != nil {
		return nil, &homeerrors.NetworkError{Operation: "receive upstream udp response", Err: err, Details: dest}
	}

	return message.Deserialise(buf[:n])
}

func queryTCP(ctx context.Context, dest string, payload []byte) (*message.Message, error) {
	actx, cancel := context.WithTimeout(ctx, UpstreamTimeout)
	defer cancel()

	conn, err := (&net.Dialer{}).DialContext(actx, "tcp4", dest)
	if err != nil {
		return nil, &homeerrors.NetworkError{Operation: "dial upstream tcp", Err: err, Details: dest}
	}
	defer conn.Close()

	deadline, _ := actx.Deadline()
	_ = conn.SetDeadline(deadline)

	if _, err := conn.Write(sendTCPBytes(payload)); err != nil {
		return nil, &homeerrors.NetworkError{Operation: "send upstream tcp query", Err: err, Details: dest}
	}

	raw, err := readTCPBytes(conn)
	if err != nil {
		return nil, err
	}
	return message.Deserialise(raw)
}
