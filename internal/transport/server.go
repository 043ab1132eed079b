package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/kelanmoore/homedns/internal/cache"
	"github.com/kelanmoore/homedns/internal/message"
	"github.com/kelanmoore/homedns/internal/metrics"
	"github.com/kelanmoore/homedns/internal/protocol"
	"github.com/kelanmoore/homedns/internal/resolver"
	"github.com/kelanmoore/homedns/internal/zone"
)

// Mode selects which of the three resolution strategies a Server dispatches
// every question to (spec §4.4).
type Mode int

const (
	// ModeLocal answers only from zones/cache, never contacting an upstream.
	ModeLocal Mode = iota
	// ModeRecursive walks down from RootHints for names not held locally.
	ModeRecursive
	// ModeForwarding sends unresolved questions to a single upstream.
	ModeForwarding
)

// Server dispatches DNS requests arriving over UDP and TCP on one listen
// address to whichever resolution strategy it is configured with (spec §1,
// §5, §6).
type Server struct {
	addr   string
	zones  *zone.Zones
	cache  *cache.Shared
	reg    *metrics.Registry
	logger *slog.Logger

	mode           Mode
	rootHints      []net.IP
	forward        net.IP
	recursionLimit int
	querier        resolver.Querier
	now            func() time.Time

	udpConn net.PacketConn
	tcpLn   net.Listener

	wg sync.WaitGroup
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithAddr sets the listen address (host:port). Defaults to ":53".
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithZones supplies the authoritative zone set (already merged with any
// hosts-derived zones, per spec §4.3).
func WithZones(z *zone.Zones) Option {
	return func(s *Server) { s.zones = z }
}

// WithCache supplies the shared resolution cache.
func WithCache(c *cache.Shared) Option {
	return func(s *Server) { s.cache = c }
}

// WithMetrics attaches a metrics.Registry; RecordRequest/RecordQuestionTime
// are called once per completed request/question.
func WithMetrics(r *metrics.Registry) Option {
	return func(s *Server) { s.reg = r }
}

// WithLogger overrides the default slog.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRootHints switches the server to recursive mode, descending from these
// nameservers for names outside local authority.
func WithRootHints(hints []net.IP) Option {
	return func(s *Server) {
		s.rootHints = hints
		s.mode = ModeRecursive
	}
}

// WithForward switches the server to forwarding mode, sending unresolved
// questions to addr.
func WithForward(addr net.IP) Option {
	return func(s *Server) {
		s.forward = addr
		s.mode = ModeForwarding
	}
}

// WithRecursionLimit overrides resolver.DefaultRecursionLimit.
func WithRecursionLimit(n int) Option {
	return func(s *Server) { s.recursionLimit = n }
}

// WithQuerier overrides the upstream querier, for tests.
func WithQuerier(q resolver.Querier) Option {
	return func(s *Server) { s.querier = q }
}

// New builds a Server in local-only mode by default; WithRootHints or
// WithForward switch it to recursive or forwarding mode.
func New(opts ...Option) (*Server, error) {
	s := &Server{
		addr:           net.JoinHostPort("", "53"),
		zones:          zone.NewZones(),
		cache:          cache.NewShared(cache.DefaultDesiredSize),
		mode:           ModeLocal,
		recursionLimit: resolver.DefaultRecursionLimit,
		querier:        UpstreamQuerier{},
		now:            time.Now,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.mode == ModeForwarding && s.forward == nil {
		return nil, errors.New("forwarding mode requires WithForward")
	}
	if s.mode == ModeRecursive && len(s.rootHints) == 0 {
		return nil, errors.New("recursive mode requires WithRootHints")
	}
	return s, nil
}

// ListenAndServe binds the UDP and TCP listeners and serves until ctx is
// cancelled, then closes both listeners and waits for in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{Control: listenerControl}

	udpConn, err := lc.ListenPacket(ctx, "udp4", s.addr)
	if err != nil {
		return err
	}
	s.udpConn = udpConn

	tcpLn, err := lc.Listen(ctx, "tcp4", s.addr)
	if err != nil {
		udpConn.Close()
		return err
	}
	s.tcpLn = tcpLn

	go s.prune(ctx)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.serveUDP(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.serveTCP(ctx)
	}()

	<-ctx.Done()
	udpConn.Close()
	tcpLn.Close()
	s.wg.Wait()
	return nil
}

func (s *Server) serveUDP(ctx context.Context) {
	for {
		bufPtr := getUDPBuffer()
		buf := *bufPtr
		n, addr, err := s.udpConn.ReadFrom(buf)
		if err != nil {
			putUDPBuffer(bufPtr)
			select {
			case <-ctx.Done():
				return
			default:
				if isClosedErr(err) {
					return
				}
				continue
			}
		}

		raw := make([]byte, n)
		copy(raw, buf[:n])
		putUDPBuffer(bufPtr)

		s.wg.Add(1)
		go func(raw []byte, addr net.Addr) {
			defer s.wg.Done()
			resp := s.handle(ctx, "udp", raw)
			if resp == nil {
				return
			}
			s.udpConn.WriteTo(sendUDPBytes(resp), addr)
		}(raw, addr)
	}
}

func (s *Server) serveTCP(ctx context.Context) {
	for {
		conn, err := s.tcpLn.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				if isClosedErr(err) {
					return
				}
				continue
			}
		}

		s.wg.Add(1)
		go func(conn net.Conn) {
			defer s.wg.Done()
			s.serveTCPConn(ctx, conn)
		}(conn)
	}
}

func (s *Server) serveTCPConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	for {
		raw, err := readTCPBytes(conn)
		if err != nil {
			return
		}
		resp := s.handle(ctx, "tcp", raw)
		if resp == nil {
			return
		}
		if _, err := conn.Write(sendTCPBytes(resp)); err != nil {
			return
		}
	}
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

// handle implements spec §6's request-composition logic: validate the
// envelope, resolve each question through the configured strategy, and
// assemble a single response message. Returns nil when the datagram should
// be dropped silently (too short to recover even an id).
func (s *Server) handle(ctx context.Context, proto string, raw []byte) []byte {
	start := s.nowFn()

	if len(raw) < 2 {
		return nil
	}

	req, err := message.Deserialise(raw)
	if err != nil {
		id := binary.BigEndian.Uint16(raw[:2])
		return s.finish(proto, errorResponse(id, protocol.OpcodeQuery, protocol.RcodeFormatError, nil), start, "", "", false)
	}

	qtypeLabel, qclassLabel, rd := requestLabels(req)

	if req.Header.IsResponse {
		resp := errorResponse(req.Header.ID, req.Header.Opcode, protocol.RcodeFormatError, req.Questions)
		return s.finish(proto, resp, start, qtypeLabel, qclassLabel, rd)
	}

	if req.Header.Opcode != protocol.OpcodeQuery {
		resp := errorResponse(req.Header.ID, req.Header.Opcode, protocol.RcodeNotImplemented, req.Questions)
		return s.finish(proto, resp, start, qtypeLabel, qclassLabel, rd)
	}

	for _, q := range req.Questions {
		if !q.Type.IsKnownQueryType() || !q.Class.IsKnownQueryClass() {
			resp := &message.Message{
				Header: message.Header{
					ID:               req.Header.ID,
					IsResponse:       true,
					Opcode:           req.Header.Opcode,
					RecursionDesired: req.Header.RecursionDesired,
					Rcode:            protocol.RcodeRefused,
				},
				Questions: req.Questions,
			}
			return s.finish(proto, resp, start, qtypeLabel, qclassLabel, rd)
		}
	}

	resp, counters := s.resolveAll(ctx, req)
	payload := s.finish(proto, resp, start, qtypeLabel, qclassLabel, rd)
	if s.reg != nil {
		rdLabel := req.Header.RecursionDesired
		s.reg.RecordCounters(proto, resp.Header.Rcode.String(), qtypeLabel, qclassLabel, rdLabel, counters)
	}
	return payload
}

// resolveAll resolves every question in req, accumulating answers and
// authority records, then assembles the final rcode and AA bit per spec §6.
func (s *Server) resolveAll(ctx context.Context, req *message.Message) (*message.Message, *metrics.Counters) {
	resp := &message.Message{
		Header: message.Header{
			ID:                 req.Header.ID,
			IsResponse:         true,
			Opcode:             req.Header.Opcode,
			RecursionDesired:   req.Header.RecursionDesired,
			RecursionAvailable: s.mode != ModeLocal,
		},
		Questions: req.Questions,
	}

	counters := &metrics.Counters{}
	allAuthoritative := len(req.Questions) > 0
	nxdomainCount := 0

	for _, q := range req.Questions {
		qStart := s.nowFn()
		rctx := resolver.NewContext(s.zones, s.cache, s.querier, s.rootHints)
		rctx.Metrics = counters
		rctx.RecursionLimit = s.recursionLimit
		rctx.Now = s.now
		rctx.Forward = s.forward

		var rr resolver.ResolvedRecord
		var err error
		switch s.mode {
		case ModeForwarding:
			rr, err = resolver.ResolveForwarding(ctx, rctx, q)
		case ModeRecursive:
			rr, err = resolver.ResolveRecursive(ctx, rctx, q)
		default:
			rr, err = resolver.ResolveLocalOnly(ctx, rctx, q)
		}

		if s.reg != nil {
			s.reg.RecordQuestionTime(q.Type.String(), s.nowFn().Sub(qStart))
		}

		if err != nil {
			allAuthoritative = false
			continue
		}

		switch rr.Kind {
		case resolver.Authoritative:
			resp.Answers = append(resp.Answers, rr.RRs...)
			resp.Authority = append(resp.Authority, rr.AuthorityRRs...)
		case resolver.AuthoritativeNameError:
			nxdomainCount++
			if rr.SOA != nil {
				resp.Authority = append(resp.Authority, *rr.SOA)
			}
		case resolver.NonAuthoritative:
			resp.Answers = append(resp.Answers, rr.RRs...)
			allAuthoritative = false
			if rr.NegativeSOA != nil {
				resp.Authority = append(resp.Authority, *rr.NegativeSOA)
			}
		}
	}

	switch {
	case len(resp.Answers) == 0 && nxdomainCount == 0:
		resp.Header.Rcode = protocol.RcodeServerFailure
		resp.Header.IsAuthoritative = false
	case nxdomainCount == 1 && len(req.Questions) == 1:
		resp.Header.Rcode = protocol.RcodeNameError
		resp.Header.IsAuthoritative = allAuthoritative
	default:
		resp.Header.Rcode = protocol.RcodeNoError
		resp.Header.IsAuthoritative = allAuthoritative
	}

	return resp, counters
}

func (s *Server) finish(proto string, resp *message.Message, start time.Time, qtype, qclass string, rd bool) []byte {
	payload, err := message.Serialise(resp)
	if err != nil {
		s.logger.Error("failed to serialise response", "error", err, "id", resp.Header.ID)
		return nil
	}
	if s.reg != nil {
		s.reg.RecordRequest(proto, resp.Header.Rcode.String(), qtype, qclass, rd, s.nowFn().Sub(start))
	}
	return payload
}

func (s *Server) nowFn() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// requestLabels extracts the metrics labels for the first question, the
// convention the teacher's request counters use for multi-question
// messages (spec §4.6 counts by request, not by question).
func requestLabels(req *message.Message) (qtype, qclass string, rd bool) {
	rd = req.Header.RecursionDesired
	if len(req.Questions) == 0 {
		return "NONE", "NONE", rd
	}
	return req.Questions[0].Type.String(), req.Questions[0].Class.String(), rd
}

// prune runs the background cache sweep task (spec §5): every 5 minutes,
// remove expired entries then evict the oldest namespaces over the desired
// size, logging and recording both counts.
func (s *Server) prune(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.nowFn()
			expired := s.cache.RemoveExpired(now)
			_, evicted := s.cache.Prune(now)
			s.logger.Info("cache prune", "expired", expired, "namespaces_evicted", evicted)
			if s.reg != nil {
				s.reg.RecordCacheExpired(expired)
				s.reg.RecordCachePruned(evicted)
			}
		}
	}
}

// errorResponse builds a minimal response carrying only a header and, when
// known, the echoed question section (spec §7: "all carry the message id
// if known").
func errorResponse(id uint16, opcode protocol.Opcode, rcode protocol.Rcode, questions []message.Question) *message.Message {
	return &message.Message{
		Header: message.Header{
			ID:         id,
			IsResponse: true,
			Opcode:     opcode,
			Rcode:      rcode,
		},
		Questions: questions,
	}
}
