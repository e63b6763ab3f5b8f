// Package server owns the listening socket and the event loop that
// multiplexes terminal connections with the badge broadcast queue.
//
// Exactly one goroutine, the loop started by Start, owns every live
// connection, its ring buffer and all socket writes. Per-connection
// reader goroutines and the accept goroutine only feed the loop over
// channels; they never touch shared state. Socket writes happen
// synchronously on the loop, so a stalled client can delay one
// iteration; reads and writes are expected to complete promptly
// relative to the poll interval.
package server

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"openacs/gateway/internal/access"
	"openacs/gateway/internal/config"
	"openacs/gateway/internal/feedback"
	"openacs/gateway/internal/rpleth"
)

const readChunkSize = 512

// SessionHooks receives terminal lifecycle and scan notifications.
// Calls are made off the loop goroutine and must tolerate concurrency.
type SessionHooks interface {
	TerminalConnected(addr string)
	TerminalDisconnected(addr string)
	CardBroadcast(cid access.CardID)
}

// Server is the Rpleth connection multiplexer.
type Server struct {
	cfg      *config.Config
	queue    *access.Queue
	feedback *feedback.Controller
	hooks    SessionHooks
	log      zerolog.Logger

	ln        net.Listener
	conns     map[uint64]*conn
	connCount atomic.Int64
	nextID    uint64
	lastBadge access.CardID

	acceptCh chan net.Conn
	readCh   chan readChunk
	fatalCh  chan error
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	err error // set before doneCh closes
}

// conn is one accepted terminal socket plus its buffered unread bytes.
// Only the loop goroutine touches it after creation.
type conn struct {
	id   uint64
	sock net.Conn
	buf  *rpleth.Ring
	addr string
}

type readChunk struct {
	connID uint64
	data   []byte
	err    error
}

// New builds a server. hooks may be nil.
func New(cfg *config.Config, queue *access.Queue, fb *feedback.Controller, hooks SessionHooks, log zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		queue:    queue,
		feedback: fb,
		hooks:    hooks,
		log:      log,
		conns:    make(map[uint64]*conn),
		acceptCh: make(chan net.Conn),
		readCh:   make(chan readChunk),
		fatalCh:  make(chan error, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start binds the listening socket and spawns the loop.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.ListenPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.ln = ln
	s.log.Info().Str("addr", ln.Addr().String()).Msg("rpleth server listening")

	go s.acceptLoop()
	go s.run()
	return nil
}

// Stop clears the running state and joins the loop. Once Stop returns
// no further socket activity happens. Safe to call more than once and
// after a fatal loop death.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Done is closed once the loop has exited, either through Stop or a
// transport-fatal error.
func (s *Server) Done() <-chan struct{} {
	return s.doneCh
}

// Err reports why the loop died. It is nil after a clean Stop and must
// only be read after Done is closed.
func (s *Server) Err() error {
	return s.err
}

// ConnCount reports the number of live terminal connections. Safe from
// any goroutine.
func (s *Server) ConnCount() int {
	return int(s.connCount.Load())
}

// run is the multiplexer loop. The select below is the readiness wait:
// it wakes on a new connection, on readable bytes from any terminal,
// on a queue push, or on the poll interval elapsing with nothing ready.
func (s *Server) run() {
	defer close(s.doneCh)
	defer s.shutdown()

	ticker := time.NewTicker(s.cfg.PollTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case err := <-s.fatalCh:
			s.err = fmt.Errorf("accept wait failed: %w", err)
			s.log.Error().Err(err).Msg("transport failure, stopping rpleth server")
			return
		case sock := <-s.acceptCh:
			s.addConn(sock)
		case chunk := <-s.readCh:
			s.handleChunk(chunk)
		case <-s.queue.Notify():
			s.drainQueue()
		case <-ticker.C:
			s.drainQueue()
		}
	}
}

// shutdown closes every live connection and then the listener, exactly
// once, on the loop goroutine.
func (s *Server) shutdown() {
	for id, c := range s.conns {
		c.sock.Close()
		delete(s.conns, id)
		s.notifyDisconnect(c.addr)
	}
	s.connCount.Store(0)
	s.ln.Close()
	s.log.Info().Msg("rpleth server stopped")
}

func (s *Server) acceptLoop() {
	for {
		sock, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
			case <-s.doneCh:
			default:
				// Listener failure while running is unrecoverable
				// for the loop.
				s.fatalCh <- err
			}
			return
		}
		select {
		case s.acceptCh <- sock:
		case <-s.stopCh:
			sock.Close()
			return
		case <-s.doneCh:
			sock.Close()
			return
		}
	}
}

func (s *Server) addConn(sock net.Conn) {
	s.nextID++
	c := &conn{
		id:   s.nextID,
		sock: sock,
		buf:  rpleth.NewRing(s.cfg.BufferSize),
		addr: sock.RemoteAddr().String(),
	}
	s.conns[c.id] = c
	s.connCount.Store(int64(len(s.conns)))
	s.log.Info().Str("addr", c.addr).Uint64("conn", c.id).Msg("terminal connected")

	if s.hooks != nil {
		go s.hooks.TerminalConnected(c.addr)
	}
	go s.readLoop(c)
}

// readLoop delivers raw socket bytes to the loop. It owns nothing but
// the read call itself and exits when the socket dies or the loop is
// gone.
func (s *Server) readLoop(c *conn) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := c.sock.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			select {
			case s.readCh <- readChunk{connID: c.id, data: data}:
			case <-s.doneCh:
				return
			}
		}
		if err != nil {
			select {
			case s.readCh <- readChunk{connID: c.id, err: err}:
			case <-s.doneCh:
			}
			return
		}
	}
}

// handleChunk runs one read cycle for one connection: buffer the
// bytes, then decode and answer every complete packet in arrival order
// before any other socket is serviced.
func (s *Server) handleChunk(chunk readChunk) {
	c, ok := s.conns[chunk.connID]
	if !ok {
		return // already dropped
	}
	if chunk.err != nil {
		s.dropConn(c, chunk.err)
		return
	}
	if err := c.buf.Write(chunk.data); err != nil {
		// Overflow policy: the write is rejected whole and the
		// connection dropped; resuming mid-stream would desync
		// packet framing.
		s.dropConn(c, err)
		return
	}

	for {
		pkt, ok, err := rpleth.Decode(c.buf)
		if err != nil {
			s.dropConn(c, err)
			return
		}
		if !ok {
			return
		}
		resp := s.process(pkt)
		if _, err := c.sock.Write(rpleth.Encode(resp)); err != nil {
			s.dropConn(c, err)
			return
		}
	}
}

// dropConn recovers a connection-local failure: close, remove, log,
// keep the loop running.
func (s *Server) dropConn(c *conn, err error) {
	c.sock.Close()
	delete(s.conns, c.id)
	s.connCount.Store(int64(len(s.conns)))
	s.log.Info().Err(err).Str("addr", c.addr).Uint64("conn", c.id).Msg("terminal disconnected")
	s.notifyDisconnect(c.addr)
}

func (s *Server) notifyDisconnect(addr string) {
	if s.hooks != nil {
		go s.hooks.TerminalDisconnected(addr)
	}
}

// drainQueue pops every pending card and broadcasts one badge packet
// per card to all live terminals, in push order. The queue lock is
// released before any socket write.
func (s *Server) drainQueue() {
	for {
		cid, ok := s.queue.Pop()
		if !ok {
			return
		}
		s.broadcast(cid)
	}
}

func (s *Server) broadcast(cid access.CardID) {
	s.lastBadge = cid
	wire := rpleth.Encode(rpleth.Packet{
		Sender:  rpleth.SenderServer,
		Status:  rpleth.StatusSuccess,
		Type:    rpleth.TypeHID,
		Command: rpleth.CmdBadge,
		Data:    cid,
	})

	var failed []*conn
	for _, c := range s.conns {
		if _, err := c.sock.Write(wire); err != nil {
			failed = append(failed, c)
		}
	}
	// A write failure on one terminal never aborts delivery to the
	// others; the failed ones are dropped afterwards.
	for _, c := range failed {
		s.dropConn(c, fmt.Errorf("badge broadcast write failed"))
	}

	s.log.Debug().Str("card", cid.String()).Int("terminals", len(s.conns)).Msg("badge broadcast")
	if s.hooks != nil {
		go s.hooks.CardBroadcast(cid)
	}
}
