package server

import (
	"context"
	"errors"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/kalaharena/backend/internal/config"
	"github.com/kalaharena/backend/internal/game"
	"github.com/kalaharena/backend/internal/protocol"
)

const recvChunk = 4096

type eventKind int

const (
	evConnect eventKind = iota
	evData
	evDisconnect
)

// event is one unit of work for the arbiter loop. Reader goroutines only
// touch their own socket; every piece of shared state is mutated on the
// loop goroutine, so no locks are needed.
type event struct {
	kind eventKind
	conn net.Conn // evConnect
	sess *Session // evData, evDisconnect
	data []byte   // evData
}

// Stats are the runtime counters exported to the status API. They are the
// only server state read from outside the loop goroutine, hence atomics.
type Stats struct {
	CurrentConnections atomic.Int64
	TotalConnections   atomic.Int64
}

// StatsSnapshot is a point-in-time copy for JSON rendering
type StatsSnapshot struct {
	CurrentConnections int64 `json:"current_connections"`
	TotalConnections   int64 `json:"total_connections"`
	ActiveGames        int64 `json:"active_games"`
	GamesFinished      int64 `json:"games_finished"`
}

// Server is the TCP arbiter: it accepts player connections, feeds their
// bytes through the line codec into the dispatcher, and ticks the game
// pools to fire turn timeouts.
type Server struct {
	cfg        *config.Config
	dispatcher *Dispatcher
	pools      map[string]*game.Pool

	events   chan event
	sessions map[uint64]*Session
	nextID   uint64
	stats    Stats
}

func New(cfg *config.Config, dispatcher *Dispatcher, pools map[string]*game.Pool) *Server {
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		pools:      pools,
		events:     make(chan event, 256),
		sessions:   make(map[uint64]*Session),
	}
}

func (srv *Server) Stats() StatsSnapshot {
	snap := StatsSnapshot{
		CurrentConnections: srv.stats.CurrentConnections.Load(),
		TotalConnections:   srv.stats.TotalConnections.Load(),
	}
	for _, p := range srv.pools {
		snap.ActiveGames += p.ActiveGames()
		snap.GamesFinished += p.FinishedGames()
	}
	return snap
}

// ListenAndServe binds the game port and runs the arbiter loop until ctx
// is cancelled.
func (srv *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+srv.cfg.GamePort)
	if err != nil {
		return err
	}
	defer ln.Close()
	log.Printf("[ARBITER] Listening on :%s", srv.cfg.GamePort)

	go srv.acceptLoop(ctx, ln)
	srv.run(ctx)
	return nil
}

func (srv *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[ARBITER] Accept failed: %v", err)
			continue
		}
		select {
		case srv.events <- event{kind: evConnect, conn: conn}:
		case <-ctx.Done():
			conn.Close()
			return
		}
	}
}

// readLoop ships raw chunks from one socket into the arbiter loop. It owns
// nothing but the read side of its connection.
func (srv *Server) readLoop(ctx context.Context, sess *Session) {
	for {
		buf := make([]byte, recvChunk)
		n, err := sess.conn.Read(buf)
		if n > 0 {
			select {
			case srv.events <- event{kind: evData, sess: sess, data: buf[:n]}:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			select {
			case srv.events <- event{kind: evDisconnect, sess: sess}:
			case <-ctx.Done():
			}
			return
		}
	}
}

// run is the single-owner event loop. Handlers run to completion per
// message; the only suspension point is the select below.
func (srv *Server) run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(srv.cfg.TickMillis) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[ARBITER] Shutting down, closing %d sessions", len(srv.sessions))
			for _, sess := range srv.sessions {
				sess.conn.Close()
			}
			return

		case ev := <-srv.events:
			srv.handleEvent(ctx, ev)

		case now := <-ticker.C:
			for _, p := range srv.pools {
				p.Tick(ctx, now)
			}
		}
	}
}

func (srv *Server) handleEvent(ctx context.Context, ev event) {
	switch ev.kind {
	case evConnect:
		srv.nextID++
		sess := newSession(srv.nextID, ev.conn)
		srv.sessions[sess.id] = sess
		srv.stats.CurrentConnections.Add(1)
		srv.stats.TotalConnections.Add(1)
		log.Printf("[ARBITER] Connection from %s (session %d)", sess.remoteIP, sess.id)
		go srv.readLoop(ctx, sess)

	case evData:
		sess, ok := srv.sessions[ev.sess.id]
		if !ok {
			return // already dropped
		}
		if err := sess.buf.Append(ev.data); err != nil {
			if errors.Is(err, protocol.ErrNonASCII) {
				log.Printf("[ARBITER] Session %d sent non-ASCII data, dropping", sess.id)
			}
			srv.drop(ctx, sess)
			return
		}
		srv.drain(ctx, sess)

	case evDisconnect:
		if sess, ok := srv.sessions[ev.sess.id]; ok {
			log.Printf("[ARBITER] Session %d disconnected", sess.id)
			srv.drop(ctx, sess)
		}
	}
}

// drain processes every complete buffered message. Protocol errors go back
// as ERR lines and the connection stays open; only transport failures kill
// the session.
func (srv *Server) drain(ctx context.Context, sess *Session) {
	for {
		msg, ok := sess.buf.Next()
		if !ok {
			break
		}
		if err := srv.dispatcher.Dispatch(ctx, sess, msg); err != nil {
			log.Printf("[ARBITER] Session %d error: %v", sess.id, err)
			sess.Send("ERR " + err.Error())
		}
		if sess.dead {
			srv.drop(ctx, sess)
			return
		}
	}
}

// drop closes a session, forfeits any active game and leaves every pool
func (srv *Server) drop(ctx context.Context, sess *Session) {
	if _, ok := srv.sessions[sess.id]; !ok {
		return
	}
	delete(srv.sessions, sess.id)
	sess.dead = true
	sess.conn.Close()
	srv.stats.CurrentConnections.Add(-1)
	for _, p := range srv.pools {
		p.Remove(ctx, sess)
	}
}
