package server

import (
	"log"
	"net"
	"time"

	"github.com/kalaharena/backend/internal/protocol"
)

const writeTimeout = 5 * time.Second

// Session is the per-connection state: the socket, the inbound line buffer
// and the authenticated identity. All fields are owned by the arbiter loop.
type Session struct {
	id       uint64
	conn     net.Conn
	remoteIP string
	name     string // empty until authenticated, immutable afterwards
	buf      protocol.Buffer
	dead     bool
}

func newSession(id uint64, conn net.Conn) *Session {
	ip, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		ip = conn.RemoteAddr().String()
	}
	return &Session{id: id, conn: conn, remoteIP: ip}
}

// ID returns the stable session id used as the map key everywhere;
// sessions are never keyed by socket.
func (s *Session) ID() uint64 { return s.id }

func (s *Session) Name() string { return s.name }

func (s *Session) RemoteIP() string { return s.remoteIP }

func (s *Session) Authed() bool { return s.name != "" }

// Send writes one protocol message followed by a newline. A write failure
// marks the session dead; the loop closes it after the current message.
func (s *Session) Send(msg string) bool {
	if s.dead {
		return false
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := s.conn.Write([]byte(msg + "\n")); err != nil {
		log.Printf("[ARBITER] Could not send data to session %d (%s): %v", s.id, s.remoteIP, err)
		s.dead = true
		return false
	}
	return true
}
