package game

import (
	"fmt"
	"log"
	"time"
)

// Player is one connected participant. Implemented by the arbiter's session
// type; the game layer only ever needs a stable id, a display name and a way
// to push protocol lines.
type Player interface {
	ID() uint64
	Name() string
	// Send writes one protocol message to the player. It reports false on
	// transport failure, which the caller may ignore: a dead connection is
	// reaped by the event loop.
	Send(msg string) bool
}

// Game is one active two-player match refereed by the arbiter.
type Game interface {
	// HandleData processes an in-game DAT command from p. tok is the full
	// token list including the DAT verb and game kind. A returned error is
	// a rule violation: the pool forfeits the game against p and the error
	// text goes back to p as an ERR line.
	HandleData(p Player, tok []string) error

	// Tick advances turn deadlines. A timed-out side loses.
	Tick(now time.Time)

	// Forfeit ends the game with p as the loser (disconnect or violation).
	Forfeit(p Player)

	Finished() bool
	// Result returns the winner, or nil for a draw. Only meaningful once
	// Finished reports true.
	Result() Player
	Players() (a, b Player)
	Opposite(p Player) Player

	// sendResults emits the DAT and FIN result lines to both players
	sendResults()
}

// Factory constructs a game for a freshly paired couple. The pool is generic
// over this so future game kinds only need a rules engine.
type Factory func(a, b Player, kind string, turnTimeout time.Duration) Game

// match carries the bookkeeping shared by every game kind: the two seats,
// completion state and result delivery.
type match struct {
	a, b     Player
	kind     string
	finished bool
	result   Player // nil = draw
}

func newMatch(a, b Player, kind string) match {
	m := match{a: a, b: b, kind: kind}
	m.a.Send(fmt.Sprintf("SRT %s %s", kind, b.Name()))
	m.b.Send(fmt.Sprintf("SRT %s %s", kind, a.Name()))
	log.Printf("[POOL] Game made %s vs %s (%s)", a.Name(), b.Name(), kind)
	return m
}

func (m *match) Finished() bool            { return m.finished }
func (m *match) Result() Player            { return m.result }
func (m *match) Players() (Player, Player) { return m.a, m.b }

func (m *match) Opposite(p Player) Player {
	if p.ID() == m.a.ID() {
		return m.b
	}
	return m.a
}

// win finishes the game in p's favour
func (m *match) win(p Player) {
	m.finished = true
	m.result = p
}

func (m *match) Forfeit(p Player) {
	if m.finished {
		return
	}
	m.win(m.Opposite(p))
}

// sendResults emits the per-game DAT result lines followed by the
// session-level FIN terminators. Nothing else is sent for this game
// afterwards.
func (m *match) sendResults() {
	gPrefix := fmt.Sprintf("DAT %s ", m.kind)
	sPrefix := fmt.Sprintf("FIN %s ", m.kind)
	if m.result != nil {
		winner := m.result
		loser := m.Opposite(m.result)
		winner.Send(gPrefix + "WIN")
		loser.Send(gPrefix + "LSE")
		winner.Send(sPrefix + "WIN")
		loser.Send(sPrefix + "LSE")
		log.Printf("[POOL] Results for %s: %s won", m.kind, winner.Name())
		return
	}
	m.a.Send(gPrefix + "DRW")
	m.b.Send(gPrefix + "DRW")
	m.a.Send(sPrefix + "DRW")
	m.b.Send(sPrefix + "DRW")
	log.Printf("[POOL] Results for %s: draw", m.kind)
}
