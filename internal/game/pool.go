package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kalaharena/backend/internal/events"
	"github.com/kalaharena/backend/internal/models"
	"github.com/kalaharena/backend/internal/store"
)

// ScoreStore is the slice of the user store the pool needs for results
// and scoreboards. Implemented by the Postgres store.
type ScoreStore interface {
	EnsureScores(ctx context.Context, usernames []string, game string) error
	IncrementScore(ctx context.Context, username, game, field string) error
	Scoreboard(ctx context.Context, game string) ([]models.GameScore, error)
	UserScore(ctx context.Context, username, game string) (models.GameScore, error)
}

// Protocol errors surfaced to clients as ERR lines
var (
	ErrAlreadyQueued = errors.New("Already lfg")
	ErrNotInGame     = errors.New("Client not in game")
)

// Pool runs matchmaking and refereeing for one game kind: a waiting set,
// the active game registry and the completion reaper that settles scores.
type Pool struct {
	kind        string
	factory     Factory
	store       ScoreStore
	turnTimeout time.Duration

	waiting    map[uint64]Player
	games      map[Game]struct{}
	playerGame map[uint64]Game
	rng        *rand.Rand

	// active and finished are the only pool state read off the loop
	// goroutine (status API)
	active   atomic.Int64
	finished atomic.Int64
}

// NewPool creates a pool for kind, constructing games with factory
func NewPool(kind string, factory Factory, st ScoreStore, turnTimeout time.Duration) *Pool {
	return &Pool{
		kind:        kind,
		factory:     factory,
		store:       st,
		turnTimeout: turnTimeout,
		waiting:     make(map[uint64]Player),
		games:       make(map[Game]struct{}),
		playerGame:  make(map[uint64]Game),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *Pool) Kind() string { return p.kind }

// ActiveGames reports how many games are currently being refereed
func (p *Pool) ActiveGames() int64 { return p.active.Load() }

// FinishedGames reports how many games this pool has reaped since startup
func (p *Pool) FinishedGames() int64 { return p.finished.Load() }

// HasPlayer reports whether pl is waiting or in an active game
func (p *Pool) HasPlayer(pl Player) bool {
	if _, ok := p.waiting[pl.ID()]; ok {
		return true
	}
	_, ok := p.playerGame[pl.ID()]
	return ok
}

// Enqueue puts pl into matchmaking and pairs immediately when two or more
// players are waiting.
func (p *Pool) Enqueue(ctx context.Context, pl Player) error {
	if p.HasPlayer(pl) {
		return ErrAlreadyQueued
	}
	p.waiting[pl.ID()] = pl
	log.Printf("[POOL] %s: %s is looking for a game (waiting=%d)", p.kind, pl.Name(), len(p.waiting))
	p.pair(ctx)
	return nil
}

// pair draws two distinct waiting players uniformly at random and starts
// their game.
func (p *Pool) pair(ctx context.Context) {
	if len(p.waiting) < 2 {
		return
	}

	ids := make([]uint64, 0, len(p.waiting))
	for id := range p.waiting {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	i := p.rng.Intn(len(ids))
	j := p.rng.Intn(len(ids) - 1)
	if j >= i {
		j++
	}

	a, b := p.waiting[ids[i]], p.waiting[ids[j]]
	delete(p.waiting, a.ID())
	delete(p.waiting, b.ID())

	g := p.factory(a, b, p.kind, p.turnTimeout)
	p.games[g] = struct{}{}
	p.playerGame[a.ID()] = g
	p.playerGame[b.ID()] = g
	p.active.Add(1)

	events.PublishMatchStarted(ctx, p.kind, a.Name(), b.Name())
}

// HandleData routes an in-game DAT command to pl's game. A rule violation
// forfeits the game against pl; the error still goes back as an ERR line.
func (p *Pool) HandleData(ctx context.Context, pl Player, tok []string) error {
	g, ok := p.playerGame[pl.ID()]
	if !ok {
		return ErrNotInGame
	}
	err := g.HandleData(pl, tok)
	if err != nil {
		g.Forfeit(pl)
	}
	p.reap(ctx)
	return err
}

// Remove handles a disconnect: any active game is forfeited in the
// opponent's favour and pl is dropped from the waiting set.
func (p *Pool) Remove(ctx context.Context, pl Player) {
	if g, ok := p.playerGame[pl.ID()]; ok {
		log.Printf("[POOL] %s: removing %s from active game", p.kind, pl.Name())
		g.Forfeit(pl)
		delete(p.playerGame, pl.ID())
	}
	delete(p.waiting, pl.ID())
	p.reap(ctx)
}

// Tick advances every active game's turn clock and reaps finished games
func (p *Pool) Tick(ctx context.Context, now time.Time) {
	for g := range p.games {
		g.Tick(now)
	}
	p.reap(ctx)
}

// reap settles every finished game: score rows are ensured and incremented
// atomically per user, results are emitted, and the game is dropped.
// Finished games are collected first so the registry is never mutated
// mid-iteration.
func (p *Pool) reap(ctx context.Context) {
	var done []Game
	for g := range p.games {
		if g.Finished() {
			done = append(done, g)
		}
	}
	for _, g := range done {
		log.Printf("[POOL] Reaping finished %s game", p.kind)
		p.settle(ctx, g)
		a, b := g.Players()
		delete(p.playerGame, a.ID())
		delete(p.playerGame, b.ID())
		delete(p.games, g)
		p.active.Add(-1)
		p.finished.Add(1)
	}
}

// settle applies the score updates for one finished game. Each update is a
// single-row increment, so the four writes commute regardless of order.
func (p *Pool) settle(ctx context.Context, g Game) {
	a, b := g.Players()
	names := []string{a.Name(), b.Name()}
	if err := p.store.EnsureScores(ctx, names, p.kind); err != nil {
		log.Printf("[POOL] Failed to ensure score rows for %v: %v", names, err)
	}

	winnerName := ""
	if winner := g.Result(); winner != nil {
		loser := g.Opposite(winner)
		winnerName = winner.Name()
		if err := p.store.IncrementScore(ctx, winner.Name(), p.kind, store.FieldWins); err != nil {
			log.Printf("[POOL] Failed to credit win to %s: %v", winner.Name(), err)
		}
		if err := p.store.IncrementScore(ctx, loser.Name(), p.kind, store.FieldLosses); err != nil {
			log.Printf("[POOL] Failed to debit loss to %s: %v", loser.Name(), err)
		}
	} else {
		for _, name := range names {
			if err := p.store.IncrementScore(ctx, name, p.kind, store.FieldDraws); err != nil {
				log.Printf("[POOL] Failed to credit draw to %s: %v", name, err)
			}
		}
	}

	g.sendResults()
	events.PublishMatchFinished(ctx, p.kind, a.Name(), b.Name(), winnerName)
}

// SendScoreboard writes the full standings table to pl, terminated by the
// literal BRD FIN line. An empty board sends only the terminator.
func (p *Pool) SendScoreboard(ctx context.Context, pl Player) error {
	rows, err := p.store.Scoreboard(ctx, p.kind)
	if err != nil {
		log.Printf("[POOL] Failed to load scoreboard for %s: %v", p.kind, err)
		return fmt.Errorf("Scoreboard unavailable")
	}
	if len(rows) == 0 {
		pl.Send("BRD FIN")
		return nil
	}

	// Descending on (wins, draws, losses, username)
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.Draws != b.Draws {
			return a.Draws > b.Draws
		}
		if a.Losses != b.Losses {
			return a.Losses > b.Losses
		}
		return a.Username > b.Username
	})

	align := 4
	for _, r := range rows {
		if len(r.Username) > align {
			align = len(r.Username)
		}
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%*s %5d %5d %5d", align, r.Username, r.Wins, r.Draws, r.Losses))
	}

	pl.Send(fmt.Sprintf("%*s   %3s   %3s   %3s", align, "NAME", "WIN", "DRW", "LSE"))
	pl.Send(strings.Join(lines, "\n"))
	pl.Send("BRD FIN")
	return nil
}

// SendStats writes pl's own record to them, zeroed when they have none
func (p *Pool) SendStats(ctx context.Context, pl Player) error {
	row, err := p.store.UserScore(ctx, pl.Name(), p.kind)
	if err != nil {
		log.Printf("[POOL] Failed to load stats for %s: %v", pl.Name(), err)
		return fmt.Errorf("Stats unavailable")
	}
	pl.Send(fmt.Sprintf("%d wins, %d draws, %d losses", row.Wins, row.Draws, row.Losses))
	return nil
}
