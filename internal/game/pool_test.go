package game

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kalaharena/backend/internal/models"
)

// fakeScores records every store mutation for assertions
type fakeScores struct {
	ensured map[string]bool // "name/game"
	incs    []string        // "name/game/field"
	rows    []models.GameScore
	failAll bool
}

func newFakeScores() *fakeScores {
	return &fakeScores{ensured: make(map[string]bool)}
}

func (f *fakeScores) EnsureScores(ctx context.Context, usernames []string, game string) error {
	if f.failAll {
		return fmt.Errorf("store down")
	}
	for _, u := range usernames {
		f.ensured[u+"/"+game] = true
	}
	return nil
}

func (f *fakeScores) IncrementScore(ctx context.Context, username, game, field string) error {
	if f.failAll {
		return fmt.Errorf("store down")
	}
	f.incs = append(f.incs, username+"/"+game+"/"+field)
	return nil
}

func (f *fakeScores) Scoreboard(ctx context.Context, game string) ([]models.GameScore, error) {
	if f.failAll {
		return nil, fmt.Errorf("store down")
	}
	return f.rows, nil
}

func (f *fakeScores) UserScore(ctx context.Context, username, game string) (models.GameScore, error) {
	for _, r := range f.rows {
		if r.Username == username && r.Game == game {
			return r, nil
		}
	}
	return models.GameScore{Username: username, Game: game}, nil
}

func (f *fakeScores) hasInc(s string) bool {
	for _, i := range f.incs {
		if i == s {
			return true
		}
	}
	return false
}

func newTestPool(st ScoreStore) *Pool {
	return NewPool("KLH", NewKalah, st, 10*time.Second)
}

func pairUp(t *testing.T, p *Pool) (*fakePlayer, *fakePlayer) {
	t.Helper()
	ctx := context.Background()
	a := &fakePlayer{id: 1, name: "alice"}
	b := &fakePlayer{id: 2, name: "bob"}
	if err := p.Enqueue(ctx, a); err != nil {
		t.Fatalf("Enqueue a: %v", err)
	}
	if err := p.Enqueue(ctx, b); err != nil {
		t.Fatalf("Enqueue b: %v", err)
	}
	return a, b
}

func TestPairingStartsGame(t *testing.T) {
	st := newFakeScores()
	p := newTestPool(st)
	if p.Kind() != "KLH" {
		t.Fatalf("Pool kind wrong: %q", p.Kind())
	}
	a, b := pairUp(t, p)

	if !a.received("SRT KLH bob") || !b.received("SRT KLH alice") {
		t.Errorf("Both players should get SRT: a=%v b=%v", a.msgs, b.msgs)
	}
	if !p.HasPlayer(a) || !p.HasPlayer(b) {
		t.Errorf("Paired players should still be tracked by the pool")
	}
	if len(p.waiting) != 0 {
		t.Errorf("Waiting set should be drained after pairing")
	}
}

func TestEnqueueTwiceFails(t *testing.T) {
	p := newTestPool(newFakeScores())
	a := &fakePlayer{id: 1, name: "alice"}
	ctx := context.Background()

	if err := p.Enqueue(ctx, a); err != nil {
		t.Fatalf("First enqueue: %v", err)
	}
	if err := p.Enqueue(ctx, a); err != ErrAlreadyQueued {
		t.Errorf("Expected Already lfg, got %v", err)
	}
}

func TestEnqueueWhileInGameFails(t *testing.T) {
	p := newTestPool(newFakeScores())
	a, _ := pairUp(t, p)

	if err := p.Enqueue(context.Background(), a); err != ErrAlreadyQueued {
		t.Errorf("A player in a game must not re-enter matchmaking, got %v", err)
	}
}

func TestHandleDataOutsideGame(t *testing.T) {
	p := newTestPool(newFakeScores())
	a := &fakePlayer{id: 1, name: "alice"}

	err := p.HandleData(context.Background(), a, []string{"DAT", "KLH", "MOV", "0"})
	if err != ErrNotInGame {
		t.Errorf("Expected Client not in game, got %v", err)
	}
}

func TestDisconnectForfeitsGame(t *testing.T) {
	st := newFakeScores()
	p := newTestPool(st)
	a, b := pairUp(t, p)

	p.Remove(context.Background(), a)

	if !b.received("DAT KLH WIN") || !b.received("FIN KLH WIN") {
		t.Errorf("Opponent should win on disconnect: %v", b.msgs)
	}
	if !st.ensured["alice/KLH"] || !st.ensured["bob/KLH"] {
		t.Errorf("Score rows should be ensured for both players: %v", st.ensured)
	}
	if !st.hasInc("bob/KLH/wins") || !st.hasInc("alice/KLH/losses") {
		t.Errorf("Expected bob win + alice loss, got %v", st.incs)
	}
	if len(st.incs) != 2 {
		t.Errorf("Exactly two score updates per game, got %v", st.incs)
	}
	if p.HasPlayer(a) || p.HasPlayer(b) {
		t.Errorf("Reaped game should release both players")
	}
}

func TestIllegalMoveForfeits(t *testing.T) {
	st := newFakeScores()
	p := newTestPool(st)
	a, b := pairUp(t, p)
	ctx := context.Background()

	// Seat order is random: the prompted player is the mover
	mover, other := b, a
	if a.received("DAT KLH BMP") {
		mover, other = a, b
	}

	err := p.HandleData(ctx, other, []string{"DAT", "KLH", "MOV", "0"})
	if err == nil || err.Error() != "Not your turn" {
		t.Fatalf("Expected Not your turn, got %v", err)
	}

	if !mover.received("DAT KLH WIN") || !mover.received("FIN KLH WIN") {
		t.Errorf("The mover should win the forfeit: %v", mover.msgs)
	}
	if !other.received("DAT KLH LSE") || !other.received("FIN KLH LSE") {
		t.Errorf("The violator should lose: %v", other.msgs)
	}
	if !st.hasInc(mover.name+"/KLH/wins") || !st.hasInc(other.name+"/KLH/losses") {
		t.Errorf("Score updates wrong: %v", st.incs)
	}
}

func TestTimeoutTickForfeits(t *testing.T) {
	st := newFakeScores()
	p := newTestPool(st)
	a, b := pairUp(t, p)

	p.Tick(context.Background(), time.Now().Add(11*time.Second))

	winOrLose := func(pl *fakePlayer) string {
		switch {
		case pl.received("FIN KLH WIN"):
			return "win"
		case pl.received("FIN KLH LSE"):
			return "lose"
		}
		return "none"
	}
	ra, rb := winOrLose(a), winOrLose(b)
	if !(ra == "win" && rb == "lose") && !(ra == "lose" && rb == "win") {
		t.Errorf("Opening-turn timeout should decide the game: a=%s b=%s", ra, rb)
	}
	if len(st.incs) != 2 {
		t.Errorf("Exactly two score updates per game, got %v", st.incs)
	}
	if p.FinishedGames() != 1 {
		t.Errorf("Finished counter should be 1, got %d", p.FinishedGames())
	}
	if p.ActiveGames() != 0 {
		t.Errorf("Active counter should be back to 0, got %d", p.ActiveGames())
	}
}

// stubGame lets the pool be tested against a game that ends in a draw
type stubGame struct {
	match
}

func (g *stubGame) HandleData(p Player, tok []string) error { return nil }
func (g *stubGame) Tick(now time.Time)                      {}

func TestDrawSettlement(t *testing.T) {
	st := newFakeScores()
	var g *stubGame
	factory := func(a, b Player, kind string, timeout time.Duration) Game {
		g = &stubGame{match: newMatch(a, b, kind)}
		return g
	}
	p := NewPool("KLH", factory, st, 10*time.Second)
	a, b := pairUp(t, p)

	g.finished = true // result stays nil: a draw
	p.Tick(context.Background(), time.Now())

	for _, pl := range []*fakePlayer{a, b} {
		if !pl.received("DAT KLH DRW") || !pl.received("FIN KLH DRW") {
			t.Errorf("%s should see the draw: %v", pl.name, pl.msgs)
		}
		if !st.hasInc(pl.name + "/KLH/draws") {
			t.Errorf("%s should get a draw increment: %v", pl.name, st.incs)
		}
	}
	if len(st.incs) != 2 {
		t.Errorf("Exactly two score updates per game, got %v", st.incs)
	}
}

func TestNoMessagesAfterFin(t *testing.T) {
	st := newFakeScores()
	p := newTestPool(st)
	a, b := pairUp(t, p)
	ctx := context.Background()

	p.Remove(ctx, a)
	seen := len(b.msgs)

	// Ticks after the reap must stay silent for this game
	p.Tick(ctx, time.Now().Add(time.Minute))
	p.Tick(ctx, time.Now().Add(2*time.Minute))
	if len(b.msgs) != seen {
		t.Errorf("No DAT/SRT may follow FIN: %v", b.msgs[seen:])
	}
}

func TestScoreboardRendering(t *testing.T) {
	st := newFakeScores()
	st.rows = []models.GameScore{
		{Username: "alice", Game: "KLH", Wins: 2, Draws: 1, Losses: 0},
		{Username: "candice", Game: "KLH", Wins: 3, Draws: 0, Losses: 2},
		{Username: "bob", Game: "KLH", Wins: 2, Draws: 1, Losses: 0},
	}
	p := newTestPool(st)
	viewer := &fakePlayer{id: 9, name: "viewer"}

	if err := p.SendScoreboard(context.Background(), viewer); err != nil {
		t.Fatalf("SendScoreboard: %v", err)
	}

	want := []string{
		"   NAME   WIN   DRW   LSE",
		"candice     3     0     2\n    bob     2     1     0\n  alice     2     1     0",
		"BRD FIN",
	}
	if len(viewer.msgs) != len(want) {
		t.Fatalf("Expected %d messages, got %v", len(want), viewer.msgs)
	}
	for i, w := range want {
		if viewer.msgs[i] != w {
			t.Errorf("Message %d:\n%q\nwant:\n%q", i, viewer.msgs[i], w)
		}
	}
}

func TestScoreboardEmpty(t *testing.T) {
	p := newTestPool(newFakeScores())
	viewer := &fakePlayer{id: 9, name: "viewer"}

	if err := p.SendScoreboard(context.Background(), viewer); err != nil {
		t.Fatalf("SendScoreboard: %v", err)
	}
	if len(viewer.msgs) != 1 || viewer.msgs[0] != "BRD FIN" {
		t.Errorf("Empty scoreboard should send only BRD FIN: %v", viewer.msgs)
	}
}

func TestSendStats(t *testing.T) {
	st := newFakeScores()
	st.rows = []models.GameScore{{Username: "alice", Game: "KLH", Wins: 4, Draws: 2, Losses: 1}}
	p := newTestPool(st)

	alice := &fakePlayer{id: 1, name: "alice"}
	if err := p.SendStats(context.Background(), alice); err != nil {
		t.Fatalf("SendStats: %v", err)
	}
	if !alice.received("4 wins, 2 draws, 1 losses") {
		t.Errorf("Stats line wrong: %v", alice.msgs)
	}

	nobody := &fakePlayer{id: 2, name: "nobody"}
	p.SendStats(context.Background(), nobody)
	if !nobody.received("0 wins, 0 draws, 0 losses") {
		t.Errorf("Missing record should read as zeroes: %v", nobody.msgs)
	}
}
