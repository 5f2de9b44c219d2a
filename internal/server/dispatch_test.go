package server

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kalaharena/backend/internal/game"
	"github.com/kalaharena/backend/internal/models"
)

// quietScores satisfies game.ScoreStore for dispatcher tests
type quietScores struct{}

func (quietScores) EnsureScores(ctx context.Context, usernames []string, g string) error { return nil }
func (quietScores) IncrementScore(ctx context.Context, username, g, field string) error  { return nil }
func (quietScores) Scoreboard(ctx context.Context, g string) ([]models.GameScore, error) {
	return nil, nil
}
func (quietScores) UserScore(ctx context.Context, username, g string) (models.GameScore, error) {
	return models.GameScore{}, nil
}

func newTestDispatcher() *Dispatcher {
	pools := map[string]*game.Pool{
		"KLH": game.NewPool("KLH", game.NewKalah, quietScores{}, 10*time.Second),
	}
	return NewDispatcher(NewAuthManager(newFakeUsers()), pools)
}

func dispatchErr(t *testing.T, d *Dispatcher, s *Session, msg string) string {
	t.Helper()
	err := d.Dispatch(context.Background(), s, msg)
	if err == nil {
		t.Fatalf("Dispatch(%q) should have failed", msg)
	}
	return err.Error()
}

func TestDispatchEmptyCommand(t *testing.T) {
	d := newTestDispatcher()
	if got := dispatchErr(t, d, newTestSession(1, "127.0.0.1"), ""); got != "Empty command" {
		t.Errorf("Expected Empty command, got %q", got)
	}
}

func TestDispatchUnknownVerb(t *testing.T) {
	d := newTestDispatcher()
	if got := dispatchErr(t, d, newTestSession(1, "127.0.0.1"), "HELLO world"); got != "Unrecognised command" {
		t.Errorf("Expected Unrecognised command, got %q", got)
	}
}

func TestDispatchArity(t *testing.T) {
	d := newTestDispatcher()
	s := newTestSession(1, "127.0.0.1")
	for _, msg := range []string{"REG alice", "REG alice pw extra", "BRD"} {
		if got := dispatchErr(t, d, s, msg); got != "Wrong number of arguments for command" {
			t.Errorf("%q: expected arity error, got %q", msg, got)
		}
	}
}

func TestDispatchAuthRequired(t *testing.T) {
	d := newTestDispatcher()
	s := newTestSession(1, "127.0.0.1")
	for _, msg := range []string{"LFG KLH", "DAT KLH MOV 0", "IFO KLH"} {
		if got := dispatchErr(t, d, s, msg); got != "Client not authed" {
			t.Errorf("%q: expected Client not authed, got %q", msg, got)
		}
	}
	// BRD is open to anonymous clients
	if err := d.Dispatch(context.Background(), s, "BRD KLH"); err != nil {
		t.Errorf("Anonymous BRD should work, got %v", err)
	}
}

func TestDispatchUnknownGameKind(t *testing.T) {
	d := newTestDispatcher()
	ctx := context.Background()
	s := newTestSession(1, "127.0.0.1")
	if err := d.Dispatch(ctx, s, "REG alice pw"); err != nil {
		t.Fatalf("REG failed: %v", err)
	}
	if err := d.Dispatch(ctx, s, "ATH alice pw"); err != nil {
		t.Fatalf("ATH failed: %v", err)
	}
	for _, msg := range []string{"LFG CHESS", "BRD CHESS", "IFO CHESS", "DAT CHESS MOV 0"} {
		if got := dispatchErr(t, d, s, msg); got != "Unrecognised game type" {
			t.Errorf("%q: expected Unrecognised game type, got %q", msg, got)
		}
	}
}

func TestDispatchMatchmakingFlow(t *testing.T) {
	d := newTestDispatcher()
	ctx := context.Background()

	s1 := newTestSession(1, "127.0.0.1")
	s2 := newTestSession(2, "127.0.0.1")
	for i, s := range []*Session{s1, s2} {
		name := []string{"alice", "bob"}[i]
		if err := d.Dispatch(ctx, s, "REG "+name+" pw"); err != nil {
			t.Fatalf("REG %s: %v", name, err)
		}
		if err := d.Dispatch(ctx, s, "ATH "+name+" pw"); err != nil {
			t.Fatalf("ATH %s: %v", name, err)
		}
		if err := d.Dispatch(ctx, s, "LFG KLH"); err != nil {
			t.Fatalf("LFG %s: %v", name, err)
		}
	}

	if !hasLine(s1, "SRT KLH bob") || !hasLine(s2, "SRT KLH alice") {
		t.Errorf("Both sessions should get SRT:\ns1=%v\ns2=%v", sessionLines(s1), sessionLines(s2))
	}
	prompted := 0
	for _, s := range []*Session{s1, s2} {
		if hasLine(s, "DAT KLH BMP") {
			prompted++
		}
	}
	if prompted != 1 {
		t.Errorf("Exactly one player should be prompted, got %d", prompted)
	}

	// Re-entering matchmaking mid-game is rejected
	if got := dispatchErr(t, d, s1, "LFG KLH"); got != "Already lfg" {
		t.Errorf("Expected Already lfg, got %q", got)
	}
}

func hasLine(s *Session, line string) bool {
	for _, l := range sessionLines(s) {
		if strings.TrimSpace(l) == line {
			return true
		}
	}
	return false
}
