package game

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kalah board layout: indices 0-5 are player A's pits, 6 is A's store,
// 7-12 are B's pits, 13 is B's store. Sowing runs counter-clockwise and
// skips the opponent's store. The seed total is invariant at 36.
const (
	boardSlots  = 14
	aStore      = 6
	bStore      = 13
	seedsPerPit = 3
)

// kalahSeat is one player's view of the board plus their turn clock.
// turnStarted is only meaningful while waiting is true.
type kalahSeat struct {
	player      Player
	low, high   int // pit range [low, high), excludes the store
	store       int
	waiting     bool
	turnStarted time.Time
}

// Kalah referees a single match. A always opens.
type Kalah struct {
	match
	board   [boardSlots]int
	seats   [2]*kalahSeat
	timeout time.Duration
}

// NewKalah pairs a and b, deals the board and prompts a for the opening move
func NewKalah(a, b Player, kind string, turnTimeout time.Duration) Game {
	k := &Kalah{
		match:   newMatch(a, b, kind),
		timeout: turnTimeout,
	}
	for i := range k.board {
		k.board[i] = seedsPerPit
	}
	k.board[aStore] = 0
	k.board[bStore] = 0
	k.seats[0] = &kalahSeat{player: a, low: 0, high: aStore, store: aStore}
	k.seats[1] = &kalahSeat{player: b, low: aStore + 1, high: bStore, store: bStore}
	k.promptTurn(k.seats[0])
	return k
}

func (k *Kalah) seat(p Player) *kalahSeat {
	if p.ID() == k.a.ID() {
		return k.seats[0]
	}
	return k.seats[1]
}

func (k *Kalah) oppositeSeat(s *kalahSeat) *kalahSeat {
	if s == k.seats[0] {
		return k.seats[1]
	}
	return k.seats[0]
}

// toAbsolute maps a board index from s's frame of reference onto the
// absolute board. A's frame is the absolute board; B's is rotated by 7.
// The mapping is an involution, so it also renders absolute indices into
// the seat's frame.
func (k *Kalah) toAbsolute(s *kalahSeat, pos int) int {
	if s == k.seats[0] {
		return pos
	}
	return (pos + 7) % boardSlots
}

func (k *Kalah) ownsPit(s *kalahSeat, pos int) bool {
	return pos >= s.low && pos < s.high
}

// HandleData processes DAT <kind> MOV <pos> from p. Any malformed or
// illegal move is returned as an error and costs p the game.
func (k *Kalah) HandleData(p Player, tok []string) error {
	if len(tok) != 4 || tok[2] != "MOV" {
		return fmt.Errorf("Malformed command")
	}
	pos, err := strconv.Atoi(tok[3])
	if err != nil {
		return fmt.Errorf("Malformed command")
	}

	s := k.seat(p)
	if !s.waiting {
		return fmt.Errorf("Not your turn")
	}
	if pos < 0 || pos >= boardSlots {
		return fmt.Errorf("OOB index")
	}
	abs := k.toAbsolute(s, pos)
	if abs == aStore || abs == bStore {
		return fmt.Errorf("OOB index")
	}
	if !k.ownsPit(s, abs) {
		return fmt.Errorf("Must move own seeds")
	}
	if k.board[abs] == 0 {
		return fmt.Errorf("Must move non-zero number of seeds")
	}

	s.waiting = false
	opp := k.oppositeSeat(s)
	extraTurn := k.sow(s, abs)

	// Move first, prompt second: the opponent must see the move before any BMP
	opp.player.Send(fmt.Sprintf("DAT %s MOV %d", k.kind, k.toAbsolute(opp, abs)))
	if k.checkTermination() {
		k.finished = true
		k.result = k.leader()
	} else if extraTurn {
		k.promptTurn(s)
	} else {
		k.promptTurn(opp)
	}

	k.a.Send(k.renderBoard(k.seats[0]))
	k.b.Send(k.renderBoard(k.seats[1]))
	return nil
}

// sow empties the pit at abs and distributes its seeds counter-clockwise,
// skipping the opponent's store. It applies the capture rule and reports
// whether the mover earned an extra turn.
func (k *Kalah) sow(s *kalahSeat, abs int) bool {
	skip := k.oppositeSeat(s).store
	seeds := k.board[abs]
	k.board[abs] = 0

	pos := abs
	for i := 0; i < seeds; i++ {
		pos = (pos + 1) % boardSlots
		if pos == skip {
			pos = (pos + 1) % boardSlots
		}
		k.board[pos]++
	}

	if pos == s.store {
		return true
	}
	opp := 12 - pos // the facing pit in the pit ring
	if k.ownsPit(s, pos) && k.board[pos] == 1 && k.board[opp] > 0 {
		k.board[s.store] += k.board[opp] + 1
		k.board[pos] = 0
		k.board[opp] = 0
	}
	return false
}

// pitSeeds sums the seeds still in s's pits, store excluded
func (k *Kalah) pitSeeds(s *kalahSeat) int {
	total := 0
	for i := s.low; i < s.high; i++ {
		total += k.board[i]
	}
	return total
}

// checkTermination reports whether either side has run out of pit seeds
func (k *Kalah) checkTermination() bool {
	return k.pitSeeds(k.seats[0]) == 0 || k.pitSeeds(k.seats[1]) == 0
}

// leader returns the player with the higher pits-plus-store total, nil on a tie
func (k *Kalah) leader() Player {
	aTotal := k.pitSeeds(k.seats[0]) + k.board[aStore]
	bTotal := k.pitSeeds(k.seats[1]) + k.board[bStore]
	switch {
	case aTotal > bTotal:
		return k.a
	case bTotal > aTotal:
		return k.b
	}
	return nil
}

// promptTurn tells s it is their move and starts their turn clock
func (k *Kalah) promptTurn(s *kalahSeat) {
	s.player.Send(fmt.Sprintf("DAT %s BMP", k.kind))
	s.waiting = true
	s.turnStarted = time.Now()
}

// Tick fires turn timeouts. If both clocks are somehow live, the older loses.
func (k *Kalah) Tick(now time.Time) {
	if k.finished {
		return
	}
	var timedOut *kalahSeat
	sa, sb := k.seats[0], k.seats[1]
	if sa.waiting && now.Sub(sa.turnStarted) > k.timeout {
		timedOut = sa
	}
	if sb.waiting && now.Sub(sb.turnStarted) > k.timeout {
		if timedOut == nil || sb.turnStarted.Before(sa.turnStarted) {
			timedOut = sb
		}
	}
	if timedOut != nil {
		timedOut.waiting = false
		k.win(k.oppositeSeat(timedOut).player)
	}
}

// renderBoard draws the board from s's perspective: the opponent's pits
// reversed on top, the stores in the middle (own store on the right), own
// pits on the bottom.
func (k *Kalah) renderBoard(s *kalahSeat) string {
	opp := k.oppositeSeat(s)

	top := make([]string, 0, opp.high-opp.low)
	for i := opp.high - 1; i >= opp.low; i-- {
		top = append(top, strconv.Itoa(k.board[i]))
	}
	bot := make([]string, 0, s.high-s.low)
	for i := s.low; i < s.high; i++ {
		bot = append(bot, strconv.Itoa(k.board[i]))
	}

	topStr := strings.Join(top, " ")
	botStr := strings.Join(bot, " ")
	return fmt.Sprintf(" %s\n%d%s%d\n %s\n",
		topStr, k.board[opp.store], strings.Repeat(" ", len(topStr)), k.board[s.store], botStr)
}
