package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalaharena/backend/internal/game"
)

// command is one row of the protocol table: expected argument count after
// the verb (arityAtLeast makes it a minimum), whether the session must be
// authenticated, and the handler.
type command struct {
	arity        int
	arityAtLeast bool
	needsAuth    bool
	handle       func(d *Dispatcher, ctx context.Context, s *Session, tok []string) error
}

// Dispatcher maps protocol verbs onto the auth manager and the game pools.
// It owns no state of its own; failures are returned for the loop to send
// as ERR lines without dropping the connection.
type Dispatcher struct {
	auth  *AuthManager
	pools map[string]*game.Pool
}

func NewDispatcher(auth *AuthManager, pools map[string]*game.Pool) *Dispatcher {
	return &Dispatcher{auth: auth, pools: pools}
}

var commands = map[string]command{
	"REG": {arity: 2, handle: (*Dispatcher).handleRegister},
	"ATH": {arity: 2, handle: (*Dispatcher).handleAuth},
	"LFG": {arity: 1, needsAuth: true, handle: (*Dispatcher).handleLFG},
	"DAT": {arity: 1, arityAtLeast: true, needsAuth: true, handle: (*Dispatcher).handleData},
	"IFO": {arity: 1, needsAuth: true, handle: (*Dispatcher).handleStats},
	"BRD": {arity: 1, handle: (*Dispatcher).handleScoreboard},
}

// Dispatch processes one complete inbound message for s
func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, msg string) error {
	if msg == "" {
		return fmt.Errorf("Empty command")
	}
	tok := strings.Split(msg, " ")

	cmd, ok := commands[tok[0]]
	if !ok {
		return fmt.Errorf("Unrecognised command")
	}
	if cmd.needsAuth && !s.Authed() {
		return fmt.Errorf("Client not authed")
	}
	args := len(tok) - 1
	if args != cmd.arity && !(cmd.arityAtLeast && args > cmd.arity) {
		return fmt.Errorf("Wrong number of arguments for command")
	}
	return cmd.handle(d, ctx, s, tok)
}

// pool resolves the game kind argument shared by LFG, DAT, IFO and BRD
func (d *Dispatcher) pool(kind string) (*game.Pool, error) {
	p, ok := d.pools[kind]
	if !ok {
		return nil, fmt.Errorf("Unrecognised game type")
	}
	return p, nil
}

func (d *Dispatcher) handleRegister(ctx context.Context, s *Session, tok []string) error {
	return d.auth.Register(ctx, s, tok[1], tok[2])
}

func (d *Dispatcher) handleAuth(ctx context.Context, s *Session, tok []string) error {
	return d.auth.Auth(ctx, s, tok[1], tok[2])
}

func (d *Dispatcher) handleLFG(ctx context.Context, s *Session, tok []string) error {
	p, err := d.pool(tok[1])
	if err != nil {
		return err
	}
	return p.Enqueue(ctx, s)
}

func (d *Dispatcher) handleData(ctx context.Context, s *Session, tok []string) error {
	p, err := d.pool(tok[1])
	if err != nil {
		return err
	}
	return p.HandleData(ctx, s, tok)
}

func (d *Dispatcher) handleStats(ctx context.Context, s *Session, tok []string) error {
	p, err := d.pool(tok[1])
	if err != nil {
		return err
	}
	return p.SendStats(ctx, s)
}

func (d *Dispatcher) handleScoreboard(ctx context.Context, s *Session, tok []string) error {
	p, err := d.pool(tok[1])
	if err != nil {
		return err
	}
	return p.SendScoreboard(ctx, s)
}
