package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const channel = "match_events"

// Publisher pushes match lifecycle events onto a Redis pub/sub channel so
// external consumers (dashboards, bots) can follow games without speaking
// the wire protocol.
type Publisher struct {
	rdb *redis.Client
}

// Default is the process-wide publisher. Nil when Redis is not configured;
// the package-level publish helpers are no-ops in that case.
var Default *Publisher

func SetDefault(p *Publisher) {
	Default = p
}

func NewPublisher(rdb *redis.Client) *Publisher {
	if rdb == nil {
		return nil
	}
	return &Publisher{rdb: rdb}
}

// MatchEvent is the JSON payload published for every lifecycle change
type MatchEvent struct {
	Type    string    `json:"type"`
	Game    string    `json:"game"`
	PlayerA string    `json:"player_a"`
	PlayerB string    `json:"player_b"`
	Winner  string    `json:"winner,omitempty"` // empty on start and on draws
	At      time.Time `json:"at"`
}

func (p *Publisher) publish(ctx context.Context, ev MatchEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[EVENTS] Failed to marshal event: %v", err)
		return
	}
	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		log.Printf("[EVENTS] Failed to publish %s event: %v", ev.Type, err)
	}
}

// PublishMatchStarted emits a match_started event if a publisher is configured
func PublishMatchStarted(ctx context.Context, game, playerA, playerB string) {
	if Default == nil {
		return
	}
	Default.publish(ctx, MatchEvent{
		Type: "match_started", Game: game,
		PlayerA: playerA, PlayerB: playerB, At: time.Now(),
	})
}

// PublishMatchFinished emits a match_finished event. winner is empty for draws.
func PublishMatchFinished(ctx context.Context, game, playerA, playerB, winner string) {
	if Default == nil {
		return
	}
	Default.publish(ctx, MatchEvent{
		Type: "match_finished", Game: game,
		PlayerA: playerA, PlayerB: playerB, Winner: winner, At: time.Now(),
	})
}
