// Package mq publishes finished game snapshots to a RabbitMQ queue for
// downstream consumers such as leaderboards.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/cardduel/server/game/engine"
	"github.com/cardduel/server/game/history"
)

// GameFinishedEvent is the message body published for every finished game.
type GameFinishedEvent struct {
	Type    string              `json:"type"`
	GameID  string              `json:"gameId"`
	Winner  string              `json:"winner"`
	History *engine.GameHistory `json:"history"`
}

const gameFinishedType = "game_finished"

type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher implements history.Sink on a durable queue
type Publisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    channel
	queue string
}

var _ history.Sink = (*Publisher)(nil)

// NewPublisher dials url and declares queue as durable
func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("MQ connect failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("MQ channel failed: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("MQ queue declare failed: %w", err)
	}

	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Name() string { return "amqp" }

// GameFinished publishes h as a persistent JSON message
func (p *Publisher) GameFinished(ctx context.Context, h *engine.GameHistory) error {
	body, err := json.Marshal(GameFinishedEvent{
		Type:    gameFinishedType,
		GameID:  h.GameID,
		Winner:  h.WinnerID,
		History: h,
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Publish("", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    h.ID,
		Timestamp:    time.Now(),
	})
}

// Close closes the channel and connection
func (p *Publisher) Close() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
