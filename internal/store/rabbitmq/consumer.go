package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/orgai/internal/mode"
)

// RefreshCommand asks the server to refresh one corpus.
type RefreshCommand struct {
	Mode        string `json:"mode"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// Refresher is implemented by corpus.Store.
type Refresher interface {
	Refresh(ctx context.Context, m mode.Mode) error
}

// RefreshConsumer applies refresh commands one at a time.
type RefreshConsumer struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	target Refresher
	log    *slog.Logger
}

func NewRefreshConsumer(url, queue string, target Refresher, logger *slog.Logger) (*RefreshConsumer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	// strict concurrency control
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("qos: %w", err)
	}
	return &RefreshConsumer{conn: conn, ch: ch, queue: queue, target: target, log: logger.With("component", "refresh_consumer")}, nil
}

// Run consumes until ctx is done or the delivery channel closes.
func (c *RefreshConsumer) Run(ctx context.Context) error {
	msgs, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	c.log.Info("refresh consumer started", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			if err := c.handle(ctx, d.Body); err != nil {
				c.log.Warn("refresh command failed", "error", err)
				_ = d.Nack(false, false)
				continue
			}
			if err := d.Ack(false); err != nil {
				c.log.Warn("ack failed", "error", err)
			}
		}
	}
}

func (c *RefreshConsumer) Close() error {
	_ = c.ch.Close()
	return c.conn.Close()
}

func (c *RefreshConsumer) handle(ctx context.Context, body []byte) error {
	cmd, m, err := decodeRefresh(body)
	if err != nil {
		return err
	}
	start := time.Now()
	err = c.target.Refresh(ctx, m)
	c.log.Info("refresh command", "mode", m.String(), "requested_by", cmd.RequestedBy, "took", time.Since(start), "error", err)
	// a failed fetch keeps the old snapshot; the command itself was handled
	return nil
}

func decodeRefresh(body []byte) (RefreshCommand, mode.Mode, error) {
	var cmd RefreshCommand
	if err := json.Unmarshal(body, &cmd); err != nil {
		return cmd, 0, fmt.Errorf("bad refresh command: %w", err)
	}
	m, err := mode.Parse(strings.TrimSpace(cmd.Mode))
	if err != nil {
		return cmd, 0, err
	}
	if !m.IsConcrete() {
		return cmd, 0, fmt.Errorf("%w: refresh needs a concrete mode", mode.ErrInvalidMode)
	}
	return cmd, m, nil
}

// PublishRefresh sends a refresh command; used by the console client.
func PublishRefresh(ctx context.Context, url, queue string, cmd RefreshCommand) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		return err
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return err
	}
	body, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return ch.PublishWithContext(cctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
	})
}
