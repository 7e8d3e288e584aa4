// Package feed consumes the conversation change feed: a resumable, ordered
// stream of document-level change notifications, realized as a Redis stream
// consumer group.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"taskbridge.app/bridge/common/logger"
)

type Config struct {
	Stream   string        // Stream name
	Group    string        // Consumer group name
	Consumer string        // Consumer name within the group
	Block    time.Duration // How long to block waiting for new messages
}

// Consumer reads change notifications from the feed. The consumer group's
// pending cursor is the feed's resumption point: a restarted watcher picks up
// from the last unacknowledged message rather than from "now".
type Consumer struct {
	client *redis.Client
	cfg    Config
}

func NewConsumer(client *redis.Client, cfg Config) (*Consumer, error) {
	c := &Consumer{
		client: client,
		cfg:    cfg,
	}

	if err := c.ensureGroup(context.Background()); err != nil { //nolint:contextcheck
		return nil, err
	}

	return c, nil
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	// Starting the group from "0" instead of "$" means a recreated group
	// still sees everything already in the stream - no lost messages across
	// restarts.
	if err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err(); err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

// Read blocks up to cfg.Block and returns the next batch of parseable events
// in feed order. Unparseable messages are acked and skipped with an error
// log; a bad producer payload must not wedge the stream.
func (c *Consumer) Read(ctx context.Context) ([]Event, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "bridge.feed.consumer",
	})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    1, // one event in flight at a time, feed order
		Block:    c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var events []Event
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			event, parseErr := ParseEvent(msg)
			if parseErr != nil {
				slog.ErrorContext(ctx, "failed to parse feed event",
					"error", parseErr,
					"raw_message_id", msg.ID,
					"stream", c.cfg.Stream)
				_ = c.Ack(ctx, msg.ID)
				continue
			}
			events = append(events, event)
		}
	}

	return events, nil
}

// Ack advances the group cursor past the message.
func (c *Consumer) Ack(ctx context.Context, messageID string) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, messageID).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}
	return nil
}
