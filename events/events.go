// Package events publishes finished matches to a Redis stream so other
// services can follow results without touching the archive.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/wfunc/serra/models"
)

// Stream entry fields.
const (
	FieldRoomCode   = "room_code"
	FieldWinnerTeam = "winner_team"
	FieldData       = "data"
	FieldTimestamp  = "timestamp"
)

// StreamPublisher appends one entry per finished match.
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewStreamPublisher writes to stream, trimming it to maxLen entries when
// maxLen > 0.
func NewStreamPublisher(client *redis.Client, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// PublishMatch returns the stream entry id.
func (p *StreamPublisher) PublishMatch(ctx context.Context, record *models.GameRecord) (string, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return "", err
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Values: map[string]interface{}{
			FieldRoomCode:   record.RoomCode,
			FieldWinnerTeam: record.WinnerTeam,
			FieldData:       string(data),
			FieldTimestamp:  record.EndedAt.UnixMilli(),
		},
	}).Result()
}

// Recent reads up to count matches, newest first.
func (p *StreamPublisher) Recent(ctx context.Context, count int64) ([]models.GameRecord, error) {
	msgs, err := p.client.XRevRangeN(ctx, p.stream, "+", "-", count).Result()
	if err != nil {
		return nil, err
	}

	records := make([]models.GameRecord, 0, len(msgs))
	for _, msg := range msgs {
		raw, ok := msg.Values[FieldData].(string)
		if !ok {
			return nil, fmt.Errorf("stream entry %s has no %s field", msg.ID, FieldData)
		}
		var r models.GameRecord
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("decode stream entry %s: %w", msg.ID, err)
		}
		records = append(records, r)
	}
	return records, nil
}

func (p *StreamPublisher) Close() error {
	return p.client.Close()
}
