package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hypergrid-games/hypergrid-backend/internal/entity"
)

// MatchRepository archives finished-game summaries. Live room state is
// memory-resident by design; this is the only thing that outlives a
// room.
type MatchRepository interface {
	Save(ctx context.Context, record *entity.MatchRecord) error
	RecentByRoom(ctx context.Context, roomID string, limit int64) ([]*entity.MatchRecord, error)
}

type dbMatch struct {
	client *redis.Client
}

func NewMatchRepository(client *redis.Client) MatchRepository {
	return &dbMatch{
		client: client,
	}
}

func (that *dbMatch) Save(ctx context.Context, record *entity.MatchRecord) error {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("could not marshal match record: %w", err)
	}

	matchKey := "matches:" + record.RoomID
	if err = that.client.LPush(ctx, matchKey, recordJSON).Err(); err != nil {
		return fmt.Errorf("failed to push match record: %w", err)
	}

	return nil
}

func (that *dbMatch) RecentByRoom(ctx context.Context, roomID string, limit int64) ([]*entity.MatchRecord, error) {
	matchKey := "matches:" + roomID

	rows, err := that.client.LRange(ctx, matchKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list match records: %w", err)
	}

	records := make([]*entity.MatchRecord, 0, len(rows))
	for _, row := range rows {
		var record entity.MatchRecord
		if err = json.Unmarshal([]byte(row), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal match record: %w", err)
		}

		records = append(records, &record)
	}

	return records, nil
}
