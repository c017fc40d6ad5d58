package redis

import (
	"context"
	"fmt"

	"github.com/omplayer/server/internal/repository/player"
)

func (r repo) getSnapshotKey(playerID string) string {
	return "player:" + playerID + ":snapshot"
}

func (r repo) SetSnapshot(ctx context.Context, params *player.SetSnapshotParams) error {
	pipe := r.rc.TxPipeline()

	snapshotKey := r.getSnapshotKey(params.Snapshot.PlayerID)
	pipe.HSet(ctx, snapshotKey, params.Snapshot)
	pipe.Expire(ctx, snapshotKey, r.expireDuration)
	pipe.SAdd(ctx, playersKey, params.Snapshot.PlayerID)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set snapshot: %w", err)
	}

	return nil
}

func (r repo) GetSnapshot(ctx context.Context, playerID string) (player.Snapshot, error) {
	snapshotKey := r.getSnapshotKey(playerID)
	res := r.rc.HGetAll(ctx, snapshotKey)
	if err := res.Err(); err != nil {
		return player.Snapshot{}, fmt.Errorf("failed to get snapshot: %w", err)
	}

	if len(res.Val()) == 0 {
		return player.Snapshot{}, player.ErrSnapshotNotFound
	}

	var snapshot player.Snapshot
	if err := res.Scan(&snapshot); err != nil {
		return player.Snapshot{}, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	r.rc.Expire(ctx, snapshotKey, r.expireDuration)

	return snapshot, nil
}

func (r repo) RemoveSnapshot(ctx context.Context, playerID string) error {
	pipe := r.rc.TxPipeline()

	snapshotKey := r.getSnapshotKey(playerID)
	delCmd := pipe.Del(ctx, snapshotKey)
	pipe.SRem(ctx, playersKey, playerID)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}

	if delCmd.Val() == 0 {
		return player.ErrSnapshotNotFound
	}

	return nil
}

// GetSnapshotIDs lists players with a stored snapshot.
func (r repo) GetSnapshotIDs(ctx context.Context) ([]string, error) {
	ids, err := r.rc.SMembers(ctx, playersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot ids: %w", err)
	}

	return ids, nil
}
