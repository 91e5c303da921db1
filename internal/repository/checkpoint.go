package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// CheckpointInfo describes one stored checkpoint without its state.
type CheckpointInfo struct {
	ID        int64
	GameID    string
	Turn      int
	Checksum  string
	CreatedAt time.Time
}

// CheckpointRepository stores game snapshots. It implements
// game.CheckpointStore.
type CheckpointRepository struct {
	db     Querier
	logger *zap.Logger
}

// NewCheckpointRepository creates a checkpoint repository.
func NewCheckpointRepository(db Querier, logger *zap.Logger) *CheckpointRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckpointRepository{db: db, logger: logger}
}

// Save appends a checkpoint for a game.
func (r *CheckpointRepository) Save(ctx context.Context, gameID string, turn int, checksum string, data []byte) error {
	query := `
		INSERT INTO game_checkpoints (game_id, turn, checksum, state)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.Exec(ctx, query, gameID, turn, checksum, data); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	r.logger.Debug("checkpoint saved",
		zap.String("game_id", gameID),
		zap.Int("turn", turn),
		zap.Int("bytes", len(data)))
	return nil
}

// Latest returns the state of the most recent checkpoint of a game.
func (r *CheckpointRepository) Latest(ctx context.Context, gameID string) ([]byte, error) {
	query := `
		SELECT state FROM game_checkpoints
		WHERE game_id = $1
		ORDER BY id DESC
		LIMIT 1
	`
	var data []byte
	if err := r.db.QueryRow(ctx, query, gameID).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("checkpoint for game %s: %w", gameID, ErrNotFound)
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return data, nil
}

// List returns the checkpoints of a game, oldest first.
func (r *CheckpointRepository) List(ctx context.Context, gameID string) ([]CheckpointInfo, error) {
	query := `
		SELECT id, game_id, turn, checksum, created_at
		FROM game_checkpoints
		WHERE game_id = $1
		ORDER BY id
	`
	rows, err := r.db.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var infos []CheckpointInfo
	for rows.Next() {
		var info CheckpointInfo
		if err := rows.Scan(&info.ID, &info.GameID, &info.Turn, &info.Checksum, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	return infos, nil
}

// Prune deletes all but the newest keep checkpoints of a game.
func (r *CheckpointRepository) Prune(ctx context.Context, gameID string, keep int) (int64, error) {
	query := `
		DELETE FROM game_checkpoints
		WHERE game_id = $1 AND id NOT IN (
			SELECT id FROM game_checkpoints WHERE game_id = $1 ORDER BY id DESC LIMIT $2
		)
	`
	tag, err := r.db.Exec(ctx, query, gameID, keep)
	if err != nil {
		return 0, fmt.Errorf("prune checkpoints: %w", err)
	}
	return tag.RowsAffected(), nil
}
