package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// BlockRepository handles the minted-block ledger
type BlockRepository struct {
	db *sql.DB
}

// NewBlockRepository creates a new block repository
func NewBlockRepository(db *sql.DB) *BlockRepository {
	return &BlockRepository{db: db}
}

// CreateBlock records a block at submission time
func (r *BlockRepository) CreateBlock(ctx context.Context, block *MintedBlock) error {
	query := `
		INSERT INTO minted_blocks (hash, height, prev_block, proof_type, stake_coin,
		                           stake_value, stake_time, status, raw_block, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		block.Hash, block.Height, block.PrevBlock, block.ProofType,
		block.StakeCoin, block.StakeValue, block.StakeTime,
		block.Status, block.RawBlock, now,
	).Scan(&block.ID)

	if err != nil {
		return fmt.Errorf("failed to create minted block: %w", err)
	}

	block.SubmittedAt = now
	return nil
}

// ResolveBlock records the chain's verdict on a submitted block
func (r *BlockRepository) ResolveBlock(ctx context.Context, hash, status string, rawBlock string) error {
	query := `
		UPDATE minted_blocks
		SET status = $1, raw_block = COALESCE(NULLIF($2, ''), raw_block), resolved_at = $3
		WHERE hash = $4`

	res, err := r.db.ExecContext(ctx, query, status, rawBlock, time.Now(), hash)
	if err != nil {
		return fmt.Errorf("failed to resolve minted block: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check resolve result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("minted block not found: %s", hash)
	}

	return nil
}

// GetBlockByHash retrieves a minted block by its hash
func (r *BlockRepository) GetBlockByHash(ctx context.Context, hash string) (*MintedBlock, error) {
	query := `
		SELECT id, hash, height, prev_block, proof_type, stake_coin, stake_value,
		       stake_time, status, raw_block, submitted_at, resolved_at
		FROM minted_blocks WHERE hash = $1`

	block := &MintedBlock{}
	err := r.db.QueryRowContext(ctx, query, hash).Scan(
		&block.ID, &block.Hash, &block.Height, &block.PrevBlock, &block.ProofType,
		&block.StakeCoin, &block.StakeValue, &block.StakeTime,
		&block.Status, &block.RawBlock, &block.SubmittedAt, &block.ResolvedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("minted block not found")
		}
		return nil, fmt.Errorf("failed to get minted block: %w", err)
	}

	return block, nil
}

// GetRecentBlocks retrieves the most recently submitted blocks
func (r *BlockRepository) GetRecentBlocks(ctx context.Context, limit int) ([]*MintedBlock, error) {
	query := `
		SELECT id, hash, height, prev_block, proof_type, stake_coin, stake_value,
		       stake_time, status, raw_block, submitted_at, resolved_at
		FROM minted_blocks
		ORDER BY submitted_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query minted blocks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var blocks []*MintedBlock
	for rows.Next() {
		block := &MintedBlock{}
		if err := rows.Scan(
			&block.ID, &block.Hash, &block.Height, &block.PrevBlock, &block.ProofType,
			&block.StakeCoin, &block.StakeValue, &block.StakeTime,
			&block.Status, &block.RawBlock, &block.SubmittedAt, &block.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan minted block: %w", err)
		}
		blocks = append(blocks, block)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate minted blocks: %w", err)
	}

	return blocks, nil
}

// CountByStatus returns how many recorded blocks carry each status
func (r *BlockRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	query := `SELECT status, COUNT(*) FROM minted_blocks GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count minted blocks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status counts: %w", err)
	}

	return counts, nil
}
