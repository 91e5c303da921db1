package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/catalog"
)

// CardRepository stores card definitions as JSON documents keyed by name.
type CardRepository struct {
	db     Querier
	logger *zap.Logger
}

// NewCardRepository creates a card repository.
func NewCardRepository(db Querier, logger *zap.Logger) *CardRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CardRepository{db: db, logger: logger}
}

// Upsert inserts or replaces a card.
func (r *CardRepository) Upsert(ctx context.Context, card catalog.Card) error {
	if err := card.Validate(); err != nil {
		return err
	}
	doc, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("encode card %s: %w", card.Name, err)
	}
	query := `
		INSERT INTO rules_cards (name, document, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET document = EXCLUDED.document, updated_at = now()
	`
	if _, err := r.db.Exec(ctx, query, card.Name, doc); err != nil {
		return fmt.Errorf("upsert card %s: %w", card.Name, err)
	}
	return nil
}

// Get returns one card by name.
func (r *CardRepository) Get(ctx context.Context, name string) (*catalog.Card, error) {
	var doc []byte
	err := r.db.QueryRow(ctx, `SELECT document FROM rules_cards WHERE name = $1`, name).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("card %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("get card: %w", err)
	}
	var card catalog.Card
	if err := json.Unmarshal(doc, &card); err != nil {
		return nil, fmt.Errorf("decode card %s: %w", name, err)
	}
	return &card, nil
}

// Count returns the number of stored cards.
func (r *CardRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM rules_cards`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cards: %w", err)
	}
	return n, nil
}

// Registry loads every stored card into a catalog registry.
func (r *CardRepository) Registry(ctx context.Context) (*catalog.Registry, error) {
	rows, err := r.db.Query(ctx, `SELECT name, document FROM rules_cards ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}
	defer rows.Close()

	var cards []catalog.Card
	for rows.Next() {
		var (
			name string
			doc  []byte
		)
		if err := rows.Scan(&name, &doc); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		var card catalog.Card
		if err := json.Unmarshal(doc, &card); err != nil {
			return nil, fmt.Errorf("decode card %s: %w", name, err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}
	r.logger.Debug("cards loaded from database", zap.Int("cards", len(cards)))
	return catalog.NewRegistry(cards...)
}
