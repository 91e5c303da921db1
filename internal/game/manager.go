package game

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/state"
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrGameExists   = errors.New("game already exists")
)

// CheckpointStore persists game snapshots.
type CheckpointStore interface {
	Save(ctx context.Context, gameID string, turn int, checksum string, data []byte) error
	Latest(ctx context.Context, gameID string) ([]byte, error)
}

type hosted struct {
	mu   sync.Mutex
	game *Game
}

// Manager hosts many games. Each game is driven by one caller at a time;
// different games proceed in parallel.
type Manager struct {
	logger   *zap.Logger
	cards    state.Cards
	cfg      Config
	recorder *Recorder
	store    CheckpointStore

	mu    sync.RWMutex
	games map[string]*hosted
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRecorder records every game the manager creates.
func WithRecorder(r *Recorder) ManagerOption {
	return func(m *Manager) { m.recorder = r }
}

// WithCheckpointStore enables Persist and Resume.
func WithCheckpointStore(s CheckpointStore) ManagerOption {
	return func(m *Manager) { m.store = s }
}

// NewManager creates an empty manager. Games it creates use cfg.
func NewManager(cards state.Cards, cfg Config, logger *zap.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		logger: logger,
		cards:  cards,
		cfg:    cfg,
		games:  make(map[string]*hosted),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new game.
func (m *Manager) Create(setup Setup) error {
	m.mu.RLock()
	_, exists := m.games[setup.GameID]
	m.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s", ErrGameExists, setup.GameID)
	}

	g, err := New(setup, m.cards, nil, m.cfg, m.logger)
	if err != nil {
		return err
	}
	return m.add(g)
}

func (m *Manager) add(g *Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.games[g.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrGameExists, g.ID())
	}
	m.games[g.ID()] = &hosted{game: g}
	if m.recorder != nil {
		m.recorder.Start(g)
	}
	m.logger.Info("game hosted", zap.String("game_id", g.ID()), zap.Int("games", len(m.games)))
	return nil
}

func (m *Manager) get(gameID string) (*hosted, error) {
	m.mu.RLock()
	h, ok := m.games[gameID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return h, nil
}

// Apply performs an action on a hosted game.
func (m *Manager) Apply(gameID string, a Action) (Result, error) {
	h, err := m.get(gameID)
	if err != nil {
		return Result{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	res := h.game.Apply(a)
	if res.Err == nil && m.recorder != nil {
		sum, err := h.game.Checksum()
		if err != nil {
			return res, err
		}
		m.recorder.Record(gameID, a, sum)
	}
	return res, nil
}

// With runs fn with exclusive access to a hosted game. fn must not keep
// the game after it returns.
func (m *Manager) With(gameID string, fn func(*Game) error) error {
	h, err := m.get(gameID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h.game)
}

// Remove stops hosting a game.
func (m *Manager) Remove(gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.games[gameID]; !ok {
		return fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	delete(m.games, gameID)
	m.logger.Info("game removed", zap.String("game_id", gameID))
	return nil
}

// List returns the hosted game ids in order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.games))
	for id := range m.games {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Persist saves a snapshot of a hosted game to the checkpoint store.
func (m *Manager) Persist(ctx context.Context, gameID string) error {
	if m.store == nil {
		return errors.New("no checkpoint store configured")
	}
	var (
		data []byte
		sum  string
		turn int
	)
	err := m.With(gameID, func(g *Game) error {
		var err error
		if data, err = g.Snapshot(); err != nil {
			return err
		}
		if sum, err = g.Checksum(); err != nil {
			return err
		}
		turn = g.tm.TurnNumber()
		return nil
	})
	if err != nil {
		return err
	}
	if err := m.store.Save(ctx, gameID, turn, sum, data); err != nil {
		return fmt.Errorf("persist game %s: %w", gameID, err)
	}
	m.logger.Debug("game persisted", zap.String("game_id", gameID), zap.Int("turn", turn), zap.String("checksum", sum))
	return nil
}

// Resume loads the latest checkpoint of a game and hosts it.
func (m *Manager) Resume(ctx context.Context, gameID string) error {
	if m.store == nil {
		return errors.New("no checkpoint store configured")
	}
	data, err := m.store.Latest(ctx, gameID)
	if err != nil {
		return fmt.Errorf("resume game %s: %w", gameID, err)
	}
	g, err := Restore(data, m.cards, nil, m.logger)
	if err != nil {
		return fmt.Errorf("resume game %s: %w", gameID, err)
	}
	return m.add(g)
}
