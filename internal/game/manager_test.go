package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/magefree/mage-rules-go/internal/game/rules"
)

type memoryCheckpoints struct {
	mu    sync.Mutex
	saved map[string][][]byte
	turns map[string][]int
}

func newMemoryCheckpoints() *memoryCheckpoints {
	return &memoryCheckpoints{saved: make(map[string][][]byte), turns: make(map[string][]int)}
}

func (s *memoryCheckpoints) Save(_ context.Context, gameID string, turn int, _ string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[gameID] = append(s.saved[gameID], data)
	s.turns[gameID] = append(s.turns[gameID], turn)
	return nil
}

func (s *memoryCheckpoints) Latest(_ context.Context, gameID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.saved[gameID]
	if len(all) == 0 {
		return nil, errors.New("no checkpoint")
	}
	return all[len(all)-1], nil
}

func twoPlayerSetup(id string) Setup {
	return Setup{GameID: id, Seed: 3, Seats: []Seat{
		{Player: alice, Library: repeat("Plains", 10)},
		{Player: bob, Library: repeat("Forest", 10)},
	}}
}

func priorityOf(t *testing.T, m *Manager, gameID string) string {
	t.Helper()
	var p string
	require.NoError(t, m.With(gameID, func(g *Game) error {
		ts, _ := g.Step()
		p = ts.PriorityPlayer
		return nil
	}))
	return p
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(defaultCards(t), testConfig(), zaptest.NewLogger(t))

	require.NoError(t, m.Create(twoPlayerSetup("b")))
	require.NoError(t, m.Create(twoPlayerSetup("a")))
	assert.ErrorIs(t, m.Create(twoPlayerSetup("a")), ErrGameExists)
	assert.Equal(t, []string{"a", "b"}, m.List())

	_, err := m.Apply("missing", Action{Kind: ActionPass, Player: alice})
	assert.ErrorIs(t, err, ErrGameNotFound)
	assert.ErrorIs(t, m.With("missing", func(*Game) error { return nil }), ErrGameNotFound)

	// An illegal action is reported in the result, not as a manager error.
	res, err := m.Apply("a", Action{Kind: ActionPass, Player: bob})
	require.NoError(t, err)
	assert.Equal(t, rules.CodeNoPriority, rules.CodeOf(res.Err))

	require.NoError(t, m.Remove("b"))
	assert.ErrorIs(t, m.Remove("b"), ErrGameNotFound)
	assert.Equal(t, []string{"a"}, m.List())

	// A setup the engine rejects is not hosted.
	bad := twoPlayerSetup("c")
	bad.Seats = bad.Seats[:1]
	assert.Error(t, m.Create(bad))
	assert.Equal(t, []string{"a"}, m.List())
}

func TestManagerPersistAndResume(t *testing.T) {
	ctx := context.Background()
	store := newMemoryCheckpoints()
	m := NewManager(defaultCards(t), testConfig(), zaptest.NewLogger(t), WithCheckpointStore(store))
	require.NoError(t, m.Create(twoPlayerSetup("g1")))

	for i := 0; i < 3; i++ {
		res, err := m.Apply("g1", Action{Kind: ActionPass, Player: priorityOf(t, m, "g1")})
		require.NoError(t, err)
		require.NoError(t, res.Err)
	}
	require.NoError(t, m.Persist(ctx, "g1"))
	assert.Equal(t, []int{1}, store.turns["g1"])

	var want string
	require.NoError(t, m.With("g1", func(g *Game) error {
		var err error
		want, err = g.Checksum()
		return err
	}))

	// Resuming a hosted game clashes with the live copy.
	assert.ErrorIs(t, m.Resume(ctx, "g1"), ErrGameExists)

	require.NoError(t, m.Remove("g1"))
	require.NoError(t, m.Resume(ctx, "g1"))
	require.NoError(t, m.With("g1", func(g *Game) error {
		got, err := g.Checksum()
		require.NoError(t, err)
		assert.Equal(t, want, got)
		_, step := g.Step()
		assert.Equal(t, rules.StepDraw, step)
		return nil
	}))

	assert.Error(t, m.Resume(ctx, "never-saved"))
	assert.ErrorIs(t, m.Persist(ctx, "never-saved"), ErrGameNotFound)
}

func TestManagerWithoutCheckpointStore(t *testing.T) {
	m := NewManager(defaultCards(t), testConfig(), nil)
	require.NoError(t, m.Create(twoPlayerSetup("g")))
	assert.Error(t, m.Persist(context.Background(), "g"))
	assert.Error(t, m.Resume(context.Background(), "g"))
}

func TestManagerRunsGamesInParallel(t *testing.T) {
	m := NewManager(defaultCards(t), testConfig(), zaptest.NewLogger(t))
	const games = 8
	for i := 0; i < games; i++ {
		require.NoError(t, m.Create(twoPlayerSetup(fmt.Sprintf("game-%d", i))))
	}

	var eg errgroup.Group
	for i := 0; i < games; i++ {
		id := fmt.Sprintf("game-%d", i)
		eg.Go(func() error {
			// Pass priority around until turn 2 begins.
			for n := 0; n < 200; n++ {
				var (
					player string
					turn   int
				)
				if err := m.With(id, func(g *Game) error {
					ts, _ := g.Step()
					player, turn = ts.PriorityPlayer, ts.TurnNumber
					if d, ok := g.PendingDecision(); ok {
						return fmt.Errorf("unexpected decision %s", d.Kind)
					}
					return nil
				}); err != nil {
					return err
				}
				if turn == 2 {
					return nil
				}
				res, err := m.Apply(id, Action{Kind: ActionPass, Player: player})
				if err != nil {
					return err
				}
				if res.Err != nil {
					return res.Err
				}
			}
			return fmt.Errorf("%s never reached turn 2", id)
		})
	}
	require.NoError(t, eg.Wait())

	// Every game took the same path from the same setup shape.
	lengths := make(map[int]bool)
	for _, id := range m.List() {
		require.NoError(t, m.With(id, func(g *Game) error {
			lengths[len(g.Log())] = true
			return nil
		}))
	}
	assert.Len(t, lengths, 1)
}
