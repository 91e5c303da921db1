package game

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/magefree/mage-rules-go/internal/game/pipeline"
	"github.com/magefree/mage-rules-go/internal/game/random"
	"github.com/magefree/mage-rules-go/internal/game/rules"
	"github.com/magefree/mage-rules-go/internal/game/state"
	"github.com/magefree/mage-rules-go/internal/game/triggers"
	"github.com/magefree/mage-rules-go/internal/game/watchers"
)

const checkpointVersion = 1

// checkpoint is everything needed to continue a game from where it stood,
// including a suspended resolution and its outstanding decision.
type checkpoint struct {
	Version    int                             `json:"version"`
	Setup      Setup                           `json:"setup"`
	Config     Config                          `json:"config"`
	Store      *state.Store                    `json:"store"`
	Turn       rules.TurnState                 `json:"turn"`
	Stack      []rules.StackItem               `json:"stack"`
	Passed     []string                        `json:"passed,omitempty"`
	Resolution rules.ResolutionContext         `json:"resolution"`
	Flow       flow                            `json:"flow"`
	Resolving  *pipeline.Continuation          `json:"resolving,omitempty"`
	Pending    *pending                        `json:"pending,omitempty"`
	Queue      triggers.Queue                  `json:"queue"`
	Delayed    []pipeline.DelayedSpec          `json:"delayed,omitempty"`
	Fired      map[string]pipeline.DelayedSpec `json:"fired,omitempty"`
	TurnEvents []rules.Event                   `json:"turn_events,omitempty"`
	Seed       int64                           `json:"seed"`
	Position   int64                           `json:"position"`
	Log        []Action                        `json:"log,omitempty"`
	Halted     string                          `json:"halted,omitempty"`

	// watchers is kept for in-memory rollback only; a restored game
	// rebuilds them from TurnEvents.
	watchers *rules.WatcherRegistry
}

// capture copies the game state. The action log and this turn's events are
// append-only, so the checkpoint shares their current prefix instead of
// copying it; everything else is copied.
func (g *Game) capture() *checkpoint {
	items := g.stack.List()
	for i := range items {
		items[i].Bindings = items[i].Bindings.Clone()
		items[i].TargetSlots = append([]string(nil), items[i].TargetSlots...)
	}
	resolved := make(map[string]bool, len(g.resolution.Resolved))
	for k, v := range g.resolution.Resolved {
		resolved[k] = v
	}
	fl := g.flow
	fl.Defenders = append([]string(nil), g.flow.Defenders...)
	fired := make(map[string]pipeline.DelayedSpec, len(g.fired))
	for k, v := range g.fired {
		fired[k] = cloneDelayed([]pipeline.DelayedSpec{v})[0]
	}
	cp := &checkpoint{
		Version:    checkpointVersion,
		Setup:      g.setup,
		Config:     g.cfg,
		Store:      g.store.Clone(),
		Turn:       g.tm.State(),
		Stack:      items,
		Passed:     append([]string(nil), g.passed.Passed...),
		Resolution: rules.ResolutionContext{Resolving: g.resolution.Resolving, Resolved: resolved},
		Flow:       fl,
		Resolving:  g.resolving.Clone(),
		Queue:      *g.queue.Clone(),
		Delayed:    cloneDelayed(g.delayed),
		Fired:      fired,
		TurnEvents: g.turnEvents[:len(g.turnEvents):len(g.turnEvents)],
		Position:   g.rng.Position(),
		Log:        g.log[:len(g.log):len(g.log)],
		watchers:   g.watchers.Copy(),
	}
	if s, ok := g.rng.(*random.Seeded); ok {
		cp.Seed = s.Seed()
	} else {
		cp.Seed = g.setup.Seed
	}
	if g.pending != nil {
		cp.Pending = &pending{Purpose: g.pending.Purpose, Decision: g.pending.Decision.Clone()}
	}
	if g.halted != nil {
		cp.Halted = g.halted.Error()
	}
	return cp
}

// load puts the game back to a captured state. The checkpoint must not be
// used again afterwards.
func (g *Game) load(cp *checkpoint) {
	g.cfg = cp.Config
	g.setup = cp.Setup
	g.store = cp.Store
	g.tm = rules.RestoreTurnManager(cp.Turn)
	g.stack = rules.RestoreStackManager(cp.Stack)
	g.passed = &rules.PriorityTracker{Passed: cp.Passed}
	if g.passed.Passed == nil {
		g.passed.Passed = make([]string, 0, 4)
	}
	res := cp.Resolution
	if res.Resolved == nil {
		res.Resolved = make(map[string]bool)
	}
	g.resolution = &res
	g.flow = cp.Flow
	g.resolving = cp.Resolving
	g.pending = cp.Pending
	g.queue = cp.Queue
	g.delayed = cp.Delayed
	g.fired = cp.Fired
	if g.fired == nil {
		g.fired = make(map[string]pipeline.DelayedSpec)
	}
	g.turnEvents = cp.TurnEvents
	g.log = cp.Log

	if cp.watchers != nil {
		g.watchers = cp.watchers
	} else {
		g.watchers = watchers.Standard()
		for _, e := range cp.TurnEvents {
			g.watchers.NotifyWatchers(e)
		}
	}
	// A seeded source is rewound; an injected one is left alone.
	if s, ok := g.rng.(*random.Seeded); ok && s.Position() != cp.Position {
		g.rng = random.Restore(cp.Seed, cp.Position)
	}
	if cp.Halted != "" {
		g.halted = errors.New(cp.Halted)
	}
	g.batch = nil
	g.touch()
}

// Snapshot serializes the full in-flight state of the game as JSON.
func (g *Game) Snapshot() ([]byte, error) {
	data, err := json.Marshal(g.capture())
	if err != nil {
		return nil, fmt.Errorf("snapshot game %s: %w", g.id, err)
	}
	return data, nil
}

// Checksum returns a hex digest of the game state. Two games that went
// through the same actions from the same setup have the same checksum.
func (g *Game) Checksum() (string, error) {
	cp := g.capture()
	// The log is how the game got here, not where it is.
	cp.Log = nil
	data, err := json.Marshal(cp)
	if err != nil {
		return "", fmt.Errorf("checksum game %s: %w", g.id, err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Restore rebuilds a game from a Snapshot. rng may be nil, in which case
// the seeded source is recreated at the recorded position.
func Restore(data []byte, cards state.Cards, rng random.Source, logger *zap.Logger) (*Game, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	if cp.Version != checkpointVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d", cp.Version)
	}
	if cp.Store == nil {
		return nil, errors.New("checkpoint has no store")
	}
	if err := cp.Store.Check(); err != nil {
		return nil, fmt.Errorf("checkpoint store: %w", err)
	}
	if rng == nil {
		rng = random.Restore(cp.Seed, cp.Position)
	}
	g := &Game{
		id:     cp.Setup.GameID,
		cards:  cards,
		logger: logger.With(zap.String("game_id", cp.Setup.GameID)),
		rng:    rng,
		bus:    rules.NewEventBus(),
	}
	g.load(&cp)
	g.matcher = triggers.NewMatcher(cards, g, func() string { return g.store.NewID("trigger") }, g.logger)
	g.logger.Info("game restored",
		zap.Int("turn", g.tm.TurnNumber()),
		zap.String("step", g.tm.CurrentStep().String()),
		zap.Int("actions", len(g.log)))
	return g, nil
}
