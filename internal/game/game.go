// Package game is the resolution engine. A Game owns the turn and priority
// state machine, the stack, state-based actions and combat, and drives the
// effect pipeline and the trigger matcher over the object store.
//
// A Game is not safe for concurrent use; Manager serializes access when
// many games are hosted together.
package game

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/pipeline"
	"github.com/magefree/mage-rules-go/internal/game/random"
	"github.com/magefree/mage-rules-go/internal/game/rules"
	"github.com/magefree/mage-rules-go/internal/game/state"
	"github.com/magefree/mage-rules-go/internal/game/triggers"
	"github.com/magefree/mage-rules-go/internal/game/watchers"
)

// Config holds the rules parameters of a game.
type Config struct {
	StartingLife    int  `json:"starting_life" yaml:"starting_life"`
	HandSize        int  `json:"hand_size" yaml:"hand_size"`
	MaxHandSize     int  `json:"max_hand_size" yaml:"max_hand_size"`
	DrawOnFirstTurn bool `json:"draw_on_first_turn" yaml:"draw_on_first_turn"`
	// LoopLimit caps the state-based action and trigger loop run before a
	// player receives priority. Hitting it halts the game.
	LoopLimit int  `json:"loop_limit" yaml:"loop_limit"`
	Shuffle   bool `json:"shuffle" yaml:"shuffle"`
}

// DefaultConfig returns the standard two-player rules.
func DefaultConfig() Config {
	return Config{
		StartingLife: 20,
		HandSize:     7,
		MaxHandSize:  7,
		LoopLimit:    100,
		Shuffle:      true,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.StartingLife <= 0 {
		c.StartingLife = def.StartingLife
	}
	if c.HandSize < 0 {
		c.HandSize = 0
	}
	if c.MaxHandSize <= 0 {
		c.MaxHandSize = def.MaxHandSize
	}
	if c.LoopLimit <= 0 {
		c.LoopLimit = def.LoopLimit
	}
	return c
}

// Seat is one player's starting position. Library lists card names top
// first. Hand and Battlefield put extra cards straight into those zones,
// which scenario setups use to skip the early turns.
type Seat struct {
	Player      string   `json:"player" yaml:"player"`
	Library     []string `json:"library,omitempty" yaml:"library,omitempty"`
	Hand        []string `json:"hand,omitempty" yaml:"hand,omitempty"`
	Battlefield []string `json:"battlefield,omitempty" yaml:"battlefield,omitempty"`
	Life        int      `json:"life,omitempty" yaml:"life,omitempty"`
}

// Setup describes a new game. Seats are in turn order; the first seat
// takes the first turn.
type Setup struct {
	GameID string `json:"game_id" yaml:"game_id"`
	Seed   int64  `json:"seed" yaml:"seed"`
	Seats  []Seat `json:"seats" yaml:"seats"`
}

// Result is the outcome of one action: the events it committed, or the
// reason it was rejected.
type Result struct {
	Events []rules.Event
	Err    error
}

type purpose string

const (
	purposeResolve purpose = "resolve"
	purposeOrder   purpose = "order"
	purposeAttack  purpose = "attack"
	purposeBlock   purpose = "block"
	purposeDiscard purpose = "discard"
)

// pending is the outstanding decision and what answering it continues.
type pending struct {
	Purpose  purpose            `json:"purpose"`
	Decision *pipeline.Decision `json:"decision"`
}

// flow is the turn-structure bookkeeping the turn manager does not keep.
type flow struct {
	StepStarted  bool `json:"step_started,omitempty"`
	CleanupActed bool `json:"cleanup_acted,omitempty"`
	SkipCombat   bool `json:"skip_combat,omitempty"`
	// Defenders lists the attacked players still to declare blockers.
	Defenders []string `json:"defenders,omitempty"`
	BatchSeq  int64    `json:"batch_seq"`
	Over      bool     `json:"over,omitempty"`
	Winner    string   `json:"winner,omitempty"`
}

type openBatch struct {
	id      int64
	before  triggers.Snapshot
	delayed []pipeline.DelayedSpec
	events  []rules.Event
}

// Game is one game in progress.
type Game struct {
	id     string
	cfg    Config
	setup  Setup
	cards  state.Cards
	logger *zap.Logger
	rng    random.Source

	store      *state.Store
	tm         *rules.TurnManager
	stack      *rules.StackManager
	passed     *rules.PriorityTracker
	resolution *rules.ResolutionContext
	watchers   *rules.WatcherRegistry
	matcher    *triggers.Matcher
	flow       flow
	resolving  *pipeline.Continuation
	pending    *pending
	queue      triggers.Queue
	delayed    []pipeline.DelayedSpec
	// fired holds the delayed triggers on the stack, by delayed trigger id.
	fired      map[string]pipeline.DelayedSpec
	turnEvents []rules.Event
	log        []Action
	// bus is not part of a checkpoint; listeners are re-attached by the caller.
	bus *rules.EventBus

	batch  *openBatch
	events []rules.Event
	view   *effects.View
	halted error
}

// New creates a game, deals opening hands and runs it to the first point
// where a player has priority. rng may be nil, in which case a source
// seeded from setup.Seed is used.
func New(setup Setup, cards state.Cards, rng random.Source, cfg Config, logger *zap.Logger) (*Game, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if setup.GameID == "" {
		return nil, errors.New("game id is required")
	}
	if len(setup.Seats) < 2 {
		return nil, fmt.Errorf("game %s needs at least two players, got %d", setup.GameID, len(setup.Seats))
	}
	cfg = cfg.withDefaults()
	players := make([]string, 0, len(setup.Seats))
	seen := make(map[string]bool, len(setup.Seats))
	for _, seat := range setup.Seats {
		if seat.Player == "" || seen[seat.Player] {
			return nil, fmt.Errorf("game %s: invalid or duplicate player %q", setup.GameID, seat.Player)
		}
		seen[seat.Player] = true
		players = append(players, seat.Player)
		for _, list := range [][]string{seat.Library, seat.Hand, seat.Battlefield} {
			for _, name := range list {
				if _, ok := cards.Get(name); !ok {
					return nil, fmt.Errorf("game %s: unknown card %q", setup.GameID, name)
				}
			}
		}
	}
	if rng == nil {
		rng = random.NewSeeded(setup.Seed)
	}

	g := &Game{
		id:         setup.GameID,
		cfg:        cfg,
		setup:      setup,
		cards:      cards,
		logger:     logger.With(zap.String("game_id", setup.GameID)),
		rng:        rng,
		store:      state.New(setup.GameID, players, cfg.StartingLife),
		tm:         rules.NewTurnManager(players[0]),
		stack:      rules.NewStackManager(),
		passed:     rules.NewPriorityTracker(),
		resolution: rules.NewResolutionContext(),
		watchers:   watchers.Standard(),
		fired:      make(map[string]pipeline.DelayedSpec),
		bus:        rules.NewEventBus(),
	}
	g.matcher = triggers.NewMatcher(cards, g, func() string { return g.store.NewID("trigger") }, g.logger)

	for _, seat := range setup.Seats {
		if seat.Life > 0 {
			p, _ := g.store.Player(seat.Player)
			p.Life = seat.Life
		}
		for _, name := range seat.Library {
			g.store.Create(name, seat.Player, rules.ZoneLibrary, "bottom")
		}
		if cfg.Shuffle {
			g.store.Shuffle(seat.Player, g.rng.Intn)
		}
		for i := 0; i < cfg.HandSize; i++ {
			if _, _, err := g.store.Draw(seat.Player); err != nil {
				return nil, err
			}
		}
		// Running out while dealing is not a draw from an empty library.
		p, _ := g.store.Player(seat.Player)
		p.DrewFromEmpty = false
		for _, name := range seat.Hand {
			g.store.Create(name, seat.Player, rules.ZoneHand, "")
		}
		for _, name := range seat.Battlefield {
			obj := g.store.Create(name, seat.Player, rules.ZoneBattlefield, "")
			obj.Status.SummoningSick = false
		}
	}

	g.logger.Info("game created",
		zap.Strings("players", players),
		zap.Int64("seed", setup.Seed))
	if err := g.settle(); err != nil {
		return nil, fmt.Errorf("start game %s: %w", setup.GameID, err)
	}
	g.events = nil
	return g, nil
}

// ID returns the game id.
func (g *Game) ID() string { return g.id }

// Apply performs one player action. An illegal action leaves the game
// exactly as it was. An invariant violation halts the game; every later
// action then fails with rules.ErrGameHalted.
func (g *Game) Apply(a Action) Result {
	if g.halted != nil {
		return Result{Err: fmt.Errorf("%w: %v", rules.ErrGameHalted, g.halted)}
	}
	if g.flow.Over {
		return Result{Err: rules.Illegal(rules.CodeGameOver, "the game is over")}
	}

	mark := g.capture()
	g.events = nil
	err := g.dispatch(a)
	if err == nil {
		err = g.settle()
	}
	if err == nil {
		err = g.store.Check()
	}
	if err != nil {
		if errors.Is(err, rules.ErrIllegalAction) {
			g.load(mark)
			g.logger.Warn("action rejected",
				zap.String("action", string(a.Kind)),
				zap.String("player", a.Player),
				zap.String("code", string(rules.CodeOf(err))),
				zap.Error(err))
			return Result{Err: err}
		}
		g.halted = err
		g.logger.Error("game halted",
			zap.String("action", string(a.Kind)),
			zap.String("player", a.Player),
			zap.Error(err))
		return Result{Events: g.events, Err: fmt.Errorf("%w: %v", rules.ErrGameHalted, err)}
	}

	g.log = append(g.log, a.clone())
	events := g.events
	g.events = nil
	g.bus.PublishBatch(events)
	return Result{Events: events}
}

// Subscribe registers a listener for the events of every accepted action.
// An empty eventType receives all events. Listeners run after the action
// completes and must not call back into the game.
func (g *Game) Subscribe(eventType rules.EventType, listener rules.Listener) int {
	return g.bus.SubscribeTyped(eventType, listener)
}

// Unsubscribe removes a listener.
func (g *Game) Unsubscribe(handle int) { g.bus.Unsubscribe(handle) }

// Halted returns the error that halted the game, if any.
func (g *Game) Halted() error { return g.halted }

// Over reports whether the game has ended and who won. The winner is empty
// when nobody is left.
func (g *Game) Over() (bool, string) { return g.flow.Over, g.flow.Winner }

// View returns the current projection of every object.
func (g *Game) View() *effects.View {
	if g.view == nil {
		g.view = g.store.Project(g.cards, g.apnap())
	}
	return g.view
}

// Characteristics returns the projected characteristics of one object.
func (g *Game) Characteristics(id string) (*effects.Characteristics, bool) {
	c, ok := g.View().Get(id)
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// Object returns a copy of the stored object.
func (g *Game) Object(id string) (*state.Object, bool) {
	obj, ok := g.store.Get(id)
	return obj.Clone(), ok
}

// Zone returns the object ids in a zone. Shared zones ignore player.
func (g *Game) Zone(player string, kind rules.ZoneKind) []string {
	return g.store.Zone(player, kind)
}

// Player returns a copy of a player's state.
func (g *Game) Player(id string) (*state.Player, bool) {
	p, ok := g.store.Player(id)
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Stack returns the stack, topmost last.
func (g *Game) Stack() []rules.StackItem {
	items := g.stack.List()
	for i := range items {
		items[i].Bindings = items[i].Bindings.Clone()
	}
	return items
}

// PendingDecision returns the outstanding decision, if any.
func (g *Game) PendingDecision() (*pipeline.Decision, bool) {
	if g.pending == nil {
		return nil, false
	}
	return g.pending.Decision.Clone(), true
}

// Step returns the current turn state: turn number, step and the active
// and priority players.
func (g *Game) Step() (rules.TurnState, rules.Step) {
	return g.tm.State(), g.tm.CurrentStep()
}

// TurnEvents returns the events committed since the current turn began.
func (g *Game) TurnEvents() []rules.Event {
	return append([]rules.Event(nil), g.turnEvents...)
}

// Log returns the actions applied so far.
func (g *Game) Log() []Action {
	out := make([]Action, len(g.log))
	for i, a := range g.log {
		out[i] = a.clone()
	}
	return out
}

// Holds evaluates a trigger precondition against the current state.
func (g *Game) Holds(cond *pipeline.Condition, scope pipeline.Scope) bool {
	return cond.Eval(g, scope)
}

// apnap returns the players still in the game, active player first.
func (g *Game) apnap() []string {
	return rules.APNAPOrder(g.store.LivePlayers(), g.tm.ActivePlayer())
}

// touch drops the cached projection after a mutation.
func (g *Game) touch() {
	g.view = nil
}
