package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"github.com/magefree/mage-rules-go/internal/game/catalog"
	"github.com/magefree/mage-rules-go/internal/game/pipeline"
	mockrandom "github.com/magefree/mage-rules-go/internal/game/random/mock"
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

func checksum(t *testing.T, g *Game) string {
	t.Helper()
	sum, err := g.Checksum()
	require.NoError(t, err)
	return sum
}

// suspendedResearch stops Deep Research at its select decision.
func suspendedResearch(t *testing.T) *harness {
	t.Helper()
	library := []string{"Grizzly Bears", "Forest", "Island", "Serra Angel", "Swamp", "Mountain", "Plains", "Raging Goblin"}
	h := newHarness(t,
		Seat{Player: alice, Library: library, Hand: []string{"Deep Research"}, Battlefield: repeat("Island", 3)},
		Seat{Player: bob, Library: repeat("Forest", 5)},
	)
	h.passUntil(1, rules.StepMain1)
	h.tapFor(alice, "Island", 3)
	h.cast(alice, "Deep Research", nil)
	h.resolve()
	_, ok := h.g.PendingDecision()
	require.True(t, ok)
	return h
}

func TestSnapshotRestoreMidResolution(t *testing.T) {
	h := suspendedResearch(t)
	data, err := h.g.Snapshot()
	require.NoError(t, err)

	restored, err := Restore(data, defaultCards(t), nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, checksum(t, h.g), checksum(t, restored))

	d, ok := restored.PendingDecision()
	require.True(t, ok)
	want, _ := h.g.PendingDecision()
	assert.Equal(t, want, d)
	assert.Equal(t, h.g.Stack(), restored.Stack())
	assert.Equal(t, h.g.TurnEvents(), restored.TurnEvents())
	assert.Equal(t, 1, restored.Stat(pipeline.StatSpellsCastThisTurn, alice), "watchers are rebuilt from the turn's events")

	// Both copies continue the same way.
	resp := &pipeline.Response{DecisionID: d.ID, Selected: d.Options[:2]}
	r1 := h.g.Apply(Action{Kind: ActionRespond, Player: alice, Response: resp})
	require.NoError(t, r1.Err)
	r2 := restored.Apply(Action{Kind: ActionRespond, Player: alice, Response: resp})
	require.NoError(t, r2.Err)
	assert.Equal(t, r1.Events, r2.Events)
	assert.Equal(t, checksum(t, h.g), checksum(t, restored))
	assert.Len(t, restored.Zone(alice, rules.ZoneHand), 2)
}

func TestSuspendResumeMatchesSingleShotAcrossSnapshots(t *testing.T) {
	// Answering straight away and answering after a round trip through
	// JSON end in the same state.
	direct := suspendedResearch(t)
	d, _ := direct.g.PendingDecision()
	resp := &pipeline.Response{DecisionID: d.ID, Selected: []string{d.Options[1], d.Options[4]}}
	direct.apply(Action{Kind: ActionRespond, Player: alice, Response: resp})

	saved := suspendedResearch(t)
	data, err := saved.g.Snapshot()
	require.NoError(t, err)
	g, err := Restore(data, defaultCards(t), nil, nil)
	require.NoError(t, err)
	require.NoError(t, g.Apply(Action{Kind: ActionRespond, Player: alice, Response: resp}).Err)

	assert.Equal(t, checksum(t, direct.g), checksum(t, g))
}

func TestRejectedActionLeavesStateUntouched(t *testing.T) {
	h := suspendedResearch(t)
	before := checksum(t, h.g)
	d, _ := h.g.PendingDecision()

	h.reject(Action{Kind: ActionRespond, Player: alice, Response: &pipeline.Response{DecisionID: d.ID, Selected: d.Options[:1]}}, rules.CodeInvalidResponse)
	h.reject(Action{Kind: ActionRespond, Player: alice, Response: &pipeline.Response{DecisionID: "other", Selected: d.Options[:2]}}, rules.CodeInvalidResponse)
	h.reject(Action{Kind: ActionCast, Player: alice, Object: "x"}, rules.CodeDecisionPending)
	assert.Equal(t, before, checksum(t, h.g))

	h.apply(Action{Kind: ActionRespond, Player: alice, Response: &pipeline.Response{DecisionID: d.ID, Selected: d.Options[:2]}})
	assert.NotEqual(t, before, checksum(t, h.g))
}

func TestRollbackSharesHistoryPrefix(t *testing.T) {
	h := suspendedResearch(t)
	log, events := h.g.Log(), h.g.TurnEvents()
	require.NotEmpty(t, log)
	require.NotEmpty(t, events)

	cp := h.g.capture()
	assert.Same(t, &h.g.log[0], &cp.Log[0], "the log is shared, not copied")
	assert.Same(t, &h.g.turnEvents[0], &cp.TurnEvents[0])
	assert.Equal(t, len(cp.Log), cap(cp.Log))

	h.reject(Action{Kind: ActionCast, Player: alice, Object: "x"}, rules.CodeDecisionPending)
	assert.Equal(t, log, h.g.Log())
	assert.Equal(t, events, h.g.TurnEvents())

	d, _ := h.g.PendingDecision()
	h.apply(Action{Kind: ActionRespond, Player: alice, Response: &pipeline.Response{DecisionID: d.ID, Selected: d.Options[:2]}})
	require.Len(t, h.g.Log(), len(log)+1)
	assert.Equal(t, log, h.g.Log()[:len(log)])
	assert.Len(t, cp.Log, len(log), "an earlier checkpoint does not see later actions")
	assert.Len(t, cp.TurnEvents, len(events))
}

func TestRestoreRejectsBadCheckpoints(t *testing.T) {
	h := newHarness(t,
		Seat{Player: alice, Library: repeat("Plains", 5)},
		Seat{Player: bob, Library: repeat("Forest", 5)},
	)
	data, err := h.g.Snapshot()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	raw["version"] = 99
	wrongVersion, err := json.Marshal(raw)
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte("{not json")},
		{"wrong version", wrongVersion},
		{"no store", []byte(`{"version":1}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Restore(tt.data, defaultCards(t), nil, nil)
			assert.Error(t, err)
		})
	}
}

func TestRestoredRandomSourceContinues(t *testing.T) {
	cfg := DefaultConfig()
	setup := Setup{GameID: "rng", Seed: 11, Seats: []Seat{
		{Player: alice, Library: append(repeat("Forest", 10), repeat("Mountain", 10)...)},
		{Player: bob, Library: append(repeat("Swamp", 10), repeat("Island", 10)...)},
	}}
	g, err := New(setup, defaultCards(t), nil, cfg, nil)
	require.NoError(t, err)
	data, err := g.Snapshot()
	require.NoError(t, err)
	restored, err := Restore(data, defaultCards(t), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, g.rng.Position(), restored.rng.Position())
	assert.Equal(t, g.rng.Intn(1000), restored.rng.Intn(1000))
}

func TestInjectedRandomSource(t *testing.T) {
	ctrl := gomock.NewController(t)
	rng := mockrandom.NewMockSource(ctrl)
	rng.EXPECT().Intn(2).Return(0)
	rng.EXPECT().Position().Return(int64(1)).AnyTimes()

	setup := Setup{GameID: "coin", Seats: []Seat{
		{Player: alice, Library: repeat("Plains", 5), Hand: []string{"Coin Strike"}, Battlefield: []string{"Mountain", "Mountain"}},
		{Player: bob, Library: repeat("Forest", 5)},
	}}
	g, err := New(setup, defaultCards(t), rng, testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	h := &harness{t: t, g: g}
	h.passUntil(1, rules.StepMain1)
	h.tapFor(alice, "Mountain", 2)
	h.cast(alice, "Coin Strike", map[string][]string{"target": {bob}})
	h.resolve()
	assert.Equal(t, 16, h.life(bob), "the mock wins the flip")
}

func TestInvariantViolationHaltsTheGame(t *testing.T) {
	h := newHarness(t,
		Seat{Player: alice, Library: repeat("Mountain", 5), Hand: []string{"Lightning Bolt"}, Battlefield: []string{"Mountain"}},
		Seat{Player: bob, Library: repeat("Forest", 5)},
	)
	h.passUntil(1, rules.StepMain1)
	data, err := h.g.Snapshot()
	require.NoError(t, err)

	// The restored game is played against a catalog that lost the card.
	var kept []catalog.Card
	for _, card := range defaultCards(t).Cards() {
		if card.Name != "Lightning Bolt" {
			kept = append(kept, card)
		}
	}
	cards, err := catalog.NewRegistry(kept...)
	require.NoError(t, err)
	g, err := Restore(data, cards, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	bolt := h.id(alice, rules.ZoneHand, "Lightning Bolt")
	res := g.Apply(Action{Kind: ActionCast, Player: alice, Object: bolt, Targets: map[string][]string{"target": {bob}}})
	require.ErrorIs(t, res.Err, rules.ErrGameHalted)
	assert.ErrorContains(t, res.Err, "invariant violation")
	require.Error(t, g.Halted())

	res = g.Apply(Action{Kind: ActionPass, Player: alice})
	assert.ErrorIs(t, res.Err, rules.ErrGameHalted)

	data, err = g.Snapshot()
	require.NoError(t, err)
	again, err := Restore(data, defaultCards(t), nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Error(t, again.Halted(), "a halted game stays halted")
	assert.ErrorIs(t, again.Apply(Action{Kind: ActionPass, Player: alice}).Err, rules.ErrGameHalted)
}
