package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"github.com/magefree/mage-rules-go/internal/config"
	"github.com/magefree/mage-rules-go/internal/game"
	"github.com/magefree/mage-rules-go/internal/game/catalog"
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

func scenarioManager(t *testing.T, recorder *game.Recorder) *game.Manager {
	t.Helper()
	cards, err := catalog.Default()
	require.NoError(t, err)
	cfg := game.DefaultConfig()
	cfg.HandSize = 0
	cfg.Shuffle = false
	var opts []game.ManagerOption
	if recorder != nil {
		opts = append(opts, game.WithRecorder(recorder))
	}
	return game.NewManager(cards, cfg, zaptest.NewLogger(t), opts...)
}

func TestScenarioPlaysThrough(t *testing.T) {
	sc, err := LoadScenario("testdata/bolt_and_research.yaml")
	require.NoError(t, err)
	assert.Equal(t, "bolt-and-research", sc.GameID)
	assert.Equal(t, rules.StepMain1, sc.Steps[0].Step)
	assert.Equal(t, rules.CodeNoPriority, sc.Steps[1].Expect)

	m := scenarioManager(t, nil)
	require.NoError(t, m.Create(sc.Setup))

	var out bytes.Buffer
	require.NoError(t, NewRunner(m, sc.GameID, &out, zaptest.NewLogger(t)).Run(sc.Steps))
	assert.Contains(t, out.String(), "rejected pass by bob")

	var s *Summary
	require.NoError(t, m.With(sc.GameID, func(g *game.Game) error {
		s, err = Summarize(g)
		return err
	}))
	assert.Equal(t, 1, s.Turn)
	assert.Equal(t, "MAIN1", s.Step)
	require.Len(t, s.Players, 2)
	alice, bob := s.Players[0], s.Players[1]
	assert.ElementsMatch(t, []string{"Forest", "Island"}, alice.Hand)
	assert.Contains(t, alice.Graveyard, "Lightning Bolt")
	assert.Contains(t, alice.Graveyard, "Deep Research")
	assert.Equal(t, 1, alice.Library)
	assert.Equal(t, []string{"Grizzly Bears"}, bob.Graveyard)
	assert.Empty(t, bob.Battlefield)
	assert.Empty(t, s.Stack)
	assert.Empty(t, s.Pending)

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, s))
	var back Summary
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, *s, back)
}

func TestScenarioStopsOnUnexpectedResult(t *testing.T) {
	tests := []struct {
		name  string
		steps string
		want  string
	}{
		{"illegal action", "- {do: pass, player: bob}", "step 1"},
		{"missing expectation", "- {do: pass, player: alice, expect: no_priority}", "expected no_priority"},
		{"unknown card", "- {do: cast, player: alice, card: Black Lotus}", "Black Lotus"},
		{"respond without decision", "- {do: respond, player: alice, select: [Forest]}", "pending decision"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := "game_id: g\nseats:\n  - {player: alice, library: [Forest, Forest]}\n  - {player: bob, library: [Forest, Forest]}\nsteps:\n" + tt.steps + "\n"
			sc, err := ReadScenario(strings.NewReader(body))
			require.NoError(t, err)
			m := scenarioManager(t, nil)
			require.NoError(t, m.Create(sc.Setup))
			err = NewRunner(m, sc.GameID, &bytes.Buffer{}, nil).Run(sc.Steps)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadScenarioRejects(t *testing.T) {
	_, err := ReadScenario(strings.NewReader("seats: []\n"))
	assert.ErrorContains(t, err, "game_id")
	_, err = ReadScenario(strings.NewReader("game_id: g\nbogus: 1\n"))
	assert.Error(t, err)
	_, err = ReadScenario(strings.NewReader("game_id: g\nsteps:\n  - {do: pass_until, step: NOWHERE}\n"))
	assert.Error(t, err)
}

func TestSplitIndex(t *testing.T) {
	tests := []struct {
		ref  string
		name string
		n    int
	}{
		{"Island", "Island", 1},
		{"Island#3", "Island", 3},
		{"Island#0", "Island#0", 1},
		{"Island#x", "Island#x", 1},
	}
	for _, tt := range tests {
		name, n := splitIndex(tt.ref)
		assert.Equal(t, tt.name, name, tt.ref)
		assert.Equal(t, tt.n, n, tt.ref)
	}
}

func TestRecordedScenarioReplays(t *testing.T) {
	dir := t.TempDir()
	recorder := game.NewRecorder(zaptest.NewLogger(t), dir)
	m := scenarioManager(t, recorder)
	sc, err := LoadScenario("testdata/bolt_and_research.yaml")
	require.NoError(t, err)
	require.NoError(t, m.Create(sc.Setup))
	require.NoError(t, NewRunner(m, sc.GameID, &bytes.Buffer{}, nil).Run(sc.Steps))
	require.NoError(t, recorder.Save(sc.GameID))

	cfg := &config.Config{Replay: config.ReplayConfig{Dir: dir}}
	cards, err := catalog.Default()
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, replay(cfg, cards, sc.GameID, &out, zaptest.NewLogger(t)))
	assert.Contains(t, out.String(), "replayed")
	assert.Contains(t, out.String(), "Grizzly Bears")
}

func TestInitLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := initLogger(config.LoggingConfig{Level: "debug", Format: format})
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(-1))
	}
}

func TestLoadCatalogWithExtraDirectory(t *testing.T) {
	cards, err := loadCatalog(t.Context(), config.CatalogConfig{Paths: []string{"testdata/cards"}}, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, ok := cards.Get("Hill Giant")
	assert.True(t, ok)
	_, ok = cards.Get("Lightning Bolt")
	assert.True(t, ok)
}
