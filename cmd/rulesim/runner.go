package main

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/magefree/mage-rules-go/internal/game"
	"github.com/magefree/mage-rules-go/internal/game/pipeline"
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

// maxPasses bounds a pass_until step.
const maxPasses = 500

// Runner plays a scenario on a managed game and prints what happens.
type Runner struct {
	m      *game.Manager
	gameID string
	out    io.Writer
	logger *zap.Logger
}

// NewRunner creates a runner for a game the manager already hosts.
func NewRunner(m *game.Manager, gameID string, out io.Writer, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{m: m, gameID: gameID, out: out, logger: logger}
}

// Run plays every step in order and stops at the first unexpected result.
func (r *Runner) Run(steps []Step) error {
	for i, s := range steps {
		if err := r.step(s); err != nil {
			return fmt.Errorf("step %d (%s by %s): %w", i+1, s.Do, s.Player, err)
		}
	}
	return nil
}

func (r *Runner) step(s Step) error {
	if s.Do == kindPassUntil {
		return r.passUntil(s.Turn, s.Step)
	}
	var a game.Action
	err := r.m.With(r.gameID, func(g *game.Game) error {
		var err error
		a, err = names{g: g}.action(s)
		return err
	})
	if err != nil {
		return err
	}
	res, err := r.m.Apply(r.gameID, a)
	if err != nil {
		return err
	}
	if s.Expect != "" {
		if got := rules.CodeOf(res.Err); got != s.Expect {
			return fmt.Errorf("expected %s, got %v", s.Expect, res.Err)
		}
		fmt.Fprintf(r.out, "rejected %s by %s: %v\n", s.Do, s.Player, res.Err)
		return nil
	}
	if res.Err != nil {
		return res.Err
	}
	r.print(res.Events)
	return nil
}

// passUntil passes priority until turn and step are reached. Attack and
// block declarations met on the way are answered with nothing.
func (r *Runner) passUntil(turn int, step rules.Step) error {
	for i := 0; i < maxPasses; i++ {
		var (
			a    game.Action
			done bool
		)
		err := r.m.With(r.gameID, func(g *game.Game) error {
			if over, _ := g.Over(); over {
				done = true
				return nil
			}
			ts, current := g.Step()
			if ts.TurnNumber > turn || (ts.TurnNumber == turn && current == step) {
				done = true
				return nil
			}
			if d, ok := g.PendingDecision(); ok {
				switch d.Kind {
				case pipeline.DecisionDeclareAttackers:
					a = game.Action{Kind: game.ActionDeclareAttackers, Player: d.Player}
				case pipeline.DecisionDeclareBlockers:
					a = game.Action{Kind: game.ActionDeclareBlockers, Player: d.Player}
				default:
					return fmt.Errorf("decision %s (%s) is waiting for %s", d.ID, d.Kind, d.Player)
				}
				return nil
			}
			a = game.Action{Kind: game.ActionPass, Player: ts.PriorityPlayer}
			return nil
		})
		if err != nil || done {
			return err
		}
		res, err := r.m.Apply(r.gameID, a)
		if err != nil {
			return err
		}
		if res.Err != nil {
			return res.Err
		}
		r.print(res.Events)
	}
	return fmt.Errorf("turn %d %s not reached after %d passes", turn, step, maxPasses)
}

func (r *Runner) print(events []rules.Event) {
	for _, e := range events {
		var b strings.Builder
		fmt.Fprintf(&b, "  %-22s", e.Type)
		if e.TargetID != "" {
			fmt.Fprintf(&b, " target=%s", e.TargetID)
		}
		if e.SourceID != "" {
			fmt.Fprintf(&b, " source=%s", e.SourceID)
		}
		if e.Amount != 0 {
			fmt.Fprintf(&b, " amount=%d", e.Amount)
		}
		if e.Type == rules.EventZoneChange {
			fmt.Fprintf(&b, " %s->%s", e.From, e.To)
		}
		if e.Description != "" {
			fmt.Fprintf(&b, " (%s)", e.Description)
		}
		fmt.Fprintln(r.out, b.String())
	}
	r.logger.Debug("events committed", zap.String("game_id", r.gameID), zap.Int("events", len(events)))
}

// Summary is the printed end state of a game.
type Summary struct {
	GameID   string          `yaml:"game_id"`
	Turn     int             `yaml:"turn"`
	Step     string          `yaml:"step"`
	Over     bool            `yaml:"over"`
	Winner   string          `yaml:"winner,omitempty"`
	Players  []PlayerSummary `yaml:"players"`
	Stack    []string        `yaml:"stack,omitempty"`
	Pending  string          `yaml:"pending,omitempty"`
	Checksum string          `yaml:"checksum"`
}

// PlayerSummary is one player's part of a Summary.
type PlayerSummary struct {
	ID          string   `yaml:"id"`
	Life        int      `yaml:"life"`
	Poison      int      `yaml:"poison,omitempty"`
	Lost        bool     `yaml:"lost,omitempty"`
	Library     int      `yaml:"library"`
	Hand        []string `yaml:"hand,omitempty"`
	Battlefield []string `yaml:"battlefield,omitempty"`
	Graveyard   []string `yaml:"graveyard,omitempty"`
}

// Summarize describes the current state of a game.
func Summarize(g *game.Game) (*Summary, error) {
	ts, step := g.Step()
	over, winner := g.Over()
	sum, err := g.Checksum()
	if err != nil {
		return nil, err
	}
	s := &Summary{
		GameID:   g.ID(),
		Turn:     ts.TurnNumber,
		Step:     step.String(),
		Over:     over,
		Winner:   winner,
		Checksum: sum,
	}
	for _, item := range g.Stack() {
		s.Stack = append(s.Stack, item.Description)
	}
	if d, ok := g.PendingDecision(); ok {
		s.Pending = fmt.Sprintf("%s for %s: %s", d.Kind, d.Player, d.Prompt)
	}

	cardNames := func(ids []string) []string {
		var out []string
		for _, id := range ids {
			if obj, ok := g.Object(id); ok {
				out = append(out, obj.Card)
			}
		}
		return out
	}
	for _, id := range g.Players() {
		p, _ := g.Player(id)
		ps := PlayerSummary{
			ID:        id,
			Life:      p.Life,
			Poison:    p.Poison(),
			Lost:      p.Lost,
			Library:   len(g.Zone(id, rules.ZoneLibrary)),
			Hand:      cardNames(g.Zone(id, rules.ZoneHand)),
			Graveyard: cardNames(g.Zone(id, rules.ZoneGraveyard)),
		}
		for _, oid := range g.Zone(id, rules.ZoneBattlefield) {
			c, ok := g.Characteristics(oid)
			if !ok || c.Controller != id {
				continue
			}
			ps.Battlefield = append(ps.Battlefield, describePermanent(c.Name, c.Types, c.Power, c.Toughness, c.Tapped))
		}
		s.Players = append(s.Players, ps)
	}
	return s, nil
}

func describePermanent(name string, types []string, power, toughness int, tapped bool) string {
	desc := name
	for _, t := range types {
		if t == "creature" {
			desc = fmt.Sprintf("%s %d/%d", name, power, toughness)
			break
		}
	}
	if tapped {
		desc += " (tapped)"
	}
	return desc
}

// WriteSummary prints a summary as YAML.
func WriteSummary(w io.Writer, s *Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}
