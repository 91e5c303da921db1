package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/magefree/mage-rules-go/internal/game"
	"github.com/magefree/mage-rules-go/internal/game/pipeline"
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

// kindPassUntil passes priority for whoever holds it until a turn and step
// is reached.
const kindPassUntil game.ActionKind = "pass_until"

// Scenario is a scripted game: a setup and the steps played from it.
// Cards are named instead of identified; "Name#2" picks the second match.
type Scenario struct {
	game.Setup `yaml:",inline"`
	Steps      []Step `yaml:"steps"`
}

// Step is one scripted input.
type Step struct {
	Do      game.ActionKind     `yaml:"do"`
	Player  string              `yaml:"player"`
	Card    string              `yaml:"card,omitempty"`
	Ability int                 `yaml:"ability,omitempty"`
	Targets map[string][]string `yaml:"targets,omitempty"`
	X       int                 `yaml:"x,omitempty"`
	Attack  map[string]string   `yaml:"attack,omitempty"`
	Block   map[string]string   `yaml:"block,omitempty"`
	Select  []string            `yaml:"select,omitempty"`
	Yes     bool                `yaml:"yes,omitempty"`
	Choice  int                 `yaml:"choice,omitempty"`
	Turn    int                 `yaml:"turn,omitempty"`
	Step    rules.Step          `yaml:"step,omitempty"`
	// Expect names the error code the step must be rejected with.
	Expect rules.Code `yaml:"expect,omitempty"`
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadScenario(f)
}

// ReadScenario decodes a scenario.
func ReadScenario(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if sc.GameID == "" {
		return nil, errors.New("scenario needs a game_id")
	}
	return &sc, nil
}

// names resolves card names to object ids inside one game.
type names struct {
	g *game.Game
}

func splitIndex(ref string) (string, int) {
	name, idx, ok := strings.Cut(ref, "#")
	if !ok {
		return ref, 1
	}
	n, err := strconv.Atoi(idx)
	if err != nil || n < 1 {
		return ref, 1
	}
	return name, n
}

// object finds a card by name in the given zones. An empty controller
// matches any player.
func (n names) object(controller, ref string, zones ...rules.ZoneKind) (string, error) {
	name, nth := splitIndex(ref)
	seen := 0
	for _, zone := range zones {
		owners := []string{controller}
		if !zone.Shared() && controller == "" {
			owners = n.g.Players()
		}
		for _, owner := range owners {
			for _, id := range n.g.Zone(owner, zone) {
				obj, ok := n.g.Object(id)
				if !ok || !strings.EqualFold(obj.Card, name) {
					continue
				}
				if zone.Shared() && controller != "" {
					if c, ok := n.g.Characteristics(id); !ok || c.Controller != controller {
						continue
					}
				}
				seen++
				if seen == nth {
					return id, nil
				}
			}
		}
	}
	if controller == "" {
		return "", fmt.Errorf("no %s in %v", ref, zones)
	}
	return "", fmt.Errorf("%s has no %s in %v", controller, ref, zones)
}

// ref resolves a target reference: a player, an object id, or a card name
// on the battlefield, the stack or in a graveyard.
func (n names) ref(ref string) (string, error) {
	if _, ok := n.g.Player(ref); ok {
		return ref, nil
	}
	if _, ok := n.g.Object(ref); ok {
		return ref, nil
	}
	return n.object("", ref, rules.ZoneBattlefield, rules.ZoneStack, rules.ZoneGraveyard)
}

func (n names) refs(in map[string][]string) (map[string][]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string][]string, len(in))
	for slot, refs := range in {
		for _, r := range refs {
			id, err := n.ref(r)
			if err != nil {
				return nil, fmt.Errorf("slot %s: %w", slot, err)
			}
			out[slot] = append(out[slot], id)
		}
	}
	return out, nil
}

// option maps a card name onto one of a decision's options. Options that
// are not objects are matched as written.
func (n names) option(d *pipeline.Decision, ref string, used map[string]bool) (string, error) {
	name, nth := splitIndex(ref)
	seen := 0
	for _, opt := range d.Options {
		if used[opt] {
			continue
		}
		label := opt
		if obj, ok := n.g.Object(opt); ok {
			label = obj.Card
		}
		if opt == ref || strings.EqualFold(label, name) {
			seen++
			if seen == nth {
				return opt, nil
			}
		}
	}
	return "", fmt.Errorf("%s is not an option of decision %s", ref, d.ID)
}

// action turns a step into an engine action.
func (n names) action(s Step) (game.Action, error) {
	a := game.Action{Kind: s.Do, Player: s.Player, Ability: s.Ability, X: s.X}
	var err error
	switch s.Do {
	case game.ActionCast, game.ActionPlayLand:
		if a.Object, err = n.object(s.Player, s.Card, rules.ZoneHand); err != nil {
			return a, err
		}
		a.Targets, err = n.refs(s.Targets)
	case game.ActionActivate:
		if a.Object, err = n.object(s.Player, s.Card, rules.ZoneBattlefield); err != nil {
			return a, err
		}
		a.Targets, err = n.refs(s.Targets)
	case game.ActionDeclareAttackers:
		a.Attackers = make(map[string]string, len(s.Attack))
		for attacker, defender := range s.Attack {
			id, err := n.object(s.Player, attacker, rules.ZoneBattlefield)
			if err != nil {
				return a, err
			}
			a.Attackers[id] = defender
		}
	case game.ActionDeclareBlockers:
		a.Blockers = make(map[string]string, len(s.Block))
		for blocker, attacker := range s.Block {
			bid, err := n.object(s.Player, blocker, rules.ZoneBattlefield)
			if err != nil {
				return a, err
			}
			aid, err := n.object("", attacker, rules.ZoneBattlefield)
			if err != nil {
				return a, err
			}
			a.Blockers[bid] = aid
		}
	case game.ActionRespond:
		d, ok := n.g.PendingDecision()
		if !ok {
			return a, errors.New("respond without a pending decision")
		}
		resp := &pipeline.Response{DecisionID: d.ID, Yes: s.Yes, Choice: s.Choice}
		used := make(map[string]bool)
		for _, ref := range s.Select {
			opt, err := n.option(d, ref, used)
			if err != nil {
				return a, err
			}
			used[opt] = true
			resp.Selected = append(resp.Selected, opt)
		}
		if resp.Slots, err = n.refs(s.Targets); err != nil {
			return a, err
		}
		a.Response = resp
	}
	return a, err
}
