package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/pipeline"
	"github.com/magefree/mage-rules-go/internal/game/targeting"
)

func TestDefaultCatalog(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)
	again, err := Default()
	require.NoError(t, err)
	assert.Same(t, reg, again)

	for _, name := range []string{"Forest", "Lightning Bolt", "Deep Research", "Field Captain", "Barracks Quartermaster", "Shield Transfer"} {
		_, ok := reg.Get(name)
		assert.True(t, ok, name)
	}

	bolt := reg.MustGet("lightning bolt")
	assert.Equal(t, "Lightning Bolt", bolt.Name)
	assert.True(t, bolt.InstantSpeed())
	assert.False(t, bolt.IsPermanent())

	research := reg.MustGet("Deep Research")
	require.Len(t, research.Program, 4)
	assert.Equal(t, pipeline.OpSelect, research.Program[1].Kind)
	assert.Equal(t, 2, research.Program[1].Count.Value)

	forest := reg.MustGet("Forest")
	assert.True(t, forest.IsLand())
	require.Len(t, forest.Activated, 1)
	assert.True(t, forest.Activated[0].Mana)

	captain := reg.MustGet("Field Captain")
	require.Len(t, captain.Statics, 1)
	assert.Equal(t, effects.ModStatDelta, captain.Statics[0].Mod.Kind)
	assert.True(t, captain.Statics[0].Filter.Other)

	aura := reg.MustGet("Holy Strength")
	slots := aura.CastSlots()
	require.Len(t, slots, 1)
	assert.Equal(t, EnchantSlot, slots[0].Name)
	assert.Equal(t, targeting.TargetTypeCreature, slots[0].Requirement.Type)

	names := reg.Names()
	assert.Equal(t, reg.Len(), len(names))
	assert.True(t, sortedStrings(names))
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] > s[i] {
			return false
		}
	}
	return true
}

func TestLoadYAML(t *testing.T) {
	t.Run("empty file", func(t *testing.T) {
		cards, err := LoadYAML(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, cards)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := LoadYAML(strings.NewReader("cards:\n  - name: Bear\n    types: [creature]\n    pwoer: 2\n"))
		assert.Error(t, err)
	})

	t.Run("targets inline", func(t *testing.T) {
		src := `
cards:
  - name: Shock
    mana_cost: "{R}"
    types: [instant]
    targets:
      - {name: target, type: any, description: any target}
    program:
      - {op: deal_damage, from: target, amount: 2}
`
		cards, err := LoadYAML(strings.NewReader(src))
		require.NoError(t, err)
		require.Len(t, cards, 1)
		require.Len(t, cards[0].Targets, 1)
		assert.Equal(t, "target", cards[0].Targets[0].Name)
		assert.Equal(t, targeting.TargetTypeAny, cards[0].Targets[0].Requirement.Type)
		assert.Equal(t, "any target", cards[0].Targets[0].Requirement.String())
		assert.NoError(t, cards[0].Validate())
	})
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	bear := Card{Name: "Grizzly Bears", ManaCost: "{1}{G}", Types: []string{"creature"}, Power: 2, Toughness: 2}
	loud := bear
	loud.Name = "GRIZZLY BEARS"

	_, err := NewRegistry(bear, loud)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	reg, err := NewRegistry(bear)
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())
	assert.Panics(t, func() { reg.MustGet("Llanowar Elves") })
}

func TestCardValidate(t *testing.T) {
	target := []TargetSlot{{Name: "target", Requirement: targeting.TargetRequirement{Type: targeting.TargetTypeAny}}}
	tests := []struct {
		name    string
		card    Card
		wantErr string
	}{
		{"no name", Card{Types: []string{"instant"}}, "without a name"},
		{"no types", Card{Name: "Blank"}, "at least one type"},
		{"bad cost", Card{Name: "Odd", ManaCost: "{Q}", Types: []string{"instant"}}, "unknown mana symbol"},
		{"bad static", Card{Name: "Anthem", Types: []string{"enchantment"},
			Statics: []effects.StaticAbility{{Mod: effects.Modification{Kind: effects.ModCostAdjust}}}}, "non-zero"},
		{"permanent with program", Card{Name: "Bear", Types: []string{"creature"},
			Program: pipeline.Program{{Kind: pipeline.OpDraw, Amount: pipeline.Fixed(1)}}}, "no spell program"},
		{"duplicate slot", Card{Name: "Twin Bolt", Types: []string{"instant"}, Targets: append(target, target...)}, "duplicate target slot"},
		{"unbound target", Card{Name: "Shock", Types: []string{"instant"},
			Program: pipeline.Program{{Kind: pipeline.OpDealDamage, From: "target", Amount: pipeline.Fixed(2)}}}, `"target"`},
		{"mana ability with targets", Card{Name: "Odd Land", Types: []string{"land"},
			Activated: []ActivatedAbility{{Tap: true, Mana: true, Targets: target,
				Program: pipeline.Program{{Kind: pipeline.OpAddMana, Mana: "G"}}}}}, "cannot target"},
		{"trigger without event", Card{Name: "Watcher", Types: []string{"creature"},
			Triggers: []TriggeredAbility{{Program: pipeline.Program{{Kind: pipeline.OpDraw, Amount: pipeline.Fixed(1)}}}}}, "needs an event"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.card.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("b.yml", "cards:\n  - name: Grizzly Bears\n    mana_cost: \"{1}{G}\"\n    types: [creature]\n    power: 2\n    toughness: 2\n")
	write("a.yaml", "cards:\n  - name: Forest\n    types: [land]\n    supertypes: [basic]\n")
	write("notes.txt", "not a card file")

	reg, err := LoadDir(context.Background(), dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"Forest", "Grizzly Bears"}, reg.Names())

	write("c.yaml", "cards:\n  - name: forest\n    types: [land]\n")
	_, err = LoadDir(context.Background(), dir, nil)
	assert.Error(t, err)

	_, err = LoadDir(context.Background(), filepath.Join(dir, "missing"), nil)
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	core, err := Default()
	require.NoError(t, err)
	extra, err := NewRegistry(Card{Name: "Hill Giant", ManaCost: "{3}{R}", Types: []string{"creature"}, Power: 3, Toughness: 3})
	require.NoError(t, err)

	merged, err := Merge(core, extra)
	require.NoError(t, err)
	assert.Equal(t, core.Len()+1, merged.Len())
	_, ok := merged.Get("hill giant")
	assert.True(t, ok)

	_, err = Merge(core, core)
	assert.Error(t, err)
}
