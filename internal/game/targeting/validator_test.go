package targeting

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

func testValidator() *TargetValidator {
	objects := []*effects.Characteristics{
		{ID: "bear", Name: "Bear", Controller: "alice", Owner: "alice", Zone: rules.ZoneBattlefield, Types: []string{"creature"}, Power: 2, Toughness: 2},
		{ID: "ward", Name: "Ward", Controller: "bob", Owner: "bob", Zone: rules.ZoneBattlefield, Types: []string{"creature"}, Keywords: []string{"hexproof"}},
		{ID: "cloak", Name: "Cloak", Controller: "alice", Owner: "alice", Zone: rules.ZoneBattlefield, Types: []string{"creature"}, Keywords: []string{"shroud"}},
		{ID: "rock", Name: "Rock", Controller: "bob", Owner: "bob", Zone: rules.ZoneBattlefield, Types: []string{"artifact"}},
		{ID: "bolt", Name: "Bolt", Controller: "bob", Owner: "bob", Zone: rules.ZoneStack, Types: []string{"instant"}},
		{ID: "corpse", Name: "Corpse", Owner: "alice", Controller: "alice", Zone: rules.ZoneGraveyard, Types: []string{"creature"}},
	}
	view := effects.NewView(objects, []string{"alice", "bob"})
	players := []PlayerInfo{{ID: "alice"}, {ID: "bob"}, {ID: "carol", Lost: true}}
	stack := []StackInfo{{ID: "bolt", Controller: "bob", Kind: rules.StackItemKindSpell}}
	return NewTargetValidator(view, players, stack)
}

func TestLegalTargets(t *testing.T) {
	tv := testValidator()
	ctx := effects.FilterContext{SourceID: "src", Controller: "alice"}

	tests := []struct {
		name string
		req  TargetRequirement
		want []string
	}{
		{"creature", TargetRequirement{Type: TargetTypeCreature}, []string{"bear"}},
		{"any", TargetRequirement{Type: TargetTypeAny}, []string{"alice", "bob", "bear"}},
		{"opponent", TargetRequirement{Type: TargetTypePlayer, Player: effects.RelationOpponent}, []string{"bob"}},
		{"permanent you don't control", TargetRequirement{Type: TargetTypePermanent, Filter: &effects.Filter{Controller: effects.RelationOpponent}}, []string{"rock"}},
		{"spell", TargetRequirement{Type: TargetTypeSpell}, []string{"bolt"}},
		{"card in graveyard", TargetRequirement{Type: TargetTypeCard, Filter: &effects.Filter{Zones: []rules.ZoneKind{rules.ZoneGraveyard}}}, []string{"corpse"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tv.LegalTargets(tt.req, ctx))
		})
	}
}

func TestValidateTargetHexproofForController(t *testing.T) {
	tv := testValidator()
	req := TargetRequirement{Type: TargetTypeCreature}

	err := tv.ValidateTarget("ward", req, effects.FilterContext{Controller: "alice"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, rules.ErrIllegalAction))
	assert.Equal(t, rules.CodeInvalidTarget, rules.CodeOf(err))

	assert.NoError(t, tv.ValidateTarget("ward", req, effects.FilterContext{Controller: "bob"}))
	assert.Error(t, tv.ValidateTarget("bolt", TargetRequirement{Type: TargetTypeSpell}, effects.FilterContext{SourceID: "bolt"}))
}

func TestValidateTargetSelection(t *testing.T) {
	tv := testValidator()
	ctx := effects.FilterContext{Controller: "alice"}
	upToTwo := TargetRequirement{Type: TargetTypeAny, MinTargets: 0, MaxTargets: 2}

	assert.NoError(t, tv.ValidateTargetSelection(&TargetSelection{Targets: []string{"bob", "bear"}, Requirement: upToTwo}, ctx))
	assert.NoError(t, tv.ValidateTargetSelection(&TargetSelection{Requirement: upToTwo}, ctx))
	assert.Error(t, tv.ValidateTargetSelection(&TargetSelection{Targets: []string{"bob", "bob"}, Requirement: upToTwo}, ctx))
	assert.Error(t, tv.ValidateTargetSelection(&TargetSelection{Targets: []string{"carol"}, Requirement: upToTwo}, ctx))
	assert.Error(t, tv.ValidateTargetSelection(&TargetSelection{Requirement: TargetRequirement{Type: TargetTypeCreature}}, ctx))

	assert.Equal(t, []string{"bear"}, tv.StillLegal([]string{"bear", "gone", "rock"}, TargetRequirement{Type: TargetTypeCreature}, ctx))
}

func TestTargetRequirementBounds(t *testing.T) {
	minTargets, maxTargets := TargetRequirement{Type: TargetTypeCreature}.Bounds()
	assert.Equal(t, 1, minTargets)
	assert.Equal(t, 1, maxTargets)

	minTargets, maxTargets = TargetRequirement{MinTargets: 2}.Bounds()
	assert.Equal(t, 2, minTargets)
	assert.Equal(t, 2, maxTargets)

	assert.Error(t, TargetRequirement{Type: "planet"}.Validate())
	assert.Error(t, TargetRequirement{Type: TargetTypeCard}.Validate())
	assert.Equal(t, "target creature", TargetRequirement{Type: TargetTypeCreature}.String())
	assert.Equal(t, []string{"a", "b"}, ParseTargets(FormatTargets([]string{"a", "b"})))
}
