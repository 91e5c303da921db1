package rules

import (
	"fmt"
	"strings"
)

// Phase represents the broad phases of a turn.
type Phase int

const (
	PhaseBeginning Phase = iota
	PhasePrecombatMain
	PhaseCombat
	PhasePostcombatMain
	PhaseEnding
)

var phaseNames = map[Phase]string{
	PhaseBeginning:      "BEGINNING",
	PhasePrecombatMain:  "PRECOMBAT_MAIN",
	PhaseCombat:         "COMBAT",
	PhasePostcombatMain: "POSTCOMBAT_MAIN",
	PhaseEnding:         "ENDING",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// Step represents the individual steps that comprise a turn.
type Step int

const (
	StepUntap Step = iota
	StepUpkeep
	StepDraw
	StepMain1
	StepBeginCombat
	StepDeclareAttackers
	StepDeclareBlockers
	StepFirstStrikeDamage
	StepCombatDamage
	StepEndCombat
	StepMain2
	StepEnd
	StepCleanup
)

var stepNames = map[Step]string{
	StepUntap:             "UNTAP",
	StepUpkeep:            "UPKEEP",
	StepDraw:              "DRAW",
	StepMain1:             "MAIN1",
	StepBeginCombat:       "BEGIN_COMBAT",
	StepDeclareAttackers:  "DECLARE_ATTACKERS",
	StepDeclareBlockers:   "DECLARE_BLOCKERS",
	StepFirstStrikeDamage: "FIRST_STRIKE_DAMAGE",
	StepCombatDamage:      "COMBAT_DAMAGE",
	StepEndCombat:         "END_COMBAT",
	StepMain2:             "MAIN2",
	StepEnd:               "END",
	StepCleanup:           "CLEANUP",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STEP_%d", int(s))
}

// IsMain reports whether the step is one of the two main phases.
func (s Step) IsMain() bool {
	return s == StepMain1 || s == StepMain2
}

// ParseStep converts a step name into a Step.
func ParseStep(name string) (Step, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	for step, stepName := range stepNames {
		if stepName == key {
			return step, nil
		}
	}
	return 0, fmt.Errorf("unknown step %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Step) UnmarshalText(text []byte) error {
	parsed, err := ParseStep(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type turnEntry struct {
	phase Phase
	step  Step
}

// turnSequence lists every step. The first strike damage step is skipped
// unless the caller asks for it when advancing.
var turnSequence = []turnEntry{
	{PhaseBeginning, StepUntap},
	{PhaseBeginning, StepUpkeep},
	{PhaseBeginning, StepDraw},
	{PhasePrecombatMain, StepMain1},
	{PhaseCombat, StepBeginCombat},
	{PhaseCombat, StepDeclareAttackers},
	{PhaseCombat, StepDeclareBlockers},
	{PhaseCombat, StepFirstStrikeDamage},
	{PhaseCombat, StepCombatDamage},
	{PhaseCombat, StepEndCombat},
	{PhasePostcombatMain, StepMain2},
	{PhaseEnding, StepEnd},
	{PhaseEnding, StepCleanup},
}

// TurnState is the serializable form of a TurnManager.
type TurnState struct {
	OrderIndex     int    `json:"order_index"`
	TurnNumber     int    `json:"turn_number"`
	ActivePlayer   string `json:"active_player"`
	PriorityPlayer string `json:"priority_player"`
	FirstStrike    bool   `json:"first_strike"`
}

// TurnManager tracks active/priority player and turn progression.
type TurnManager struct {
	orderIndex     int
	turnNumber     int
	activePlayer   string
	priorityPlayer string
	firstStrike    bool
}

// NewTurnManager creates a new turn manager initialized at turn 1, untap step.
func NewTurnManager(activePlayer string) *TurnManager {
	active := strings.TrimSpace(activePlayer)
	return &TurnManager{
		turnNumber:     1,
		activePlayer:   active,
		priorityPlayer: active,
	}
}

// RestoreTurnManager rebuilds a manager from its serialized state.
func RestoreTurnManager(state TurnState) *TurnManager {
	return &TurnManager{
		orderIndex:     state.OrderIndex,
		turnNumber:     state.TurnNumber,
		activePlayer:   state.ActivePlayer,
		priorityPlayer: state.PriorityPlayer,
		firstStrike:    state.FirstStrike,
	}
}

// State returns the serializable state.
func (tm *TurnManager) State() TurnState {
	return TurnState{
		OrderIndex:     tm.orderIndex,
		TurnNumber:     tm.turnNumber,
		ActivePlayer:   tm.activePlayer,
		PriorityPlayer: tm.priorityPlayer,
		FirstStrike:    tm.firstStrike,
	}
}

// CurrentPhase returns the phase currently in progress.
func (tm *TurnManager) CurrentPhase() Phase {
	return turnSequence[tm.orderIndex].phase
}

// CurrentStep returns the step currently in progress.
func (tm *TurnManager) CurrentStep() Step {
	return turnSequence[tm.orderIndex].step
}

// TurnNumber returns the current turn number (1-based).
func (tm *TurnManager) TurnNumber() int {
	return tm.turnNumber
}

// ActivePlayer returns the player who currently has the turn.
func (tm *TurnManager) ActivePlayer() string {
	return tm.activePlayer
}

// PriorityPlayer returns the player who currently has priority.
func (tm *TurnManager) PriorityPlayer() string {
	return tm.priorityPlayer
}

// SetPriority sets the player who currently has priority.
func (tm *TurnManager) SetPriority(player string) {
	tm.priorityPlayer = strings.TrimSpace(player)
}

// SetHasFirstStrike controls whether the first strike damage step is visited
// during the current turn's combat.
func (tm *TurnManager) SetHasFirstStrike(hasFirstStrike bool) {
	tm.firstStrike = hasFirstStrike
}

// HasFirstStrike reports whether the first strike damage step is scheduled.
func (tm *TurnManager) HasFirstStrike() bool {
	return tm.firstStrike
}

// AdvanceStep advances to the next step in the turn structure.
// When the end of the structure is reached, the turn number is incremented
// and the active player is rotated to nextActivePlayer if provided.
func (tm *TurnManager) AdvanceStep(nextActivePlayer string) (Phase, Step) {
	tm.orderIndex++
	if tm.orderIndex < len(turnSequence) && turnSequence[tm.orderIndex].step == StepFirstStrikeDamage && !tm.firstStrike {
		tm.orderIndex++
	}
	if tm.orderIndex >= len(turnSequence) {
		tm.orderIndex = 0
		tm.turnNumber++
		if next := strings.TrimSpace(nextActivePlayer); next != "" {
			tm.activePlayer = next
		}
		tm.firstStrike = false
	}

	// Priority always reverts to active player at the start of a step.
	tm.priorityPlayer = tm.activePlayer

	return tm.CurrentPhase(), tm.CurrentStep()
}

// RepeatStep restarts the current step without moving on. Used when cleanup
// has to be performed again.
func (tm *TurnManager) RepeatStep() {
	tm.priorityPlayer = tm.activePlayer
}

// Sequence returns the steps a turn visits given the current first strike setting.
func (tm *TurnManager) Sequence() []Step {
	steps := make([]Step, 0, len(turnSequence))
	for _, entry := range turnSequence {
		if entry.step == StepFirstStrikeDamage && !tm.firstStrike {
			continue
		}
		steps = append(steps, entry.step)
	}
	return steps
}
