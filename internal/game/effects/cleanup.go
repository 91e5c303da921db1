package effects

import "sort"

// Duration represents how long an effect lasts
type Duration string

const (
	// DurationEndOfTurn - Effect expires in the cleanup step
	DurationEndOfTurn Duration = "end_of_turn"

	// DurationEndOfCombat - Effect expires at end of combat
	DurationEndOfCombat Duration = "end_of_combat"

	// DurationWhileOnBattlefield - Effect lasts while its source is on the battlefield
	DurationWhileOnBattlefield Duration = "while_on_battlefield"

	// DurationOneUse - Shield consumed by use; unused remainder expires in cleanup
	DurationOneUse Duration = "one_use"

	// DurationPermanent - Effect lasts indefinitely
	DurationPermanent Duration = "permanent"
)

// Valid reports whether d is a known duration.
func (d Duration) Valid() bool {
	switch d {
	case DurationEndOfTurn, DurationEndOfCombat, DurationWhileOnBattlefield, DurationOneUse, DurationPermanent:
		return true
	}
	return false
}

// ExpiryPoint is a moment at which durations are checked.
type ExpiryPoint string

const (
	ExpireEndOfCombat ExpiryPoint = "end_of_combat"
	ExpireCleanup     ExpiryPoint = "cleanup"
	// ExpireSourceCheck runs whenever state-based actions are checked.
	ExpireSourceCheck ExpiryPoint = "source_check"
)

// Expires reports whether fe ends at point. sourcePresent reports whether an
// object id is still on the battlefield.
func Expires(fe FloatingEffect, point ExpiryPoint, sourcePresent func(id string) bool) bool {
	switch point {
	case ExpireEndOfCombat:
		return fe.Duration == DurationEndOfCombat
	case ExpireCleanup:
		return fe.Duration == DurationEndOfTurn || fe.Duration == DurationEndOfCombat || fe.Duration == DurationOneUse
	case ExpireSourceCheck:
		if fe.Duration == DurationOneUse && fe.Remaining <= 0 {
			return true
		}
		return fe.Duration == DurationWhileOnBattlefield && sourcePresent != nil && !sourcePresent(fe.SourceID)
	}
	return false
}

// EffectSet is the versioned collection of floating effects. Version changes
// whenever the set changes.
type EffectSet struct {
	Version uint64           `json:"version"`
	Entries []FloatingEffect `json:"entries"`
}

// Add appends an effect.
func (s *EffectSet) Add(fe FloatingEffect) {
	s.Entries = append(s.Entries, fe)
	s.Version++
}

// Get returns the effect with id.
func (s *EffectSet) Get(id string) (FloatingEffect, bool) {
	for _, fe := range s.Entries {
		if fe.ID == id {
			return fe, true
		}
	}
	return FloatingEffect{}, false
}

// Update replaces the stored copy of fe.
func (s *EffectSet) Update(fe FloatingEffect) bool {
	for i := range s.Entries {
		if s.Entries[i].ID == fe.ID {
			s.Entries[i] = fe
			s.Version++
			return true
		}
	}
	return false
}

// Remove deletes the effect with id.
func (s *EffectSet) Remove(id string) (FloatingEffect, bool) {
	removed := s.Purge(func(fe FloatingEffect) bool { return fe.ID == id })
	if len(removed) == 0 {
		return FloatingEffect{}, false
	}
	return removed[0], true
}

// Purge removes every effect matching pred and returns them in timestamp
// order. Each effect is returned at most once.
func (s *EffectSet) Purge(pred func(FloatingEffect) bool) []FloatingEffect {
	var removed []FloatingEffect
	kept := s.Entries[:0]
	for _, fe := range s.Entries {
		if pred(fe) {
			removed = append(removed, fe)
			continue
		}
		kept = append(kept, fe)
	}
	s.Entries = kept
	if len(removed) > 0 {
		s.Version++
		sortByTimestamp(removed)
	}
	return removed
}

// PurgeExpired removes the effects that end at point.
func (s *EffectSet) PurgeExpired(point ExpiryPoint, sourcePresent func(id string) bool) []FloatingEffect {
	return s.Purge(func(fe FloatingEffect) bool { return Expires(fe, point, sourcePresent) })
}

// List returns a copy of the effects in timestamp order.
func (s *EffectSet) List() []FloatingEffect {
	out := append([]FloatingEffect(nil), s.Entries...)
	sortByTimestamp(out)
	return out
}

// Len returns the number of effects.
func (s *EffectSet) Len() int { return len(s.Entries) }

// Clone returns an independent copy.
func (s *EffectSet) Clone() EffectSet {
	cp := EffectSet{Version: s.Version, Entries: make([]FloatingEffect, len(s.Entries))}
	copy(cp.Entries, s.Entries)
	for i := range cp.Entries {
		cp.Entries[i].Selector.IDs = append([]string(nil), s.Entries[i].Selector.IDs...)
	}
	return cp
}

func sortByTimestamp(list []FloatingEffect) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Timestamp != list[j].Timestamp {
			return list[i].Timestamp < list[j].Timestamp
		}
		return list[i].ID < list[j].ID
	})
}
