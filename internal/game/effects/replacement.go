package effects

// DamageEvent is damage that is about to be dealt.
type DamageEvent struct {
	SourceID    string `json:"source_id"`
	RecipientID string `json:"recipient_id"`
	Amount      int    `json:"amount"`
	Combat      bool   `json:"combat,omitempty"`
}

// ReplacementRecord describes one application of a prevention or
// redirection effect.
type ReplacementRecord struct {
	EffectID string  `json:"effect_id"`
	Kind     ModKind `json:"kind"`
	From     string  `json:"from"`
	To       string  `json:"to,omitempty"`
	Amount   int     `json:"amount"`
}

// DamageResult is the outcome of ReplaceDamage.
type DamageResult struct {
	Dealt    []DamageEvent
	Applied  []ReplacementRecord
	Consumed []string
}

type pendingDamage struct {
	event DamageEvent
	used  map[string]bool
}

// ReplaceDamage runs dmg through the prevention and redirection effects in
// set, in timestamp order. Each effect applies at most once to a damage event
// and to anything redirected from it. One-use shields are drawn down in set;
// the ids of exhausted shields are returned in Consumed and the caller
// purges them.
func ReplaceDamage(set *EffectSet, view *View, dmg DamageEvent) DamageResult {
	var result DamageResult
	if dmg.Amount <= 0 {
		return result
	}
	queue := []pendingDamage{{event: dmg, used: make(map[string]bool)}}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, listed := range set.List() {
			if p.event.Amount <= 0 {
				break
			}
			if !listed.Mod.Kind.IsReplacement() || p.used[listed.ID] {
				continue
			}
			fe, ok := set.Get(listed.ID)
			if !ok || (fe.Duration == DurationOneUse && fe.Remaining <= 0) {
				continue
			}
			ctx := FilterContext{SourceID: fe.SourceID, Controller: fe.Controller}
			if !fe.Selector.Includes(view, p.event.RecipientID, ctx) {
				continue
			}
			if fe.Mod.Kind == ModRedirectDamage && (fe.Mod.RedirectTo == "" || fe.Mod.RedirectTo == p.event.RecipientID) {
				continue
			}

			amount := p.event.Amount
			switch {
			case fe.Duration == DurationOneUse:
				amount = min(amount, fe.Remaining)
			case fe.Mod.Amount > 0:
				amount = min(amount, fe.Mod.Amount)
			}
			p.used[fe.ID] = true
			p.event.Amount -= amount

			record := ReplacementRecord{EffectID: fe.ID, Kind: fe.Mod.Kind, From: p.event.RecipientID, Amount: amount}
			if fe.Mod.Kind == ModRedirectDamage {
				record.To = fe.Mod.RedirectTo
				used := make(map[string]bool, len(p.used))
				for id := range p.used {
					used[id] = true
				}
				queue = append(queue, pendingDamage{
					event: DamageEvent{SourceID: p.event.SourceID, RecipientID: fe.Mod.RedirectTo, Amount: amount, Combat: p.event.Combat},
					used:  used,
				})
			}
			result.Applied = append(result.Applied, record)

			if fe.Duration == DurationOneUse {
				fe.Remaining -= amount
				set.Update(fe)
				if fe.Remaining <= 0 {
					result.Consumed = append(result.Consumed, fe.ID)
				}
			}
		}
		if p.event.Amount > 0 {
			result.Dealt = append(result.Dealt, p.event)
		}
	}
	return result
}
