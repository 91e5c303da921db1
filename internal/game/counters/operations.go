package counters

import (
	"fmt"

	"github.com/magefree/mage-rules-go/internal/game/rules"
)

// AddedEvent describes counters placed on an object or player.
func AddedEvent(targetID, sourceID, controllerID, name string, amount int) rules.Event {
	evt := rules.NewEventWithAmount(rules.EventCounterAdded, targetID, sourceID, controllerID, amount)
	evt.Data = name
	evt.Description = fmt.Sprintf("added %d %s counter(s) to %s", amount, name, targetID)
	return evt
}

// RemovedEvent describes counters removed from an object or player.
func RemovedEvent(targetID, sourceID, controllerID, name string, amount int) rules.Event {
	evt := rules.NewEventWithAmount(rules.EventCounterRemoved, targetID, sourceID, controllerID, amount)
	evt.Data = name
	evt.Description = fmt.Sprintf("removed %d %s counter(s) from %s", amount, name, targetID)
	return evt
}
