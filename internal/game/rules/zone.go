package rules

import (
	"fmt"
	"strings"
)

// ZoneKind identifies a zone. Values match the ordering used by the engine's zone tables.
type ZoneKind int

const (
	ZoneLibrary ZoneKind = iota
	ZoneHand
	ZoneBattlefield
	ZoneGraveyard
	ZoneStack
	ZoneExile
	ZoneCommand
)

var zoneNames = map[ZoneKind]string{
	ZoneLibrary:     "library",
	ZoneHand:        "hand",
	ZoneBattlefield: "battlefield",
	ZoneGraveyard:   "graveyard",
	ZoneStack:       "stack",
	ZoneExile:       "exile",
	ZoneCommand:     "command",
}

func (z ZoneKind) String() string {
	if name, ok := zoneNames[z]; ok {
		return name
	}
	return fmt.Sprintf("zone_%d", int(z))
}

// Shared reports whether the zone has a single instance for the whole game
// rather than one per player.
func (z ZoneKind) Shared() bool {
	switch z {
	case ZoneBattlefield, ZoneStack, ZoneExile, ZoneCommand:
		return true
	default:
		return false
	}
}

// ParseZone converts a zone name into a ZoneKind.
func ParseZone(name string) (ZoneKind, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for zone, zoneName := range zoneNames {
		if zoneName == key {
			return zone, nil
		}
	}
	return 0, fmt.Errorf("unknown zone %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (z ZoneKind) MarshalText() ([]byte, error) {
	if _, ok := zoneNames[z]; !ok {
		return nil, fmt.Errorf("unknown zone %d", int(z))
	}
	return []byte(z.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (z *ZoneKind) UnmarshalText(text []byte) error {
	parsed, err := ParseZone(string(text))
	if err != nil {
		return err
	}
	*z = parsed
	return nil
}

// ZonePtr returns a pointer to zone, handy for optional zone fields.
func ZonePtr(zone ZoneKind) *ZoneKind {
	return &zone
}
