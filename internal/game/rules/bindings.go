package rules

import "sort"

// Value is a single pipeline variable. A variable holds object ids, player ids,
// a number or a flag; unused parts stay zero.
type Value struct {
	Objects []string `json:"objects,omitempty" yaml:"objects,omitempty"`
	Players []string `json:"players,omitempty" yaml:"players,omitempty"`
	Number  int      `json:"number,omitempty" yaml:"number,omitempty"`
	Flag    bool     `json:"flag,omitempty" yaml:"flag,omitempty"`
}

// IsEmpty reports whether the value refers to no object and no player.
func (v Value) IsEmpty() bool {
	return len(v.Objects) == 0 && len(v.Players) == 0
}

// Refs returns objects followed by players.
func (v Value) Refs() []string {
	refs := make([]string, 0, len(v.Objects)+len(v.Players))
	refs = append(refs, v.Objects...)
	return append(refs, v.Players...)
}

func (v Value) clone() Value {
	return Value{
		Objects: append([]string(nil), v.Objects...),
		Players: append([]string(nil), v.Players...),
		Number:  v.Number,
		Flag:    v.Flag,
	}
}

// Bindings is the named-variable environment threaded through an effect program.
type Bindings map[string]Value

// Clone returns a deep copy.
func (b Bindings) Clone() Bindings {
	out := make(Bindings, len(b))
	for k, v := range b {
		out[k] = v.clone()
	}
	return out
}

// Get returns the named value.
func (b Bindings) Get(name string) (Value, bool) {
	v, ok := b[name]
	return v, ok
}

// Objects returns the object ids bound to name.
func (b Bindings) Objects(name string) []string {
	return b[name].Objects
}

// Players returns the player ids bound to name.
func (b Bindings) Players(name string) []string {
	return b[name].Players
}

// Number returns the number bound to name.
func (b Bindings) Number(name string) int {
	return b[name].Number
}

// Flag returns the flag bound to name.
func (b Bindings) Flag(name string) bool {
	return b[name].Flag
}

// SetObjects binds object ids to name.
func (b Bindings) SetObjects(name string, ids []string) {
	v := b[name]
	v.Objects = append([]string(nil), ids...)
	b[name] = v
}

// SetPlayers binds player ids to name.
func (b Bindings) SetPlayers(name string, ids []string) {
	v := b[name]
	v.Players = append([]string(nil), ids...)
	b[name] = v
}

// SetNumber binds a number to name.
func (b Bindings) SetNumber(name string, n int) {
	v := b[name]
	v.Number = n
	b[name] = v
}

// SetFlag binds a flag to name.
func (b Bindings) SetFlag(name string, flag bool) {
	v := b[name]
	v.Flag = flag
	b[name] = v
}

// Names returns the bound names in sorted order.
func (b Bindings) Names() []string {
	names := make([]string, 0, len(b))
	for k := range b {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Rename replaces every occurrence of an object id, following an object that changed zones.
func (b Bindings) Rename(oldID, newID string) {
	for name, v := range b {
		for i, id := range v.Objects {
			if id == oldID {
				v.Objects[i] = newID
			}
		}
		b[name] = v
	}
}
