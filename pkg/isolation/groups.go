package isolation

import "strings"

// Groups is the set of isolation groups a policy instance belongs to. It is
// fixed at construction.
type Groups struct {
	names []string
	set   map[string]struct{}
}

// ParseGroups splits raw on commas. Segments are kept verbatim: no trimming,
// no case folding, and empty segments stay as the empty group name. An empty
// raw value yields a disabled registry.
func ParseGroups(raw string) *Groups {
	g := &Groups{set: make(map[string]struct{})}
	if raw == "" {
		return g
	}
	for _, name := range strings.Split(raw, ",") {
		if _, ok := g.set[name]; ok {
			continue
		}
		g.set[name] = struct{}{}
		g.names = append(g.names, name)
	}
	return g
}

// Enabled reports whether isolation filtering applies at all.
func (g *Groups) Enabled() bool {
	return g != nil && len(g.names) > 0
}

func (g *Groups) Contains(name string) bool {
	if g == nil {
		return false
	}
	_, ok := g.set[name]
	return ok
}

// Names returns the groups in configuration order.
func (g *Groups) Names() []string {
	if g == nil {
		return nil
	}
	return append([]string(nil), g.names...)
}
