package dxf

// Entity is a view over the pairs of one entity: the leading 0 pair and every
// pair up to the next 0 pair.
type Entity struct {
	Type  string
	Index int // pair index of the leading 0 pair
	Pairs []Pair
}

// Value returns the first value for code, or "" if the entity has none.
func (e Entity) Value(code int) string {
	for _, p := range e.Pairs[1:] {
		if p.Code == code {
			return p.Value
		}
	}
	return ""
}

// entitiesIn splits the body of a section into entities.
func (d *Document) entitiesIn(s section) []Entity {
	var out []Entity
	start := -1
	body := s.start + 2
	for i := body; i <= s.end; i++ {
		if d.pairs[i].Code != 0 {
			continue
		}
		if start >= 0 {
			out = append(out, Entity{
				Type:  d.pairs[start].Value,
				Index: start,
				Pairs: append([]Pair(nil), d.pairs[start:i]...),
			})
		}
		start = i
	}
	return out
}

// Entities returns the entities of the ENTITIES section in document order.
func (d *Document) Entities() []Entity {
	s, ok := d.section("ENTITIES")
	if !ok {
		return nil
	}
	return d.entitiesIn(s)
}
