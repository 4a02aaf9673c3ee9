package canvas

// Scene is the live, ordered collection of annotation objects for one page.
// Insertion order is paint order. Shapes are addressed by stable ID rather
// than by reference, so a discarded preview can never leave a dangling
// pointer behind.
type Scene struct {
	order []string
	byID  map[string]*Shape
}

// NewScene returns an empty scene.
func NewScene() *Scene {
	return &Scene{byID: make(map[string]*Shape)}
}

// Len reports the number of shapes in the scene.
func (sc *Scene) Len() int { return len(sc.order) }

// Get returns the shape with the given ID, or nil.
func (sc *Scene) Get(id string) *Shape {
	return sc.byID[id]
}

// Add appends a shape to the scene. Re-adding an existing ID replaces the
// record in place without changing its paint order.
func (sc *Scene) Add(s Shape) {
	if _, ok := sc.byID[s.ID]; !ok {
		sc.order = append(sc.order, s.ID)
	}
	stored := s
	sc.byID[s.ID] = &stored
}

// Remove deletes the shape with the given ID. Unknown IDs are ignored.
func (sc *Scene) Remove(id string) {
	if _, ok := sc.byID[id]; !ok {
		return
	}
	delete(sc.byID, id)
	for i, other := range sc.order {
		if other == id {
			sc.order = append(sc.order[:i], sc.order[i+1:]...)
			break
		}
	}
}

// Shapes returns copies of all shapes in paint order.
func (sc *Scene) Shapes() []Shape {
	out := make([]Shape, 0, len(sc.order))
	for _, id := range sc.order {
		out = append(out, sc.byID[id].Clone())
	}
	return out
}

// Snapshot serializes the scene into a payload in paint order.
func (sc *Scene) Snapshot() Payload {
	return Payload{Objects: sc.Shapes()}
}

// Restore replaces the scene contents with the payload's objects.
func (sc *Scene) Restore(p Payload) {
	sc.order = sc.order[:0]
	sc.byID = make(map[string]*Shape, len(p.Objects))
	for _, s := range p.Objects {
		sc.Add(s.Clone())
	}
}
