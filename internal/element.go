package internal

// Element is an immutable description of one node: what the tree should
// look like at that position. Identity is by pointer, same as the engine's
// bail-out comparison; build a new Element to describe a change.
type Element struct {
	Kind     string
	Key      string
	Props    map[string]any
	Children []*Element
}

// El is a convenience constructor for element trees.
func El(kind string, props map[string]any, children ...*Element) *Element {
	return &Element{Kind: kind, Props: props, Children: children}
}

// Keyed returns a copy of the element with a reconciliation key set.
func (e *Element) Keyed(key string) *Element {
	clone := *e
	clone.Key = key
	return &clone
}
