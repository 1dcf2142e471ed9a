package oremap

// TripleSet is the ordered, append-only working graph of a resource map.
// Insertion order is preserved so serialized output is reproducible, even
// though RDF semantics treat the statements as an unordered set. The set
// never deduplicates: re-adding an identical derived triple is harmless
// multiset union, not corruption. There is no removal; a package graph
// only grows during assembly.
type TripleSet struct {
	stmts []Statement
}

// NewTripleSet returns an empty TripleSet.
func NewTripleSet() *TripleSet {
	return &TripleSet{}
}

// Append adds s at the end. It never fails.
func (ts *TripleSet) Append(s Statement) {
	ts.stmts = append(ts.stmts, s)
}

// Len returns the number of statements appended so far.
func (ts *TripleSet) Len() int {
	return len(ts.stmts)
}

// Statements returns a snapshot of the statements in insertion order.
// The snapshot is a copy: traversing it cannot disturb the set, and
// repeated calls return identical results until the next Append.
func (ts *TripleSet) Statements() []Statement {
	out := make([]Statement, len(ts.stmts))
	copy(out, ts.stmts)
	return out
}
