package formula

import "slices"

// edgeSet is the set of cells one expression of a property read during its
// last evaluation. Each precedent holds the set in its subscriber list, so a
// change of the precedent fires the set.
type edgeSet struct {
	owner      *FormulaProperty
	fire       func(visited map[*FormulaProperty]struct{})
	precedents []*FormulaProperty
}

func newEdgeSet(owner *FormulaProperty, fire func(visited map[*FormulaProperty]struct{})) *edgeSet {
	return &edgeSet{owner: owner, fire: fire}
}

// add subscribes to src unless already subscribed
func (es *edgeSet) add(src *FormulaProperty) {
	if src == es.owner || src.disposed || slices.Contains(es.precedents, src) {
		return
	}
	src.subscribers[es] = struct{}{}
	es.precedents = append(es.precedents, src)
}

// remove drops src without touching its subscriber list
func (es *edgeSet) remove(src *FormulaProperty) {
	es.precedents = slices.DeleteFunc(es.precedents, func(p *FormulaProperty) bool { return p == src })
}

// clear unsubscribes from every precedent
func (es *edgeSet) clear() {
	for _, src := range es.precedents {
		delete(src.subscribers, es)
	}
	es.precedents = nil
}

// sink records PropertyDependent reads that are backed by a formula cell
func (es *edgeSet) sink() DependencySink {
	return func(obj Object, prop *PropertyInfo) {
		if cell, ok := prop.Cell(obj); ok {
			es.add(cell)
		}
	}
}

// Precedents returns the cells the value formula read during its last
// evaluation, in read order.
func (p *FormulaProperty) Precedents() []*FormulaProperty {
	return slices.Clone(p.valueEdges.precedents)
}

// Dependents returns the cells whose value or lock formula read p during
// their last evaluation.
func (p *FormulaProperty) Dependents() []*FormulaProperty {
	result := make([]*FormulaProperty, 0, len(p.subscribers))
	for es := range p.subscribers {
		if !slices.Contains(result, es.owner) {
			result = append(result, es.owner)
		}
	}
	return result
}

// AllDependents returns every cell reachable through dependent edges
func (p *FormulaProperty) AllDependents() []*FormulaProperty {
	var result []*FormulaProperty
	visited := map[*FormulaProperty]struct{}{}
	p.collectDependents(visited, &result)
	return result
}

// collectDependents recursively collects all dependents
func (p *FormulaProperty) collectDependents(visited map[*FormulaProperty]struct{}, result *[]*FormulaProperty) {
	if _, alreadyVisited := visited[p]; alreadyVisited {
		return
	}
	visited[p] = struct{}{}

	for _, dependent := range p.Dependents() {
		if _, alreadyVisited := visited[dependent]; !alreadyVisited {
			*result = append(*result, dependent)
			dependent.collectDependents(visited, result)
		}
	}
}
