package formula

// Volatility is the aggregate EvalSpec of a subtree: Variable if any node in
// it is Variable, otherwise the most volatile spec found.
func Volatility(n Node) EvalSpec {
	spec := n.Spec()
	if spec == Variable {
		return Variable
	}
	for _, c := range n.Children() {
		if cs := Volatility(c); cs > spec {
			spec = cs
			if spec == Variable {
				break
			}
		}
	}
	return spec
}

// Foldable reports whether n and all of its descendants are Constant or
// FunctionalDependent, so the subtree always yields the same value.
func Foldable(n Node) bool {
	if s := n.Spec(); s != Constant && s != FunctionalDependent {
		return false
	}
	for _, c := range n.Children() {
		if !Foldable(c) {
			return false
		}
	}
	return true
}

// Reduce folds every foldable subtree of an evaluated tree into an
// ImmediateNode holding the value computed by the last evaluation, and
// returns the new root. Nodes without a recorded value are left in place.
func Reduce(n Node) Node {
	if _, ok := n.(*ImmediateNode); ok {
		return n
	}
	if Foldable(n) {
		if v, ok := n.lastValue(); ok {
			return &ImmediateNode{Value: v, Text: n.ToString(), Position: n.GetPosition()}
		}
		return n
	}
	switch n := n.(type) {
	case *BinaryOpNode:
		n.Left = Reduce(n.Left)
		n.Right = Reduce(n.Right)
	case *UnaryOpNode:
		n.Operand = Reduce(n.Operand)
	case *GroupNode:
		n.Inner = Reduce(n.Inner)
	case *PropertyNode:
		if n.Target != nil {
			n.Target = Reduce(n.Target)
		}
		reduceAll(n.Args)
	case *MethodNode:
		if n.Target != nil {
			n.Target = Reduce(n.Target)
		}
		reduceAll(n.Args)
	case *ReservedCallNode:
		reduceAll(n.Args)
	}
	// DataSourceNode keeps its property path intact for write-back.
	return n
}

func reduceAll(nodes []Node) {
	for i, c := range nodes {
		nodes[i] = Reduce(c)
	}
}

// Walk visits n and its descendants depth first, stopping a branch when
// visit returns false.
func Walk(n Node, visit func(Node) bool) {
	if !visit(n) {
		return
	}
	for _, c := range n.Children() {
		Walk(c, visit)
	}
}
