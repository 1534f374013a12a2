package query

// connected partitions nodes 0..n-1 given groups of mutually adjacent nodes.
// Components are ordered by their smallest member and list members in
// ascending order, so results are deterministic.
func connected(n int, groups [][]int) [][]int {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	for _, g := range groups {
		for _, m := range g[1:] {
			a, b := find(g[0]), find(m)
			if a == b {
				continue
			}
			if a < b {
				parent[b] = a
			} else {
				parent[a] = b
			}
		}
	}

	index := map[int]int{}
	var out [][]int
	for i := 0; i < n; i++ {
		root := find(i)
		k, ok := index[root]
		if !ok {
			k = len(out)
			index[root] = k
			out = append(out, nil)
		}
		out[k] = append(out[k], i)
	}
	return out
}

// groupBy collects node indices under string keys, preserving first-seen key
// order.
type groupBy struct {
	order []string
	nodes map[string][]int
}

func newGroupBy() *groupBy {
	return &groupBy{nodes: map[string][]int{}}
}

func (g *groupBy) add(key string, node int) {
	ns, ok := g.nodes[key]
	if !ok {
		g.order = append(g.order, key)
	}
	if len(ns) > 0 && ns[len(ns)-1] == node {
		return
	}
	g.nodes[key] = append(ns, node)
}

func (g *groupBy) groups() [][]int {
	out := make([][]int, 0, len(g.order))
	for _, k := range g.order {
		out = append(out, g.nodes[k])
	}
	return out
}

// Subsets calls fn for every subset of {0..n-1} with at least min elements,
// by increasing size and then lexicographically. Iteration stops when fn
// returns false. The number of subsets is exponential in n.
func Subsets(n, min int, fn func(idx []int) bool) {
	for k := min; k <= n; k++ {
		if k == 0 {
			if !fn(nil) {
				return
			}
			continue
		}
		idx := make([]int, k)
		for i := range idx {
			idx[i] = i
		}
		for {
			if !fn(append([]int(nil), idx...)) {
				return
			}
			i := k - 1
			for i >= 0 && idx[i] == n-k+i {
				i--
			}
			if i < 0 {
				break
			}
			idx[i]++
			for j := i + 1; j < k; j++ {
				idx[j] = idx[j-1] + 1
			}
		}
	}
}
