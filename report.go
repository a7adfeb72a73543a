// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package memtrace

import "sort"

// HitterResult describes one reported heavy hitter: the label of the
// substring being reported (read root to here along the tree, not
// necessarily a full inserted backtrace — see Output), its light
// weight (the share attributable to this substring once weight
// already claimed by a heavier descendant suffix is subtracted), its
// total weight, and an upper bound accounting for any mass
// compression has pruned beneath it.
type HitterResult struct {
	Label []Symbol
	Light int64
	Total int64
	Upper int64
}

// Output reports every substring whose light weight plus the bound on
// weight squashed from its incoming edge exceeds the threshold
// floor(frequency * grandTotal), where grandTotal is the running sum of
// every count ever passed to Insert. Results are sorted by descending
// Light. frequency must satisfy 0 <= frequency <= 1.
//
// A substring's weight is the weight of every inserted string having
// it as a suffix, not merely the weight of strings passing through it
// as a prefix: the generalized suffix tree scatters a string's own
// suffixes across many branches, so the descendant-count pass below
// also propagates weight along suffix links, and subtracts it from
// the "grandparent via suffix" (mirroring compress's own bookkeeping),
// to avoid double-counting a suffix's weight at both its direct
// parent and the node its suffix link reaches.
func (e *Engine) Output(frequency float64) ([]HitterResult, int64) {
	if frequency < 0 || frequency > 1 {
		panic("memtrace: output: frequency must satisfy 0 <= frequency <= 1")
	}

	threshold := int64(frequency * float64(e.grandTotal))

	order := e.ensureAllSuffixLinks()

	byDepth := map[int][]nodeIndex{}
	maxDepth := 0
	for _, n := range order {
		nn := e.tree.at(n)
		nn.outTotal = 0
		nn.outHeavyTotal = 0
		byDepth[nn.depth] = append(byDepth[nn.depth], n)
		if nn.depth > maxDepth {
			maxDepth = nn.depth
		}
	}

	var results []HitterResult
	for d := maxDepth; d >= 0; d-- {
		for _, n := range byDepth[d] {
			nn := e.tree.at(n)

			var own int64
			if nn.hasCount {
				own = nn.count
			}
			total := own + nn.outTotal
			heavyDesc := nn.outHeavyTotal

			var heavyTotal int64
			if total-heavyDesc+nn.maxEdgeSquashed > threshold {
				heavyTotal = total
			} else {
				heavyTotal = heavyDesc
			}

			if n != rootIndex {
				lightTotal := total - heavyDesc
				if lightTotal+nn.maxEdgeSquashed > threshold {
					label := make([]Symbol, nn.depth)
					e.collectLabel(n, label)
					results = append(results, HitterResult{
						Label: label,
						Light: lightTotal,
						Total: total,
						Upper: total + nn.maxEdgeSquashed,
					})
				}
			}

			if n == rootIndex {
				continue
			}

			pn := e.tree.at(nn.parent)
			pn.outTotal += total
			pn.outHeavyTotal += heavyTotal

			if nn.suffixLink != dummyIndex {
				sln := e.tree.at(nn.suffixLink)
				sln.outTotal += total
				sln.outHeavyTotal += heavyTotal
			}

			if nn.parent != rootIndex && pn.suffixLink != dummyIndex {
				pslN := e.tree.at(pn.suffixLink)
				pslN.outTotal -= total
				pslN.outHeavyTotal -= heavyTotal
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Light > results[j].Light
	})

	return results, e.grandTotal
}

// ensureAllSuffixLinks materializes a valid suffix link for every node
// currently in the tree, including leaves: construction only
// guarantees links along paths a suffix hop actually walked, and a
// leaf that was never an active point otherwise keeps a dummy link
// until something asks. Resolving one node's link can split an edge
// and introduce a fresh node elsewhere in the tree, so this re-walks
// until a full pass finds nothing new, and returns the final node set
// in depth-first order.
func (e *Engine) ensureAllSuffixLinks() []nodeIndex {
	var order []nodeIndex
	prevCount := -1

	var walk func(n nodeIndex)
	walk = func(n nodeIndex) {
		order = append(order, n)
		if n == rootIndex {
			keys := make([]Symbol, 0, len(e.tree.rootChildren))
			for k := range e.tree.rootChildren {
				keys = append(keys, k)
			}
			sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
			for _, k := range keys {
				walk(e.tree.rootChildren[k])
			}
			return
		}
		for c := e.tree.at(n).firstChild; c != dummyIndex; c = e.tree.at(c).nextSibling {
			walk(c)
		}
	}

	for {
		order = order[:0]
		walk(rootIndex)
		if len(order) == prevCount {
			return order
		}
		prevCount = len(order)

		for _, n := range order {
			if n != rootIndex {
				e.ensureSuffix(n)
			}
		}
	}
}

// collectLabel fills buf with the full path label from root to n.
func (e *Engine) collectLabel(n nodeIndex, buf []Symbol) {
	if n == rootIndex {
		return
	}
	nn := e.tree.at(n)
	e.collectLabel(nn.parent, buf[:len(buf)-nn.edge.length])
	copy(buf[len(buf)-nn.edge.length:], nn.edge.symbols())
}
