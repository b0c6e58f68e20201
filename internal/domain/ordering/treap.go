package ordering

import (
	"math/rand/v2"

	"github.com/okian/demonlist/internal/domain/model"
)

// Implicit treap: nodes are ordered by their index in the list, which is
// never stored. A node's 1-based position is the number of nodes before it
// plus one, derived from subtree sizes on the way down.
//
// Every operation copies the nodes on the path it touches and leaves the
// input tree intact, so a published root can be read without locks while a
// writer builds the next one.

type node struct {
	demon model.Demon
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) *node {
	n.size = 1 + nsize(n.left) + nsize(n.right)
	return n
}

func clone(n *node) *node {
	c := *n
	return &c
}

func leaf(d model.Demon) *node {
	return &node{demon: d, prio: rand.Uint64(), size: 1}
}

// split returns the first k nodes of n and the rest.
func split(n *node, k int) (*node, *node) {
	if n == nil {
		return nil, nil
	}
	c := clone(n)
	if nsize(n.left) >= k {
		l, r := split(n.left, k)
		c.left = r
		return l, fix(c)
	}
	l, r := split(n.right, k-nsize(n.left)-1)
	c.right = l
	return fix(c), r
}

// merge concatenates a and b, a first.
func merge(a, b *node) *node {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.prio > b.prio {
		c := clone(a)
		c.right = merge(a.right, b)
		return fix(c)
	}
	c := clone(b)
	c.left = merge(a, b.left)
	return fix(c)
}

// insertAt places d so that it ends up at 1-based position pos.
func insertAt(root *node, pos int, d model.Demon) *node {
	l, r := split(root, pos-1)
	return merge(merge(l, leaf(d)), r)
}

// removeAt drops the node at pos and returns it.
func removeAt(root *node, pos int) (*node, *node) {
	l, rest := split(root, pos-1)
	mid, r := split(rest, 1)
	return merge(l, r), mid
}

// moveTo relocates the node at from to position to.
func moveTo(root *node, from, to int) *node {
	rest, n := removeAt(root, from)
	return insertAt(rest, to, n.demon)
}

// replaceAt swaps the value stored at pos.
func replaceAt(n *node, pos int, d model.Demon) *node {
	c := clone(n)
	switch left := nsize(n.left); {
	case pos <= left:
		c.left = replaceAt(n.left, pos, d)
	case pos == left+1:
		c.demon = d
	default:
		c.right = replaceAt(n.right, pos-left-1, d)
	}
	return c
}

// at returns the node at 1-based position pos, or nil.
func at(n *node, pos int) *node {
	for n != nil {
		left := nsize(n.left)
		switch {
		case pos <= left:
			n = n.left
		case pos == left+1:
			return n
		default:
			pos -= left + 1
			n = n.right
		}
	}
	return nil
}

// walk visits nodes in order starting at 1-based position from, stopping
// when visit returns false. base is the position of n's first node.
func walk(n *node, base, from int, visit func(pos int, d model.Demon) bool) bool {
	if n == nil {
		return true
	}
	left := nsize(n.left)
	self := base + left
	if from < self {
		if !walk(n.left, base, from, visit) {
			return false
		}
	}
	if from <= self {
		if !visit(self, n.demon) {
			return false
		}
	}
	return walk(n.right, self+1, from, visit)
}

// build makes a treap from an ordered slice.
func build(ds []model.Demon) *node {
	var root *node
	for _, d := range ds {
		root = merge(root, leaf(d))
	}
	return root
}
