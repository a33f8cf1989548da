package decimate

import (
	"math"

	"github.com/google/btree"
)

// EdgeKey identifies an undirected edge by its endpoints, Lo < Hi.
type EdgeKey struct {
	Lo, Hi int
}

func edgeKey(u, w int) EdgeKey {
	if u > w {
		u, w = w, u
	}
	return EdgeKey{Lo: u, Hi: w}
}

type queueItem struct {
	key  EdgeKey
	cost float64
	c    *Collapse
}

func lessItem(a, b queueItem) bool {
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	if a.key.Lo != b.key.Lo {
		return a.key.Lo < b.key.Lo
	}
	return a.key.Hi < b.key.Hi
}

// queue orders candidate collapses by cost and allows replacing or removing
// the entry of a given edge.
type queue struct {
	tree  *btree.BTreeG[queueItem]
	items map[EdgeKey]queueItem
}

func newQueue() *queue {
	return &queue{
		tree:  btree.NewG[queueItem](32, lessItem),
		items: make(map[EdgeKey]queueItem),
	}
}

// push inserts c under key, replacing any earlier entry for the same edge.
func (q *queue) push(key EdgeKey, c *Collapse) {
	q.remove(key)
	cost := c.Cost
	if math.IsNaN(cost) {
		cost = math.Inf(1)
	}
	it := queueItem{key: key, cost: cost, c: c}
	q.tree.ReplaceOrInsert(it)
	q.items[key] = it
}

func (q *queue) remove(key EdgeKey) {
	if old, ok := q.items[key]; ok {
		q.tree.Delete(old)
		delete(q.items, key)
	}
}

func (q *queue) popMin() (queueItem, bool) {
	it, ok := q.tree.DeleteMin()
	if ok {
		delete(q.items, it.key)
	}
	return it, ok
}

func (q *queue) peek() (queueItem, bool) {
	return q.tree.Min()
}

func (q *queue) Len() int { return q.tree.Len() }
