package ecs

// MarkForDestruction queues e for removal at the next FlushDestroyQueue. Use it
// from inside iterations that must not see the entity disappear mid-pass.
// Marking twice is harmless.
func (c *Container) MarkForDestruction(e Entity) {
	if _, ok := c.queued[e]; ok {
		return
	}
	if c.queued == nil {
		c.queued = make(map[Entity]struct{}, 16)
	}
	c.queued[e] = struct{}{}
	c.destroyQueue = append(c.destroyQueue, e)
}

// FlushDestroyQueue removes every queued entity that is still alive. Entities
// queued by removal callbacks during the flush are removed in the same call.
func (c *Container) FlushDestroyQueue() int {
	n := 0
	for len(c.destroyQueue) > 0 {
		queue := c.destroyQueue
		c.destroyQueue = nil
		clear(c.queued)
		for _, e := range queue {
			if c.Alive(e) && c.Remove(e) {
				n++
			}
		}
	}
	return n
}

// PendingDestruction is the number of queued removals.
func (c *Container) PendingDestruction() int { return len(c.destroyQueue) }
