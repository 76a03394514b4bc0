package recommend

// counter is a frequency count that remembers first-seen order, so the
// most frequent key is chosen deterministically: on a tie the key seen
// first wins.
type counter struct {
	order  []string
	counts map[string]int
}

func (c *counter) add(key string) {
	if key == "" {
		return
	}
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

// top returns the most frequent key, or "" when nothing was counted.
func (c *counter) top() string {
	best, bestCount := "", 0
	for _, key := range c.order {
		if n := c.counts[key]; n > bestCount {
			best, bestCount = key, n
		}
	}
	return best
}
