package connpool

// Stats is a point-in-time snapshot of the pool's bookkeeping counters.
type Stats struct {
	// Active is the number of connections currently lent out.
	Active int

	// Idle is the number of connections sitting in the pool ready for reuse.
	Idle int

	// Total is Active + Idle plus any connections currently being opened.
	Total int

	// Waiting is the number of callers blocked in Acquire.
	Waiting int

	// Max is the configured MaxSize.
	Max int
}

// Stats returns a snapshot of the pool counters. In single-connection mode it
// reports the one shared handle as permanently active.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.SingleConnection {
		s := Stats{Max: 1}
		if p.shared != nil {
			s.Active = 1
			s.Total = 1
		}
		return s
	}

	total := len(p.conns) + p.dialing
	idle := len(p.idle)
	return Stats{
		Active:  total - idle,
		Idle:    idle,
		Total:   total,
		Waiting: p.waiting,
		Max:     p.config.MaxSize,
	}
}
