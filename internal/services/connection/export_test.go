package connection

// Pending returns the number of queued waiters.
func (o *Orchestrator) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.waiters)
}
