package sink

// StallWrites makes the writer goroutine block on gate before each
// database write, so tests can fill the queue deterministically.
func (s *Storage) StallWrites(gate <-chan struct{}) {
	s.mu.Lock()
	s.beforeWrite = func() { <-gate }
	s.mu.Unlock()
}
