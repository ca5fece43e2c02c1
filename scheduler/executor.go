package scheduler

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// tickParallel fans the due set out across disjoint chunks of entries,
// one goroutine per chunk, and waits for all of them to finish before the
// step advances deadlines. Each chunk is ticked serially within its own
// goroutine — chunks never share a node, so no locking is needed between
// them.
func (s *Scheduler) tickParallel(due []*entry) {
	workers := s.maxParallel
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(due) {
		workers = len(due)
	}
	if workers <= 1 {
		for _, e := range due {
			s.tickOne(e)
		}
		return
	}

	chunks := partition(due, workers)

	var g errgroup.Group
	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			for _, e := range chunk {
				s.tickOne(e)
			}
			return nil
		})
	}
	// tickOne recovers its own panics and never returns an error, so Wait
	// can only ever report nil here; it still synchronizes completion of
	// every chunk before the step continues.
	_ = g.Wait()
}

// partition splits entries into at most n contiguous, disjoint chunks of
// near-equal size.
func partition(entries []*entry, n int) [][]*entry {
	if n <= 0 {
		n = 1
	}
	total := len(entries)
	chunkSize := (total + n - 1) / n

	chunks := make([][]*entry, 0, n)
	for i := 0; i < total; i += chunkSize {
		end := i + chunkSize
		if end > total {
			end = total
		}
		chunks = append(chunks, entries[i:end])
	}
	return chunks
}
