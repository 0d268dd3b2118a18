package graph

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"
)

const (
	DefaultFollowupLanes = 8
	DefaultFollowupDepth = 64
)

// followups runs post-response work off the critical path. A conversation
// always hashes to the same lane, so its jobs run in submission order while
// other conversations proceed on other lanes.
type followups struct {
	mu     sync.RWMutex
	closed bool
	lanes  []chan func()
	wg     sync.WaitGroup
	log    zerolog.Logger
}

func newFollowups(lanes, depth int, log zerolog.Logger) *followups {
	if lanes <= 0 {
		lanes = DefaultFollowupLanes
	}
	if depth <= 0 {
		depth = DefaultFollowupDepth
	}
	q := &followups{lanes: make([]chan func(), lanes), log: log}
	for i := range q.lanes {
		q.lanes[i] = make(chan func(), depth)
		q.wg.Add(1)
		go q.work(q.lanes[i])
	}
	return q
}

func (q *followups) work(lane chan func()) {
	defer q.wg.Done()
	for job := range lane {
		q.run(job)
	}
}

func (q *followups) run(job func()) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Interface("panic", r).Msg("follow-up job panicked")
		}
	}()
	job()
}

func (q *followups) lane(key string) chan func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return q.lanes[h.Sum32()%uint32(len(q.lanes))]
}

// enqueue blocks while the lane is full. It reports false once closed.
func (q *followups) enqueue(key string, job func()) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	q.lane(key) <- job
	return true
}

// drain waits until every job submitted before the call has finished.
func (q *followups) drain(ctx context.Context) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return nil
	}
	var done sync.WaitGroup
	done.Add(len(q.lanes))
	for _, lane := range q.lanes {
		lane <- done.Done
	}
	q.mu.RUnlock()

	finished := make(chan struct{})
	go func() {
		done.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops intake and waits for queued jobs to finish.
func (q *followups) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for _, lane := range q.lanes {
		close(lane)
	}
	q.mu.Unlock()
	q.wg.Wait()
}
