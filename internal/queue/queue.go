// Package queue implements JobQueue: an in-process priority queue that
// dispatches jobs to a bounded number of concurrent workers. Ported from
// the original project's services/job_queue.rs — container/heap in place
// of BinaryHeap, a size-1 notify channel in place of tokio::sync::Notify,
// and per-job context.CancelFunc in place of JoinHandle::abort.
package queue

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/yourflock/ingestd/internal/job"
)

// Runner processes a single job to completion. It must respect ctx
// cancellation (used by CancelJob and Shutdown).
type Runner func(ctx context.Context, jobID string)

type queuedJob struct {
	jobID    string
	priority job.Priority
	queuedAt time.Time
	index    int
}

// priorityHeap orders by priority descending, then by queuedAt ascending
// (FIFO within the same priority) — the Go mirror of QueuedJob's Ord impl.
type priorityHeap []*queuedJob

func (h priorityHeap) Len() int { return len(h) }

func (h priorityHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].queuedAt.Before(h[j].queuedAt)
}

func (h priorityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *priorityHeap) Push(x any) {
	qj := x.(*queuedJob)
	qj.index = len(*h)
	*h = append(*h, qj)
}

func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Stats mirrors QueueStats.
type Stats struct {
	QueuedJobs        int
	ActiveJobs        int
	MaxConcurrentJobs int
	PriorityBreakdown map[job.Priority]int
}

type activeEntry struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// JobQueue dispatches queued jobs to Runner, never running more than
// maxConcurrentJobs at once, never holding more than maxQueueSize jobs.
type JobQueue struct {
	runner Runner

	mu   sync.Mutex
	heap priorityHeap

	notify chan struct{}

	activeMu sync.Mutex
	active   map[string]*activeEntry

	maxConcurrentJobs int
	maxQueueSize      int

	shutdownMu sync.Mutex
	isShutdown bool

	log *slog.Logger
}

func New(maxConcurrentJobs, maxQueueSize int, runner Runner) *JobQueue {
	return &JobQueue{
		runner:            runner,
		heap:              priorityHeap{},
		notify:            make(chan struct{}, 1),
		active:            make(map[string]*activeEntry),
		maxConcurrentJobs: maxConcurrentJobs,
		maxQueueSize:      maxQueueSize,
		log:               slog.Default(),
	}
}

func (q *JobQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Enqueue adds jobID to the queue at the given priority. Returns an error
// if the queue is shutting down or full.
func (q *JobQueue) Enqueue(jobID string, priority job.Priority) error {
	q.shutdownMu.Lock()
	shutdown := q.isShutdown
	q.shutdownMu.Unlock()
	if shutdown {
		return errShuttingDown
	}

	q.mu.Lock()
	if len(q.heap) >= q.maxQueueSize {
		q.mu.Unlock()
		return errQueueFull(q.maxQueueSize)
	}
	heap.Push(&q.heap, &queuedJob{jobID: jobID, priority: priority, queuedAt: time.Now()})
	size := len(q.heap)
	q.mu.Unlock()

	q.log.Info("enqueued job", "job_id", jobID, "priority", priority, "queue_size", size)
	q.wake()
	return nil
}

// StartWorker launches the dispatch loop. It returns immediately; the loop
// runs until ctx is done or Shutdown is called.
func (q *JobQueue) StartWorker(ctx context.Context) {
	go func() {
		q.log.Info("job queue worker started")
		for {
			q.shutdownMu.Lock()
			shutdown := q.isShutdown
			q.shutdownMu.Unlock()
			if shutdown {
				q.log.Info("job queue worker shutting down")
				return
			}

			select {
			case <-ctx.Done():
				q.log.Info("job queue worker stopping: context done")
				return
			case <-q.notify:
			}

			q.dispatchReady(ctx)
		}
	}()
}

func (q *JobQueue) dispatchReady(ctx context.Context) {
	for {
		q.activeMu.Lock()
		current := len(q.active)
		q.activeMu.Unlock()

		if current >= q.maxConcurrentJobs {
			return
		}

		q.mu.Lock()
		if q.heap.Len() == 0 {
			q.mu.Unlock()
			return
		}
		qj := heap.Pop(&q.heap).(*queuedJob)
		q.mu.Unlock()

		q.startJob(ctx, qj)
	}
}

func (q *JobQueue) startJob(parent context.Context, qj *queuedJob) {
	jobCtx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	q.activeMu.Lock()
	q.active[qj.jobID] = &activeEntry{cancel: cancel, done: done}
	q.activeMu.Unlock()

	q.log.Info("starting job", "job_id", qj.jobID, "priority", qj.priority, "queued_for", time.Since(qj.queuedAt))

	go func() {
		defer close(done)
		defer cancel()
		q.runner(jobCtx, qj.jobID)

		q.activeMu.Lock()
		delete(q.active, qj.jobID)
		q.activeMu.Unlock()
		q.wake()
	}()
}

// CancelJob cancels jobID if it's running, or removes it from the queue if
// it's still waiting. Returns true if a job was found in either place.
func (q *JobQueue) CancelJob(jobID string) bool {
	cancelled := false

	q.activeMu.Lock()
	if entry, ok := q.active[jobID]; ok {
		entry.cancel()
		delete(q.active, jobID)
		cancelled = true
		q.log.Info("cancelled active job", "job_id", jobID)
	}
	q.activeMu.Unlock()

	q.mu.Lock()
	for i, qj := range q.heap {
		if qj.jobID == jobID {
			heap.Remove(&q.heap, i)
			cancelled = true
			q.log.Info("cancelled queued job", "job_id", jobID)
			break
		}
	}
	q.mu.Unlock()

	return cancelled
}

// Stats reports a point-in-time snapshot, used by the metrics sampler
// behind the Prometheus gauges and /metrics/history.
func (q *JobQueue) Stats() Stats {
	q.mu.Lock()
	breakdown := make(map[job.Priority]int)
	for _, qj := range q.heap {
		breakdown[qj.priority]++
	}
	queued := len(q.heap)
	q.mu.Unlock()

	q.activeMu.Lock()
	active := len(q.active)
	q.activeMu.Unlock()

	return Stats{
		QueuedJobs:        queued,
		ActiveJobs:        active,
		MaxConcurrentJobs: q.maxConcurrentJobs,
		PriorityBreakdown: breakdown,
	}
}

// Shutdown stops the dispatch loop, cancels every active job, and drops
// whatever is left queued.
func (q *JobQueue) Shutdown() {
	q.log.Info("shutting down job queue")

	q.shutdownMu.Lock()
	q.isShutdown = true
	q.shutdownMu.Unlock()

	q.activeMu.Lock()
	for jobID, entry := range q.active {
		q.log.Warn("aborting job due to shutdown", "job_id", jobID)
		entry.cancel()
	}
	q.active = make(map[string]*activeEntry)
	q.activeMu.Unlock()

	q.mu.Lock()
	remaining := len(q.heap)
	q.heap = priorityHeap{}
	q.mu.Unlock()

	if remaining > 0 {
		q.log.Warn("cancelled queued jobs due to shutdown", "count", remaining)
	}

	q.wake()
}
