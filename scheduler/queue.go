package scheduler

import (
	"time"

	"github.com/batchingest/batchingest/ingestion"
	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
)

// Job describes a batch waiting to be dispatched to a worker.
type Job struct {
	// The batch to process.
	BatchID uuid.UUID

	// The ingestion request that owns the batch.
	IngestionID uuid.UUID

	// The priority inherited from the ingestion request.
	Priority ingestion.Priority

	// The identifiers assigned to the batch.
	MemberIDs []string

	// The job may not be dispatched before this time.
	NotBefore time.Time

	// The span of the request that submitted the batch; nil if the
	// request was not traced.
	SpanContext opentracing.SpanContext

	// Enqueue sequence number; breaks ties between otherwise equal jobs.
	seq uint64
}

// jobQueue is a container/heap implementation whose ordering is defined by
// its less function.
type jobQueue struct {
	jobs []*Job
	less func(a, b *Job) bool
}

func (q *jobQueue) Len() int           { return len(q.jobs) }
func (q *jobQueue) Less(i, j int) bool { return q.less(q.jobs[i], q.jobs[j]) }
func (q *jobQueue) Swap(i, j int)      { q.jobs[i], q.jobs[j] = q.jobs[j], q.jobs[i] }

func (q *jobQueue) Push(x interface{}) {
	q.jobs = append(q.jobs, x.(*Job))
}

func (q *jobQueue) Pop() interface{} {
	old := q.jobs
	n := len(old)
	job := old[n-1]
	old[n-1] = nil // avoid memory leak
	q.jobs = old[:n-1]
	return job
}

// peek returns the job at the head of the queue without removing it.
func (q *jobQueue) peek() *Job { return q.jobs[0] }

// newDelayQueue returns a queue for jobs that are not yet eligible, ordered
// by the time they become eligible.
func newDelayQueue() *jobQueue {
	return &jobQueue{
		less: func(a, b *Job) bool {
			if !a.NotBefore.Equal(b.NotBefore) {
				return a.NotBefore.Before(b.NotBefore)
			}
			return a.seq < b.seq
		},
	}
}

// newReadyQueue returns a queue for eligible jobs ordered by priority rank,
// then eligibility time, then submission order.
func newReadyQueue() *jobQueue {
	return &jobQueue{
		less: func(a, b *Job) bool {
			if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
				return ra < rb
			}
			if !a.NotBefore.Equal(b.NotBefore) {
				return a.NotBefore.Before(b.NotBefore)
			}
			return a.seq < b.seq
		},
	}
}
