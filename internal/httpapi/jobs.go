package httpapi

import (
	"context"
	"sync"

	"github.com/mechiko/pdfsanitize/internal/pipeline"
)

// JobState is what a status lookup reports while a submission is
// still queued or running.
type JobState string

const (
	JobQueued    JobState = "QUEUED"
	JobRunning   JobState = "RUNNING"
	JobCompleted JobState = "COMPLETED"
)

// JobRecord is the in-memory view of one submission, keyed by a local
// handle id distinct from the audit event id the controller assigns
// once the job actually starts running.
type JobRecord struct {
	ID     string
	State  JobState
	Result *pipeline.JobResult

	req pipeline.JobRequest
}

// JobService adapts pipeline.Controller's synchronous, strictly-FIFO
// Submit into an asynchronous HTTP API: POST enqueues and returns
// immediately, a single goroutine drains the queue one job at a time
// (mirroring the controller's own single-worker model, §5), and GET
// polls the in-memory record.
type JobService struct {
	ctrl  *pipeline.Controller
	queue chan *JobRecord

	mu      sync.Mutex
	records map[string]*JobRecord
	nextID  int
}

// NewJobService starts the background drain loop against ctrl. The
// loop exits when ctx is done.
func NewJobService(ctx context.Context, ctrl *pipeline.Controller) *JobService {
	s := &JobService{
		ctrl:    ctrl,
		queue:   make(chan *JobRecord, 64),
		records: map[string]*JobRecord{},
	}
	go s.drain(ctx)
	return s
}

func (s *JobService) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-s.queue:
			s.mu.Lock()
			rec.State = JobRunning
			s.mu.Unlock()

			result := s.ctrl.Submit(ctx, rec.req)

			s.mu.Lock()
			rec.State = JobCompleted
			rec.Result = &result
			s.mu.Unlock()
		}
	}
}

// Enqueue submits req for background processing and returns a handle
// id the caller polls via Lookup.
func (s *JobService) Enqueue(req pipeline.JobRequest) string {
	s.mu.Lock()
	s.nextID++
	id := formatHandle(s.nextID)
	rec := &JobRecord{ID: id, State: JobQueued, req: req}
	s.records[id] = rec
	s.mu.Unlock()

	s.queue <- rec
	return id
}

// Lookup returns the current record for id, or (JobRecord{}, false)
// if no such job was ever enqueued on this service instance.
func (s *JobService) Lookup(id string) (JobRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return JobRecord{}, false
	}
	return *rec, true
}

func formatHandle(n int) string {
	const digits = "0123456789abcdef"
	if n == 0 {
		return "job-0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{digits[n%16]}, b...)
		n /= 16
	}
	return "job-" + string(b)
}
