package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moffa90/go-fwflash/flasher"
	"github.com/moffa90/go-fwflash/session"
)

// flashJob is one background FlashBatch run.
type flashJob struct {
	id      string
	created time.Time
	cancel  context.CancelFunc
	done    chan struct{}

	mu       sync.Mutex
	batchID  string
	progress flasher.Progress
	err      error
	finished time.Time
}

type jobView struct {
	ID        string       `json:"id"`
	BatchID   string       `json:"batch_id,omitempty"`
	Done      bool         `json:"done"`
	Progress  progressView `json:"progress"`
	Error     string       `json:"error,omitempty"`
	Created   time.Time    `json:"created"`
	Completed *time.Time   `json:"completed,omitempty"`
}

// startFlashJob runs s.FlashBatch in the background. The job outlives the
// request that started it; cancel stops it between parts.
func startFlashJob(s *session.Session, opts session.FlashOptions, onDone func(*flashJob)) *flashJob {
	ctx, cancel := context.WithCancel(context.Background())
	j := &flashJob{
		id:       uuid.NewString(),
		created:  time.Now(),
		cancel:   cancel,
		done:     make(chan struct{}),
		progress: flasher.Progress{State: flasher.StateIdle},
	}

	go func() {
		defer close(j.done)
		defer cancel()

		batch, err := s.FlashBatch(ctx, opts, j.update)

		j.mu.Lock()
		if batch != nil {
			j.batchID = batch.ID
		}
		j.err = err
		j.finished = time.Now()
		if err != nil && !j.progress.State.Terminal() {
			j.progress.State = flasher.StateFailed
		}
		j.mu.Unlock()

		if onDone != nil {
			onDone(j)
		}
	}()
	return j
}

func (j *flashJob) update(p flasher.Progress) {
	j.mu.Lock()
	j.progress = p
	j.mu.Unlock()
}

func (j *flashJob) running() bool {
	select {
	case <-j.done:
		return false
	default:
		return true
	}
}

// wait blocks until the job finishes or ctx is done.
func (j *flashJob) wait(ctx context.Context) error {
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *flashJob) view() *jobView {
	j.mu.Lock()
	defer j.mu.Unlock()

	v := &jobView{
		ID:       j.id,
		BatchID:  j.batchID,
		Done:     !j.finished.IsZero(),
		Progress: newProgressView(j.progress),
		Created:  j.created,
	}
	if j.err != nil {
		v.Error = j.err.Error()
	}
	if v.Done {
		t := j.finished
		v.Completed = &t
	}
	return v
}
