package backup

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry is the single-slot, mutex-guarded record of the currently running
// (or most recently run) job. TryStart is an atomic check-and-set: two
// near-simultaneous triggers can never both observe an idle slot.
type Registry struct {
	mu  sync.Mutex
	job Job
}

// NewRegistry creates an idle job registry
func NewRegistry() *Registry {
	return &Registry{
		job: Job{
			Status:    JobStatusIdle,
			Artifacts: make(map[ArtifactKind]string),
		},
	}
}

// TryStart atomically claims the job slot for a run of the given type. On
// success it returns the fresh job id. If a run is already in flight it
// returns the running job's id together with a conflict error and performs
// no state mutation.
func (r *Registry) TryStart(runType RunType) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.job.Status == JobStatusRunning {
		return r.job.ID, NewConflictError(
			fmt.Sprintf("a %s run is already in progress", r.job.Type), nil)
	}

	lastSuccess := r.job.LastSuccessAt

	r.job = Job{
		ID:            "job_" + uuid.NewString()[:8],
		Type:          runType,
		Status:        JobStatusRunning,
		Progress:      0,
		CurrentStep:   "starting",
		Artifacts:     make(map[ArtifactKind]string),
		StartedAt:     time.Now(),
		LastSuccessAt: lastSuccess,
	}

	return r.job.ID, nil
}

// UpdateProgress publishes the current step and percentage. Progress is
// monotone within a run: a lower percentage than already published is
// clamped to the current value.
func (r *Registry) UpdateProgress(step string, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.job.Status != JobStatusRunning {
		return
	}
	if percent > 100 {
		percent = 100
	}
	if percent > r.job.Progress {
		r.job.Progress = percent
	}
	r.job.CurrentStep = step
}

// SetArtifact records a generated artifact path on the running job
func (r *Registry) SetArtifact(kind ArtifactKind, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.job.Status != JobStatusRunning {
		return
	}
	r.job.Artifacts[kind] = path
}

// Finish moves the job to its terminal state and unconditionally releases
// the slot. On success progress is forced to 100; on failure progress is
// reset to 0 and the error is recorded and surfaced via CurrentStep.
func (r *Registry) Finish(success bool, runErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if success {
		r.job.Status = JobStatusCompleted
		r.job.Progress = 100
		r.job.CurrentStep = "completed"
		r.job.LastSuccessAt = time.Now()
		r.job.Error = ""
		return
	}

	r.job.Status = JobStatusFailed
	r.job.Progress = 0
	if runErr != nil {
		r.job.Error = runErr.Error()
		r.job.CurrentStep = "error: " + runErr.Error()
	} else {
		r.job.CurrentStep = "error"
	}
}

// Snapshot returns a read-only copy of the job, safe against concurrent
// progress updates.
func (r *Registry) Snapshot() Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := r.job
	copied.Artifacts = make(map[ArtifactKind]string, len(r.job.Artifacts))
	for k, v := range r.job.Artifacts {
		copied.Artifacts[k] = v
	}
	return copied
}
