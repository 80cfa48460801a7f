package podcast

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexo-app/nexo/internal/metrics"
	"github.com/nexo-app/nexo/pkg/protocol"
)

// Job statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Episode kinds. The kind prefixes the audio storage key.
const (
	KindGeneral  = "general"
	KindSpecific = "specific"
)

// Job tracks one podcast generation from enqueue to completion.
type Job struct {
	ID        string
	UserID    string
	Kind      string
	Status    string
	Progress  int
	AudioURL  string
	Script    string
	Error     string
	CreatedAt time.Time
}

// Jobs is an in-memory job registry. Entries survive until the server
// restarts; clients poll or subscribe to SSE for terminal states.
type Jobs struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewJobs creates an empty registry.
func NewJobs() *Jobs {
	return &Jobs{jobs: make(map[string]*Job)}
}

// Create registers a pending job of the given kind and returns its id.
func (j *Jobs) Create(userID, kind string) *Job {
	job := &Job{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	j.mu.Lock()
	j.jobs[job.ID] = job
	j.mu.Unlock()
	j.updateActiveGauge()
	return job
}

// SetProgress moves a job to processing with the given progress percent.
func (j *Jobs) SetProgress(id string, progress int) {
	j.mu.Lock()
	if job, ok := j.jobs[id]; ok {
		job.Status = StatusProcessing
		job.Progress = progress
	}
	j.mu.Unlock()
	j.updateActiveGauge()
}

// Complete marks a job finished with its audio location and script.
func (j *Jobs) Complete(id, audioURL, script string) {
	j.mu.Lock()
	if job, ok := j.jobs[id]; ok {
		job.Status = StatusCompleted
		job.Progress = 100
		job.AudioURL = audioURL
		job.Script = script
	}
	j.mu.Unlock()
	j.updateActiveGauge()
	metrics.RecordPodcastJob(StatusCompleted)
}

// Fail marks a job failed. Progress resets to zero.
func (j *Jobs) Fail(id, message string) {
	j.mu.Lock()
	if job, ok := j.jobs[id]; ok {
		job.Status = StatusFailed
		job.Progress = 0
		job.Error = message
	}
	j.mu.Unlock()
	j.updateActiveGauge()
	metrics.RecordPodcastJob(StatusFailed)
}

// Get returns a snapshot of the job for the status endpoint. Jobs are
// addressed by unguessable id and served to any caller that knows it;
// UserID only routes SSE events. Anonymous jobs have an empty UserID.
func (j *Jobs) Get(id string) (Job, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	job, ok := j.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// WireStatus converts a job snapshot to its wire form.
func (job Job) WireStatus() protocol.PodcastStatus {
	return protocol.PodcastStatus{
		PodcastID: job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		AudioURL:  job.AudioURL,
		Error:     job.Error,
	}
}

func (j *Jobs) updateActiveGauge() {
	j.mu.Lock()
	active := 0
	for _, job := range j.jobs {
		if job.Status == StatusPending || job.Status == StatusProcessing {
			active++
		}
	}
	j.mu.Unlock()
	metrics.SetPodcastJobsActive(active)
}
