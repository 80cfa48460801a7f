package podcast

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexo-app/nexo/internal/events"
	"github.com/nexo-app/nexo/internal/logging"
	"github.com/nexo-app/nexo/internal/storage"
	"github.com/nexo-app/nexo/internal/tts"
	"github.com/nexo-app/nexo/pkg/protocol"
)

// ErrQueueFull is returned when the generation queue cannot accept more work.
var ErrQueueFull = errors.New("podcast: generation queue is full")

type request struct {
	jobID  string
	userID string
	kind   string
	script string
}

// Generator runs podcast synthesis on a background worker pool.
type Generator struct {
	jobs        *Jobs
	tts         *tts.Client
	backend     storage.Backend
	broadcaster *events.Broadcaster
	queue       chan request
	wg          sync.WaitGroup
	cancel      context.CancelFunc
	workers     int
}

// NewGenerator creates a generator with the given worker count.
func NewGenerator(jobs *Jobs, ttsClient *tts.Client, backend storage.Backend, broadcaster *events.Broadcaster, workers int) *Generator {
	if workers <= 0 {
		workers = 2
	}
	return &Generator{
		jobs:        jobs,
		tts:         ttsClient,
		backend:     backend,
		broadcaster: broadcaster,
		queue:       make(chan request, 100),
		workers:     workers,
	}
}

// Start launches the worker goroutines.
func (g *Generator) Start(ctx context.Context) {
	ctx, g.cancel = context.WithCancel(ctx)
	for i := 0; i < g.workers; i++ {
		g.wg.Add(1)
		go g.worker(ctx)
	}
	logging.Info("podcast generator started", zap.Int("workers", g.workers))
}

// Stop signals workers to stop and waits for them to finish.
func (g *Generator) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	close(g.queue)
	g.wg.Wait()
	logging.Info("podcast generator stopped")
}

// Enqueue registers a whole-repository job and queues it for background
// generation.
func (g *Generator) Enqueue(userID string, analysis *protocol.RepositoryAnalysis) (*Job, error) {
	return g.enqueue(userID, KindGeneral, BuildGeneralScript(analysis))
}

// EnqueueSpecific registers a single-question job and queues it for
// background generation.
func (g *Generator) EnqueueSpecific(userID, question, questionContext, answer string) (*Job, error) {
	return g.enqueue(userID, KindSpecific, BuildSpecificScript(question, questionContext, answer))
}

func (g *Generator) enqueue(userID, kind, script string) (*Job, error) {
	job := g.jobs.Create(userID, kind)
	select {
	case g.queue <- request{jobID: job.ID, userID: userID, kind: kind, script: script}:
	default:
		g.jobs.Fail(job.ID, "generation queue is full")
		return nil, ErrQueueFull
	}

	g.broadcaster.Publish(events.Event{
		Type:      events.EventPodcastPending,
		PodcastID: job.ID,
		UserID:    userID,
	})
	return job, nil
}

// GenerateNow synthesizes a whole-repository episode synchronously and
// stores the audio. It returns the storage key and the narration script.
func (g *Generator) GenerateNow(ctx context.Context, analysis *protocol.RepositoryAnalysis) (string, string, error) {
	return g.generateNow(ctx, KindGeneral, BuildGeneralScript(analysis))
}

// GenerateSpecificNow synthesizes a single-question episode synchronously
// and stores the audio.
func (g *Generator) GenerateSpecificNow(ctx context.Context, question, questionContext, answer string) (string, string, error) {
	return g.generateNow(ctx, KindSpecific, BuildSpecificScript(question, questionContext, answer))
}

func (g *Generator) generateNow(ctx context.Context, kind, script string) (string, string, error) {
	key, err := g.synthesizeAndStore(ctx, audioKeyFor(kind, uuid.NewString()), script)
	if err != nil {
		return "", "", err
	}
	return key, script, nil
}

func (g *Generator) worker(ctx context.Context) {
	defer g.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-g.queue:
			if !ok {
				return
			}
			g.process(ctx, req)
		}
	}
}

func (g *Generator) process(ctx context.Context, req request) {
	g.jobs.SetProgress(req.jobID, 25)
	g.publishProgress(req, 25)

	key := audioKeyFor(req.kind, req.jobID)
	if _, err := g.synthesizeAndStore(ctx, key, req.script); err != nil {
		logging.Warn("podcast generation failed",
			zap.String("job_id", req.jobID), zap.Error(err))
		g.jobs.Fail(req.jobID, err.Error())
		g.broadcaster.Publish(events.Event{
			Type:      events.EventPodcastFailed,
			PodcastID: req.jobID,
			UserID:    req.userID,
			Error:     err.Error(),
		})
		return
	}

	audioURL := "/api/v1/podcast/audio/" + req.jobID
	g.jobs.Complete(req.jobID, audioURL, req.script)
	g.broadcaster.Publish(events.Event{
		Type:      events.EventPodcastCompleted,
		PodcastID: req.jobID,
		UserID:    req.userID,
		Progress:  100,
		AudioURL:  audioURL,
	})
	logging.Info("podcast generated",
		zap.String("job_id", req.jobID), zap.String("key", key))
}

func (g *Generator) publishProgress(req request, progress int) {
	g.broadcaster.Publish(events.Event{
		Type:      events.EventPodcastProcessing,
		PodcastID: req.jobID,
		UserID:    req.userID,
		Progress:  progress,
	})
}

func (g *Generator) synthesizeAndStore(ctx context.Context, key, script string) (string, error) {
	audio, err := g.tts.Synthesize(ctx, script)
	if err != nil {
		return "", err
	}
	if err := g.backend.PutObject(ctx, key, bytes.NewReader(audio), int64(len(audio))); err != nil {
		return "", fmt.Errorf("storing audio: %w", err)
	}
	return key, nil
}

// AudioKey returns the storage key for the job's audio object.
func (job Job) AudioKey() string {
	return audioKeyFor(job.Kind, job.ID)
}

func audioKeyFor(kind, jobID string) string {
	return kind + "_" + shortID(jobID) + ".mp3"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
