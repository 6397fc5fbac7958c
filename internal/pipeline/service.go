// Package pipeline drives an analysis request from ingestion to verdict.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/drishti-ai/drishti/internal/blob"
	"github.com/drishti-ai/drishti/internal/consistency"
	"github.com/drishti-ai/drishti/internal/detect"
	"github.com/drishti-ai/drishti/internal/fusion"
	"github.com/drishti-ai/drishti/internal/ingest"
	"github.com/drishti-ai/drishti/internal/metadata"
	"github.com/drishti-ai/drishti/internal/reqstore"
	"github.com/drishti-ai/drishti/pkg/models"
)

// Terminal error codes surfaced on failed requests.
const (
	ErrCodeDetectionUnavailable = "DETECTION_UNAVAILABLE"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

var ErrNotFound = reqstore.ErrNotFound

var validLanguages = map[string]bool{"en": true, "hi": true, "mr": true}

// SubmitParams is one media submission.
type SubmitParams struct {
	Payload      []byte
	DeclaredType string
	Caption      *string
	Language     string
	FileName     string
}

type inflight struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Service orchestrates the detector fan-out per request. Detector tasks
// run in parallel under individual timeouts; fusion blocks until every
// applicable task has returned or failed (a join, not a race), and CMCE
// runs strictly after the join since it consumes the combined output.
type Service struct {
	normalizer      *ingest.Normalizer
	detectors       *detect.Registry
	scanner         *metadata.Scanner
	cmce            *consistency.Engine
	fuser           *fusion.Fuser
	requests        *reqstore.Store
	stager          blob.Stager
	detectorTimeout time.Duration
	syncBudget      time.Duration

	mu      sync.Mutex
	running map[uuid.UUID]*inflight
}

func NewService(
	normalizer *ingest.Normalizer,
	detectors *detect.Registry,
	scanner *metadata.Scanner,
	cmce *consistency.Engine,
	fuser *fusion.Fuser,
	requests *reqstore.Store,
	stager blob.Stager,
	detectorTimeout, syncBudget time.Duration,
) *Service {
	return &Service{
		normalizer:      normalizer,
		detectors:       detectors,
		scanner:         scanner,
		cmce:            cmce,
		fuser:           fuser,
		requests:        requests,
		stager:          stager,
		detectorTimeout: detectorTimeout,
		syncBudget:      syncBudget,
		running:         make(map[uuid.UUID]*inflight),
	}
}

// Submit validates the payload, creates a pending request and dispatches
// the detector fan-out in the background. Validation failures create no
// request record at all.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (*models.AnalysisRequest, error) {
	modality, err := s.normalizer.Resolve(p.Payload, p.DeclaredType, p.Caption)
	if err != nil {
		return nil, err
	}

	lang := p.Language
	if lang == "" {
		lang = "en"
	}
	if !validLanguages[lang] {
		return nil, fmt.Errorf("%w: unsupported language %q", ingest.ErrInvalidPayload, p.Language)
	}

	req := &models.AnalysisRequest{
		ID:        uuid.New(),
		Modality:  modality,
		FileName:  p.FileName,
		Language:  lang,
		Caption:   p.Caption,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if err := s.stager.Put(ctx, req.ID, p.Payload); err != nil {
		_ = s.requests.Fail(ctx, req.ID, ErrCodeInternal)
		return nil, fmt.Errorf("staging payload: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	fl := &inflight{cancel: cancel, done: make(chan struct{})}
	s.mu.Lock()
	s.running[req.ID] = fl
	s.mu.Unlock()

	go s.run(runCtx, req, fl)

	return req, nil
}

// SubmitAndWait submits and then waits up to the sync latency budget for
// completion, returning whichever state the request is in when the
// budget elapses. Polling callers never block server-side; only this
// submission path does, and only up to the budget.
func (s *Service) SubmitAndWait(ctx context.Context, p SubmitParams) (*models.AnalysisRequest, error) {
	req, err := s.Submit(ctx, p)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	fl := s.running[req.ID]
	s.mu.Unlock()
	if fl != nil {
		select {
		case <-fl.done:
		case <-time.After(s.syncBudget):
		case <-ctx.Done():
		}
	}

	return s.requests.Get(ctx, req.ID)
}

// Get returns the current request state.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.AnalysisRequest, error) {
	return s.requests.Get(ctx, id)
}

// Cancel stops further detector work for a request. Already-dispatched
// detector tasks may run to completion; their results are discarded
// because the cancelled status wins the terminal compare-and-swap.
// Cancelling an already-terminal request is a no-op.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	err := s.requests.Cancel(ctx, id)
	if errors.Is(err, reqstore.ErrStaleTransition) {
		return nil // already terminal
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	fl := s.running[id]
	s.mu.Unlock()
	if fl != nil {
		fl.cancel()
	}
	_ = s.stager.Remove(ctx, id)
	return nil
}

// run executes the detector fan-out for one request. It recovers from
// panics and always leaves the request in a terminal state and the
// payload stage empty.
func (s *Service) run(ctx context.Context, req *models.AnalysisRequest, fl *inflight) {
	started := time.Now()
	bg := context.Background()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in analysis run", "error", r, "request_id", req.ID)
			_ = s.requests.Fail(bg, req.ID, ErrCodeInternal)
		}
		// Zero-storage invariant: payload never outlives the window.
		_ = s.stager.Remove(bg, req.ID)
		s.mu.Lock()
		delete(s.running, req.ID)
		s.mu.Unlock()
		close(fl.done)
	}()

	if err := s.requests.MarkRunning(bg, req.ID); err != nil {
		// Cancelled or evicted before we started.
		return
	}

	payload, err := s.stager.Get(ctx, req.ID)
	if err != nil {
		_ = s.requests.Fail(bg, req.ID, ErrCodeDetectionUnavailable)
		return
	}

	joined := s.fanOut(ctx, req, payload)
	if ctx.Err() != nil {
		return // cancel already holds the terminal status
	}

	if len(joined.subScores) == 0 {
		// Every applicable content detector failed or timed out.
		_ = s.requests.Fail(bg, req.ID, ErrCodeDetectionUnavailable)
		return
	}

	assessment := s.cmce.Check(consistency.Input{
		SubScores:      joined.subScores,
		MetadataScore:  joined.metadataScore,
		Caption:        req.Caption,
		ContentSignals: joined.signals(),
	})

	subScores := joined.subScores
	if joined.metadataOK {
		subScores["metadata"] = joined.metadataScore
	}

	result := s.fuser.Fuse(fusion.Input{
		Modality:         req.Modality,
		SubScores:        subScores,
		Evidence:         joined.evidence,
		MetadataFindings: joined.findings,
		CMCE:             assessment,
		Caption:          req.Caption,
		Degraded:         joined.degraded,
	})
	result.ProcessingMS = time.Since(started).Milliseconds()

	if err := s.requests.Complete(bg, req.ID, result); err != nil {
		if !errors.Is(err, reqstore.ErrStaleTransition) {
			slog.Error("completing request", "error", err, "request_id", req.ID)
		}
		return
	}

	slog.Info("analysis complete",
		"request_id", req.ID,
		"modality", req.Modality,
		"verdict", result.Verdict,
		"confidence", result.OverallConfidence,
		"duration_ms", result.ProcessingMS,
	)
}

type joinResult struct {
	mu            sync.Mutex
	subScores     map[string]float64
	evidence      map[string]*detect.Evidence
	degraded      []string
	metadataScore float64
	metadataOK    bool
	findings      []string
}

func (j *joinResult) record(name string, ev *detect.Evidence) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.subScores[name] = ev.Score
	j.evidence[name] = ev
}

func (j *joinResult) degrade(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.degraded = append(j.degraded, name)
}

func (j *joinResult) signals() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []string
	for _, ev := range j.evidence {
		out = append(out, ev.Signals...)
	}
	return out
}

// fanOut runs every applicable detector plus the metadata scanner in
// parallel and blocks until all of them return. A failed or timed-out
// detector degrades to an omitted sub-score rather than failing the
// group, so the errgroup here only provides the join and context
// plumbing.
func (s *Service) fanOut(ctx context.Context, req *models.AnalysisRequest, payload []byte) *joinResult {
	joined := &joinResult{
		subScores: make(map[string]float64),
		evidence:  make(map[string]*detect.Evidence),
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, task := range s.tasksFor(req, payload) {
		g.Go(func() error {
			tctx, cancel := context.WithTimeout(gctx, s.detectorTimeout)
			defer cancel()

			ev, err := s.runDetector(tctx, task.detector, task.input)
			if err != nil {
				slog.Warn("detector degraded",
					"request_id", req.ID,
					"detector", task.name,
					"error", err,
				)
				joined.degrade(task.name)
				return nil
			}
			joined.record(task.name, ev)
			return nil
		})
	}

	g.Go(func() error {
		tctx, cancel := context.WithTimeout(gctx, s.detectorTimeout)
		defer cancel()

		report, err := s.scanner.Scan(tctx, payload)
		if err != nil {
			joined.degrade("metadata")
			return nil
		}
		joined.mu.Lock()
		joined.metadataScore = report.Score
		joined.metadataOK = true
		joined.findings = report.Findings
		joined.mu.Unlock()
		return nil
	})

	_ = g.Wait()
	return joined
}

type detectorTask struct {
	name     string
	detector detect.Detector
	input    []byte
}

// tasksFor resolves the detector set for a request. The whatsapp
// modality is a paired unit: the image engine runs on the payload and
// the text engine on the caption, when one was provided.
func (s *Service) tasksFor(req *models.AnalysisRequest, payload []byte) []detectorTask {
	if req.Modality != models.ModalityWhatsApp {
		d := s.detectors.Get(req.Modality)
		return []detectorTask{{name: req.Modality, detector: d, input: payload}}
	}

	tasks := []detectorTask{
		{name: "image", detector: s.detectors.Get(models.ModalityImage), input: payload},
	}
	if req.Caption != nil && *req.Caption != "" {
		tasks = append(tasks, detectorTask{
			name:     "text",
			detector: s.detectors.Get(models.ModalityText),
			input:    []byte(*req.Caption),
		})
	}
	return tasks
}

// runDetector invokes a detector on its own goroutine so a stuck engine
// cannot outlive its timeout.
func (s *Service) runDetector(ctx context.Context, d detect.Detector, input []byte) (*detect.Evidence, error) {
	type outcome struct {
		ev  *detect.Evidence
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		ev, err := d.Detect(ctx, input)
		ch <- outcome{ev, err}
	}()

	select {
	case out := <-ch:
		return out.ev, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
