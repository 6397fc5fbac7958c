// Package reqstore holds in-flight analysis request state. Records live
// only in the cache with a bounded TTL; analysis payloads and results are
// never written to durable storage.
package reqstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/drishti-ai/drishti/internal/cache"
	"github.com/drishti-ai/drishti/pkg/models"
)

var (
	ErrNotFound = errors.New("analysis request not found")
	// ErrStaleTransition means the request already moved past the
	// expected status, e.g. a cancel racing a completion.
	ErrStaleTransition = cache.ErrStaleTransition
)

// Store tracks analysis requests through their lifecycle. Status lives in
// its own key so transitions are compare-and-swap; the result is written
// in full before the status flips to complete, so a poller observes
// either no result or a fully populated one.
type Store struct {
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

func New(c cache.Cache, ttl time.Duration) *Store {
	return &Store{cache: c, ttl: ttl, now: time.Now}
}

// Create persists a fresh pending request.
func (s *Store) Create(ctx context.Context, req *models.AnalysisRequest) error {
	req.Status = models.StatusPending
	meta, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if err := s.cache.Set(ctx, cache.RequestKey(req.ID), meta, s.ttl); err != nil {
		return fmt.Errorf("store request: %w", err)
	}
	if err := s.cache.Set(ctx, cache.StatusKey(req.ID), []byte(models.StatusPending), s.ttl); err != nil {
		return fmt.Errorf("store status: %w", err)
	}
	return nil
}

// Get returns the current request state. Repeated calls after a terminal
// transition return the identical result until TTL eviction.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.AnalysisRequest, error) {
	meta, ok, err := s.cache.Get(ctx, cache.RequestKey(id))
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	var req models.AnalysisRequest
	if err := json.Unmarshal(meta, &req); err != nil {
		return nil, fmt.Errorf("unmarshal request: %w", err)
	}

	// The status key is authoritative between the create and the
	// terminal meta rewrite.
	if status, ok, err := s.cache.Get(ctx, cache.StatusKey(id)); err == nil && ok {
		req.Status = string(status)
	}

	if req.Status == models.StatusComplete && req.Result == nil {
		raw, ok, err := s.cache.Get(ctx, cache.ResultKey(id))
		if err != nil {
			return nil, fmt.Errorf("get result: %w", err)
		}
		if ok {
			var result models.AnalysisResult
			if err := json.Unmarshal(raw, &result); err != nil {
				return nil, fmt.Errorf("unmarshal result: %w", err)
			}
			req.Result = &result
		}
	}

	return &req, nil
}

// MarkRunning transitions pending -> running.
func (s *Store) MarkRunning(ctx context.Context, id uuid.UUID) error {
	return s.cas(ctx, id, models.StatusPending, models.StatusRunning)
}

// Complete writes the result, then transitions running -> complete.
func (s *Store) Complete(ctx context.Context, id uuid.UUID, result *models.AnalysisResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := s.cache.Set(ctx, cache.ResultKey(id), raw, s.ttl); err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	if err := s.cas(ctx, id, models.StatusRunning, models.StatusComplete); err != nil {
		// Lost the race (e.g. cancelled); discard the staged result.
		_ = s.cache.Delete(ctx, cache.ResultKey(id))
		return err
	}
	s.finalizeMeta(ctx, id, models.StatusComplete, "", result)
	return nil
}

// Fail transitions the request to failed with the given error code. Both
// pending and running requests may fail.
func (s *Store) Fail(ctx context.Context, id uuid.UUID, errorCode string) error {
	err := s.cas(ctx, id, models.StatusRunning, models.StatusFailed)
	if errors.Is(err, ErrStaleTransition) {
		err = s.cas(ctx, id, models.StatusPending, models.StatusFailed)
	}
	if err != nil {
		return err
	}
	s.finalizeMeta(ctx, id, models.StatusFailed, errorCode, nil)
	return nil
}

// Cancel transitions a non-terminal request to cancelled.
func (s *Store) Cancel(ctx context.Context, id uuid.UUID) error {
	err := s.cas(ctx, id, models.StatusPending, models.StatusCancelled)
	if errors.Is(err, ErrStaleTransition) {
		err = s.cas(ctx, id, models.StatusRunning, models.StatusCancelled)
	}
	if err != nil {
		return err
	}
	s.finalizeMeta(ctx, id, models.StatusCancelled, "", nil)
	return nil
}

func (s *Store) cas(ctx context.Context, id uuid.UUID, from, to string) error {
	err := s.cache.CompareAndSwap(ctx, cache.StatusKey(id), []byte(from), []byte(to), s.ttl)
	if errors.Is(err, cache.ErrStaleTransition) {
		// Distinguish an evicted record from a lost race.
		if _, ok, getErr := s.cache.Get(ctx, cache.StatusKey(id)); getErr == nil && !ok {
			return ErrNotFound
		}
	}
	return err
}

// finalizeMeta rewrites the request record with its terminal state. The
// CAS winner is the sole writer here, so a plain Set is safe; readers
// that interleave still assemble a consistent view from the status and
// result keys.
func (s *Store) finalizeMeta(ctx context.Context, id uuid.UUID, status, errorCode string, result *models.AnalysisResult) {
	meta, ok, err := s.cache.Get(ctx, cache.RequestKey(id))
	if err != nil || !ok {
		return
	}
	var req models.AnalysisRequest
	if err := json.Unmarshal(meta, &req); err != nil {
		return
	}
	now := s.now().UTC()
	req.Status = status
	req.ErrorCode = errorCode
	req.Result = result
	req.CompletedAt = &now

	if raw, err := json.Marshal(&req); err == nil {
		_ = s.cache.Set(ctx, cache.RequestKey(id), raw, s.ttl)
	}
}
