// Package transfer implements the upload strategies: direct single-shot,
// chunked resumable, and server-mediated copy, plus the ordered fallback
// chain that runs them with a first-success-wins contract.
package transfer

import (
	"context"
	"errors"
	"io"

	"github.com/love-developer/eras/internal/client/classify"
	"github.com/love-developer/eras/internal/client/models"
)

// Kind names a transfer strategy.
type Kind string

const (
	KindDirect     Kind = "direct"
	KindChunked    Kind = "chunked"
	KindServerCopy Kind = "server-copy"
)

// ErrFallback marks a failed attempt that explicitly permits the next
// strategy in the chain to take over (e.g. a server-copy source exceeding
// the copy ceiling). Any other error stops the chain.
var ErrFallback = errors.New("strategy requests fallback")

// Upload is the execution context for one task attempt.
type Upload struct {
	Task *models.UploadTask

	// Open returns the byte source. It is called per attempt so a retry
	// gets a fresh reader; the returned reader should implement io.Seeker
	// when resumable transfers are expected.
	Open func() (io.ReadCloser, error)

	// Progress, when set, receives the cumulative byte count as the
	// transfer advances.
	Progress func(sent int64)

	// Mutate, when set, applies task changes under the owner's lock.
	// Strategies run concurrently with snapshot reads of the task, so
	// they must never write Task fields directly.
	Mutate func(fn func(*models.UploadTask))
}

func (u *Upload) mutate(fn func(*models.UploadTask)) {
	if u.Mutate != nil {
		u.Mutate(fn)
		return
	}
	fn(u.Task)
}

func (u *Upload) report(sent int64) {
	u.mutate(func(t *models.UploadTask) { t.ProgressBytes = sent })
	if u.Progress != nil {
		u.Progress(sent)
	}
}

// Strategy attempts to move one file to durable storage.
type Strategy interface {
	Kind() Kind
	Attempt(ctx context.Context, up *Upload) (models.ResultRef, error)
}

// Chain runs strategies in order; the first success wins. A strategy
// failing with ErrFallback hands over to the next one transparently.
type Chain []Strategy

func (c Chain) Attempt(ctx context.Context, up *Upload) (models.ResultRef, error) {
	var lastErr error
	for _, s := range c {
		kind := s.Kind()
		up.mutate(func(t *models.UploadTask) { t.Strategy = string(kind) })
		ref, err := s.Attempt(ctx, up)
		if err == nil {
			return ref, nil
		}
		if errors.Is(err, ErrFallback) {
			lastErr = err
			continue
		}
		return models.ResultRef{}, err
	}
	if lastErr == nil {
		lastErr = errors.New("empty strategy chain")
	}
	return models.ResultRef{}, lastErr
}

// Plan returns the ordered strategy kinds for a task. Vault-backed sources
// try server-copy first, then fall back to a client-side byte transfer
// sized by tier.
func Plan(task *models.UploadTask) []Kind {
	byteKind := KindDirect
	if task.Classification.Tier == classify.TierLarge {
		byteKind = KindChunked
	}

	if task.Source.VaultID != "" {
		return []Kind{KindServerCopy, byteKind}
	}
	return []Kind{byteKind}
}

// Escalate re-evaluates the plan after repeated network failures: a direct
// upload that timed out twice is worth chunking when the file is at least
// medium-tier. Small files keep the direct strategy.
func Escalate(task *models.UploadTask) []Kind {
	if task.Strategy == string(KindDirect) &&
		task.RetryCount >= 2 &&
		task.Classification.Tier != classify.TierSmall {
		return []Kind{KindChunked}
	}
	return Plan(task)
}

// Set bundles the concrete strategies and materializes chains from plans.
type Set struct {
	Direct     Strategy
	Chunked    Strategy
	ServerCopy Strategy
}

// Chain builds an executable chain for the given plan.
func (s Set) Chain(plan []Kind) Chain {
	out := make(Chain, 0, len(plan))
	for _, k := range plan {
		switch k {
		case KindDirect:
			out = append(out, s.Direct)
		case KindChunked:
			out = append(out, s.Chunked)
		case KindServerCopy:
			out = append(out, s.ServerCopy)
		}
	}
	return out
}
