package transfer

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/love-developer/eras/internal/client/api"
	"github.com/love-developer/eras/internal/client/classify"
	"github.com/love-developer/eras/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTask(tier classify.SizeTier, vaultID string) *models.UploadTask {
	return &models.UploadTask{
		ID:             "t-1",
		Source:         models.FileInfo{Name: "clip.mov", MimeType: "video/quicktime", VaultID: vaultID},
		Classification: classify.Classification{Tier: tier, Kind: classify.KindVideo},
		ContainerID:    "cap-1",
		TotalBytes:     100,
	}
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name  string
		tier  classify.SizeTier
		vault string
		want  []Kind
	}{
		{"small local file goes direct", classify.TierSmall, "", []Kind{KindDirect}},
		{"medium local file goes direct", classify.TierMedium, "", []Kind{KindDirect}},
		{"large local file goes chunked", classify.TierLarge, "", []Kind{KindChunked}},
		{"small vault item copies then direct", classify.TierSmall, "v-1", []Kind{KindServerCopy, KindDirect}},
		{"large vault item copies then chunked", classify.TierLarge, "v-1", []Kind{KindServerCopy, KindChunked}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Plan(newTask(tc.tier, tc.vault)))
		})
	}
}

func TestEscalate(t *testing.T) {
	// a medium file that failed direct twice escalates to chunked
	task := newTask(classify.TierMedium, "")
	task.Strategy = string(KindDirect)
	task.RetryCount = 2
	assert.Equal(t, []Kind{KindChunked}, Escalate(task))

	// a small file never escalates
	task = newTask(classify.TierSmall, "")
	task.Strategy = string(KindDirect)
	task.RetryCount = 5
	assert.Equal(t, []Kind{KindDirect}, Escalate(task))

	// first retry keeps the original plan
	task = newTask(classify.TierMedium, "")
	task.Strategy = string(KindDirect)
	task.RetryCount = 1
	assert.Equal(t, []Kind{KindDirect}, Escalate(task))
}

type stubStrategy struct {
	kind Kind
	ref  models.ResultRef
	err  error
	hits int
}

func (s *stubStrategy) Kind() Kind { return s.kind }

func (s *stubStrategy) Attempt(ctx context.Context, up *Upload) (models.ResultRef, error) {
	s.hits++
	return s.ref, s.err
}

func TestChain_FirstSuccessWins(t *testing.T) {
	first := &stubStrategy{kind: KindServerCopy, ref: models.ResultRef{MediaID: "m-1"}}
	second := &stubStrategy{kind: KindChunked}

	up := &Upload{Task: newTask(classify.TierLarge, "v-1")}
	ref, err := Chain{first, second}.Attempt(context.Background(), up)

	require.NoError(t, err)
	assert.Equal(t, "m-1", ref.MediaID)
	assert.Equal(t, 0, second.hits, "second strategy must not run")
}

func TestChain_FallbackContinues(t *testing.T) {
	copyStrat := &stubStrategy{kind: KindServerCopy, err: errors.Join(ErrFallback, errors.New("source too large"))}
	chunked := &stubStrategy{kind: KindChunked, ref: models.ResultRef{MediaID: "m-2"}}

	up := &Upload{Task: newTask(classify.TierLarge, "v-1")}
	ref, err := Chain{copyStrat, chunked}.Attempt(context.Background(), up)

	require.NoError(t, err)
	assert.Equal(t, "m-2", ref.MediaID)
	assert.Equal(t, 1, copyStrat.hits)
	assert.Equal(t, 1, chunked.hits)
	assert.Equal(t, string(KindChunked), up.Task.Strategy, "task records the strategy that won")
}

func TestChain_HardFailureStops(t *testing.T) {
	boom := errors.New("rejected")
	first := &stubStrategy{kind: KindDirect, err: boom}
	second := &stubStrategy{kind: KindChunked}

	up := &Upload{Task: newTask(classify.TierMedium, "")}
	_, err := Chain{first, second}.Attempt(context.Background(), up)

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, second.hits)
}

type fakeDirect struct {
	gotContainer string
	gotName      string
	payload      string
	res          api.IngestResult
	err          error
}

func (f *fakeDirect) IngestDirect(ctx context.Context, containerID, fileName, mimeType string, r io.Reader) (api.IngestResult, error) {
	f.gotContainer = containerID
	f.gotName = fileName
	b, _ := io.ReadAll(r)
	f.payload = string(b)
	return f.res, f.err
}

func TestDirect_Attempt(t *testing.T) {
	client := &fakeDirect{res: api.IngestResult{MediaID: "m-9", PublicURL: "u"}}
	d := &Direct{Client: client}

	task := newTask(classify.TierSmall, "")
	task.TotalBytes = 9

	var progressed int64
	up := &Upload{
		Task:     task,
		Open:     func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("ninechars")), nil },
		Progress: func(sent int64) { progressed = sent },
	}

	ref, err := d.Attempt(context.Background(), up)
	require.NoError(t, err)
	assert.Equal(t, "m-9", ref.MediaID)
	assert.Equal(t, "cap-1", client.gotContainer)
	assert.Equal(t, "ninechars", client.payload)
	assert.Equal(t, int64(9), progressed)
}
