package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joseph-ayodele/mediclaim/constants"
	"github.com/joseph-ayodele/mediclaim/internal/common"
	"github.com/joseph-ayodele/mediclaim/internal/corpus"
	"github.com/joseph-ayodele/mediclaim/internal/llm"
	"github.com/joseph-ayodele/mediclaim/internal/pipeline"
	"github.com/joseph-ayodele/mediclaim/internal/retrieval"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAnalyzer struct {
	delay    time.Duration
	err      error
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
	release  chan struct{}
	sawCtx   func(ctx context.Context)
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, doc llm.Document) (*pipeline.Analysis, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		old := f.peak.Load()
		if n <= old || f.peak.CompareAndSwap(old, n) {
			break
		}
	}
	if f.sawCtx != nil {
		f.sawCtx(ctx)
	}
	if f.release != nil {
		<-f.release
	}
	time.Sleep(f.delay)
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Analysis{RequestID: common.RequestIDFromContext(ctx), Keywords: []string{doc.Name}}, nil
}

func shutdown(t *testing.T, p *Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.Shutdown(ctx)
}

func TestPool_SubmitReturnsAnalysis(t *testing.T) {
	p := NewPool(&fakeAnalyzer{}, nil, WithWorkers(2))
	defer shutdown(t, p)

	ctx := common.WithRequestID(context.Background(), "req-1")
	a, err := p.Submit(ctx, llm.Document{Name: "summary.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "req-1", a.RequestID)
	assert.Equal(t, []string{"summary.pdf"}, a.Keywords)
}

func TestPool_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	p := NewPool(&fakeAnalyzer{err: boom}, nil)
	defer shutdown(t, p)

	_, err := p.Submit(context.Background(), llm.Document{})
	require.ErrorIs(t, err, boom)
}

func TestPool_BoundsConcurrency(t *testing.T) {
	f := &fakeAnalyzer{delay: 20 * time.Millisecond}
	p := NewPool(f, nil, WithWorkers(2), WithQueueSize(1))
	defer shutdown(t, p)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Submit(context.Background(), llm.Document{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(8), f.calls.Load())
	assert.LessOrEqual(t, f.peak.Load(), int32(2))
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	p := NewPool(&fakeAnalyzer{}, nil)
	shutdown(t, p)
	shutdown(t, p) // idempotent

	_, err := p.Submit(context.Background(), llm.Document{})
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestPool_CallerGivesUp(t *testing.T) {
	f := &fakeAnalyzer{release: make(chan struct{})}
	p := NewPool(f, nil, WithWorkers(1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Submit(ctx, llm.Document{})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(f.release)
	shutdown(t, p)
}

func TestPool_JobTimeout(t *testing.T) {
	var hadDeadline atomic.Bool
	f := &fakeAnalyzer{sawCtx: func(ctx context.Context) {
		_, ok := ctx.Deadline()
		hadDeadline.Store(ok)
	}}

	p := NewPool(f, nil, WithJobTimeout(time.Minute))
	_, err := p.Submit(context.Background(), llm.Document{})
	require.NoError(t, err)
	shutdown(t, p)
	assert.True(t, hadDeadline.Load())

	hadDeadline.Store(true)
	p = NewPool(f, nil)
	_, err = p.Submit(context.Background(), llm.Document{})
	require.NoError(t, err)
	shutdown(t, p)
	assert.False(t, hadDeadline.Load(), "no deadline by default")
}

func TestPool_JobTimeoutDuringKeywordsFailsTheJob(t *testing.T) {
	r, err := retrieval.NewRetriever(corpus.New([]corpus.Record{
		{Code: "P001", Name: "Knee Replacement", Procedure: "Total knee arthroplasty", Speciality: "Orthopaedics"},
	}))
	require.NoError(t, err)

	var finalCalls atomic.Int32
	gen := llm.GeneratorFunc(func(ctx context.Context, req llm.GenerateRequest) (string, error) {
		if req.ResponseSchema["type"] == "array" {
			<-ctx.Done()
			return "", ctx.Err()
		}
		finalCalls.Add(1)
		return "", errors.New("final stage should not run")
	})

	p := NewPool(pipeline.NewProcessor(nil, gen, r, 0), nil, WithJobTimeout(50*time.Millisecond))
	defer shutdown(t, p)

	start := time.Now()
	a, err := p.Submit(context.Background(), llm.Document{Data: []byte("%PDF-1.7"), MIMEType: constants.MIMEPDF, Name: "summary.pdf"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, a)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Zero(t, finalCalls.Load())
}
