package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	queue "github.com/khelo/talenttrack/internal/adapters/mq/queue"
	worker "github.com/khelo/talenttrack/internal/adapters/mq/worker"
	"github.com/khelo/talenttrack/internal/domain/analysis"
	"github.com/khelo/talenttrack/internal/domain/model"
	"github.com/khelo/talenttrack/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// mockQueue feeds jobs to workers without the real queue's bookkeeping.
type mockQueue struct {
	jobChan chan queue.Job
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobChan: make(chan queue.Job, 10)}
}

func (mq *mockQueue) Dequeue(_ context.Context) <-chan queue.Job {
	return mq.jobChan
}

func (mq *mockQueue) addJob(j queue.Job) {
	mq.jobChan <- j
}

func (mq *mockQueue) close() {
	close(mq.jobChan)
}

// mockAnalyzer returns canned results or errors per video reference.
type mockAnalyzer struct {
	mu      sync.RWMutex
	results map[string]analysis.Result
	errs    map[string]error
}

func newMockAnalyzer() *mockAnalyzer {
	return &mockAnalyzer{
		results: make(map[string]analysis.Result),
		errs:    make(map[string]error),
	}
}

func (ma *mockAnalyzer) Analyze(_ context.Context, req analysis.Request) (analysis.Result, error) {
	ma.mu.RLock()
	defer ma.mu.RUnlock()
	if err, ok := ma.errs[req.VideoRef]; ok {
		return analysis.Result{}, err
	}
	if res, ok := ma.results[req.VideoRef]; ok {
		return res, nil
	}
	return analysis.Result{RawScore: 42, Confidence: 0.9}, nil
}

func (ma *mockAnalyzer) setResult(videoRef string, res analysis.Result) {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	ma.results[videoRef] = res
}

func (ma *mockAnalyzer) setError(videoRef string, err error) {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	ma.errs[videoRef] = err
}

// mockReporter records claims and outcomes.
type mockReporter struct {
	mu       sync.RWMutex
	stale    map[string]bool
	outcomes []model.AnalysisOutcome
}

func newMockReporter() *mockReporter {
	return &mockReporter{stale: make(map[string]bool)}
}

func (mr *mockReporter) Claim(_ context.Context, recordingID string) (bool, error) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return !mr.stale[recordingID], nil
}

func (mr *mockReporter) OnAnalysisResult(_ context.Context, outcome model.AnalysisOutcome) error {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.outcomes = append(mr.outcomes, outcome)
	return nil
}

func (mr *mockReporter) markStale(recordingID string) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.stale[recordingID] = true
}

func (mr *mockReporter) reported() []model.AnalysisOutcome {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make([]model.AnalysisOutcome, len(mr.outcomes))
	copy(out, mr.outcomes)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestAnalysisWorker(t *testing.T) {
	Convey("Given a running analysis worker", t, func() {
		mq := newMockQueue()
		analyzer := newMockAnalyzer()
		reporter := newMockReporter()

		w := worker.NewAnalysisWorker(mq, analyzer, reporter, worker.WithName("worker-test"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		Convey("When a job is processed successfully", func() {
			analyzer.setResult("video-1", analysis.Result{RawScore: 55, Confidence: 0.95})
			mq.addJob(queue.Job{RecordingID: "rec-1", VideoRef: "video-1", TestName: "vertical_jump"})

			waitFor(t, func() bool { return len(reporter.reported()) == 1 })

			Convey("Then a scored outcome is reported", func() {
				outcome := reporter.reported()[0]
				So(outcome.RecordingID, ShouldEqual, "rec-1")
				So(outcome.Kind, ShouldEqual, model.OutcomeScored)
				So(outcome.RawScore, ShouldEqual, 55)
			})
		})

		Convey("When the analyzer fails", func() {
			analyzer.setError("video-2", errors.New("pose landmarks not detected"))
			mq.addJob(queue.Job{RecordingID: "rec-2", VideoRef: "video-2", TestName: "vertical_jump"})

			waitFor(t, func() bool { return len(reporter.reported()) == 1 })

			Convey("Then a failed outcome carries the reason", func() {
				outcome := reporter.reported()[0]
				So(outcome.Kind, ShouldEqual, model.OutcomeFailed)
				So(outcome.Reason, ShouldContainSubstring, "pose landmarks")
			})
		})

		Convey("When the claim reports a stale job", func() {
			reporter.markStale("rec-3")
			mq.addJob(queue.Job{RecordingID: "rec-3", VideoRef: "video-3", TestName: "vertical_jump"})
			mq.addJob(queue.Job{RecordingID: "rec-4", VideoRef: "video-4", TestName: "vertical_jump"})

			waitFor(t, func() bool { return len(reporter.reported()) == 1 })

			Convey("Then the stale job is dropped without an outcome", func() {
				outcomes := reporter.reported()
				So(outcomes, ShouldHaveLength, 1)
				So(outcomes[0].RecordingID, ShouldEqual, "rec-4")
			})
		})

		Convey("When the worker is shut down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()
			err := w.Shutdown(shutdownCtx)

			Convey("Then the shutdown completes cleanly", func() {
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a worker pool over a real queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		analyzer := newMockAnalyzer()
		reporter := newMockReporter()

		pool := worker.NewPool(4, q, analyzer, reporter)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		Convey("When several jobs are enqueued", func() {
			for _, id := range []string{"rec-1", "rec-2", "rec-3"} {
				So(q.Enqueue(ctx, queue.Job{RecordingID: id, VideoRef: "video-" + id, TestName: "situps"}), ShouldBeTrue)
			}

			waitFor(t, func() bool { return len(reporter.reported()) == 3 })

			Convey("Then every job is reported exactly once", func() {
				seen := make(map[string]int)
				for _, outcome := range reporter.reported() {
					seen[outcome.RecordingID]++
				}
				So(seen, ShouldHaveLength, 3)
				for _, n := range seen {
					So(n, ShouldEqual, 1)
				}
			})

			Convey("And the pool stops cleanly", func() {
				pool.Stop()
			})
		})
	})
}
