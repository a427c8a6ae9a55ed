package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/khelo/talenttrack/internal/domain/model"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	job1 := model.AnalysisJob{RecordingID: "rec1", VideoRef: "video1", TestName: "vertical_jump"}
	if !q.Enqueue(ctx, job1) {
		t.Error("expected enqueue to succeed")
	}

	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	jobChan := q.Dequeue(ctx)
	job := <-jobChan
	if job.RecordingID != "rec1" {
		t.Errorf("expected rec1, got %v", job.RecordingID)
	}

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	job1 := model.AnalysisJob{RecordingID: "rec1", VideoRef: "video1", TestName: "situps"}
	job2 := model.AnalysisJob{RecordingID: "rec2", VideoRef: "video2", TestName: "situps"}
	job3 := model.AnalysisJob{RecordingID: "rec3", VideoRef: "video3", TestName: "situps"}

	if !q.Enqueue(ctx, job1) {
		t.Error("expected enqueue to succeed")
	}
	if !q.Enqueue(ctx, job2) {
		t.Error("expected enqueue to succeed")
	}

	// Enqueue on a full queue must fail fast, not block.
	if q.Enqueue(ctx, job3) {
		t.Error("expected enqueue to fail when full")
	}

	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()
	numGoroutines := 10
	numJobs := 100

	done := make(chan bool, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			for j := 0; j < numJobs; j++ {
				job := model.AnalysisJob{
					RecordingID: fmt.Sprintf("rec%d_%d", id, j),
					VideoRef:    fmt.Sprintf("video%d_%d", id, j),
					TestName:    "shuttle_run",
				}
				for !q.Enqueue(ctx, job) {
					time.Sleep(time.Millisecond)
				}
			}
			done <- true
		}(i)
	}

	consumed := make(chan string, numGoroutines*numJobs)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			jobChan := q.Dequeue(ctx)
			for job := range jobChan {
				consumed <- job.RecordingID
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	time.Sleep(100 * time.Millisecond)

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected final length 0, got %d", l)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	job := model.AnalysisJob{RecordingID: "rec1", VideoRef: "video1", TestName: "situps"}
	if !q.Enqueue(ctx, job) {
		t.Error("expected enqueue to succeed")
	}

	if err := q.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}

	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}

	// Enqueue after close must fail.
	if q.Enqueue(ctx, job) {
		t.Error("expected enqueue to fail after close")
	}

	// The buffered job is still drainable after close.
	jobChan := q.Dequeue(ctx)
	got, ok := <-jobChan
	if !ok {
		t.Fatal("expected buffered job before channel close")
	}
	if got.RecordingID != "rec1" {
		t.Errorf("expected rec1, got %v", got.RecordingID)
	}
}
