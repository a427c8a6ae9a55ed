package aggregate_test

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/khelo/talenttrack/internal/adapters/repository"
	"github.com/khelo/talenttrack/internal/domain/aggregate"
	"github.com/khelo/talenttrack/internal/domain/model"
	"github.com/khelo/talenttrack/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fixture struct {
	store *repository.MemoryStore
	agg   *aggregate.Aggregator
}

func newFixture(t *testing.T, totalTests int) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()

	must := func(err error) {
		if err != nil {
			t.Fatal(err)
		}
	}
	must(store.PutAthlete(ctx, model.AthleteProfile{
		ID: "athlete-1", FullName: "Meera Nair", Age: 16, Gender: model.GenderFemale,
		State: "Kerala", District: "Kochi",
	}))
	must(store.PutSession(ctx, model.AssessmentSession{
		ID: "session-1", AthleteID: "athlete-1", Status: model.SessionInProgress, TotalTests: totalTests,
	}))
	return &fixture{store: store, agg: aggregate.New(store)}
}

func (f *fixture) putRecording(t *testing.T, id string, testID string, status model.RecordingStatus, points int, percentile float64) {
	t.Helper()
	err := f.store.PutRecording(context.Background(), model.TestRecording{
		ID: id, SessionID: "session-1", AthleteID: "athlete-1", TestID: testID,
		Status: status, Points: points, Percentile: percentile, Graded: points > 0,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRecordCompletion(t *testing.T) {
	ctx := context.Background()

	Convey("Given a two-test session with one completed recording", t, func() {
		f := newFixture(t, 2)
		f.putRecording(t, "rec-1", "test-a", model.RecordingCompleted, 80, 90)

		Convey("When recording the completion", func() {
			sess, completed, err := f.agg.RecordCompletion(ctx, "session-1")

			Convey("Then one test is counted and the session stays open", func() {
				So(err, ShouldBeNil)
				So(completed, ShouldBeFalse)
				So(sess.CompletedTests, ShouldEqual, 1)
				So(sess.Status, ShouldEqual, model.SessionInProgress)
			})

			Convey("And a second pass does not double-count", func() {
				So(err, ShouldBeNil)
				again, _, err := f.agg.RecordCompletion(ctx, "session-1")
				So(err, ShouldBeNil)
				So(again.CompletedTests, ShouldEqual, 1)
			})
		})

		Convey("When the second recording also terminates", func() {
			f.putRecording(t, "rec-2", "test-b", model.RecordingCompleted, 60, 70)
			sess, completed, err := f.agg.RecordCompletion(ctx, "session-1")

			Convey("Then the session completes with the mean of points", func() {
				So(err, ShouldBeNil)
				So(completed, ShouldBeTrue)
				So(sess.Status, ShouldEqual, model.SessionCompleted)
				So(sess.CompletedTests, ShouldEqual, 2)
				So(sess.OverallScore, ShouldEqual, 70.0)
				So(sess.OverallGrade, ShouldEqual, "B+")
				So(sess.PercentileRank, ShouldEqual, 80.0)
				So(sess.CompletedAt.IsZero(), ShouldBeFalse)
			})
		})
	})

	Convey("Given a flagged recording in the battery", t, func() {
		f := newFixture(t, 2)
		f.putRecording(t, "rec-1", "test-a", model.RecordingCompleted, 80, 0)
		f.putRecording(t, "rec-2", "test-b", model.RecordingFlagged, 70, 0)

		Convey("When recording completions", func() {
			sess, completed, err := f.agg.RecordCompletion(ctx, "session-1")

			Convey("Then the flagged recording still counts toward completion", func() {
				So(err, ShouldBeNil)
				So(completed, ShouldBeTrue)
				So(sess.CompletedTests, ShouldEqual, 2)
				So(sess.OverallScore, ShouldEqual, 75.0)
			})
		})
	})

	Convey("Given an ungraded completion in the battery", t, func() {
		f := newFixture(t, 2)
		f.putRecording(t, "rec-1", "test-a", model.RecordingCompleted, 80, 0)
		f.putRecording(t, "rec-2", "test-b", model.RecordingCompleted, 0, 0)

		Convey("When the session completes", func() {
			sess, completed, err := f.agg.RecordCompletion(ctx, "session-1")

			Convey("Then the ungraded recording drags the mean down, not out", func() {
				So(err, ShouldBeNil)
				So(completed, ShouldBeTrue)
				So(sess.OverallScore, ShouldEqual, 40.0)
				So(sess.OverallGrade, ShouldEqual, "D")
			})
		})
	})

	Convey("Given a non-terminal recording", t, func() {
		f := newFixture(t, 2)
		f.putRecording(t, "rec-1", "test-a", model.RecordingAnalyzing, 0, 0)

		Convey("When recording completions", func() {
			sess, completed, err := f.agg.RecordCompletion(ctx, "session-1")

			Convey("Then nothing is counted", func() {
				So(err, ShouldBeNil)
				So(completed, ShouldBeFalse)
				So(sess.CompletedTests, ShouldEqual, 0)
			})
		})
	})
}

func TestRefreshAthlete(t *testing.T) {
	ctx := context.Background()

	Convey("Given an athlete with two completed sessions", t, func() {
		f := newFixture(t, 1)
		f.putRecording(t, "rec-1", "test-a", model.RecordingCompleted, 80, 0)
		_, completed, err := f.agg.RecordCompletion(ctx, "session-1")
		So(err, ShouldBeNil)
		So(completed, ShouldBeTrue)

		So(f.store.PutSession(ctx, model.AssessmentSession{
			ID: "session-2", AthleteID: "athlete-1", Status: model.SessionInProgress, TotalTests: 1,
		}), ShouldBeNil)
		So(f.store.PutRecording(ctx, model.TestRecording{
			ID: "rec-2", SessionID: "session-2", AthleteID: "athlete-1", TestID: "test-a",
			Status: model.RecordingCompleted, Points: 60, Graded: true,
		}), ShouldBeNil)
		_, completed, err = f.agg.RecordCompletion(ctx, "session-2")
		So(err, ShouldBeNil)
		So(completed, ShouldBeTrue)

		Convey("When refreshing the athlete aggregate", func() {
			athlete, err := f.agg.RefreshAthlete(ctx, "athlete-1")

			Convey("Then the talent score is the mean over completed sessions", func() {
				So(err, ShouldBeNil)
				So(athlete.OverallTalentScore, ShouldEqual, 70.0)
				So(athlete.TalentGrade, ShouldEqual, "B+")
			})

			Convey("And points and level accumulate across sessions", func() {
				So(err, ShouldBeNil)
				So(athlete.TotalPoints, ShouldEqual, 140)
				So(athlete.Level, ShouldEqual, 1)
			})

			Convey("And a second refresh changes nothing", func() {
				So(err, ShouldBeNil)
				again, err := f.agg.RefreshAthlete(ctx, "athlete-1")
				So(err, ShouldBeNil)
				So(again.TotalPoints, ShouldEqual, 140)
				So(again.OverallTalentScore, ShouldEqual, 70.0)
			})
		})
	})

	Convey("Given an athlete with an in-progress session only", t, func() {
		f := newFixture(t, 2)

		Convey("When refreshing the athlete aggregate", func() {
			athlete, err := f.agg.RefreshAthlete(ctx, "athlete-1")

			Convey("Then the aggregates stay at their zero values", func() {
				So(err, ShouldBeNil)
				So(athlete.OverallTalentScore, ShouldEqual, 0)
				So(athlete.TotalPoints, ShouldEqual, 0)
				So(athlete.Level, ShouldEqual, 1)
			})
		})
	})
}
