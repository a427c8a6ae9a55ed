package submission_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/khelo/talenttrack/internal/adapters/repository"
	"github.com/khelo/talenttrack/internal/domain/model"
	"github.com/khelo/talenttrack/internal/domain/submission"
	"github.com/khelo/talenttrack/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fixture struct {
	store *repository.MemoryStore
	wf    *submission.Workflow
}

func newFixture(t *testing.T, sessionStatus model.SessionStatus) *fixture {
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
		ID: "session-1", AthleteID: "athlete-1", Name: "state trials",
		Status: sessionStatus, TotalTests: 1, CompletedTests: 1,
		OverallScore: 70, OverallGrade: "B+",
	}))
	must(store.PutRecording(ctx, model.TestRecording{
		ID: "rec-1", SessionID: "session-1", AthleteID: "athlete-1", TestID: "jump",
		Status: model.RecordingCompleted, FinalScore: 52,
		Category: model.CategoryGood, Points: 70, Graded: true, Counted: true,
	}))
	return &fixture{store: store, wf: submission.New(store)}
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	Convey("Given a completed session", t, func() {
		f := newFixture(t, model.SessionCompleted)

		Convey("When submitting to review", func() {
			sub, err := f.wf.Submit(ctx, "session-1")

			Convey("Then a submitted record with a reference is created", func() {
				So(err, ShouldBeNil)
				So(sub.Status, ShouldEqual, model.SubmissionSubmitted)
				So(sub.Reference, ShouldStartWith, "SAI-")
				So(sub.Reference, ShouldHaveLength, len("SAI-20060102-ABCDEF"))
			})

			Convey("And the snapshot captures the scored fields", func() {
				So(err, ShouldBeNil)
				var snap map[string]any
				So(json.Unmarshal(sub.Snapshot, &snap), ShouldBeNil)
				athlete := snap["athlete"].(map[string]any)
				So(athlete["full_name"], ShouldEqual, "Meera Nair")
				session := snap["session"].(map[string]any)
				So(session["overall_grade"], ShouldEqual, "B+")
				recordings := snap["recordings"].([]any)
				So(recordings, ShouldHaveLength, 1)
			})

			Convey("And submitting again returns the same reference", func() {
				So(err, ShouldBeNil)
				again, err := f.wf.Submit(ctx, "session-1")
				So(err, ShouldBeNil)
				So(again.ID, ShouldEqual, sub.ID)
				So(again.Reference, ShouldEqual, sub.Reference)
			})

			Convey("And later entity changes do not alter the snapshot", func() {
				So(err, ShouldBeNil)
				So(f.store.UpdateAthlete(ctx, "athlete-1", func(p *model.AthleteProfile) error {
					p.FullName = "Someone Else"
					return nil
				}), ShouldBeNil)

				got, err := f.wf.Get(ctx, sub.ID)
				So(err, ShouldBeNil)
				var snap map[string]any
				So(json.Unmarshal(got.Snapshot, &snap), ShouldBeNil)
				athlete := snap["athlete"].(map[string]any)
				So(athlete["full_name"], ShouldEqual, "Meera Nair")
			})
		})
	})

	Convey("Given an in-progress session", t, func() {
		f := newFixture(t, model.SessionInProgress)

		Convey("When submitting to review", func() {
			_, err := f.wf.Submit(ctx, "session-1")

			Convey("Then the submit fails with not complete", func() {
				So(errors.Is(err, submission.ErrNotComplete), ShouldBeTrue)
			})
		})
	})

	Convey("Given an unknown session", t, func() {
		f := newFixture(t, model.SessionCompleted)

		Convey("When submitting to review", func() {
			_, err := f.wf.Submit(ctx, "nope")

			Convey("Then the submit fails with not found", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestReview(t *testing.T) {
	ctx := context.Background()

	Convey("Given a submitted session", t, func() {
		f := newFixture(t, model.SessionCompleted)
		sub, err := f.wf.Submit(ctx, "session-1")
		So(err, ShouldBeNil)

		Convey("When a verdict is given before claiming the review", func() {
			_, err := f.wf.Review(ctx, sub.ID, model.DecisionApproved, "official-7", "")

			Convey("Then the verdict is rejected with invalid state", func() {
				So(errors.Is(err, submission.ErrInvalidState), ShouldBeTrue)
			})
		})

		Convey("When a reviewer claims it", func() {
			claimed, err := f.wf.BeginReview(ctx, sub.ID, "official-7")

			Convey("Then the submission is under review", func() {
				So(err, ShouldBeNil)
				So(claimed.Status, ShouldEqual, model.SubmissionUnderReview)
				So(claimed.ReviewerID, ShouldEqual, "official-7")
			})

			Convey("And a second claim is rejected", func() {
				So(err, ShouldBeNil)
				_, err := f.wf.BeginReview(ctx, sub.ID, "official-8")
				So(errors.Is(err, submission.ErrInvalidState), ShouldBeTrue)
			})

			Convey("And approval flips the athlete's verification flag", func() {
				So(err, ShouldBeNil)
				reviewed, err := f.wf.Review(ctx, sub.ID, model.DecisionApproved, "official-7", "all clear")
				So(err, ShouldBeNil)
				So(reviewed.Status, ShouldEqual, model.SubmissionApproved)
				So(reviewed.ReviewComments, ShouldEqual, "all clear")
				So(reviewed.ReviewedAt.IsZero(), ShouldBeFalse)

				athlete, err := f.store.GetAthlete(ctx, "athlete-1")
				So(err, ShouldBeNil)
				So(athlete.Verified, ShouldBeTrue)
			})

			Convey("And rejection leaves the athlete unverified", func() {
				So(err, ShouldBeNil)
				reviewed, err := f.wf.Review(ctx, sub.ID, model.DecisionRejected, "official-7", "inconsistent footage")
				So(err, ShouldBeNil)
				So(reviewed.Status, ShouldEqual, model.SubmissionRejected)

				athlete, err := f.store.GetAthlete(ctx, "athlete-1")
				So(err, ShouldBeNil)
				So(athlete.Verified, ShouldBeFalse)
			})

			Convey("And a retest verdict maps onto requires_retest", func() {
				So(err, ShouldBeNil)
				reviewed, err := f.wf.Review(ctx, sub.ID, model.DecisionRequireRetest, "official-7", "redo under supervision")
				So(err, ShouldBeNil)
				So(reviewed.Status, ShouldEqual, model.SubmissionRetestNeeded)
			})
		})

		Convey("When an unknown decision is given", func() {
			_, err := f.wf.BeginReview(ctx, sub.ID, "official-7")
			So(err, ShouldBeNil)
			_, err = f.wf.Review(ctx, sub.ID, model.ReviewDecision("maybe"), "official-7", "")

			Convey("Then the verdict is rejected", func() {
				So(errors.Is(err, submission.ErrInvalidState), ShouldBeTrue)
			})
		})
	})
}
