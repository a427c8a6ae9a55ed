package repository_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/khelo/talenttrack/internal/adapters/repository"
	"github.com/khelo/talenttrack/internal/domain/model"
)

func TestAthleteStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty store", t, func() {
		store := repository.NewMemoryStore()

		Convey("When an athlete is put and read back", func() {
			So(store.PutAthlete(ctx, model.AthleteProfile{
				ID: "athlete-1", FullName: "Arjun Singh", Age: 15,
				Gender: model.GenderMale, State: "Punjab", District: "Ludhiana",
			}), ShouldBeNil)
			got, err := store.GetAthlete(ctx, "athlete-1")

			Convey("Then the profile round-trips", func() {
				So(err, ShouldBeNil)
				So(got.FullName, ShouldEqual, "Arjun Singh")
				So(store.CountAthletes(ctx), ShouldEqual, 1)
			})

			Convey("And an update closure mutates it in place", func() {
				So(err, ShouldBeNil)
				So(store.UpdateAthlete(ctx, "athlete-1", func(a *model.AthleteProfile) error {
					a.Verified = true
					return nil
				}), ShouldBeNil)
				got, err := store.GetAthlete(ctx, "athlete-1")
				So(err, ShouldBeNil)
				So(got.Verified, ShouldBeTrue)
			})

			Convey("And mutating the returned copy does not leak into the store", func() {
				So(err, ShouldBeNil)
				got.FullName = "Someone Else"
				fresh, err := store.GetAthlete(ctx, "athlete-1")
				So(err, ShouldBeNil)
				So(fresh.FullName, ShouldEqual, "Arjun Singh")
			})
		})

		Convey("When reading an unknown athlete", func() {
			_, err := store.GetAthlete(ctx, "nope")

			Convey("Then the lookup fails with not found", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When updating an unknown athlete", func() {
			err := store.UpdateAthlete(ctx, "nope", func(*model.AthleteProfile) error { return nil })

			Convey("Then the update fails with not found", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestRecordingStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with a session", t, func() {
		store := repository.NewMemoryStore()
		So(store.PutSession(ctx, model.AssessmentSession{
			ID: "session-1", AthleteID: "athlete-1", Status: model.SessionInProgress, TotalTests: 2,
		}), ShouldBeNil)

		Convey("When a recording is put", func() {
			So(store.PutRecording(ctx, model.TestRecording{
				ID: "rec-1", SessionID: "session-1", AthleteID: "athlete-1", TestID: "jump",
				Status: model.RecordingUploaded,
			}), ShouldBeNil)

			Convey("Then it resolves by id and by (session, test) pair", func() {
				byID, err := store.GetRecording(ctx, "rec-1")
				So(err, ShouldBeNil)
				So(byID.TestID, ShouldEqual, "jump")

				byPair, err := store.FindRecording(ctx, "session-1", "jump")
				So(err, ShouldBeNil)
				So(byPair.ID, ShouldEqual, "rec-1")
			})

			Convey("And putting another recording for the same pair re-points the index", func() {
				So(store.PutRecording(ctx, model.TestRecording{
					ID: "rec-2", SessionID: "session-1", AthleteID: "athlete-1", TestID: "jump",
					Status: model.RecordingUploaded,
				}), ShouldBeNil)
				byPair, err := store.FindRecording(ctx, "session-1", "jump")
				So(err, ShouldBeNil)
				So(byPair.ID, ShouldEqual, "rec-2")
			})

			Convey("And a failing update closure surfaces its error", func() {
				sentinel := errors.New("guard refused")
				err := store.UpdateRecording(ctx, "rec-1", func(*model.TestRecording) error {
					return sentinel
				})
				So(errors.Is(err, sentinel), ShouldBeTrue)
			})
		})

		Convey("When recordings span several statuses", func() {
			for _, rec := range []model.TestRecording{
				{ID: "rec-1", SessionID: "session-1", TestID: "jump", Status: model.RecordingCompleted},
				{ID: "rec-2", SessionID: "session-1", TestID: "situps", Status: model.RecordingAnalyzing},
				{ID: "rec-3", SessionID: "session-2", TestID: "jump", Status: model.RecordingFlagged},
			} {
				So(store.PutRecording(ctx, rec), ShouldBeNil)
			}

			Convey("Then session listing filters by session", func() {
				recs, err := store.ListSessionRecordings(ctx, "session-1")
				So(err, ShouldBeNil)
				So(recs, ShouldHaveLength, 2)
			})

			Convey("And terminal listing keeps only finished attempts", func() {
				recs, err := store.ListTerminalRecordings(ctx)
				So(err, ShouldBeNil)
				So(recs, ShouldHaveLength, 2)
				for _, r := range recs {
					So(r.Status.Terminal(), ShouldBeTrue)
				}
			})
		})

		Convey("When updating the session together with its recordings", func() {
			So(store.PutRecording(ctx, model.TestRecording{
				ID: "rec-1", SessionID: "session-1", TestID: "jump", Status: model.RecordingCompleted,
			}), ShouldBeNil)
			err := store.UpdateSessionWithRecordings(ctx, "session-1", func(sess *model.AssessmentSession, recs []*model.TestRecording) error {
				sess.CompletedTests = len(recs)
				for _, r := range recs {
					r.Counted = true
				}
				return nil
			})

			Convey("Then both mutations are visible afterwards", func() {
				So(err, ShouldBeNil)
				sess, err := store.GetSession(ctx, "session-1")
				So(err, ShouldBeNil)
				So(sess.CompletedTests, ShouldEqual, 1)
				rec, err := store.GetRecording(ctx, "rec-1")
				So(err, ShouldBeNil)
				So(rec.Counted, ShouldBeTrue)
			})
		})

		Convey("When listing an athlete's sessions", func() {
			So(store.PutSession(ctx, model.AssessmentSession{
				ID: "session-2", AthleteID: "athlete-1", Status: model.SessionCompleted,
			}), ShouldBeNil)
			So(store.PutSession(ctx, model.AssessmentSession{
				ID: "session-3", AthleteID: "athlete-2", Status: model.SessionCompleted,
			}), ShouldBeNil)
			sessions, err := store.ListAthleteSessions(ctx, "athlete-1")

			Convey("Then only that athlete's sessions return", func() {
				So(err, ShouldBeNil)
				So(sessions, ShouldHaveLength, 2)
				for _, sess := range sessions {
					So(sess.AthleteID, ShouldEqual, "athlete-1")
				}
			})
		})
	})
}

func TestLeaderboardStore(t *testing.T) {
	ctx := context.Background()
	national := model.Scope{Kind: model.ScopeNational}

	Convey("Given a store with a published scope", t, func() {
		store := repository.NewMemoryStore()
		So(store.ReplaceScope(ctx, national, []model.LeaderboardRow{
			{AthleteID: "a", Rank: 1, BestScore: 90},
			{AthleteID: "b", Rank: 2, BestScore: 80},
		}), ShouldBeNil)

		Convey("When reading the scope rows", func() {
			rows, err := store.ScopeRows(ctx, national)

			Convey("Then the rows come back in rank order", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
				So(rows[0].AthleteID, ShouldEqual, "a")
			})

			Convey("And mutating the returned slice does not affect the store", func() {
				So(err, ShouldBeNil)
				rows[0].AthleteID = "z"
				fresh, err := store.ScopeRows(ctx, national)
				So(err, ShouldBeNil)
				So(fresh[0].AthleteID, ShouldEqual, "a")
			})
		})

		Convey("When replacing the scope", func() {
			So(store.ReplaceScope(ctx, national, []model.LeaderboardRow{
				{AthleteID: "c", Rank: 1, BestScore: 95},
			}), ShouldBeNil)

			Convey("Then the old rows are fully swapped out", func() {
				rows, err := store.ScopeRows(ctx, national)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(rows[0].AthleteID, ShouldEqual, "c")
			})
		})

		Convey("When looking up a single athlete's rank", func() {
			row, err := store.AthleteRank(ctx, national, "b")

			Convey("Then the row is found", func() {
				So(err, ShouldBeNil)
				So(row.Rank, ShouldEqual, 2)
			})

			Convey("And an unranked athlete is not found", func() {
				_, err := store.AthleteRank(ctx, national, "nope")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When reading an unpublished scope", func() {
			rows, err := store.ScopeRows(ctx, model.Scope{Kind: model.ScopeState, Region: "Kerala"})

			Convey("Then the result is empty without error", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldBeEmpty)
			})
		})
	})
}

func TestSubmissionStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with one submission", t, func() {
		store := repository.NewMemoryStore()
		So(store.PutSubmission(ctx, model.Submission{
			ID: "sub-1", SessionID: "session-1", AthleteID: "athlete-1",
			Status: model.SubmissionSubmitted,
		}), ShouldBeNil)

		Convey("When putting a second submission for the same session", func() {
			err := store.PutSubmission(ctx, model.Submission{
				ID: "sub-2", SessionID: "session-1", AthleteID: "athlete-1",
			})

			Convey("Then the insert is rejected as a duplicate", func() {
				So(errors.Is(err, repository.ErrAlreadyExists), ShouldBeTrue)
			})
		})

		Convey("When resolving by session", func() {
			sub, err := store.GetSubmissionBySession(ctx, "session-1")

			Convey("Then the submission is found", func() {
				So(err, ShouldBeNil)
				So(sub.ID, ShouldEqual, "sub-1")
			})
		})

		Convey("When updating the submission", func() {
			So(store.UpdateSubmission(ctx, "sub-1", func(sub *model.Submission) error {
				sub.Status = model.SubmissionUnderReview
				sub.ReviewerID = "official-7"
				return nil
			}), ShouldBeNil)

			Convey("Then the mutation is visible", func() {
				sub, err := store.GetSubmission(ctx, "sub-1")
				So(err, ShouldBeNil)
				So(sub.Status, ShouldEqual, model.SubmissionUnderReview)
				So(sub.ReviewerID, ShouldEqual, "official-7")
			})
		})

		Convey("When resolving an unknown session", func() {
			_, err := store.GetSubmissionBySession(ctx, "nope")

			Convey("Then the lookup fails with not found", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}
