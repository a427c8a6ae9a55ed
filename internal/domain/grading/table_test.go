package grading_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/khelo/talenttrack/internal/domain/grading"
	"github.com/khelo/talenttrack/internal/domain/model"
)

const validYAML = `
benchmarks:
  - test: vertical_jump
    gender: male
    age_min: 14
    age_max: 17
    unit: cm
    thresholds: {below_average: 30, average: 40, good: 50, excellent: 60}
    points: {below_average: 20, average: 45, good: 70, excellent: 95}
`

const invalidYAML = `
benchmarks:
  - test: vertical_jump
    gender: male
    age_min: 14
    age_max: 17
    unit: cm
    thresholds: {below_average: 60, average: 40, good: 50, excellent: 30}
    points: {below_average: 20, average: 45, good: 70, excellent: 95}
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "benchmarks.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	Convey("Given a valid benchmark file", t, func() {
		path := writeTemp(t, validYAML)

		Convey("When loading it", func() {
			tbl, err := grading.LoadFile(path)

			Convey("Then the table should resolve lookups", func() {
				So(err, ShouldBeNil)
				So(tbl.Count(), ShouldEqual, 1)
				b, err := tbl.Lookup("vertical_jump", 15, model.GenderMale)
				So(err, ShouldBeNil)
				So(b.Thresholds.Excellent, ShouldEqual, 60)
			})
		})
	})

	Convey("Given a file with descending thresholds", t, func() {
		path := writeTemp(t, invalidYAML)

		Convey("When loading it", func() {
			_, err := grading.LoadFile(path)

			Convey("Then the load should fail validation", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})

	Convey("Given a missing file", t, func() {
		_, err := grading.LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))

		Convey("Then the load should fail", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestReload(t *testing.T) {
	Convey("Given a loaded table", t, func() {
		path := writeTemp(t, validYAML)
		tbl, err := grading.LoadFile(path)
		So(err, ShouldBeNil)

		Convey("When reloading from a now-broken file", func() {
			So(os.WriteFile(path, []byte(invalidYAML), 0o600), ShouldBeNil)
			err := tbl.Reload(path)

			Convey("Then the reload fails and the previous rows survive", func() {
				So(err, ShouldNotBeNil)
				So(tbl.Count(), ShouldEqual, 1)
				_, lookupErr := tbl.Lookup("vertical_jump", 15, model.GenderMale)
				So(lookupErr, ShouldBeNil)
			})
		})

		Convey("When reloading from an updated valid file", func() {
			updated := validYAML + `
  - test: situps
    gender: male
    age_min: 10
    age_max: 17
    unit: reps
    thresholds: {below_average: 15, average: 25, good: 35, excellent: 45}
    points: {below_average: 20, average: 45, good: 70, excellent: 95}
`
			So(os.WriteFile(path, []byte(updated), 0o600), ShouldBeNil)
			err := tbl.Reload(path)

			Convey("Then the new rows replace the old set", func() {
				So(err, ShouldBeNil)
				So(tbl.Count(), ShouldEqual, 2)
			})
		})
	})
}
