package model

// FitnessTest is immutable catalog data describing one test type.
type FitnessTest struct {
	ID   string
	Name string // e.g. "vertical_jump", "situps"
	Unit string // e.g. "cm", "reps"

	// CheatSensitive marks tests whose recordings run through cheat detection.
	CheatSensitive bool

	Active bool
}
