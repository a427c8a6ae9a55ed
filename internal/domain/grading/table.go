package grading

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/khelo/talenttrack/internal/domain/model"
	"github.com/khelo/talenttrack/pkg/logger"
)

// benchmarkFile is the YAML document shape for benchmark reference data.
type benchmarkFile struct {
	Benchmarks []Benchmark `yaml:"benchmarks"`
}

// Table is the static benchmark lookup, keyed by (test, age, gender).
// The row set is an immutable snapshot swapped atomically on reload, so
// lookups never observe a half-loaded table.
type Table struct {
	mu   sync.RWMutex
	rows map[tableKey][]Benchmark
	log  logger.Logger
}

type tableKey struct {
	test   string
	gender model.Gender
}

// NewTable builds a validated table from benchmark rows.
func NewTable(rows []Benchmark) (*Table, error) {
	idx, err := index(rows)
	if err != nil {
		return nil, err
	}
	return &Table{rows: idx, log: logger.Get().Named("benchmarks")}, nil
}

// LoadFile reads and validates a benchmark YAML file.
func LoadFile(path string) (*Table, error) {
	rows, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return NewTable(rows)
}

func readFile(path string) ([]Benchmark, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read benchmark file: %w", err)
	}
	var doc benchmarkFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse benchmark file: %w", err)
	}
	if len(doc.Benchmarks) == 0 {
		return nil, fmt.Errorf("%w: no benchmark rows", ErrInvalidBenchmark)
	}
	return doc.Benchmarks, nil
}

// index validates rows and groups them by (test, gender), sorted by age.
func index(rows []Benchmark) (map[tableKey][]Benchmark, error) {
	idx := make(map[tableKey][]Benchmark)
	for _, b := range rows {
		if err := b.validate(); err != nil {
			return nil, err
		}
		k := tableKey{test: b.Test, gender: b.Gender}
		idx[k] = append(idx[k], b)
	}

	// Age ranges for the same (test, gender) must not overlap so lookups
	// resolve to at most one row.
	for k, group := range idx {
		sort.Slice(group, func(i, j int) bool { return group[i].AgeMin < group[j].AgeMin })
		for i := 1; i < len(group); i++ {
			if group[i].AgeMin <= group[i-1].AgeMax {
				return nil, fmt.Errorf("%w: %s %s: age ranges %d-%d and %d-%d overlap",
					ErrInvalidBenchmark, k.test, k.gender,
					group[i-1].AgeMin, group[i-1].AgeMax, group[i].AgeMin, group[i].AgeMax)
			}
		}
		idx[k] = group
	}
	return idx, nil
}

// Lookup resolves the benchmark row for a test, age and gender.
// Returns ErrNoBenchmark if no age range matches.
func (t *Table) Lookup(test string, age int, gender model.Gender) (Benchmark, error) {
	t.mu.RLock()
	group := t.rows[tableKey{test: test, gender: gender}]
	t.mu.RUnlock()

	for _, b := range group {
		if age >= b.AgeMin && age <= b.AgeMax {
			return b, nil
		}
	}
	return Benchmark{}, fmt.Errorf("%w: test=%s age=%d gender=%s", ErrNoBenchmark, test, age, gender)
}

// Count returns the number of benchmark rows loaded.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, group := range t.rows {
		n += len(group)
	}
	return n
}

// Reload replaces the table contents from the file, keeping the previous
// rows if the new file fails to parse or validate.
func (t *Table) Reload(path string) error {
	rows, err := readFile(path)
	if err != nil {
		return err
	}
	idx, err := index(rows)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.rows = idx
	t.mu.Unlock()
	return nil
}
