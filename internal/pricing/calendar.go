package pricing

import (
	"os"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/mega-minerals/oreflow/internal/model"
)

// Calendar maps fiscal quarter labels to their first calendar date. The
// mapping is a perishable business-calendar assumption, so it is loaded
// from configuration rather than hard-coded; an unknown quarter falls
// back to the earliest mapped date.
type Calendar struct {
	starts map[string]time.Time
}

// NewCalendar builds a calendar from quarter label -> start date.
func NewCalendar(starts map[string]time.Time) Calendar {
	normalized := make(map[string]time.Time, len(starts))
	for q, d := range starts {
		normalized[q] = model.Day(d)
	}
	return Calendar{starts: normalized}
}

// DefaultCalendar covers the quarters present in the current fact set.
func DefaultCalendar() Calendar {
	return NewCalendar(map[string]time.Time{
		"2025Q3": time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		"2025Q4": time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
	})
}

// LoadCalendar reads a versioned quarter-calendar YAML file of the form:
//
//	quarters:
//	  2025Q3: 2025-07-01
//	  2025Q4: 2025-10-01
func LoadCalendar(path string) (Calendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Calendar{}, eris.Wrapf(err, "pricing: read calendar %s", path)
	}
	var doc struct {
		Quarters map[string]string `yaml:"quarters"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Calendar{}, eris.Wrap(err, "pricing: parse calendar")
	}
	if len(doc.Quarters) == 0 {
		return Calendar{}, eris.New("pricing: calendar has no quarters")
	}
	starts := make(map[string]time.Time, len(doc.Quarters))
	for q, s := range doc.Quarters {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			return Calendar{}, eris.Wrapf(err, "pricing: bad calendar date for %s", q)
		}
		starts[q] = d
	}
	return NewCalendar(starts), nil
}

// ParseCalendar builds a calendar from string dates, as delivered by
// viper config (quarter -> YYYY-MM-DD).
func ParseCalendar(quarters map[string]string) (Calendar, error) {
	starts := make(map[string]time.Time, len(quarters))
	for q, s := range quarters {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			return Calendar{}, eris.Wrapf(err, "pricing: bad calendar date for %s", q)
		}
		starts[q] = d
	}
	return NewCalendar(starts), nil
}

// Quarters lists the mapped quarter labels in ascending date order.
func (c Calendar) Quarters() []string {
	out := make([]string, 0, len(c.starts))
	for q := range c.starts {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		if !c.starts[out[i]].Equal(c.starts[out[j]]) {
			return c.starts[out[i]].Before(c.starts[out[j]])
		}
		return out[i] < out[j]
	})
	return out
}

// Window resolves a quarter label to its [start, end) date range. An
// unmapped quarter falls back to the earliest mapped date.
func (c Calendar) Window(quarter string) (start, end time.Time) {
	s, ok := c.starts[quarter]
	if !ok {
		s = c.earliest()
	}
	return s, s.AddDate(0, 3, 0)
}

func (c Calendar) earliest() time.Time {
	var min time.Time
	for _, d := range c.starts {
		if min.IsZero() || d.Before(min) {
			min = d
		}
	}
	return min
}
