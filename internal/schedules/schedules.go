// Package schedules turns workflow cron schedules into the rows of the trigger
// card's schedule table.
package schedules

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/flowcanvas/pkg/schema"
)

// Placeholder is shown in place of rows when a workflow has no schedules.
const Placeholder = "No schedules"

// Row is one schedule as displayed. Cron is the literal expression.
// Next is nil when the expression does not parse.
type Row struct {
	ID    string     `json:"id"`
	Cron  string     `json:"cron"`
	Next  *time.Time `json:"next,omitempty"`
	Error string     `json:"error,omitempty"`
}

// Table is the schedule table of a trigger card.
type Table struct {
	Rows        []Row  `json:"rows"`
	Placeholder string `json:"placeholder,omitempty"`
}

// Empty reports whether the table shows its placeholder.
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// Describer builds schedule tables with a standard five-field cron parser.
type Describer struct {
	parser cron.Parser
}

// NewDescriber creates a Describer.
func NewDescriber() *Describer {
	return &Describer{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Validate parses a cron expression.
func (d *Describer) Validate(expr string) error {
	if _, err := d.parser.Parse(expr); err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid cron expression %q", expr).WithCause(err)
	}
	return nil
}

// Describe returns one row per schedule, in order, or the placeholder when
// there are none. Unparseable expressions still get a row with their literal
// text so the table never hides a schedule.
func (d *Describer) Describe(scheds []schema.Schedule, now time.Time) Table {
	if len(scheds) == 0 {
		return Table{Rows: []Row{}, Placeholder: Placeholder}
	}

	rows := make([]Row, 0, len(scheds))
	for _, s := range scheds {
		row := Row{ID: s.ID, Cron: s.Cron}
		sched, err := d.parser.Parse(s.Cron)
		if err != nil {
			row.Error = err.Error()
		} else {
			next := sched.Next(now).UTC()
			row.Next = &next
		}
		rows = append(rows, row)
	}
	return Table{Rows: rows}
}
