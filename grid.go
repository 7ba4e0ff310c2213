package main

import "fmt"

const (
	gridColumns = 10

	// hours written into every enabled weekday cell
	dailyHours = 8
)

// Allocation is one project/task line to book on the timesheet.
type Allocation struct {
	ProjectID string `yaml:"project_id"` // "<customer>:<project>"
	TaskID    int    `yaml:"task_id"`
	Hours     int    `yaml:"hours"`
	Comment   string `yaml:"comment"`
}

// Fields is a flat form payload. Values are either string or int.
type Fields map[string]any

// FormInspector reports whether the page carries an input with the given
// name, and if so whether it is disabled.
type FormInspector interface {
	Input(name string) (disabled, ok bool)
}

// InputSet maps input names to their disabled flag.
type InputSet map[string]bool

func (s InputSet) Input(name string) (disabled, ok bool) {
	disabled, ok = s[name]
	return disabled, ok
}

func cellName(c, r int) string {
	return fmt.Sprintf("_c%d_r%d", c, r)
}

// GenerateGridFields lays the allocations out on the timesheet grid.
//
// Column 1 holds the project, column 2 the task and columns 3 through 7 the
// weekdays. A weekday cell is only filled when the page has an enabled input
// for it. Row r reads allocations[r] and falls back to allocations[0], so
// with a single allocation every row books that allocation.
func GenerateGridFields(allocations []Allocation, inputs FormInspector) Fields {
	numRows := len(allocations)
	grid := Fields{}

	for c := 1; c <= gridColumns; c++ {
		for r := 1; r <= numRows; r++ {
			row := allocations[0]
			if r < numRows {
				row = allocations[r]
			}
			name := cellName(c, r)
			var value any = ""

			switch {
			case c == 1:
				value = row.ProjectID
			case c == 2:
				value = row.TaskID
			case c <= 7:
				if inputs == nil {
					break
				}
				if disabled, ok := inputs.Input(name); ok && !disabled {
					value = dailyHours
					grid[name+"_dialog_notes"] = row.Comment
				}
			}

			grid[name] = value
		}
	}

	grid["_total_rows"] = numRows

	// The real form always posts two trailing blank rows. Only the first
	// cell of the first one carries the leading underscore.
	blank, spare := numRows+1, numRows+2
	grid[fmt.Sprintf("_c1_r%d", blank)] = ":"
	grid[fmt.Sprintf("c2_r%d", blank)] = 0
	for _, c := range []int{3, 4, 5, 6, 10} {
		grid[fmt.Sprintf("c%d_r%d", c, blank)] = ""
	}
	for c := 3; c <= gridColumns; c++ {
		grid[fmt.Sprintf("c%d_r%d", c, spare)] = ""
	}

	return grid
}
