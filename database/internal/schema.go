package internal

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Column is the expected or observed shape of one table column.
type Column struct {
	Type     string
	Nullable bool
}

// Columns maps a column name to its shape.
type Columns map[string]Column

// CompareColumns reports every column of want that is absent from got or
// differs in type or nullability. Extra columns in got are allowed.
func CompareColumns(table string, want, got Columns) error {
	var missing, mismatched []string

	for _, name := range slices.Sorted(maps.Keys(want)) {
		w := want[name]
		g, ok := got[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		if g.Type != w.Type {
			mismatched = append(mismatched, fmt.Sprintf("%s: expected %s, got %s", name, w.Type, g.Type))
		}
		if g.Nullable != w.Nullable {
			mismatched = append(mismatched, fmt.Sprintf("%s: expected nullable=%v, got nullable=%v", name, w.Nullable, g.Nullable))
		}
	}

	if len(missing) == 0 && len(mismatched) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "table %s does not match:\n", table)
	if len(missing) > 0 {
		fmt.Fprintf(&b, "  missing columns: %s\n", strings.Join(missing, ", "))
	}
	for _, m := range mismatched {
		fmt.Fprintf(&b, "  - %s\n", m)
	}

	return errors.New(b.String())
}
