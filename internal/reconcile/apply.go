package reconcile

import (
	"fmt"

	"trapsort/internal/detection"
	"trapsort/internal/fault"
)

// Apply returns a new table with res applied to rows. Rows the mutations do
// not name, including every row of other sites, are copied unchanged. Added
// rows are appended in mutation order. A result that would delete rows
// without the drop policy is refused.
func Apply(rows []detection.Detection, res Result) ([]detection.Detection, error) {
	replace := make(map[detection.Key]detection.Detection)
	drop := make(map[detection.Key]struct{})
	var appended []detection.Detection
	for _, m := range res.Mutations {
		switch m.Kind {
		case KindMoved, KindMissing, KindRestored:
			replace[m.Key] = m.Row
		case KindDropped:
			if res.Removal != RemovalDrop {
				return nil, fault.Wrap(fault.ErrPolicy, "reconcile", "apply",
					fmt.Sprintf("%s/%s would be deleted without the drop removal policy", m.Key.CameraSite, m.Key.Filename), nil)
			}
			drop[m.Key] = struct{}{}
		case KindAdded:
			appended = append(appended, m.Row.Clone())
		default:
			return nil, fmt.Errorf("unknown mutation kind %q", m.Kind)
		}
	}

	out := make([]detection.Detection, 0, len(rows)+len(appended))
	for _, row := range rows {
		key := row.Key()
		if _, ok := drop[key]; ok {
			continue
		}
		if next, ok := replace[key]; ok {
			out = append(out, next.Clone())
			continue
		}
		out = append(out, row.Clone())
	}
	out = append(out, appended...)

	if want := len(rows) - len(drop) + len(appended); len(out) != want {
		return nil, fault.Integrity("", "no-silent-loss",
			fmt.Sprintf("reconciled table has %d rows, expected %d", len(out), want))
	}
	return out, nil
}

// AddedPaths maps the key of every added row to its file in the tree.
func AddedPaths(res Result) map[detection.Key]string {
	out := make(map[detection.Key]string)
	for _, m := range res.Mutations {
		if m.Kind == KindAdded {
			out[m.Key] = m.Path
		}
	}
	return out
}
