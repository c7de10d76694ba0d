package perception

import "github.com/pageplane/pageplane/internal/protocol"

// rectTolerance is the per-axis pixel threshold below which rect churn
// is ignored.
const rectTolerance = 2

// Diff computes the minimal delta from old to new. Candidates absent
// from new become removed ids; candidates absent from old become full
// added records; matching ids contribute an update only for fields that
// actually changed.
func Diff(old, new map[string]protocol.ActionCandidate) protocol.Delta {
	d := protocol.Delta{Type: protocol.TypeDelta}

	for id := range old {
		if _, ok := new[id]; !ok {
			d.Removed = append(d.Removed, id)
		}
	}
	for id, c := range new {
		prev, ok := old[id]
		if !ok {
			d.Added = append(d.Added, c)
			continue
		}
		if u, changed := diffOne(prev, c); changed {
			d.Updated = append(d.Updated, u)
		}
	}
	return d
}

func diffOne(old, new protocol.ActionCandidate) (protocol.CandidateUpdate, bool) {
	u := protocol.CandidateUpdate{ID: new.ID}
	changed := false

	if rectChanged(old.Rect, new.Rect) {
		rect, rectN, hit := new.Rect, new.RectN, new.Hit
		u.Rect, u.RectN, u.Hit = &rect, &rectN, &hit
		changed = true
	}
	if old.State != new.State {
		st := new.State
		u.State = &st
		changed = true
	}
	if old.Name != new.Name {
		name := new.Name
		u.Name = &name
		changed = true
	}
	if old.Value != new.Value {
		value := new.Value
		u.Value = &value
		changed = true
	}
	if old.Occluded != new.Occluded {
		occ := new.Occluded
		u.Occluded = &occ
		changed = true
	}
	if old.Ctx.InModal != new.Ctx.InModal || old.Ctx.InNav != new.Ctx.InNav {
		ctx := new.Ctx
		u.Ctx = &ctx
		changed = true
	}
	return u, changed
}

// rectChanged applies the per-axis tolerance.
func rectChanged(a, b protocol.Rect) bool {
	return abs(a.X-b.X) > rectTolerance ||
		abs(a.Y-b.Y) > rectTolerance ||
		abs(a.W-b.W) > rectTolerance ||
		abs(a.H-b.H) > rectTolerance
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
