// Package router implements turn selection: a deterministic mapping from the
// current transcript and the declared handoff rules to the role that speaks
// next. Selection is a pure function of (last message kind and verdict, the
// handoff table, per-role last-spoke indices); it is never re-run on
// already-decided turns.
package router

import (
	"fmt"

	"github.com/forgeworks/devsquad/core"
)

// Router selects the next speaking role from a transcript snapshot.
// Declaration order of descriptors is the final tie-break, so construct the
// router with a stable ordering.
type Router struct {
	order []core.Role
	descs map[core.Role]core.AgentDescriptor
}

// New creates a router over the declared agent set.
func New(descriptors []core.AgentDescriptor) *Router {
	r := &Router{descs: make(map[core.Role]core.AgentDescriptor, len(descriptors))}
	for _, d := range descriptors {
		if _, dup := r.descs[d.Role]; dup {
			continue
		}
		r.order = append(r.order, d.Role)
		r.descs[d.Role] = d
	}
	return r
}

// SelectNext returns the role that speaks next given the transcript snapshot.
// It returns core.RoleNone when the task is terminal: the last message is
// DONE or ERROR, or the retry budget is exhausted. A nil-candidate outcome is
// a configuration defect reported as core.ErrNoEligibleRole.
func (r *Router) SelectNext(transcript []core.Message, retryExhausted bool) (core.Role, error) {
	if len(transcript) == 0 {
		return core.RoleNone, fmt.Errorf("%w: empty transcript", core.ErrNoEligibleRole)
	}
	last := transcript[len(transcript)-1]

	if last.IsTerminal() || retryExhausted {
		return core.RoleNone, nil
	}

	candidates, err := r.eligible(transcript, last)
	if err != nil {
		return core.RoleNone, err
	}

	// Constrain by the author's declared handoff set when one exists.
	if d, ok := r.descs[last.Sender]; ok {
		filtered := candidates[:0:0]
		for _, c := range candidates {
			if d.MayHandOff(c) {
				filtered = append(filtered, c)
			}
		}
		candidates = filtered
	}

	// Keep only registered roles.
	registered := candidates[:0:0]
	for _, c := range candidates {
		if _, ok := r.descs[c]; ok {
			registered = append(registered, c)
		}
	}
	if len(registered) == 0 {
		return core.RoleNone, fmt.Errorf("%w: last kind %s from %s", core.ErrNoEligibleRole, last.Kind, last.Sender)
	}

	return r.fairest(transcript, registered), nil
}

// eligible applies the handoff table for the last message.
func (r *Router) eligible(transcript []core.Message, last core.Message) ([]core.Role, error) {
	// The seeding task message always opens with the planning role.
	if last.Sender == core.RoleUser {
		return []core.Role{core.RoleManager}, nil
	}

	switch last.Kind {
	case core.KindPlan:
		return []core.Role{core.RoleBackendDev, core.RoleFrontendDev}, nil

	case core.KindCode:
		return []core.Role{core.RoleExecutor}, nil

	case core.KindExecResult:
		if last.Verdict == core.VerdictPass {
			return []core.Role{core.RoleQAEngineer}, nil
		}
		// Hand the concrete error text back to whoever owns the failing
		// artifact.
		if author, ok := core.LastArtifactAuthor(transcript); ok {
			return []core.Role{author}, nil
		}
		return []core.Role{core.RoleBackendDev, core.RoleFrontendDev}, nil

	case core.KindReview:
		if last.Verdict == core.VerdictPass {
			return []core.Role{core.RoleManager}, nil
		}
		if author, ok := core.LastArtifactAuthor(transcript); ok {
			return []core.Role{author}, nil
		}
		return []core.Role{core.RoleBackendDev, core.RoleFrontendDev}, nil

	default:
		return nil, fmt.Errorf("%w: unroutable kind %s", core.ErrNoEligibleRole, last.Kind)
	}
}

// fairest picks from candidates the role that has been silent longest,
// falling back to declaration order on ties. Roles that never spoke win over
// roles that have.
func (r *Router) fairest(transcript []core.Message, candidates []core.Role) core.Role {
	best := candidates[0]
	bestIdx := core.LastSpoke(transcript, best)
	for _, c := range candidates[1:] {
		idx := core.LastSpoke(transcript, c)
		if idx < bestIdx {
			best = c
			bestIdx = idx
		}
		// idx == bestIdx only when both are -1; declaration order already
		// favors the earlier candidate.
	}
	// Declaration order, not candidate order, is the documented fallback.
	if bestIdx == -1 {
		for _, role := range r.order {
			for _, c := range candidates {
				if c == role && core.LastSpoke(transcript, c) == -1 {
					return c
				}
			}
		}
	}
	return best
}

// Descriptor returns the declared descriptor for a role.
func (r *Router) Descriptor(role core.Role) (core.AgentDescriptor, bool) {
	d, ok := r.descs[role]
	return d, ok
}

// Roles returns the declared roles in declaration order.
func (r *Router) Roles() []core.Role {
	out := make([]core.Role, len(r.order))
	copy(out, r.order)
	return out
}
