/*
 * jacobin2wasm - a type-layout and dispatch-table engine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package toposort implements the topological orderer (C5): an emission
// order over every registered class and interface such that each type
// follows every element of its own instanceof set (spec.md §4.5).
// Primitives and arrays carry no instanceof set and never enter this
// order — they get no vtable offset or emission index of their own.
package toposort

import (
	"jacobin2wasm/src/excnames"
	"jacobin2wasm/src/registry"
	"jacobin2wasm/src/trace"
)

// Orderer is C5.
type Orderer struct {
	reg *registry.Registry
}

func New(reg *registry.Registry) *Orderer {
	return &Orderer{reg: reg}
}

// Order runs the reference sweep algorithm of spec.md §4.5: repeatedly
// scan every not-yet-placed class/interface, placing any whose
// instanceof set (other than itself) is already fully placed. A sweep
// that places nothing while types remain unplaced means the instanceof
// graph has a real cycle (CycleInHierarchy) — it ought to be
// impossible for valid input, since instanceof only ever grows along a
// DAG of superclass/super-interface edges, but a malformed classfile
// graph could still produce one.
func (o *Orderer) Order() ([]*registry.Type, error) {
	var candidates []*registry.Type
	for _, t := range o.reg.AllTypes() {
		if t.Kind == registry.KindClass || t.Kind == registry.KindInterface {
			candidates = append(candidates, t)
		}
	}

	placed := make(map[*registry.Type]bool, len(candidates))
	var order []*registry.Type

	for len(order) < len(candidates) {
		progressed := false
		for _, t := range candidates {
			if placed[t] {
				continue
			}
			if readyToPlace(t, placed) {
				placed[t] = true
				order = append(order, t)
				progressed = true
			}
		}
		if !progressed {
			return nil, trace.ErrorAs(excnames.CycleInHierarchy, "?", "topological sweep made no progress; instanceof graph is not a DAG")
		}
	}

	for i, t := range order {
		t.TypeIndex = i
	}
	return order, nil
}

func readyToPlace(t *registry.Type, placed map[*registry.Type]bool) bool {
	for _, s := range t.InstanceOf {
		if s == t {
			continue
		}
		if !placed[s] {
			return false
		}
	}
	return true
}
