/*
 * jacobin2wasm - a type-layout and dispatch-table engine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package hierarchy implements the hierarchy scanner (C3): superclass
// chain walking, transitive interface closure, effective field list and
// vtable assembly (spec.md §4.3). It is the component the rest of this
// engine leans on hardest, so it follows the teacher's own densest,
// most heavily-commented file (classloader.go) in doc density rather
// than the terser one-liners elsewhere in the pack.
package hierarchy

import (
	"jacobin2wasm/src/classfile"
	"jacobin2wasm/src/excnames"
	"jacobin2wasm/src/funcreg"
	"jacobin2wasm/src/registry"
	"jacobin2wasm/src/trace"
)

// constructorNames are excluded from vtable assembly: spec.md §4.3 scans
// "non-static, non-constructor" methods only.
var constructorNames = map[string]bool{
	"<init>":   true,
	"<clinit>": true,
}

// Scanner is C3. It is invoked once, after the scan phase has closed,
// over every registered class and interface.
type Scanner struct {
	reg *registry.Registry
	cf  classfile.Provider
	fn  funcreg.Registry
}

func New(reg *registry.Registry, cf classfile.Provider, fn funcreg.Registry) *Scanner {
	return &Scanner{reg: reg, cf: cf, fn: fn}
}

// ScanAll walks every registered, not-yet-scanned class or interface.
// Arrays and primitives are skipped entirely, per spec.md §4.3's opening
// line.
func (s *Scanner) ScanAll() error {
	// AllTypes() grows as scanning pulls in ancestor/interface names the
	// consumer never referenced directly; re-reading its length each
	// iteration picks those up without a second pass.
	for i := 0; i < len(s.reg.AllTypes()); i++ {
		t := s.reg.AllTypes()[i]
		if t.Kind == registry.KindPrimitive || t.Kind == registry.KindArray {
			continue
		}
		if err := s.scanOne(t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) scanOne(t *registry.Type) error {
	if t.Scanned() {
		return nil
	}
	info := s.cf.Get(t.Name)
	if info == nil {
		return trace.ErrorAs(excnames.MissingClass, t.Name, "classfile provider has no entry for this type")
	}

	// Step 1: kind fix-up. A type defaults to DECL_CLASS when first
	// interned (registry.ValueOf); only the classfile itself knows
	// whether it is really an interface.
	if info.Kind == classfile.KindInterface {
		t.Kind = registry.KindInterface
		if t.Opcode != registry.ExtClass {
			t.Opcode = registry.DeclInterface
		}
	} else if t.Opcode != registry.ExtClass {
		t.Opcode = registry.DeclClass
	}
	t.AccessFlags = info.AccessFlags
	t.Abstract = info.Abstract
	for _, name := range info.DirectInterfaces {
		t.DirectInterfaces = append(t.DirectInterfaces, s.reg.InternalValueOf(name))
	}

	if t.Kind == registry.KindInterface {
		return s.scanInterface(t, info)
	}
	return s.scanClass(t, info)
}

// scanInterface records only self-plus-transitive-extends in InstanceOf
// and Interfaces; an interface carries neither parent nor vtable
// (spec.md §3).
func (s *Scanner) scanInterface(t *registry.Type, info *classfile.ClassInfo) error {
	t.InstanceOf = append(t.InstanceOf, t)
	visited := map[string]bool{t.Name: true}
	if err := s.closeSuperInterfaces(t, info.DirectInterfaces, visited); err != nil {
		return err
	}
	t.MarkScanned()
	return nil
}

// scanClass performs steps 2 and 3 of spec.md §4.3: walk T's superclass
// chain root-first (so each level's own declaration can override a more
// general ancestor's, per the addOrUpdate rule below), depositing fields,
// interfaces and vtable entries as we go.
func (s *Scanner) scanClass(t *registry.Type, info *classfile.ClassInfo) error {
	type level struct {
		typ  *registry.Type
		info *classfile.ClassInfo
	}

	// Walk from T up to the chain's root, then process root-first: this
	// is what lets a derived class's own method addOrUpdate unconditionally
	// overwrite the slot its ancestor's version occupies (scenario 4 of
	// spec.md §8: E extends D, E overrides D's default-resolved g).
	var chain []level
	curType, curInfo := t, info
	for {
		chain = append(chain, level{curType, curInfo})
		if curInfo.SuperName == "" {
			break
		}
		parentType := s.reg.InternalValueOf(curInfo.SuperName)
		parentInfo := s.cf.Get(curInfo.SuperName)
		if parentInfo == nil {
			return trace.ErrorAs(excnames.MissingClass, curInfo.SuperName, "superclass not found")
		}
		curType, curInfo = parentType, parentInfo
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	if len(chain) > 1 {
		t.Parent = chain[len(chain)-2].typ
	}

	visitedInterfaces := map[string]bool{}
	var groupStarts []int
	for i, lvl := range chain {
		groupStarts = append(groupStarts, len(t.InstanceOf))
		t.InstanceOf = append(t.InstanceOf, lvl.typ)

		if i == 0 {
			t.Fields = append(t.Fields,
				registry.FieldEntry{Owner: lvl.typ.Name, Name: ".vtable", Desc: "I", Static: false},
				registry.FieldEntry{Owner: lvl.typ.Name, Name: ".hashcode", Desc: "I", Static: false},
			)
		}

		for _, f := range lvl.info.Fields {
			if f.Static {
				continue
			}
			if s.reg.FieldNeeded(f.Name) {
				t.Fields = append(t.Fields, registry.FieldEntry{
					Owner: lvl.typ.Name, Name: f.Name, Desc: f.Descriptor, Static: false,
				})
			}
		}

		for _, m := range lvl.info.Methods {
			if m.Static || constructorNames[m.Name] {
				continue
			}
			fh := funcreg.Handle{Class: lvl.typ.Name, Name: m.Name, Desc: m.Descriptor}
			addOrUpdate(&t.VTable, s.fn, fh, false)
		}

		if err := s.closeDefaultInterfaces(t, lvl.info.DirectInterfaces, visitedInterfaces); err != nil {
			return err
		}
	}

	// InstanceOf was filled root-first, one group per level (the level
	// itself, then the interfaces it introduced); reorder the groups
	// most-derived first so T itself leads.
	rootFirst := t.InstanceOf
	t.InstanceOf = make([]*registry.Type, 0, len(rootFirst))
	for g := len(groupStarts) - 1; g >= 0; g-- {
		end := len(rootFirst)
		if g+1 < len(groupStarts) {
			end = groupStarts[g+1]
		}
		t.InstanceOf = append(t.InstanceOf, rootFirst[groupStarts[g]:end]...)
	}

	t.MarkScanned()
	return nil
}

// closeDefaultInterfaces deposits the transitive closure of names into
// t.Interfaces/t.InstanceOf (deduplicated against visited, shared across
// every level of t's superclass chain) and applies addOrUpdate with
// isDefault=true for every used method of every interface it visits —
// spec.md §4.3 step 3's "for each direct interface of L" bullet,
// generalized to super-interfaces too so a default declared two levels
// up an interface's own extends chain is still picked up.
func (s *Scanner) closeDefaultInterfaces(t *registry.Type, names []string, visited map[string]bool) error {
	for _, name := range names {
		if visited[name] {
			continue
		}
		visited[name] = true

		iface := s.reg.InternalValueOf(name)
		info := s.cf.Get(name)
		if info == nil {
			return trace.ErrorAs(excnames.MissingClass, name, "interface not found")
		}
		if iface.Opcode != registry.ExtClass {
			iface.Opcode = registry.DeclInterface
		}
		iface.Kind = registry.KindInterface
		iface.AccessFlags = info.AccessFlags

		t.Interfaces = append(t.Interfaces, iface)
		t.InstanceOf = append(t.InstanceOf, iface)

		for _, m := range info.Methods {
			if m.Static || m.AccessFlags&classfile.AccAbstract != 0 {
				continue // no body: not a default, must be resolved by a concrete override
			}
			fh := funcreg.Handle{Class: name, Name: m.Name, Desc: m.Descriptor}
			if s.fn.IsUsed(fh) {
				addOrUpdate(&t.VTable, s.fn, fh, true)
			}
		}

		if err := s.closeDefaultInterfaces(t, info.DirectInterfaces, visited); err != nil {
			return err
		}
	}
	return nil
}

// closeSuperInterfaces is scanInterface's counterpart: it has no vtable
// or addOrUpdate work to do, only the transitive Interfaces/InstanceOf
// closure.
func (s *Scanner) closeSuperInterfaces(t *registry.Type, names []string, visited map[string]bool) error {
	for _, name := range names {
		if visited[name] {
			continue
		}
		visited[name] = true

		iface := s.reg.InternalValueOf(name)
		info := s.cf.Get(name)
		if info == nil {
			return trace.ErrorAs(excnames.MissingClass, name, "interface not found")
		}
		if iface.Opcode != registry.ExtClass {
			iface.Opcode = registry.DeclInterface
		}
		iface.Kind = registry.KindInterface
		iface.AccessFlags = info.AccessFlags

		t.Interfaces = append(t.Interfaces, iface)
		t.InstanceOf = append(t.InstanceOf, iface)

		if err := s.closeSuperInterfaces(t, info.DirectInterfaces, visited); err != nil {
			return err
		}
	}
	return nil
}

// addOrUpdate is spec.md §4.3's per-method rule: replace a vtable slot
// unconditionally for a concrete (non-default) method, replace a default
// slot only if it was itself still a default with an assigned itable
// index (i.e. a concrete override has since claimed it — see
// funcreg.Registry.GetITableIndex), append a brand-new used method, and
// otherwise leave the slot alone. Whichever function ends up occupying
// the slot gets its vtable index published (k+4, for the four reserved
// header slots of spec.md §3).
func addOrUpdate(vtable *[]registry.VTableEntry, fn funcreg.Registry, handle funcreg.Handle, isDefault bool) {
	idx := -1
	for i, e := range *vtable {
		if e.Fn.Name == handle.Name && e.Fn.Desc == handle.Desc {
			idx = i
			break
		}
	}

	if idx >= 0 {
		existing := (*vtable)[idx]
		_, hasITableIdx := fn.GetITableIndex(existing.Fn)
		if !isDefault || hasITableIdx {
			(*vtable)[idx] = registry.VTableEntry{Fn: handle, FromDefault: isDefault}
			fn.MarkAsNeeded(handle)
			fn.SetVTableIndex(handle, idx+4)
		} else {
			fn.SetVTableIndex(existing.Fn, idx+4)
		}
		return
	}

	if fn.IsUsed(handle) {
		*vtable = append(*vtable, registry.VTableEntry{Fn: handle, FromDefault: isDefault})
		fn.SetVTableIndex(handle, len(*vtable)-1+4)
	}
}
