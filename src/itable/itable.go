/*
 * jacobin2wasm - a type-layout and dispatch-table engine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package itable implements the itable builder (C4): for each concrete
// class and each interface it transitively implements, resolves which
// function answers every used interface method, falling back to a
// default method when no class in the hierarchy overrides it (spec.md
// §4.4). It runs strictly after the hierarchy scanner (C3) has settled
// every class's vtable and interface closure.
package itable

import (
	"jacobin2wasm/src/classfile"
	"jacobin2wasm/src/excnames"
	"jacobin2wasm/src/funcreg"
	"jacobin2wasm/src/registry"
	"jacobin2wasm/src/trace"
)

// Builder is C4.
type Builder struct {
	reg *registry.Registry
	cf  classfile.Provider
	fn  funcreg.Registry
}

func New(reg *registry.Registry, cf classfile.Provider, fn funcreg.Registry) *Builder {
	return &Builder{reg: reg, cf: cf, fn: fn}
}

// BuildAll builds the itables of every scanned, concrete class.
// Abstract classes are skipped — "no instance can exist" (spec.md §4.4).
func (b *Builder) BuildAll() error {
	for _, t := range b.reg.AllTypes() {
		if t.Kind != registry.KindClass {
			continue
		}
		if t.Abstract {
			continue
		}
		if err := b.buildOne(t); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) buildOne(t *registry.Type) error {
	for _, iface := range t.Interfaces {
		info := b.cf.Get(iface.Name)
		if info == nil {
			return trace.ErrorAs(excnames.MissingClass, iface.Name, "interface not found while building itable")
		}

		var methods []funcreg.Handle
		for _, m := range info.Methods {
			if m.Static {
				continue
			}
			used := funcreg.Handle{Class: iface.Name, Name: m.Name, Desc: m.Descriptor}
			if !b.fn.IsUsed(used) {
				continue
			}
			target, err := b.resolve(t, used)
			if err != nil {
				return err
			}
			methods = append(methods, target)
			b.fn.SetITableIndex(target, len(methods)-1+2) // +2: the two-word itable header
		}

		t.ITables = append(t.ITables, registry.ITableEntry{Interface: iface, Methods: methods})
	}
	return nil
}

// resolve implements spec.md §4.4's search order: T's own classfile
// methods, then up T's superclass chain, then finally T's interface
// closure for a default.
func (b *Builder) resolve(t *registry.Type, used funcreg.Handle) (funcreg.Handle, error) {
	for cur := t; cur != nil; cur = cur.Parent {
		info := b.cf.Get(cur.Name)
		if info == nil {
			return funcreg.Handle{}, trace.ErrorAs(excnames.MissingClass, cur.Name, "class not found while resolving itable target")
		}
		if h, ok := findConcreteMethod(info, cur.Name, used.Name, used.Desc); ok {
			return h, nil
		}
	}

	for _, iface := range t.Interfaces {
		info := b.cf.Get(iface.Name)
		if info == nil {
			continue
		}
		for _, m := range info.Methods {
			if m.Static || m.AccessFlags&classfile.AccAbstract != 0 {
				continue
			}
			if m.Name == used.Name && m.Descriptor == used.Desc {
				return funcreg.Handle{Class: iface.Name, Name: m.Name, Desc: m.Descriptor}, nil
			}
		}
	}

	return funcreg.Handle{}, trace.ErrorAs(excnames.MissingImplementation, t.Name, used.Class+"."+used.Name+used.Desc+" has no implementation")
}

func findConcreteMethod(info *classfile.ClassInfo, owner, name, desc string) (funcreg.Handle, bool) {
	for _, m := range info.Methods {
		if m.Static || m.Name == "<init>" || m.Name == "<clinit>" {
			continue
		}
		if m.AccessFlags&classfile.AccAbstract != 0 {
			continue
		}
		if m.Name == name && m.Descriptor == desc {
			return funcreg.Handle{Class: owner, Name: m.Name, Desc: m.Descriptor}, true
		}
	}
	return funcreg.Handle{}, false
}
