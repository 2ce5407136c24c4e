package vm

import "fmt"

// BuiltinTree is the host-provided shape Bootstrap walks: each key names
// either a nested namespace (another BuiltinTree) or a leaf Value
// (typically NativeValue(...)). Grounded on original_source/tools/vm.py's
// `std` dict literal passed to `_init_builtin`.
type BuiltinTree map[string]any

// Bootstrap pre-populates heap with the root reference at slot 0 and the
// root built-in dictionary at slot 1. Each nested BuiltinTree becomes its
// own DICT cell; each leaf Value is appended directly. Every entry's
// Value is a REF whose base_ptr names the dictionary heap cell the entry
// lives in directly, so heap[r.base_ptr].type == DICT holds for every
// entry this bootstrap installs.
//
// original_source/tools/vm.py's own _init_builtin allocates one extra
// "reference to self" heap cell per namespace and hands out *that* cell's
// index as base_ptr instead of the dictionary's own index — harmless
// there only because GET never reads an entry's stored base_ptr back, but
// a needless violation of the invariant this module holds implementers
// to. Not reproduced; see DESIGN.md.
func Bootstrap(h *Heap, tree BuiltinTree) error {
	h.Alloc(RefValue(RootlessReference(1)))
	_, err := bootstrapDict(h, tree)
	return err
}

func bootstrapDict(h *Heap, tree BuiltinTree) (int32, error) {
	dict := NewDictObject()
	dictIdx := h.Alloc(DictValue(dict))

	for name, node := range tree {
		var targetPtr int32
		switch v := node.(type) {
		case BuiltinTree:
			idx, err := bootstrapDict(h, v)
			if err != nil {
				return 0, err
			}
			targetPtr = idx
		case Value:
			targetPtr = h.Alloc(v)
		default:
			return 0, fmt.Errorf("builtin node %q: unsupported type %T", name, node)
		}

		dict.Set(name, RefValue(Reference{
			BasePtr:    intPtr(dictIdx),
			TargetName: name,
			TargetPtr:  intPtr(targetPtr),
		}))
	}

	return dictIdx, nil
}

// DefaultBuiltins is the io/sys namespace tree this module exposes as its
// example host surface: io.print, io.println,
// and sys.exit. Grounded on original_source/tools/vm.py's `std` literal
// in VirtualMachine.__init__. exitFunc is called by sys.exit; the CLI
// host loader wires it to os.Exit(0) while tests can supply a stub.
func DefaultBuiltins(print func(args []any), println func(args []any), exit func()) BuiltinTree {
	return BuiltinTree{
		"io": BuiltinTree{
			"print":   NativeValue(func(args []any) { print(args) }),
			"println": NativeValue(func(args []any) { println(args) }),
		},
		"sys": BuiltinTree{
			"exit": NativeValue(func(args []any) { exit() }),
		},
	}
}
