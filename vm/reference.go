package vm

import "fmt"

// Reference carries enough provenance to both read a heap cell and, when
// it is dangling, materialize one lazily on STORE. Grounded on
// original_source/tools/vm.py's Reference class.
//
// BasePtr is the heap index of the containing DICT for a reference that
// names a dictionary entry (built by GET, PUSH_DICT, PUSH_ARRAY, STORE or
// the built-in bootstrap, or offset from one by AddInt), or nil for an
// anonymous reference (e.g. the root reference, or the result of AddRef).
//
// TargetName is the key within that container (string or int32), nil when
// BasePtr is nil.
//
// TargetPtr is the heap index of the referent; nil means dangling — no
// heap cell has been materialized for this reference yet.
type Reference struct {
	BasePtr    *int32
	TargetName any
	TargetPtr  *int32
}

func intPtr(v int32) *int32 {
	return &v
}

// DanglingReference builds a reference that targets a not-yet-materialized
// slot named key inside the dictionary at baseHeapIndex.
func DanglingReference(baseHeapIndex int32, key any) Reference {
	return Reference{BasePtr: intPtr(baseHeapIndex), TargetName: key}
}

// RootlessReference builds a plain pointer to a heap slot with no
// containing dictionary (e.g. the result of AddRef, a call frame
// reference, or the reference PUSH_DICT/PUSH_ARRAY push).
func RootlessReference(heapIndex int32) Reference {
	return Reference{TargetPtr: intPtr(heapIndex)}
}

func (r Reference) IsDangling() bool {
	return r.TargetPtr == nil
}

func (r Reference) HasBase() bool {
	return r.BasePtr != nil
}

func referencesEqual(a, b Reference) bool {
	if (a.TargetPtr == nil) != (b.TargetPtr == nil) {
		return false
	}
	if a.TargetPtr != nil && *a.TargetPtr != *b.TargetPtr {
		return false
	}
	if (a.BasePtr == nil) != (b.BasePtr == nil) {
		return false
	}
	if a.BasePtr != nil && *a.BasePtr != *b.BasePtr {
		return false
	}
	return a.TargetName == b.TargetName
}

func (r Reference) String() string {
	target := "?"
	if r.TargetPtr != nil {
		target = fmt.Sprintf("%d", *r.TargetPtr)
	}
	if r.BasePtr == nil {
		return fmt.Sprintf("&(%s)", target)
	}
	return fmt.Sprintf("&(%d@%v=>%s)", *r.BasePtr, r.TargetName, target)
}

// AddInt returns a new reference offset by n heap slots, preserving
// base_ptr and target_name per spec (this is compiler-emitted offset
// math over a reference that still names the same dictionary entry).
func (r Reference) AddInt(n int32) (Reference, error) {
	if r.TargetPtr == nil {
		return Reference{}, ErrDanglingArithmetic
	}
	return Reference{
		BasePtr:    r.BasePtr,
		TargetName: r.TargetName,
		TargetPtr:  intPtr(*r.TargetPtr + n),
	}, nil
}

// AddRef sums two references' target pointers. No bytecode produced by
// any compiler targeting this VM emits this operation since the compiler
// is out of this module's scope, but the operation itself is part of the
// Value contract and is exercised directly by unit tests.
func (r Reference) AddRef(other Reference) (Reference, error) {
	if r.TargetPtr == nil || other.TargetPtr == nil {
		return Reference{}, ErrDanglingArithmetic
	}
	return RootlessReference(*r.TargetPtr + *other.TargetPtr), nil
}
