package vm

import (
	"errors"
	"testing"
)

func mustVM(t *testing.T, image []byte) *VM {
	t.Helper()
	m, err := newTestVM(image)
	if err != nil {
		t.Fatalf("newTestVM: %v", err)
	}
	return m
}

func TestAddIntegers(t *testing.T) {
	image := newAsm().pushInt(2).pushInt(3).op(Add).bytes()
	m := mustVM(t, image)
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	top, err := m.Stack().Peek(0)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	got, err := top.Int()
	if err != nil {
		t.Fatalf("Int: %v", err)
	}
	if got != 5 {
		t.Fatalf("got %d, want 5", got)
	}
}

func TestDivideByZeroHalts(t *testing.T) {
	image := newAsm().pushInt(10).pushInt(0).op(Div).bytes()
	m := mustVM(t, image)
	err := m.Run()
	if !errors.Is(err, ErrArithmeticError) {
		t.Fatalf("got %v, want ErrArithmeticError", err)
	}
}

func TestDivideAlwaysProducesFloat(t *testing.T) {
	image := newAsm().pushInt(10).pushInt(4).op(Div).bytes()
	m := mustVM(t, image)
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	top, _ := m.Stack().Peek(0)
	if top.Type() != Float {
		t.Fatalf("got %s, want FLOAT", top.Type())
	}
	got, _ := top.Float()
	if got != 2.5 {
		t.Fatalf("got %v, want 2.5", got)
	}
}

func TestModPreservesIntForIntOperands(t *testing.T) {
	image := newAsm().pushInt(7).pushInt(3).op(Mod).bytes()
	m := mustVM(t, image)
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	top, _ := m.Stack().Peek(0)
	if top.Type() != Int {
		t.Fatalf("got %s, want INT", top.Type())
	}
	got, _ := top.Int()
	if got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
}

func TestDictRoundTripOnExistingKey(t *testing.T) {
	// push key then value, value on top, matching PUSH_DICT's pop order
	image := newAsm().
		pushStr("x").
		pushInt(7).
		pushDict(1).
		pushStr("x").
		get().
		load(0).
		bytes()
	m := mustVM(t, image)
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	top, _ := m.Stack().Peek(0)
	got, err := top.Int()
	if err != nil {
		t.Fatalf("Int: %v", err)
	}
	if got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
}

func TestLazySlotMaterializationOnStore(t *testing.T) {
	image := newAsm().
		pushDict(0).
		take(0).
		pushStr("y").
		get().
		pushFloat(1.5).
		swap(0, 1).
		store().
		pushStr("y").
		get().
		load(0).
		bytes()
	m := mustVM(t, image)
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	top, _ := m.Stack().Peek(0)
	if top.Type() != Float {
		t.Fatalf("got %s, want FLOAT", top.Type())
	}
	got, _ := top.Float()
	if got != 1.5 {
		t.Fatalf("got %v, want 1.5", got)
	}

	// heap[2] is the dict allocated by this program's PUSH_DICT 0; bootstrap
	// with no builtins always leaves exactly heap[0] (root ref) and heap[1]
	// (empty builtin dict), so the program's own dict lands at index 2.
	dictVal, err := m.Heap().Get(2)
	if err != nil {
		t.Fatalf("Heap.Get(2): %v", err)
	}
	dict, err := dictVal.DictObject()
	if err != nil {
		t.Fatalf("DictObject: %v", err)
	}
	if dict.Len() != 1 {
		t.Fatalf("got dict len %d, want 1 (lazy slot should materialize exactly once)", dict.Len())
	}
}

func TestGetMissingKeyYieldsDanglingReference(t *testing.T) {
	image := newAsm().
		pushDict(0).
		pushStr("missing").
		get().
		bytes()
	m := mustVM(t, image)
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	top, _ := m.Stack().Peek(0)
	ref, err := top.Reference()
	if err != nil {
		t.Fatalf("Reference: %v", err)
	}
	if !ref.IsDangling() {
		t.Fatalf("got bound reference, want dangling")
	}
	if !ref.HasBase() {
		t.Fatalf("dangling reference lost its container base_ptr")
	}
}

func TestArrayIndexingPreservesPushOrder(t *testing.T) {
	image := newAsm().
		pushInt(10).
		pushInt(20).
		pushInt(30).
		pushArray(3).
		pushInt(1).
		get().
		load(0).
		bytes()
	m := mustVM(t, image)
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	top, _ := m.Stack().Peek(0)
	got, _ := top.Int()
	if got != 20 {
		t.Fatalf("got %d, want 20 (array[1] should be the second pushed item)", got)
	}
}

func TestArrayLengthKeyIsComputedOutOfBand(t *testing.T) {
	image := newAsm().
		pushInt(10).
		pushInt(20).
		pushArray(2).
		pushStr("length").
		get().
		load(0).
		bytes()
	m := mustVM(t, image)
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	top, _ := m.Stack().Peek(0)
	if top.Type() != Float {
		t.Fatalf("got %s, want FLOAT", top.Type())
	}
	got, _ := top.Float()
	if got != 2 {
		t.Fatalf("got %v, want 2", got)
	}
}

func TestSwapExchangesTopTwoByDepth(t *testing.T) {
	image := newAsm().pushInt(1).pushInt(2).swap(0, 1).bytes()
	m := mustVM(t, image)
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	top, _ := m.Stack().Peek(0)
	second, _ := m.Stack().Peek(1)
	gotTop, _ := top.Int()
	gotSecond, _ := second.Int()
	if gotTop != 1 || gotSecond != 2 {
		t.Fatalf("got top=%d second=%d, want top=1 second=2", gotTop, gotSecond)
	}
}

func TestTakeDuplicatesWithoutConsuming(t *testing.T) {
	image := newAsm().pushInt(42).take(0).bytes()
	m := mustVM(t, image)
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.Stack().Len() != 2 {
		t.Fatalf("got stack len %d, want 2", m.Stack().Len())
	}
}

func TestJumpIfOnlyTakenWhenTruthy(t *testing.T) {
	// condition 0 (falsy) should not jump: next op (PUSH_INT 1) still runs
	image := newAsm().
		pushInt(0).
		pushInt(0).
		op(JumpIf).
		pushInt(1).
		bytes()
	m := mustVM(t, image)
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	top, _ := m.Stack().Peek(0)
	got, _ := top.Int()
	if got != 1 {
		t.Fatalf("got %d, want 1 (jump should not have been taken)", got)
	}
}

func TestCallScriptedAllocatesFrameAndJumps(t *testing.T) {
	m := mustVM(t, []byte{byte(Call)})
	baseHeapLen := m.Heap().Len()

	fn := Function{Start: 100, FrameSize: 2}
	m.Stack().Push(IntValue(0)) // nArgs
	m.Stack().Push(FnValue(fn)) // callee

	if err := m.RunSteps(1); err != nil {
		t.Fatalf("RunSteps: %v", err)
	}

	if m.Heap().Len() != baseHeapLen+2 {
		t.Fatalf("got heap growth %d, want 2", m.Heap().Len()-baseHeapLen)
	}
	if m.Offset() != 100 {
		t.Fatalf("got offset %d, want 100", m.Offset())
	}
	if m.Stack().Len() != 1 {
		t.Fatalf("got stack len %d, want 1 (frame reference only, no env frames)", m.Stack().Len())
	}
	top, _ := m.Stack().Peek(0)
	ref, err := top.Reference()
	if err != nil {
		t.Fatalf("Reference: %v", err)
	}
	if ref.HasBase() {
		t.Fatalf("frame reference should have no container base_ptr")
	}
}

func TestCallScriptedBindsArgumentsInPopOrder(t *testing.T) {
	m := mustVM(t, []byte{byte(Call)})

	fn := Function{Start: 100, FrameSize: 3} // 2 args + receiver slot
	m.Stack().Push(IntValue(11)) // arg pushed first (deepest, popped last)
	m.Stack().Push(IntValue(22)) // arg pushed second (topmost, popped first)
	m.Stack().Push(IntValue(2))  // nArgs
	m.Stack().Push(FnValue(fn))  // callee

	if err := m.RunSteps(1); err != nil {
		t.Fatalf("RunSteps: %v", err)
	}

	top, err := m.Stack().Peek(0)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	ref, err := top.Reference()
	if err != nil {
		t.Fatalf("Reference: %v", err)
	}
	frameStart := *ref.TargetPtr

	slot0, err := m.Heap().Get(frameStart)
	if err != nil {
		t.Fatalf("Heap.Get(slot0): %v", err)
	}
	got0, _ := slot0.Int()
	if got0 != 22 {
		t.Fatalf("got slot0=%d, want 22 (slot 0 binds the first-popped/most-recently-pushed argument)", got0)
	}

	slot1, err := m.Heap().Get(frameStart + 1)
	if err != nil {
		t.Fatalf("Heap.Get(slot1): %v", err)
	}
	got1, _ := slot1.Int()
	if got1 != 11 {
		t.Fatalf("got slot1=%d, want 11 (slot 1 binds the last-popped/deepest argument)", got1)
	}
}

func TestCallNativePopsReturnAddressAndPushesUndef(t *testing.T) {
	m := mustVM(t, []byte{byte(Call)})

	called := false
	native := NativeValue(func(args []any) { called = true })

	m.Stack().Push(IntValue(7)) // return address, pushed by the caller's prologue
	m.Stack().Push(IntValue(0)) // nArgs
	m.Stack().Push(native)      // callee

	if err := m.RunSteps(1); err != nil {
		t.Fatalf("RunSteps: %v", err)
	}
	if !called {
		t.Fatalf("native callable was never invoked")
	}
	if m.Offset() != 7 {
		t.Fatalf("got offset %d, want 7 (the popped return address)", m.Offset())
	}
	top, _ := m.Stack().Peek(0)
	if top.Type() != Undef {
		t.Fatalf("got %s, want UNDEF", top.Type())
	}
}

func TestHeapGrowthIsMonotonic(t *testing.T) {
	image := newAsm().
		pushDict(0).
		take(0).
		pushStr("a").
		get().
		pushInt(1).
		swap(0, 1).
		store().
		bytes()
	m := mustVM(t, image)
	before := m.Heap().Len()
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	after := m.Heap().Len()
	if after <= before {
		t.Fatalf("heap did not grow: before=%d after=%d", before, after)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	image := newAsm().
		pushInt(3).
		pushInt(4).
		op(Mul).
		pushInt(2).
		op(Add).
		bytes()

	m1 := mustVM(t, image)
	if err := m1.Run(); err != nil {
		t.Fatalf("Run 1: %v", err)
	}
	m2 := mustVM(t, image)
	if err := m2.Run(); err != nil {
		t.Fatalf("Run 2: %v", err)
	}

	top1, _ := m1.Stack().Peek(0)
	top2, _ := m2.Stack().Peek(0)
	v1, _ := top1.Int()
	v2, _ := top2.Int()
	if v1 != v2 {
		t.Fatalf("non-deterministic: %d vs %d", v1, v2)
	}
}

func TestEqualityNeverErrorsOnMismatchedTypes(t *testing.T) {
	image := newAsm().pushInt(1).pushStr("1").op(Eq).bytes()
	m := mustVM(t, image)
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	top, _ := m.Stack().Peek(0)
	got, _ := top.Float()
	if got != 0 {
		t.Fatalf("got %v, want 0 (INT and STR are never equal)", got)
	}
}

func TestNotPreservesTypeTag(t *testing.T) {
	image := newAsm().pushInt(0).op(Not).bytes()
	m := mustVM(t, image)
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	top, _ := m.Stack().Peek(0)
	if top.Type() != Int {
		t.Fatalf("got %s, want INT", top.Type())
	}
	got, _ := top.Int()
	if got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
}

func TestNotOnUndefStaysUndef(t *testing.T) {
	m := mustVM(t, []byte{byte(Not)})
	m.Stack().Push(UndefValue())

	if err := m.RunSteps(1); err != nil {
		t.Fatalf("RunSteps: %v", err)
	}
	top, _ := m.Stack().Peek(0)
	if top.Type() != Undef {
		t.Fatalf("got %s, want UNDEF", top.Type())
	}
}

func TestStringConcatenation(t *testing.T) {
	image := newAsm().pushStr("foo").pushStr("bar").op(Add).bytes()
	m := mustVM(t, image)
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	top, _ := m.Stack().Peek(0)
	got, _ := top.Str()
	if got != "foobar" {
		t.Fatalf("got %q, want %q", got, "foobar")
	}
}

func TestNegOnFloat(t *testing.T) {
	image := newAsm().pushFloat(2.5).op(Neg).bytes()
	m := mustVM(t, image)
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	top, _ := m.Stack().Peek(0)
	got, _ := top.Float()
	if got != -2.5 {
		t.Fatalf("got %v, want -2.5", got)
	}
}

func TestInvalidOpcodeHalts(t *testing.T) {
	m := mustVM(t, []byte{0xFF})
	err := m.Run()
	if !errors.Is(err, ErrInvalidOpcode) {
		t.Fatalf("got %v, want ErrInvalidOpcode", err)
	}
}

func TestTruncatedImageIsDecodeError(t *testing.T) {
	// PUSH_INT needs 4 trailing bytes; give it one
	m := mustVM(t, []byte{byte(PushInt), 0x01})
	err := m.Run()
	if !errors.Is(err, ErrDecodeError) {
		t.Fatalf("got %v, want ErrDecodeError", err)
	}
}
