package vm

import (
	"fmt"

	"go.uber.org/zap"
)

// execAggregateOp dispatches GET/PUSH_DICT/PUSH_ARRAY.
// Grounded on original_source/tools/vm.py's _handle_dict.
func (m *VM) execAggregateOp(op Opcode) error {
	switch op {
	case Get:
		return m.execGet()
	case PushDict:
		return m.execPushDict()
	case PushArray:
		return m.execPushArray()
	default:
		return fmt.Errorf("%w: 0x%02x in aggregate group", ErrInvalidOpcode, byte(op))
	}
}

// dictKey normalizes a Value popped as a DICT/ARRAY key into the Go type
// used as the map key: string for DICT, int32 for ARRAY.
func dictKey(v Value) (any, error) {
	switch v.Type() {
	case Str:
		s, _ := v.Str()
		return s, nil
	case Int:
		i, _ := v.Int()
		return i, nil
	default:
		return nil, fmt.Errorf("%w: key of type %s", ErrTypeMismatch, v.Type())
	}
}

// execGet builds a reference to a dictionary member without materialising
// it: "length" is handled out-of-band (a fresh FLOAT cell is always
// appended), a present key reuses its own target_ptr, and a missing key
// yields a dangling reference for a later STORE to fill in.
func (m *VM) execGet() error {
	keyVal, err := m.stack.Pop()
	if err != nil {
		return err
	}
	dVal, err := m.stack.Pop()
	if err != nil {
		return err
	}

	dRef, err := dVal.Reference()
	if err != nil {
		return err
	}
	if dRef.TargetPtr == nil {
		return fmt.Errorf("%w: GET on a dangling reference", ErrTypeMismatch)
	}
	containerIdx := *dRef.TargetPtr

	containerVal, err := m.heap.Get(containerIdx)
	if err != nil {
		return err
	}
	dict, err := containerVal.DictObject()
	if err != nil {
		return err
	}

	key, err := dictKey(keyVal)
	if err != nil {
		return err
	}

	ref := Reference{BasePtr: intPtr(containerIdx), TargetName: key}
	if s, ok := key.(string); ok && s == "length" {
		lengthIdx := m.heap.Alloc(FloatValue(float32(dict.Len())))
		ref.TargetPtr = intPtr(lengthIdx)
	} else if entry, ok := dict.Get(key); ok {
		entryRef, _ := entry.Reference()
		ref.TargetPtr = entryRef.TargetPtr
	}

	result := RefValue(ref)
	m.stack.Push(result)
	m.trace(Get, nil, []Value{dVal, keyVal}, []Value{result})
	return nil
}

// execPushDict allocates a DICT heap cell and, for each of len pairs
// popped (key, value), allocates a heap cell for the value and installs a
// bound REF entry. Pairs come off the stack in reverse source order;
// entries still land on contiguous heap slots, matching
// original_source/tools/vm.py's own iteration order.
func (m *VM) execPushDict() error {
	length, offset, err := m.r.u32(m.offset)
	if err != nil {
		return err
	}
	m.offset = offset

	dict := NewDictObject()
	dictIdx := m.heap.Alloc(DictValue(dict))

	entries := make([]Value, 0, length*2)
	for i := int32(0); i < length; i++ {
		valueVal, err := m.stack.Pop()
		if err != nil {
			return err
		}
		keyVal, err := m.stack.Pop()
		if err != nil {
			return err
		}
		key, err := dictKey(keyVal)
		if err != nil {
			return err
		}

		newIdx := m.heap.Alloc(valueVal)
		entryRef := RefValue(Reference{BasePtr: intPtr(dictIdx), TargetName: key, TargetPtr: intPtr(newIdx)})
		dict.Set(key, entryRef)
		entries = append(entries, keyVal, valueVal)
	}

	result := RefValue(RootlessReference(dictIdx))
	m.stack.Push(result)
	m.trace(PushDict, []zap.Field{zap.Int32("len", length)}, entries, []Value{result})
	return nil
}

// execPushArray is PUSH_DICT specialized to integer keys: the item popped
// on iteration i lands at key len-1-i, reproducing source push order.
func (m *VM) execPushArray() error {
	length, offset, err := m.r.u32(m.offset)
	if err != nil {
		return err
	}
	m.offset = offset

	arr := NewDictObject()
	arrIdx := m.heap.Alloc(DictValue(arr))

	items := make([]Value, 0, length)
	for i := int32(0); i < length; i++ {
		item, err := m.stack.Pop()
		if err != nil {
			return err
		}
		key := length - 1 - i
		newIdx := m.heap.Alloc(item)
		arr.Set(key, RefValue(Reference{BasePtr: intPtr(arrIdx), TargetName: key, TargetPtr: intPtr(newIdx)}))
		items = append(items, item)
	}

	result := RefValue(RootlessReference(arrIdx))
	m.stack.Push(result)
	m.trace(PushArray, []zap.Field{zap.Int32("len", length)}, items, []Value{result})
	return nil
}
