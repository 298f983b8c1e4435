// payload.go defines the per-category check-site payloads.
//
// The shapes mirror the records the clang/gcc -fsanitize=undefined
// instrumentation emits: every payload starts with an embedded
// SourceLocation, and some carry type descriptors that give the diagnostic
// extra context. The descriptors never influence control flow.
package location

// TypeKind classifies a TypeDescriptor.
type TypeKind uint16

// Type kinds, matching the sanitizer ABI encoding.
const (
	KindInteger TypeKind = 0x0000
	KindFloat   TypeKind = 0x0001
	KindUnknown TypeKind = 0xffff
)

// TypeDescriptor describes the operand type of a check site.
//
// For integer kinds, Info packs the signedness in bit 0 and log2 of the bit
// width in the remaining bits, following the sanitizer ABI encoding.
type TypeDescriptor struct {
	Kind TypeKind
	Info uint16
	Name string
}

// Bits returns the bit width encoded in Info, or 0 for non-integer kinds.
func (t *TypeDescriptor) Bits() uint {
	if t.Kind != KindInteger {
		return 0
	}
	return 1 << (t.Info >> 1)
}

// Signed reports whether an integer descriptor is signed.
func (t *TypeDescriptor) Signed() bool {
	return t.Kind == KindInteger && t.Info&1 == 1
}

// IntDesc describes Go's native int. Used by the instrumentation tool for
// every arithmetic site it generates.
var IntDesc = &TypeDescriptor{
	Kind: KindInteger,
	Info: 6<<1 | 1, // 64-bit, signed
	Name: "'int'",
}

// TypeCheckKind enumerates the pointer-use checks behind a type-mismatch
// report (load, store, member access, ...). Carried for message context
// only.
type TypeCheckKind uint8

// BuiltinCheckKind identifies which builtin was misused (ctz/clz of zero).
type BuiltinCheckKind uint8

// TypeMismatchData is the payload of the legacy type_mismatch entry.
type TypeMismatchData struct {
	Loc           SourceLocation
	Type          *TypeDescriptor
	Alignment     uintptr
	TypeCheckKind TypeCheckKind
}

// TypeMismatchDataV1 is the payload of the versioned type_mismatch entry.
// Identical in meaning to TypeMismatchData; the alignment is carried as its
// log2 instead of a byte count.
type TypeMismatchDataV1 struct {
	Loc           SourceLocation
	Type          *TypeDescriptor
	LogAlignment  uint8
	TypeCheckKind TypeCheckKind
}

// OverflowData is shared by the add, sub, mul, negate, divrem and pointer
// overflow entries.
type OverflowData struct {
	Loc  SourceLocation
	Type *TypeDescriptor
}

// ShiftOutOfBoundsData is the payload of the shift_out_of_bounds entry.
type ShiftOutOfBoundsData struct {
	Loc     SourceLocation
	LHSType *TypeDescriptor
	RHSType *TypeDescriptor
}

// OutOfBoundsData is the payload of the out_of_bounds entry.
type OutOfBoundsData struct {
	Loc       SourceLocation
	ArrayType *TypeDescriptor
	IndexType *TypeDescriptor
}

// UnreachableData is shared by the builtin_unreachable and missing_return
// entries. Location only.
type UnreachableData struct {
	Loc SourceLocation
}

// VLABoundData is the payload of the vla_bound_not_positive entry.
type VLABoundData struct {
	Loc  SourceLocation
	Type *TypeDescriptor
}

// InvalidValueData is the payload of the load_invalid_value entry.
type InvalidValueData struct {
	Loc  SourceLocation
	Type *TypeDescriptor
}

// NonnullArgData is the payload of the nonnull_arg entry.
type NonnullArgData struct {
	Loc SourceLocation
}

// InvalidBuiltinData is the payload of the invalid_builtin entry.
type InvalidBuiltinData struct {
	Loc  SourceLocation
	Kind BuiltinCheckKind
}
