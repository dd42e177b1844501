package api

import "reflect"

// Payload is the type-erased data buffer handed from one stage to the next.
//
// The consumer of a payload always knows statically which concrete type to
// expect; the tag exists only to make TypeBindingError messages readable.
// A Payload is passed by value and never shared between two stages.
type Payload struct {
	value any
	typ   reflect.Type
	tag   string
	set   bool
}

// None is the empty payload used by stages without input or output.
var None Payload

// Box wraps v together with its type tag.
func Box[T any](v T) Payload {
	typ := reflect.TypeFor[T]()
	return Payload{value: v, typ: typ, tag: typ.String(), set: true}
}

// Unbox extracts the concrete value from p. A mismatch means the stage
// graph was wired incorrectly; it panics with a *TypeBindingError, which the
// stage executor reports as a fatal engine error.
func Unbox[T any](p Payload) T {
	v, err := TryUnbox[T](p)
	if err != nil {
		panic(err)
	}
	return v
}

// TryUnbox is the non-panicking form of Unbox.
func TryUnbox[T any](p Payload) (T, error) {
	var zero T
	if !p.set {
		return zero, &TypeBindingError{Expected: TypeTag[T](), Actual: "<empty>"}
	}
	if p.value == nil {
		// A nil interface only unboxes as its own type or an interface it
		// satisfies.
		if want := reflect.TypeFor[T](); p.typ == want || (want.Kind() == reflect.Interface && p.typ.AssignableTo(want)) {
			return zero, nil
		}
		return zero, &TypeBindingError{Expected: TypeTag[T](), Actual: p.tag}
	}
	v, ok := p.value.(T)
	if !ok {
		return zero, &TypeBindingError{Expected: TypeTag[T](), Actual: p.tag}
	}
	return v, nil
}

// IsEmpty reports whether the payload carries no value at all.
func (p Payload) IsEmpty() bool { return !p.set }

// Tag returns the diagnostic type tag, or "<empty>".
func (p Payload) Tag() string {
	if !p.set {
		return "<empty>"
	}
	return p.tag
}

// Any exposes the boxed value for logging and history only.
func (p Payload) Any() any { return p.value }

// TypeTag returns the tag Box uses for T.
func TypeTag[T any]() string {
	return reflect.TypeFor[T]().String()
}
