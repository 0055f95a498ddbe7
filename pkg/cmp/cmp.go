// Package cmp compares maps and slices, mainly for tests.
package cmp

type BiPredicator[V any, U any] func(a V, b U) bool

// a == b as BiPredicator
func EqEq[T comparable](a, b T) bool {
	return a == b
}

// MapEq checks a and b have the same keys and values.
func MapEq[K comparable, V comparable](a map[K]V, b map[K]V) bool {
	return MapEqWith(a, b, EqEq[V])
}

// MapEqWith checks a and b have the same keys, and values of each key are equivalent.
func MapEqWith[K comparable, V any, U any](a map[K]V, b map[K]U, equiv BiPredicator[V, U]) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !equiv(va, vb) {
			return false
		}
	}
	return true
}

func SliceEq[T comparable](a []T, b []T) bool {
	return SliceEqWith(a, b, EqEq[T])
}

func SliceEqWith[T any, U any](a []T, b []U, pred func(a T, b U) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for nth := range a {
		if !pred(a[nth], b[nth]) {
			return false
		}
	}
	return true
}

// SliceContentEq checks a and b have the same elements, ignoring order.
//
// Duplicates count:
//
//	SliceContentEq([]string{"a", "b", "b"}, []string{"b", "a", "b"}) // => true
//	SliceContentEq([]string{"a", "b", "b"}, []string{"a", "a", "b"}) // => false
func SliceContentEq[T comparable](a, b []T) bool {
	return SliceContentEqWith(a, b, EqEq[T])
}

// SliceContentEqWith compares a and b as multisets, with equiv.
func SliceContentEqWith[S, T any](a []S, b []T, equiv BiPredicator[S, T]) bool {
	if len(a) != len(b) {
		return false
	}

	rest := make(map[int]*T, len(b))
	for i := range b {
		rest[i] = &b[i]
	}

NEXT_A:
	for _, va := range a {
		for k, vb := range rest {
			if equiv(va, *vb) {
				delete(rest, k)
				continue NEXT_A
			}
		}
		return false
	}
	return len(rest) == 0
}
