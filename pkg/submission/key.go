package submission

import (
	"fmt"
	"strconv"
)

// Key identifies one object in a submission session.
//
// A Key is either a placeholder (an object which is not persisted yet)
// or a persisted one (the @id path assigned by the portal).
//
// Key is comparable, so it can be used as a map key.
// The zero value is Root, the principal object of the session.
type Key struct {
	placeholder uint64
	persisted   string
}

// Root is the key of the principal object.
var Root = Key{}

// Placeholder returns a key for an object not persisted yet.
func Placeholder(n uint64) Key {
	return Key{placeholder: n}
}

// Persisted returns a key for an object which has an @id in the portal.
//
// It panics when id is empty, because empty @id is never assigned by the portal.
func Persisted(id string) Key {
	if id == "" {
		panic("persisted key requires non-empty id")
	}
	return Key{persisted: id}
}

// IsPlaceholder reports whether the object is not persisted yet.
func (k Key) IsPlaceholder() bool {
	return k.persisted == ""
}

// IsRoot reports whether k is the principal object.
func (k Key) IsRoot() bool {
	return k == Root
}

// Number returns the placeholder number. It is 0 for persisted keys.
func (k Key) Number() uint64 {
	return k.placeholder
}

// ID returns the persisted @id. It is "" for placeholder keys.
func (k Key) ID() string {
	return k.persisted
}

func (k Key) String() string {
	if k.IsPlaceholder() {
		return strconv.FormatUint(k.placeholder, 10)
	}
	return k.persisted
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKey parses the text form of Key.
//
// All-digit text is a placeholder. Any other non-empty text is a persisted @id.
func ParseKey(s string) (Key, error) {
	if s == "" {
		return Key{}, fmt.Errorf("empty key")
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return Placeholder(n), nil
	}
	return Persisted(s), nil
}
