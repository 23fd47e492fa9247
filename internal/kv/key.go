package kv

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Key is an order-preserving encoding of a primary or index key.
//
// Byte-wise comparison of two Keys matches the logical ordering:
// numbers sort before strings, strings sort by UTF-8 bytes, and compound
// keys sort element by element. The zero Key is invalid.
type Key string

const (
	tagNumber   byte = 0x10
	tagString   byte = 0x20
	tagCompound byte = 0x30
)

// Number returns the key for a numeric value.
// Positive and negative zero encode identically.
func Number(f float64) Key {
	if f == 0 {
		f = 0
	}
	bits := math.Float64bits(f)
	if bits&(1<<63) == 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	var b [9]byte
	b[0] = tagNumber
	binary.BigEndian.PutUint64(b[1:], bits)
	return Key(b[:])
}

// Int returns the key for an integer value.
// Integers are stored as float64, so values beyond 2^53 lose precision.
func Int(i int64) Key {
	return Number(float64(i))
}

// String returns the key for a string value.
func String(s string) Key {
	return Key(string(tagString) + s)
}

// Compound returns a key made of several parts, compared element-wise.
func Compound(parts ...Key) Key {
	var buf bytes.Buffer
	buf.WriteByte(tagCompound)
	for _, p := range parts {
		for i := 0; i < len(p); i++ {
			c := p[i]
			buf.WriteByte(c)
			if c == 0x00 {
				buf.WriteByte(0xFF)
			}
		}
		buf.WriteByte(0x00)
		buf.WriteByte(0x00)
	}
	return Key(buf.String())
}

// IsZero reports whether k is the invalid zero key.
func (k Key) IsZero() bool {
	return len(k) == 0
}

// Float64 returns the numeric value of a number key.
func (k Key) Float64() (float64, bool) {
	if len(k) != 9 || k[0] != tagNumber {
		return 0, false
	}
	bits := binary.BigEndian.Uint64([]byte(k[1:]))
	if bits&(1<<63) != 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits), true
}

// Int64 returns the integer value of a number key.
func (k Key) Int64() (int64, bool) {
	f, ok := k.Float64()
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// Str returns the value of a string key.
func (k Key) Str() (string, bool) {
	if len(k) == 0 || k[0] != tagString {
		return "", false
	}
	return string(k[1:]), true
}

// Parts splits a compound key back into its elements.
func (k Key) Parts() ([]Key, bool) {
	if len(k) == 0 || k[0] != tagCompound {
		return nil, false
	}
	var parts []Key
	var cur []byte
	b := []byte(k[1:])
	for i := 0; i < len(b); i++ {
		if b[i] != 0x00 {
			cur = append(cur, b[i])
			continue
		}
		if i+1 >= len(b) {
			return nil, false
		}
		switch b[i+1] {
		case 0xFF:
			cur = append(cur, 0x00)
		case 0x00:
			parts = append(parts, Key(cur))
			cur = nil
		default:
			return nil, false
		}
		i++
	}
	if len(cur) != 0 {
		return nil, false
	}
	return parts, true
}

// String renders the key for logs and error messages.
func (k Key) String() string {
	if f, ok := k.Float64(); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if s, ok := k.Str(); ok {
		return strconv.Quote(s)
	}
	if parts, ok := k.Parts(); ok {
		strs := make([]string, len(parts))
		for i, p := range parts {
			strs[i] = p.String()
		}
		return "[" + strings.Join(strs, ", ") + "]"
	}
	return fmt.Sprintf("<invalid key %x>", string(k))
}

// KeyOf converts a Go or JSON-decoded value into a Key.
// Supported: numbers, json.Number, strings, Key and slices of those (compound).
func KeyOf(v any) (Key, error) {
	switch x := v.(type) {
	case Key:
		if x.IsZero() {
			return "", fmt.Errorf("%w: zero key", ErrInvalidKey)
		}
		return x, nil
	case string:
		return String(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return numberKey(f)
	case float64:
		return numberKey(x)
	case float32:
		return numberKey(float64(x))
	case int:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint32:
		return Int(int64(x)), nil
	case []any:
		parts := make([]Key, len(x))
		for i, p := range x {
			k, err := KeyOf(p)
			if err != nil {
				return "", err
			}
			parts[i] = k
		}
		return Compound(parts...), nil
	default:
		return "", fmt.Errorf("%w: unsupported type %T", ErrInvalidKey, v)
	}
}

func numberKey(f float64) (Key, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, f)
	}
	return Number(f), nil
}

// decodeDoc parses a JSON object, keeping numbers as json.Number.
func decodeDoc(doc []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: document is not an object", ErrInvalidDocument)
	}
	return fields, nil
}

// lookup walks a dotted key path through nested objects.
func lookup(fields map[string]any, path string) (any, bool) {
	var cur any = fields
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// keyAt extracts the key at paths. A single path yields a simple key;
// several paths yield a compound key. ok is false when any part is
// missing or null.
func keyAt(fields map[string]any, paths []string) (k Key, ok bool, err error) {
	if len(paths) == 1 {
		v, found := lookup(fields, paths[0])
		if !found {
			return "", false, nil
		}
		k, err = KeyOf(v)
		return k, err == nil, err
	}
	parts := make([]Key, len(paths))
	for i, p := range paths {
		v, found := lookup(fields, p)
		if !found {
			return "", false, nil
		}
		part, err := KeyOf(v)
		if err != nil {
			return "", false, err
		}
		parts[i] = part
	}
	return Compound(parts...), true, nil
}
