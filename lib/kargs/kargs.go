// Package kargs parses and assembles kernel command lines. It supports
// key-only switches and key=value pairs with quote handling, and treats
// dashes and underscores in keys as equivalent, matching the kernel's own
// parameter handling.
package kargs

import (
	"bytes"
	"fmt"
	"os"
)

const (
	// InitrdArgPrefix prefixes arguments consumed by dracut.
	InitrdArgPrefix = "rd."

	// RootFlags is the kernel argument configuring rootfs mount flags.
	RootFlags = "rootflags"
)

// Cmdline is a raw kernel command line.
type Cmdline []byte

// FromProc reads the kernel command line of the running system.
func FromProc() (Cmdline, error) {
	data, err := os.ReadFile("/proc/cmdline")
	if err != nil {
		return nil, fmt.Errorf("read /proc/cmdline: %w", err)
	}
	return Cmdline(data), nil
}

// Parameter is a single kernel command line parameter.
type Parameter struct {
	// Raw is the full original token.
	Raw []byte
	// Key is the parameter key as raw bytes.
	Key []byte
	// Value is the parameter value with outermost quotes stripped.
	// Only meaningful when HasValue is set.
	Value []byte
	// HasValue distinguishes "key=" and "key=value" from a bare switch.
	HasValue bool
}

// parseOne consumes one parameter from input. It returns nil when input is
// empty or whitespace only. The second return value is the unconsumed rest.
func parseOne(input []byte) (*Parameter, []byte) {
	input = bytes.TrimLeft(input, " \t\n\f\r")
	if len(input) == 0 {
		return nil, input
	}

	// Whitespace inside double quotes does not terminate the token.
	inQuotes := false
	end := len(input)
	for i, c := range input {
		if c == '"' {
			inQuotes = !inQuotes
		}
		if !inQuotes && isSpace(c) {
			end = i
			break
		}
	}

	token, rest := input[:end], input[end:]

	eq := bytes.IndexByte(token, '=')
	if eq < 0 {
		return &Parameter{Raw: token, Key: token}, rest
	}

	key, value := token[:eq], token[eq+1:]
	// Only the first and last double quotes are stripped.
	value = bytes.TrimPrefix(value, []byte(`"`))
	value = bytes.TrimSuffix(value, []byte(`"`))

	return &Parameter{Raw: token, Key: key, Value: value, HasValue: true}, rest
}

// isSpace matches the trim set in parseOne. Vertical tab is an ordinary
// byte, not a separator.
func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\f', '\r':
		return true
	}
	return false
}

// KeyEqual compares two parameter keys, with dashes and underscores treated
// as equivalent. The comparison is case-sensitive.
func KeyEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if dedash(a[i]) != dedash(b[i]) {
			return false
		}
	}
	return true
}

func dedash(c byte) byte {
	if c == '-' {
		return '_'
	}
	return c
}

// Equal reports whether two parameters have equal keys and values. Raw
// spellings are not compared so that dash and underscore variants match.
func (p Parameter) Equal(other Parameter) bool {
	return KeyEqual(p.Key, other.Key) &&
		p.HasValue == other.HasValue &&
		bytes.Equal(p.Value, other.Value)
}

// Parameters parses the whole command line.
func (c Cmdline) Parameters() []Parameter {
	var params []Parameter
	rest := []byte(c)
	for {
		p, r := parseOne(rest)
		if p == nil {
			return params
		}
		params = append(params, *p)
		rest = r
	}
}

// Find returns the first parameter matching key, if any.
func (c Cmdline) Find(key string) (Parameter, bool) {
	for _, p := range c.Parameters() {
		if KeyEqual(p.Key, []byte(key)) {
			return p, true
		}
	}
	return Parameter{}, false
}

// ValueOf returns the value of the first parameter matching key. The second
// return value is false when the key is absent or is a bare switch.
func (c Cmdline) ValueOf(key string) ([]byte, bool) {
	p, ok := c.Find(key)
	if !ok || !p.HasValue {
		return nil, false
	}
	return p.Value, true
}

// RequireValueOf is ValueOf for arguments that must be present.
func (c Cmdline) RequireValueOf(key string) ([]byte, error) {
	v, ok := c.ValueOf(key)
	if !ok {
		return nil, fmt.Errorf("failed to find kernel argument %q", key)
	}
	return v, nil
}

// FindAllWithPrefix returns every parameter whose key starts with prefix.
func (c Cmdline) FindAllWithPrefix(prefix string) []Parameter {
	var params []Parameter
	for _, p := range c.Parameters() {
		if bytes.HasPrefix(p.Key, []byte(prefix)) {
			params = append(params, p)
		}
	}
	return params
}

// Append returns a new command line with the given raw arguments appended.
func (c Cmdline) Append(args ...string) Cmdline {
	out := bytes.TrimRight([]byte(c), " \t\n")
	for _, arg := range args {
		if len(out) > 0 {
			out = append(out, ' ')
		}
		out = append(out, arg...)
	}
	return Cmdline(out)
}

func (c Cmdline) String() string {
	return string(c)
}
