package eip712

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DomainType is the name of the struct type hashed into the domain separator.
const DomainType = "EIP712Domain"

// Field is a single member of a struct type declaration.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TypeDefinition is the ordered member list of a struct type.
// Member order is part of the type and drives the encoding order.
type TypeDefinition []Field

// Types maps struct type names to their definitions.
type Types map[string]TypeDefinition

// domainFieldOrder is the canonical member order used when a document omits
// an explicit EIP712Domain declaration.
var domainFieldOrder = []Field{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
	{Name: "salt", Type: "bytes32"},
}

// InferDomainType builds an EIP712Domain definition from the members present
// in a domain value, in canonical order. Unknown members are ignored.
func InferDomainType(domain Value) TypeDefinition {
	def := TypeDefinition{}
	for _, f := range domainFieldOrder {
		if _, ok := domain.Field(f.Name); ok {
			def = append(def, f)
		}
	}
	return def
}

// splitArray strips the outermost array suffix from typ.
// length is -1 for dynamic arrays.
func splitArray(typ string) (elem string, length int, isArray bool, err error) {
	if !strings.HasSuffix(typ, "]") {
		return typ, 0, false, nil
	}
	open := strings.LastIndexByte(typ, '[')
	if open <= 0 {
		return "", 0, false, fmt.Errorf("invalid array type %q", typ)
	}
	elem = typ[:open]
	size := typ[open+1 : len(typ)-1]
	if size == "" {
		return elem, -1, true, nil
	}
	n, convErr := strconv.Atoi(size)
	if convErr != nil || n < 0 {
		return "", 0, false, fmt.Errorf("invalid array length in %q", typ)
	}
	return elem, n, true, nil
}

// baseType strips every array suffix from typ.
func baseType(typ string) string {
	if i := strings.IndexByte(typ, '['); i > 0 {
		return typ[:i]
	}
	return typ
}

// intWidth parses uintN / intN. A bare "uint" or "int" is 256 bits wide.
func intWidth(typ string) (bits int, signed bool, ok bool) {
	var digits string
	switch {
	case strings.HasPrefix(typ, "uint"):
		digits = typ[len("uint"):]
	case strings.HasPrefix(typ, "int"):
		digits, signed = typ[len("int"):], true
	default:
		return 0, false, false
	}
	if digits == "" {
		return 256, signed, true
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 8 || n > 256 || n%8 != 0 || strconv.Itoa(n) != digits {
		return 0, false, false
	}
	return n, signed, true
}

// fixedBytesWidth parses bytesN for N in 1..32.
func fixedBytesWidth(typ string) (int, bool) {
	digits, found := strings.CutPrefix(typ, "bytes")
	if !found || digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 || n > 32 || strconv.Itoa(n) != digits {
		return 0, false
	}
	return n, true
}

// IsAtomic reports whether typ (without array suffix) is a built-in type.
func IsAtomic(typ string) bool {
	switch typ {
	case "address", "bool", "string", "bytes":
		return true
	}
	if _, ok := fixedBytesWidth(typ); ok {
		return true
	}
	_, _, ok := intWidth(typ)
	return ok
}

// validate checks that every declaration has named, typed members.
func (t Types) validate() error {
	for name, def := range t {
		if name == "" {
			return fmt.Errorf("%w: empty type name", ErrMalformedDocument)
		}
		for i, f := range def {
			if f.Name == "" || f.Type == "" {
				return fmt.Errorf("%w: %s field #%d must have a name and a type", ErrMalformedDocument, name, i)
			}
		}
	}
	return nil
}

// Dependencies returns the struct types transitively referenced by name,
// sorted lexicographically and excluding name itself.
func (t Types) Dependencies(name string) ([]string, error) {
	if _, ok := t[name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}

	seen := map[string]bool{name: true}
	queue := []string{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, f := range t[current] {
			base := baseType(f.Type)
			if IsAtomic(base) {
				continue
			}
			if _, ok := t[base]; !ok {
				return nil, fmt.Errorf("%w: %s (referenced by %s.%s)", ErrUnknownType, base, current, f.Name)
			}
			if !seen[base] {
				seen[base] = true
				queue = append(queue, base)
			}
		}
	}

	reachable := make([]string, 0, len(seen))
	for dep := range seen {
		reachable = append(reachable, dep)
	}
	sort.Strings(reachable)
	if err := t.checkDirectCycles(reachable); err != nil {
		return nil, err
	}

	deps := make([]string, 0, len(reachable)-1)
	for _, dep := range reachable {
		if dep != name {
			deps = append(deps, dep)
		}
	}
	return deps, nil
}

const (
	unvisited = iota
	inProgress
	finished
)

type cycleFrame struct {
	name string
	next int
}

// checkDirectCycles walks the non-array member edges from each start type
// with an explicit stack. Reaching a type that is still in progress means the
// struct would contain itself, which has no finite encoding.
func (t Types) checkDirectCycles(starts []string) error {
	state := make(map[string]int, len(starts))
	for _, start := range starts {
		if state[start] != unvisited {
			continue
		}
		state[start] = inProgress
		stack := []cycleFrame{{name: start}}

		for len(stack) > 0 {
			top := len(stack) - 1
			fields := t[stack[top].name]
			if stack[top].next >= len(fields) {
				state[stack[top].name] = finished
				stack = stack[:top]
				continue
			}

			f := fields[stack[top].next]
			stack[top].next++
			if f.Type != baseType(f.Type) || IsAtomic(f.Type) {
				continue
			}
			if _, ok := t[f.Type]; !ok {
				continue
			}

			switch state[f.Type] {
			case inProgress:
				return fmt.Errorf("%w: %s.%s refers back to %s", ErrCyclicType, stack[top].name, f.Name, f.Type)
			case unvisited:
				state[f.Type] = inProgress
				stack = append(stack, cycleFrame{name: f.Type})
			}
		}
	}
	return nil
}

// encodeHead renders Name(type1 name1,type2 name2,...).
func (t Types) encodeHead(name string) string {
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte('(')
	for i, f := range t[name] {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(f.Type)
		sb.WriteByte(' ')
		sb.WriteString(f.Name)
	}
	sb.WriteByte(')')
	return sb.String()
}

// EncodeType returns the canonical type string of name: its own head
// followed by the heads of its dependencies in lexicographic order.
func (t Types) EncodeType(name string) (string, error) {
	deps, err := t.Dependencies(name)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(t.encodeHead(name))
	for _, dep := range deps {
		sb.WriteString(t.encodeHead(dep))
	}
	return sb.String(), nil
}

// TypeHash returns keccak256(EncodeType(name)).
func (t Types) TypeHash(name string) ([]byte, error) {
	return NewEncoder(t).TypeHash(name)
}

// HashStruct returns keccak256(TypeHash(name) ‖ EncodeData(name, v)).
func (t Types) HashStruct(name string, v Value) ([]byte, error) {
	return NewEncoder(t).HashStruct(name, v)
}

// EncodeData returns the concatenated 32-byte member encodings of v.
func (t Types) EncodeData(name string, v Value) ([]byte, error) {
	return NewEncoder(t).EncodeData(name, v)
}
