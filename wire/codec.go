package wire

import (
	"errors"
	"fmt"
	"strings"
)

// ErrShapeMismatch is returned by SerializeLevel/ParseLevel when a Schema's
// fan-out does not match the TypeC/string being serialized or parsed. The
// protocol package maps this to its NegotiationMalformed error.
var ErrShapeMismatch = errors.New("wire: schema/data shape mismatch")

// ErrMaxDepthExceeded is returned when a Schema nests deeper than the three
// delimiters this codec assigns by depth (':', '/', '%').
var ErrMaxDepthExceeded = errors.New("wire: schema nests deeper than the supported 3 levels")

var delimsByDepth = [...]byte{depth0Delim, depth1Delim, depth2Delim}

func delimAt(depth int) (byte, error) {
	if depth < 0 || depth >= len(delimsByDepth) {
		return 0, ErrMaxDepthExceeded
	}
	return delimsByDepth[depth], nil
}

// SerializeLevel renders data against schema starting at the given nesting
// depth. A Leaf/Single pair becomes the escaped leaf string; a Multi/Multi
// pair recurses one depth deeper per child and joins the results with the
// delimiter assigned to depth.
func SerializeLevel(schema Schema, data TypeC, depth int) (string, error) {
	if schema.IsLeaf() {
		if !data.IsSingle() {
			return "", fmt.Errorf("%w: schema is a leaf but data is a Multi", ErrShapeMismatch)
		}
		return Escape(data.Value()), nil
	}
	if data.IsSingle() {
		return "", fmt.Errorf("%w: schema is a Multi but data is a Single", ErrShapeMismatch)
	}
	if len(schema.children) != len(data.children) {
		return "", fmt.Errorf("%w: schema wants %d children, data has %d", ErrShapeMismatch, len(schema.children), len(data.children))
	}
	delim, err := delimAt(depth)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(schema.children))
	for i := range schema.children {
		part, err := SerializeLevel(schema.children[i], data.children[i], depth+1)
		if err != nil {
			return "", err
		}
		parts[i] = part
	}
	return strings.Join(parts, string(delim)), nil
}

// ParseLevel is the inverse of SerializeLevel. When a Multi schema's
// delimiter isn't present in the input but a deeper one is, the singleton
// is treated as transparent and parsing descends one depth further before
// splitting, matching a producer that omitted an empty intermediate level.
func ParseLevel(schema Schema, input string, depth int) (TypeC, error) {
	if schema.IsLeaf() {
		return Single(Unescape(input)), nil
	}
	delim, err := delimAt(depth)
	if err != nil {
		return TypeC{}, err
	}
	parts := strings.Split(input, string(delim))
	effectiveDepth := depth
	if len(parts) == 1 {
		if nextDelim, nextErr := delimAt(depth + 1); nextErr == nil && strings.ContainsRune(input, rune(nextDelim)) {
			effectiveDepth = depth + 1
			parts = strings.Split(input, string(nextDelim))
		}
	}
	if len(parts) != len(schema.children) {
		return TypeC{}, fmt.Errorf("%w: expected %d parts at depth %d, got %d", ErrShapeMismatch, len(schema.children), effectiveDepth, len(parts))
	}
	children := make([]TypeC, len(parts))
	for i, part := range parts {
		child, err := ParseLevel(schema.children[i], part, effectiveDepth+1)
		if err != nil {
			return TypeC{}, err
		}
		children[i] = child
	}
	return MultiValue(children...), nil
}

// Serialize and Parse are the depth-0 entry points.
func Serialize(schema Schema, data TypeC) (string, error) {
	return SerializeLevel(schema, data, 0)
}

func Parse(schema Schema, input string) (TypeC, error) {
	return ParseLevel(schema, input, 0)
}
