//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package payload models inbound request bodies as a tagged tree so they can be scanned
// for planted decoy values without dynamic type inspection at scan time.
//
// A [Node] is either a [StringLeaf] or a [MappingNode].  Decoded JSON is converted with
// [FromValue]: objects become mappings, strings become leaves, and every other value
// (numbers, booleans, arrays, null) is coerced to its string form so a decoy can still
// be matched inside it.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Node is a payload value.
type Node interface {
	isNode()
}

// StringLeaf is a terminal string value.
type StringLeaf string

// MappingNode maps string keys to nested nodes.
type MappingNode map[string]Node

func (StringLeaf) isNode()  {}
func (MappingNode) isNode() {}

// FromValue converts a decoded JSON value into a [Node].
func FromValue(v interface{}) Node {
	switch val := v.(type) {
	case Node:
		return val
	case string:
		return StringLeaf(val)
	case map[string]interface{}:
		m := make(MappingNode, len(val))
		for k, child := range val {
			m[k] = FromValue(child)
		}
		return m
	case map[string]string:
		m := make(MappingNode, len(val))
		for k, child := range val {
			m[k] = StringLeaf(child)
		}
		return m
	case nil:
		return StringLeaf("<nil>")
	case json.Number:
		return StringLeaf(val.String())
	default:
		return StringLeaf(fmt.Sprint(val))
	}
}

// Parse decodes a JSON document into a [Node].  Numbers keep their literal text.
func Parse(data []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return FromValue(v), nil
}

// Walk visits every leaf string depth first, mapping keys in sorted order, until visit
// returns true.  It reports whether any visit returned true.
func Walk(n Node, visit func(string) bool) bool {
	switch node := n.(type) {
	case StringLeaf:
		return visit(string(node))
	case MappingNode:
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if Walk(node[k], visit) {
				return true
			}
		}
	}
	return false
}
