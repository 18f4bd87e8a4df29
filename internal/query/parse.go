package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

type rawNode struct {
	Where          map[string]json.RawMessage `json:"where"`
	Include        json.RawMessage            `json:"include"`
	Counts         json.RawMessage            `json:"counts"`
	OrderBy        []string                   `json:"order_by"`
	Limit          int                        `json:"limit"`
	IncludeDeleted bool                       `json:"include_deleted"`
}

// ParseInclude decodes an untyped expansion such as
//
//	{"category": true, "children": {"where": {"name": {"contains": "shoe"}}, "include": {"products": true}}}
//
// into an Include tree. A relation set to true is terminal, false drops it, and
// anything other than a boolean or an object fails with ErrMalformedInclude.
func ParseInclude(raw []byte) (Include, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInclude, err)
	}
	inc := make(Include, len(fields))
	for name, value := range fields {
		node, keep, err := parseNode(name, value)
		if err != nil {
			return nil, err
		}
		if keep {
			inc[name] = node
		}
	}
	return inc, nil
}

func parseNode(name string, value json.RawMessage) (*Node, bool, error) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return nil, false, fmt.Errorf("%w: relation %q has no value", ErrMalformedInclude, name)
	}
	switch value[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(value, &b); err != nil {
			return nil, false, fmt.Errorf("%w: relation %q: %v", ErrMalformedInclude, name, err)
		}
		return Terminal(), b, nil
	case '{':
	default:
		return nil, false, fmt.Errorf("%w: relation %q must be a boolean or an object", ErrMalformedInclude, name)
	}

	var rn rawNode
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rn); err != nil {
		return nil, false, fmt.Errorf("%w: relation %q: %v", ErrMalformedInclude, name, err)
	}
	if rn.Limit < 0 {
		return nil, false, fmt.Errorf("%w: relation %q: negative limit", ErrMalformedInclude, name)
	}

	where, err := parseWhere(rn.Where)
	if err != nil {
		return nil, false, fmt.Errorf("relation %q: %w", name, err)
	}
	nested, err := ParseInclude(rn.Include)
	if err != nil {
		return nil, false, err
	}
	counts, err := ParseInclude(rn.Counts)
	if err != nil {
		return nil, false, err
	}
	return &Node{
		Where:          where,
		Include:        nested,
		Counts:         counts,
		OrderBy:        rn.OrderBy,
		Limit:          rn.Limit,
		IncludeDeleted: rn.IncludeDeleted,
	}, true, nil
}

var knownOps = map[Op]bool{
	OpEq: true, OpNotEq: true, OpIn: true, OpIsNull: true, OpNotNull: true,
	OpGt: true, OpGte: true, OpLt: true, OpLte: true, OpContains: true,
}

// parseWhere accepts {"field": value} for equality and {"field": {"op": value}} otherwise.
func parseWhere(fields map[string]json.RawMessage) (Where, error) {
	var w Where
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)

	for _, field := range names {
		value := bytes.TrimSpace(fields[field])
		if len(value) > 0 && value[0] == '{' {
			var ops map[Op]json.RawMessage
			if err := json.Unmarshal(value, &ops); err != nil {
				return Where{}, fmt.Errorf("%w: field %q: %v", ErrMalformedInclude, field, err)
			}
			keys := make([]string, 0, len(ops))
			for op := range ops {
				keys = append(keys, string(op))
			}
			sort.Strings(keys)
			for _, k := range keys {
				op := Op(k)
				if !knownOps[op] {
					return Where{}, fmt.Errorf("%w: field %q: unknown operator %q", ErrMalformedInclude, field, k)
				}
				var v any
				if err := json.Unmarshal(ops[op], &v); err != nil {
					return Where{}, fmt.Errorf("%w: field %q: %v", ErrMalformedInclude, field, err)
				}
				if op == OpIsNull || op == OpNotNull {
					v = nil
				}
				w = w.And(Cond{Field: field, Op: op, Value: v})
			}
			continue
		}
		var v any
		if err := json.Unmarshal(value, &v); err != nil {
			return Where{}, fmt.Errorf("%w: field %q: %v", ErrMalformedInclude, field, err)
		}
		if v == nil {
			w = w.And(IsNull(field))
			continue
		}
		w = w.And(Eq(field, v))
	}
	return w, nil
}
