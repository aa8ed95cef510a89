package expressions

import (
	"fmt"
	"strings"
)

// ConditionOp is the operator of a step condition.
type ConditionOp string

const (
	OpExists ConditionOp = "exists"
	OpEquals ConditionOp = "=="
)

// Condition is a parsed step condition. Two forms exist:
//
//	$name exists
//	$name == literal
//
// The literal may be wrapped in single or double quotes.
type Condition struct {
	Variable string
	Op       ConditionOp
	Literal  string
}

// ParseCondition parses a step condition. An empty condition parses to nil
// with no error and means "always run".
func ParseCondition(s string) (*Condition, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	if left, right, ok := strings.Cut(s, "=="); ok {
		name, err := conditionVariable(left)
		if err != nil {
			return nil, err
		}
		return &Condition{Variable: name, Op: OpEquals, Literal: strings.Trim(strings.TrimSpace(right), `"'`)}, nil
	}

	fields := strings.Fields(s)
	if len(fields) == 2 && fields[1] == string(OpExists) {
		name, err := conditionVariable(fields[0])
		if err != nil {
			return nil, err
		}
		return &Condition{Variable: name, Op: OpExists}, nil
	}

	return nil, fmt.Errorf("unsupported condition %q: expected \"$name exists\" or \"$name == value\"", s)
}

func conditionVariable(s string) (string, error) {
	name := strings.TrimPrefix(strings.TrimSpace(s), "$")
	if !isIdentifier(name) {
		return "", fmt.Errorf("invalid variable reference %q", strings.TrimSpace(s))
	}
	return name, nil
}

// Evaluate tests the condition against a variable snapshot. A variable that
// is absent compares as the empty string.
func (c *Condition) Evaluate(vars map[string]any) bool {
	if c == nil {
		return true
	}
	v, ok := vars[c.Variable]
	switch c.Op {
	case OpExists:
		return ok
	case OpEquals:
		if !ok {
			return c.Literal == ""
		}
		return Stringify(v) == c.Literal
	}
	return true
}

// EvaluateCondition reports whether a step guarded by cond should run.
// Empty and unparseable conditions evaluate to true: a malformed condition
// never blocks a step. Use ParseCondition to surface the parse error.
func EvaluateCondition(cond string, vars map[string]any) bool {
	c, err := ParseCondition(cond)
	if err != nil {
		return true
	}
	return c.Evaluate(vars)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
