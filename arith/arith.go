// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package arith implements the integer arithmetic evaluator (spec §4.9):
// two's-complement 64-bit evaluation of a parsed syntax.ArithmExpr tree,
// reading and writing operands through the variable environment.
package arith

import (
	"strconv"
	"strings"

	"mvdan.cc/posh/syntax"
	"mvdan.cc/posh/variable"
)

// ErrorKind classifies an arithmetic evaluation failure (spec §4.9 "Error
// kinds").
type ErrorKind int

const (
	InvalidNumericConstant ErrorKind = iota
	InvalidCharacter
	IncompleteExpression
	UnclosedParenthesis
	QuestionWithoutColon
	ColonWithoutQuestion
	InvalidOperator
	InvalidVariableValue
	Overflow
	DivisionByZero
	LeftShiftingNegative
	ReverseShifting
	AssignmentToValue
)

var kindText = map[ErrorKind]string{
	InvalidNumericConstant: "invalid numeric constant",
	InvalidCharacter:       "invalid character",
	IncompleteExpression:   "incomplete expression",
	UnclosedParenthesis:    "unclosed parenthesis",
	QuestionWithoutColon:   "? without matching :",
	ColonWithoutQuestion:   ": without matching ?",
	InvalidOperator:        "invalid operator",
	InvalidVariableValue:   "invalid variable value",
	Overflow:               "overflow",
	DivisionByZero:         "division by zero",
	LeftShiftingNegative:   "left shifting a negative value",
	ReverseShifting:        "shifting by a negative amount",
	AssignmentToValue:      "assignment to a non-variable operand",
}

// Error reports a failed arithmetic evaluation, blaming a source location
// the way every other component's structured error does (spec §7).
type Error struct {
	Kind   ErrorKind
	Pos    syntax.Pos
	Detail string // extra context: the bad token text, the variable name, ...
}

func (e *Error) Error() string {
	msg := kindText[e.Kind]
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func errAt(kind ErrorKind, pos syntax.Pos, detail string) *Error {
	return &Error{Kind: kind, Pos: pos, Detail: detail}
}

// maxNameRefDepth bounds the variable-name-chases-variable-name recursion a
// bare identifier operand can trigger, mirroring the teacher's guard against
// a self-referential variable looping forever.
const maxNameRefDepth = 100

// Eval evaluates expr against env, honoring unsetIsError the way spec §4.9
// requires: when true, a reference to an unset variable is an error instead
// of defaulting to 0.
func Eval(env *variable.Env, expr syntax.ArithmExpr, unsetIsError bool) (int64, error) {
	ev := &evaluator{env: env, unsetIsError: unsetIsError}
	return ev.eval(expr)
}

type evaluator struct {
	env          *variable.Env
	unsetIsError bool
}

func (ev *evaluator) eval(expr syntax.ArithmExpr) (int64, error) {
	switch x := expr.(type) {
	case *syntax.Word:
		return ev.evalWord(x)
	case *syntax.ParenArithm:
		return ev.eval(x.X)
	case *syntax.UnaryArithm:
		return ev.evalUnary(x)
	case *syntax.BinaryArithm:
		return ev.evalBinary(x)
	default:
		return 0, errAt(InvalidOperator, 0, "")
	}
}

// literalName returns the bare identifier an operand denotes, if any; used
// to tell "x" (an identifier, usable as an assignment target) from "3+4" (an
// expression, which is not).
func literalName(expr syntax.ArithmExpr) (string, bool) {
	w, ok := expr.(*syntax.Word)
	if !ok || len(w.Parts) != 1 {
		return "", false
	}
	lit, ok := w.Parts[0].(*syntax.Lit)
	if !ok {
		return "", false
	}
	if !syntax.ValidName(lit.Value) {
		return "", false
	}
	return lit.Value, true
}

func (ev *evaluator) evalWord(w *syntax.Word) (int64, error) {
	text := litText(w)
	// A bare identifier reads (and may chase) a variable; anything else
	// must parse as a numeric constant.
	if syntax.ValidName(text) {
		name := text
		seen := 0
		for {
			vr, ok := ev.env.Get(name)
			if !ok || !vr.IsSet() {
				if ev.unsetIsError {
					return 0, errAt(InvalidVariableValue, w.Pos(), name+": unset")
				}
				return 0, nil
			}
			val := vr.String()
			if syntax.ValidName(val) {
				seen++
				if seen >= maxNameRefDepth {
					return 0, errAt(InvalidVariableValue, w.Pos(), name+": name reference cycle")
				}
				name = val
				continue
			}
			return parseConstant(val, w.Pos())
		}
	}
	return parseConstant(text, w.Pos())
}

// parseConstant parses an integer literal per spec §4.9: decimal, a leading
// 0 for octal, and 0x/0X for hex.
func parseConstant(s string, pos syntax.Pos) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		s = s[1:]
	}
	if s == "" {
		return 0, errAt(InvalidNumericConstant, pos, s)
	}
	base := 10
	digits := s
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		base = 16
		digits = s[2:]
	case len(s) > 1 && s[0] == '0':
		base = 8
		digits = s[1:]
	}
	if digits == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		if strings.Contains(err.Error(), "range") {
			return 0, errAt(Overflow, pos, s)
		}
		return 0, errAt(InvalidNumericConstant, pos, s)
	}
	v := int64(n)
	if neg {
		v = -v
	}
	return v, nil
}

func litText(w *syntax.Word) string {
	var sb strings.Builder
	for _, part := range w.Parts {
		if lit, ok := part.(*syntax.Lit); ok {
			sb.WriteString(lit.Value)
		}
	}
	return sb.String()
}

func (ev *evaluator) evalUnary(u *syntax.UnaryArithm) (int64, error) {
	switch u.Op {
	case syntax.Inc, syntax.Dec:
		name, ok := literalName(u.X)
		if !ok {
			return 0, errAt(AssignmentToValue, u.Pos(), "")
		}
		old, err := ev.eval(u.X)
		if err != nil {
			return 0, err
		}
		delta := int64(1)
		if u.Op == syntax.Dec {
			delta = -1
		}
		next := old + delta
		if err := ev.assign(name, next, u.OpPos); err != nil {
			return 0, err
		}
		if u.Post {
			return old, nil
		}
		return next, nil
	}
	val, err := ev.eval(u.X)
	if err != nil {
		return 0, err
	}
	switch u.Op {
	case syntax.Not:
		return boolInt(val == 0), nil
	case syntax.BitNegation:
		return ^val, nil
	case syntax.Plus:
		return val, nil
	case syntax.Minus:
		return -val, nil
	default:
		return 0, errAt(InvalidOperator, u.OpPos, "")
	}
}

func (ev *evaluator) evalBinary(b *syntax.BinaryArithm) (int64, error) {
	op := b.Op
	switch op {
	case syntax.Assgn, syntax.AddAssgn, syntax.SubAssgn, syntax.MulAssgn,
		syntax.QuoAssgn, syntax.RemAssgn, syntax.AndAssgn, syntax.OrAssgn,
		syntax.XorAssgn, syntax.ShlAssgn, syntax.ShrAssgn:
		return ev.evalAssign(b, op)
	case syntax.TernQuest:
		cond, err := ev.eval(b.X)
		if err != nil {
			return 0, err
		}
		branches, ok := b.Y.(*syntax.BinaryArithm)
		if !ok || branches.Op != syntax.TernColon {
			return 0, errAt(QuestionWithoutColon, b.OpPos, "")
		}
		if cond != 0 {
			return ev.eval(branches.X)
		}
		return ev.eval(branches.Y)
	case syntax.TernColon:
		// Reached only if a ':' appears without an enclosing '?': the
		// parser always nests TernColon inside a TernQuest's Y operand.
		return 0, errAt(ColonWithoutQuestion, b.OpPos, "")
	}

	left, err := ev.eval(b.X)
	if err != nil {
		return 0, err
	}
	// Comma discards the left operand but must still evaluate it for its
	// side effects (assignments), matching POSIX sequence-point semantics.
	if op == syntax.Comma {
		return ev.eval(b.Y)
	}
	right, err := ev.eval(b.Y)
	if err != nil {
		return 0, err
	}
	return binOp(op, left, right, b.OpPos)
}

func (ev *evaluator) evalAssign(b *syntax.BinaryArithm, op syntax.Token) (int64, error) {
	name, ok := literalName(b.X)
	if !ok {
		return 0, errAt(AssignmentToValue, b.OpPos, "")
	}
	arg, err := ev.eval(b.Y)
	if err != nil {
		return 0, err
	}
	if op == syntax.Assgn {
		if err := ev.assign(name, arg, b.OpPos); err != nil {
			return 0, err
		}
		return arg, nil
	}
	cur, err := ev.eval(b.X)
	if err != nil {
		return 0, err
	}
	var plain syntax.Token
	switch op {
	case syntax.AddAssgn:
		plain = syntax.Add
	case syntax.SubAssgn:
		plain = syntax.Sub
	case syntax.MulAssgn:
		plain = syntax.Mul
	case syntax.QuoAssgn:
		plain = syntax.Quo
	case syntax.RemAssgn:
		plain = syntax.Rem
	case syntax.AndAssgn:
		plain = syntax.And
	case syntax.OrAssgn:
		plain = syntax.Or
	case syntax.XorAssgn:
		plain = syntax.Xor
	case syntax.ShlAssgn:
		plain = syntax.Shl
	case syntax.ShrAssgn:
		plain = syntax.Shr
	}
	next, err := binOp(plain, cur, arg, b.OpPos)
	if err != nil {
		return 0, err
	}
	if err := ev.assign(name, next, b.OpPos); err != nil {
		return 0, err
	}
	return next, nil
}

func (ev *evaluator) assign(name string, val int64, pos syntax.Pos) error {
	_, err := ev.env.Assign(name, variable.Scalar(strconv.FormatInt(val, 10)), pos, variable.Global)
	if ro, ok := err.(*variable.ReadOnlyError); ok {
		return errAt(AssignmentToValue, pos, ro.Name)
	}
	return err
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func binOp(op syntax.Token, x, y int64, pos syntax.Pos) (int64, error) {
	switch op {
	case syntax.Add:
		r := x + y
		if (y > 0 && r < x) || (y < 0 && r > x) {
			return 0, errAt(Overflow, pos, "")
		}
		return r, nil
	case syntax.Sub:
		r := x - y
		if (y < 0 && r < x) || (y > 0 && r > x) {
			return 0, errAt(Overflow, pos, "")
		}
		return r, nil
	case syntax.Mul:
		r := x * y
		if x != 0 && (r/x != y || (x == -1 && y == minInt64)) {
			return 0, errAt(Overflow, pos, "")
		}
		return r, nil
	case syntax.Quo:
		if y == 0 {
			return 0, errAt(DivisionByZero, pos, "")
		}
		if x == minInt64 && y == -1 {
			return 0, errAt(Overflow, pos, "")
		}
		return x / y, nil
	case syntax.Rem:
		if y == 0 {
			return 0, errAt(DivisionByZero, pos, "")
		}
		if x == minInt64 && y == -1 {
			return 0, nil
		}
		return x % y, nil
	case syntax.Pow:
		return intPow(x, y), nil
	case syntax.Eql:
		return boolInt(x == y), nil
	case syntax.Neq:
		return boolInt(x != y), nil
	case syntax.Lss:
		return boolInt(x < y), nil
	case syntax.Gtr:
		return boolInt(x > y), nil
	case syntax.Leq:
		return boolInt(x <= y), nil
	case syntax.Geq:
		return boolInt(x >= y), nil
	case syntax.And:
		return x & y, nil
	case syntax.Or:
		return x | y, nil
	case syntax.Xor:
		return x ^ y, nil
	case syntax.AndArit:
		return boolInt(x != 0 && y != 0), nil
	case syntax.OrArit:
		return boolInt(x != 0 || y != 0), nil
	case syntax.Shl:
		if x < 0 {
			return 0, errAt(LeftShiftingNegative, pos, "")
		}
		if y < 0 {
			return 0, errAt(ReverseShifting, pos, "")
		}
		if y >= 64 {
			return 0, nil
		}
		return x << uint(y), nil
	case syntax.Shr:
		if y < 0 {
			return 0, errAt(ReverseShifting, pos, "")
		}
		if y >= 64 {
			if x < 0 {
				return -1, nil
			}
			return 0, nil
		}
		return x >> uint(y), nil
	default:
		return 0, errAt(InvalidOperator, pos, "")
	}
}

const minInt64 = -1 << 63

// intPow implements exponentiation by squaring; negative exponents are
// clamped to 0 the way Bash's arithmetic treats them (no rational results
// in an integer-only evaluator).
func intPow(a, b int64) int64 {
	if b < 0 {
		return 0
	}
	p := int64(1)
	for b > 0 {
		if b&1 != 0 {
			p *= a
		}
		b >>= 1
		a *= a
	}
	return p
}
