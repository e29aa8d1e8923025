package schema

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/nifkit/pkg/nif"
)

// Env supplies the values an expression can refer to.
type Env interface {
	// Version is the version of the stream being read or written.
	Version() nif.FormatVersion
	// Value returns a sibling field already decoded in the current scope.
	Value(name string) (int64, bool)
	// Arg is the argument passed into the enclosing struct.
	Arg() int64
}

// Expr is a compiled predicate or length expression.
//
// Grammar, loosest first:
//
//	expr    = and { "||" and }
//	and     = cmp { "&&" cmp }
//	cmp     = operand [ ("==" | "!=" | ">=" | "<=" | ">" | "<") operand ]
//	operand = atom { "&" atom }
//	atom    = [ "!" ] ( number | 0xHEX | a.b.c.d | ver | user | bsver | ARG | field name )
//
// Field names may contain spaces. A field absent from the scope is 0.
type Expr struct {
	src   string
	root  node
	ident string
}

type node interface {
	eval(Env) int64
	idents(func(string))
}

var versionLiteral = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)

// ParseExpr compiles src.
func ParseExpr(src string) (*Expr, error) {
	if strings.ContainsAny(src, "()") {
		return nil, errors.Newf("expression %q: parentheses are not supported", src)
	}
	root, err := parseOr(src)
	if err != nil {
		return nil, errors.Wrapf(err, "expression %q", src)
	}
	e := &Expr{src: src, root: root}
	if id, ok := root.(identNode); ok {
		e.ident = string(id)
	}
	return e, nil
}

func (e *Expr) String() string { return e.src }

// Eval computes the expression's integer value.
func (e *Expr) Eval(env Env) int64 { return e.root.eval(env) }

// Bool reports whether the expression is non-zero.
func (e *Expr) Bool(env Env) bool { return e.root.eval(env) != 0 }

// Ident returns the field name when the whole expression is a bare sibling
// reference.
func (e *Expr) Ident() (string, bool) { return e.ident, e.ident != "" }

// Idents lists every sibling field the expression reads.
func (e *Expr) Idents() []string {
	var out []string
	e.root.idents(func(s string) { out = append(out, s) })
	return out
}

func parseOr(s string) (node, error) {
	parts := strings.Split(s, "||")
	if len(parts) == 1 {
		return parseAnd(s)
	}
	var terms []node
	for _, p := range parts {
		n, err := parseAnd(p)
		if err != nil {
			return nil, err
		}
		terms = append(terms, n)
	}
	return orNode(terms), nil
}

func parseAnd(s string) (node, error) {
	parts := strings.Split(s, "&&")
	if len(parts) == 1 {
		return parseCmp(s)
	}
	var terms []node
	for _, p := range parts {
		n, err := parseCmp(p)
		if err != nil {
			return nil, err
		}
		terms = append(terms, n)
	}
	return andNode(terms), nil
}

func parseCmp(s string) (node, error) {
	for i := 0; i < len(s); i++ {
		var op string
		switch {
		case i+1 < len(s) && (s[i:i+2] == "==" || s[i:i+2] == "!=" || s[i:i+2] == ">=" || s[i:i+2] == "<="):
			op = s[i : i+2]
		case s[i] == '>' || s[i] == '<':
			op = s[i : i+1]
		default:
			continue
		}
		l, err := parseOperand(s[:i])
		if err != nil {
			return nil, err
		}
		r, err := parseOperand(s[i+len(op):])
		if err != nil {
			return nil, err
		}
		return cmpNode{op: op, l: l, r: r}, nil
	}
	return parseOperand(s)
}

func parseOperand(s string) (node, error) {
	parts := strings.Split(s, "&")
	if len(parts) == 1 {
		return parseAtom(s)
	}
	var terms []node
	for _, p := range parts {
		n, err := parseAtom(p)
		if err != nil {
			return nil, err
		}
		terms = append(terms, n)
	}
	return bitAndNode(terms), nil
}

func parseAtom(s string) (node, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty operand")
	}
	if strings.HasPrefix(s, "!") {
		inner, err := parseAtom(s[1:])
		if err != nil {
			return nil, err
		}
		return notNode{inner}, nil
	}
	switch s {
	case "ver":
		return verNode{}, nil
	case "user":
		return userNode{}, nil
	case "bsver":
		return bsverNode{}, nil
	case "ARG":
		return argNode{}, nil
	}
	if versionLiteral.MatchString(s) {
		v, err := nif.ParseVersion(s)
		if err != nil {
			return nil, err
		}
		return litNode(v.Uint32()), nil
	}
	if n, err := strconv.ParseInt(s, 0, 64); err == nil {
		return litNode(n), nil
	}
	if c := s[0]; c >= '0' && c <= '9' || c == '-' {
		return nil, errors.Newf("malformed number %q", s)
	}
	return identNode(s), nil
}

type litNode int64

func (n litNode) eval(Env) int64 { return int64(n) }

func (n litNode) idents(func(string)) {}

type identNode string

func (n identNode) eval(env Env) int64 {
	v, _ := env.Value(string(n))
	return v
}
func (n identNode) idents(fn func(string)) { fn(string(n)) }

type verNode struct{}

func (verNode) eval(env Env) int64 { return int64(env.Version().Uint32()) }

func (verNode) idents(func(string)) {}

type userNode struct{}

func (userNode) eval(env Env) int64 { return int64(env.Version().User) }

func (userNode) idents(func(string)) {}

type bsverNode struct{}

func (bsverNode) eval(env Env) int64 { return int64(env.Version().BSVersion) }

func (bsverNode) idents(func(string)) {}

type argNode struct{}

func (argNode) eval(env Env) int64 { return env.Arg() }

func (argNode) idents(func(string)) {}

type notNode struct{ inner node }

func (n notNode) eval(env Env) int64 {
	if n.inner.eval(env) == 0 {
		return 1
	}
	return 0
}
func (n notNode) idents(fn func(string)) { n.inner.idents(fn) }

type bitAndNode []node

func (n bitAndNode) eval(env Env) int64 {
	v := n[0].eval(env)
	for _, t := range n[1:] {
		v &= t.eval(env)
	}
	return v
}
func (n bitAndNode) idents(fn func(string)) {
	for _, t := range n {
		t.idents(fn)
	}
}

type cmpNode struct {
	op   string
	l, r node
}

func (n cmpNode) eval(env Env) int64 {
	a, b := n.l.eval(env), n.r.eval(env)
	var ok bool
	switch n.op {
	case "==":
		ok = a == b
	case "!=":
		ok = a != b
	case ">=":
		ok = a >= b
	case "<=":
		ok = a <= b
	case ">":
		ok = a > b
	case "<":
		ok = a < b
	}
	if ok {
		return 1
	}
	return 0
}
func (n cmpNode) idents(fn func(string)) {
	n.l.idents(fn)
	n.r.idents(fn)
}

type andNode []node

func (n andNode) eval(env Env) int64 {
	for _, t := range n {
		if t.eval(env) == 0 {
			return 0
		}
	}
	return 1
}
func (n andNode) idents(fn func(string)) {
	for _, t := range n {
		t.idents(fn)
	}
}

type orNode []node

func (n orNode) eval(env Env) int64 {
	for _, t := range n {
		if t.eval(env) != 0 {
			return 1
		}
	}
	return 0
}
func (n orNode) idents(fn func(string)) {
	for _, t := range n {
		t.idents(fn)
	}
}

// versionEnv evaluates expressions that may only refer to the version.
type versionEnv struct{ v nif.FormatVersion }

func (e versionEnv) Version() nif.FormatVersion { return e.v }
func (versionEnv) Value(string) (int64, bool)   { return 0, false }
func (versionEnv) Arg() int64                   { return 0 }
