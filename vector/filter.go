package vector

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/xwb1989/sqlparser"
)

// FilterError reports a malformed or unsupported attribute filter.
type FilterError struct {
	Filter string
	Err    error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("vector: filter %q: %v", e.Filter, e.Err)
}

func (e *FilterError) Unwrap() error { return e.Err }

// expr is a node of a parsed attribute filter. eval returns nil for an
// unknown (NULL) result.
type expr interface {
	eval(p geojson.Properties) interface{}
}

type fieldExpr struct{ name string }

type literalExpr struct{ v interface{} }

type compareExpr struct {
	op   string
	l, r expr
}

type logicExpr struct {
	and  bool
	l, r expr
}

type notExpr struct{ e expr }

type likeExpr struct {
	e   expr
	re  *regexp.Regexp
	not bool
}

type nullExpr struct {
	e   expr
	not bool
}

type inExpr struct {
	e    expr
	list []expr
	not  bool
}

func (e fieldExpr) eval(p geojson.Properties) interface{}   { return p[e.name] }
func (e literalExpr) eval(p geojson.Properties) interface{} { return e.v }

func (e compareExpr) eval(p geojson.Properties) interface{} {
	c, ok := compare(e.l.eval(p), e.r.eval(p))
	if !ok {
		return nil
	}
	switch e.op {
	case "=":
		return c == 0
	case "<>", "!=":
		return c != 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return nil
}

func (e logicExpr) eval(p geojson.Properties) interface{} {
	l, r := e.l.eval(p), e.r.eval(p)
	lb, lok := l.(bool)
	rb, rok := r.(bool)
	if e.and {
		if (lok && !lb) || (rok && !rb) {
			return false
		}
		if lok && rok {
			return true
		}
		return nil
	}
	if (lok && lb) || (rok && rb) {
		return true
	}
	if lok && rok {
		return false
	}
	return nil
}

func (e notExpr) eval(p geojson.Properties) interface{} {
	if b, ok := e.e.eval(p).(bool); ok {
		return !b
	}
	return nil
}

func (e likeExpr) eval(p geojson.Properties) interface{} {
	v := e.e.eval(p)
	if v == nil {
		return nil
	}
	return e.re.MatchString(stringOf(v)) != e.not
}

func (e nullExpr) eval(p geojson.Properties) interface{} {
	return (e.e.eval(p) == nil) != e.not
}

func (e inExpr) eval(p geojson.Properties) interface{} {
	v := e.e.eval(p)
	if v == nil {
		return nil
	}
	for _, item := range e.list {
		if c, ok := compare(v, item.eval(p)); ok && c == 0 {
			return !e.not
		}
	}
	return e.not
}

func truthy(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}

// compare orders a and b numerically when both are numbers, as strings
// otherwise. ok is false when either side is NULL.
func compare(a, b interface{}) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	af, aok := toFloat64(a)
	bf, bok := toFloat64(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	return strings.Compare(stringOf(a), stringOf(b)), true
}

func stringOf(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint:
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case float32:
		if float64(n) != math.Trunc(float64(n)) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

// fieldRefs lists the field names referenced by e.
func fieldRefs(e expr) []string {
	var out []string
	var walk func(expr)
	walk = func(e expr) {
		switch n := e.(type) {
		case fieldExpr:
			out = append(out, n.name)
		case compareExpr:
			walk(n.l)
			walk(n.r)
		case logicExpr:
			walk(n.l)
			walk(n.r)
		case notExpr:
			walk(n.e)
		case likeExpr:
			walk(n.e)
		case nullExpr:
			walk(n.e)
		case inExpr:
			walk(n.e)
			for _, item := range n.list {
				walk(item)
			}
		}
	}
	walk(e)
	return out
}

// filterQuery wraps an attribute filter into a statement the SQL parser
// accepts. Only its WHERE clause is kept.
const filterQuery = "select * from t where "

// parseFilter parses the WHERE-clause subset understood by attribute
// filters: comparisons, LIKE, IN, BETWEEN, IS [NOT] NULL combined with AND,
// OR, NOT and parentheses. Field names may be double quoted.
func parseFilter(src string) (expr, error) {
	stmt, err := sqlparser.Parse(filterQuery + quoteIdentifiers(src))
	if err != nil {
		return nil, &FilterError{Filter: src, Err: err}
	}
	sel, ok := stmt.(*sqlparser.Select)
	if !ok || sel.Where == nil || len(sel.GroupBy) > 0 || sel.Having != nil ||
		len(sel.OrderBy) > 0 || sel.Limit != nil || sel.Lock != "" {
		return nil, &FilterError{Filter: src, Err: errors.New("only a WHERE expression is allowed")}
	}
	e, err := convert(sel.Where.Expr)
	if err != nil {
		return nil, &FilterError{Filter: src, Err: err}
	}
	return e, nil
}

// quoteIdentifiers turns the double quoted identifiers of OGR filters into
// the backquoted ones of the SQL parser. Single quoted strings are kept.
func quoteIdentifiers(src string) string {
	var sb strings.Builder
	inString, inIdent := false, false
	for _, r := range src {
		switch {
		case r == '\'' && !inIdent:
			inString = !inString
			sb.WriteRune(r)
		case r == '"' && !inString:
			inIdent = !inIdent
			sb.WriteRune('`')
		case r == '`' && inIdent:
			sb.WriteString("``")
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func convert(n sqlparser.Expr) (expr, error) {
	switch n := n.(type) {
	case *sqlparser.AndExpr:
		l, r, err := convertPair(n.Left, n.Right)
		if err != nil {
			return nil, err
		}
		return logicExpr{and: true, l: l, r: r}, nil
	case *sqlparser.OrExpr:
		l, r, err := convertPair(n.Left, n.Right)
		if err != nil {
			return nil, err
		}
		return logicExpr{l: l, r: r}, nil
	case *sqlparser.NotExpr:
		e, err := convert(n.Expr)
		if err != nil {
			return nil, err
		}
		return notExpr{e: e}, nil
	case *sqlparser.ParenExpr:
		return convert(n.Expr)
	case *sqlparser.ComparisonExpr:
		return comparison(n)
	case *sqlparser.RangeCond:
		return between(n)
	case *sqlparser.IsExpr:
		e, err := convert(n.Expr)
		if err != nil {
			return nil, err
		}
		switch n.Operator {
		case sqlparser.IsNullStr:
			return nullExpr{e: e}, nil
		case sqlparser.IsNotNullStr:
			return nullExpr{e: e, not: true}, nil
		}
	case *sqlparser.ColName:
		if !n.Qualifier.IsEmpty() {
			return nil, fmt.Errorf("qualified field %s", sqlparser.String(n))
		}
		return fieldExpr{name: n.Name.String()}, nil
	case *sqlparser.SQLVal:
		return literal(n)
	case *sqlparser.NullVal:
		return literalExpr{v: nil}, nil
	case sqlparser.BoolVal:
		return literalExpr{v: bool(n)}, nil
	case *sqlparser.UnaryExpr:
		return negative(n)
	}
	return nil, fmt.Errorf("unsupported expression %s", sqlparser.String(n))
}

func convertPair(a, b sqlparser.Expr) (expr, expr, error) {
	l, err := convert(a)
	if err != nil {
		return nil, nil, err
	}
	r, err := convert(b)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

func comparison(n *sqlparser.ComparisonExpr) (expr, error) {
	l, err := convert(n.Left)
	if err != nil {
		return nil, err
	}
	switch n.Operator {
	case sqlparser.EqualStr, sqlparser.NotEqualStr, sqlparser.LessThanStr,
		sqlparser.LessEqualStr, sqlparser.GreaterThanStr, sqlparser.GreaterEqualStr:
		r, err := convert(n.Right)
		if err != nil {
			return nil, err
		}
		return compareExpr{op: n.Operator, l: l, r: r}, nil
	case sqlparser.LikeStr, sqlparser.NotLikeStr:
		pat, ok := n.Right.(*sqlparser.SQLVal)
		if !ok || pat.Type != sqlparser.StrVal || n.Escape != nil {
			return nil, errors.New("LIKE needs a string pattern")
		}
		return likeExpr{e: l, re: likePattern(string(pat.Val)), not: n.Operator == sqlparser.NotLikeStr}, nil
	case sqlparser.InStr, sqlparser.NotInStr:
		tuple, ok := n.Right.(sqlparser.ValTuple)
		if !ok {
			return nil, errors.New("IN needs a list of values")
		}
		list := make([]expr, 0, len(tuple))
		for _, item := range tuple {
			e, err := convert(item)
			if err != nil {
				return nil, err
			}
			list = append(list, e)
		}
		return inExpr{e: l, list: list, not: n.Operator == sqlparser.NotInStr}, nil
	}
	return nil, fmt.Errorf("unsupported operator %s", n.Operator)
}

// between expands BETWEEN into its two inclusive comparisons.
func between(n *sqlparser.RangeCond) (expr, error) {
	l, err := convert(n.Left)
	if err != nil {
		return nil, err
	}
	from, to, err := convertPair(n.From, n.To)
	if err != nil {
		return nil, err
	}
	e := logicExpr{
		and: true,
		l:   compareExpr{op: ">=", l: l, r: from},
		r:   compareExpr{op: "<=", l: l, r: to},
	}
	if n.Operator == sqlparser.NotBetweenStr {
		return notExpr{e: e}, nil
	}
	return e, nil
}

func literal(v *sqlparser.SQLVal) (expr, error) {
	switch v.Type {
	case sqlparser.StrVal:
		return literalExpr{v: string(v.Val)}, nil
	case sqlparser.IntVal:
		if i, err := strconv.ParseInt(string(v.Val), 10, 64); err == nil {
			return literalExpr{v: i}, nil
		}
		fallthrough
	case sqlparser.FloatVal:
		f, err := strconv.ParseFloat(string(v.Val), 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", v.Val)
		}
		return literalExpr{v: f}, nil
	}
	return nil, fmt.Errorf("unsupported value %s", sqlparser.String(v))
}

// negative folds a unary minus over a number.
func negative(n *sqlparser.UnaryExpr) (expr, error) {
	e, err := convert(n.Expr)
	if err != nil {
		return nil, err
	}
	lit, ok := e.(literalExpr)
	if n.Operator == sqlparser.UPlusStr && ok {
		return lit, nil
	}
	if n.Operator != sqlparser.UMinusStr || !ok {
		return nil, fmt.Errorf("unsupported expression %s", sqlparser.String(n))
	}
	switch v := lit.v.(type) {
	case int64:
		return literalExpr{v: -v}, nil
	case float64:
		return literalExpr{v: -v}, nil
	}
	return nil, fmt.Errorf("cannot negate %s", sqlparser.String(n.Expr))
}

// likePattern translates a LIKE pattern into a case-insensitive anchored
// regular expression.
func likePattern(pattern string) *regexp.Regexp {
	var sb strings.Builder
	sb.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.MustCompile(sb.String())
}
