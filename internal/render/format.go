package render

import (
	"errors"
	"math"
	"math/big"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"ssm2txt/internal/schema"
)

// defaultFormat applies to fields that declare neither a format nor an enum.
var defaultFormat = []schema.Step{{Op: schema.OpNumber}}

// floatPattern matches decimal literals with a fraction or an exponent.
// Integers do not match and keep their spelling.
var floatPattern = regexp.MustCompile(`^[+-]?(\d+\.\d*|\.\d+|\d+(\.\d*)?[eE][+-]?\d+|\.\d+[eE][+-]?\d+)$`)

// Number applies the numeric policy to s: a floating-point literal is printed
// in fixed notation with precision decimals, anything else is returned as is.
func Number(s string, precision int) string {
	if !floatPattern.MatchString(s) {
		return s
	}
	v, err := strconv.ParseFloat(s, 64)
	if errors.Is(err, strconv.ErrRange) || (err == nil && v == 0 && !zeroLiteral(s)) {
		return exact(s, precision)
	}
	if err != nil {
		return s
	}
	return fixed(v, precision)
}

// zeroLiteral reports whether the mantissa of s has no non-zero digit.
// Literals that underflow float64 parse as zero without being zero.
func zeroLiteral(s string) bool {
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		s = s[:i]
	}
	return strings.Trim(s, "+-0.") == ""
}

// maxExponent bounds the literals exact expands. Anything beyond it is kept
// as written.
const maxExponent = 4096

// exact formats a literal outside the float64 range, such as 1e400 or
// 1e-400, in fixed notation.
func exact(s string, precision int) string {
	exp := 0
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		e, err := strconv.Atoi(s[i+1:])
		if err != nil || e > maxExponent || e < -maxExponent {
			return s
		}
		exp = e
	}
	if exp < 0 {
		exp = -exp
	}
	// Enough mantissa bits to hold every decimal digit of the expansion.
	prec := uint(4*(len(s)+exp) + 64)
	f, _, err := big.ParseFloat(s, 10, prec, big.ToNearestEven)
	if err != nil {
		return s
	}
	out := f.Text('f', precision)
	if f.Sign() != 0 && strings.Trim(out, "-0.") == "" {
		return f.Text('f', -1)
	}
	return out
}

// fixed formats v with precision decimals. A non-zero v that would print as
// zero uses the shortest fixed notation that round-trips instead.
func fixed(v float64, precision int) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	if v == 0 {
		return strconv.FormatFloat(0, 'f', precision, 64)
	}
	out := strconv.FormatFloat(v, 'f', precision, 64)
	if strings.Trim(out, "-0.") == "" {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return out
}

// apply runs a format pipeline over items. Each step maps the item list to a
// new one; split and join are the only steps that change its length.
func (r *Renderer) apply(items []string, steps []schema.Step) []string {
	for _, s := range steps {
		items = r.step(items, s)
	}
	return items
}

func (r *Renderer) step(items []string, s schema.Step) []string {
	each := func(fn func(string) string) []string {
		return lo.Map(items, func(v string, _ int) string { return fn(v) })
	}

	switch s.Op {
	case schema.OpNumber:
		return each(func(v string) string { return Number(v, r.table.Precision) })
	case schema.OpDrop:
		return each(func(v string) string { return dropRunes(v, s.N) })
	case schema.OpLast:
		return each(func(v string) string { return lastRunes(v, s.N) })
	case schema.OpLower:
		return each(strings.ToLower)
	case schema.OpMap:
		m := r.table.Map(s.Arg)
		return each(func(v string) string {
			if mapped, ok := m[v]; ok {
				return mapped
			}
			return v
		})
	case schema.OpPercent:
		return each(func(v string) string {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return v
			}
			return fixed(f*100, r.table.Precision) + "%"
		})
	case schema.OpBool:
		return each(func(v string) string {
			i, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return v
			}
			return lo.Ternary(i > 0, "True", "False")
		})
	case schema.OpNegative:
		return each(func(v string) string {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f < 0 {
				return s.Arg
			}
			return v
		})
	case schema.OpNegativeFlag:
		return each(func(v string) string {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return v
			}
			return lo.Ternary(f < 0, "True", "False")
		})
	case schema.OpSplit:
		sep := s.Arg
		if sep == "" {
			sep = ","
		}
		parts := lo.FlatMap(items, func(v string, _ int) []string {
			return lo.Map(strings.Split(v, sep), func(p string, _ int) string { return strings.TrimSpace(p) })
		})
		return lo.Compact(parts)
	case schema.OpSort:
		out := slices.Clone(items)
		slices.Sort(out)
		return out
	case schema.OpJoin:
		return []string{strings.Join(items, s.Arg)}
	case schema.OpPrefix:
		return each(func(v string) string { return s.Arg + v })
	}
	// OpText, and anything validation let through.
	return items
}

func dropRunes(s string, n int) string {
	for i := 0; i < n && s != ""; i++ {
		_, size := utf8.DecodeRuneInString(s)
		s = s[size:]
	}
	return s
}

func lastRunes(s string, n int) string {
	if c := utf8.RuneCountInString(s); c > n {
		return dropRunes(s, c-n)
	}
	return s
}
