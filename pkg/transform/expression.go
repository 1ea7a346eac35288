package transform

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// placeholder is the single binding an expression template may reference.
const placeholder = "{value}"

// exprFuncs is the full vocabulary of the template language: concatenation,
// comparison-based branching, arithmetic, date formatting and a few string
// helpers. Anything outside it is rejected, never passed through.
var exprFuncs = map[string]struct{}{
	"concat":      {},
	"if":          {},
	"eq":          {},
	"ne":          {},
	"gt":          {},
	"lt":          {},
	"add":         {},
	"sub":         {},
	"mul":         {},
	"div":         {},
	"upper":       {},
	"lower":       {},
	"trim":        {},
	"date_format": {},
}

// EvaluateTemplate substitutes the source value into the template's {value}
// placeholder and evaluates the result. Templates with more than one
// placeholder, or using anything outside the restricted vocabulary, are
// rejected.
func EvaluateTemplate(template string, value any) (any, error) {
	expr := strings.TrimSpace(template)
	if expr == "" {
		return nil, fmt.Errorf("empty expression template")
	}
	if strings.Count(expr, placeholder) > 1 {
		return nil, fmt.Errorf("template may bind %s at most once", placeholder)
	}
	return evalExpr(expr, value)
}

func evalExpr(expr string, value any) (any, error) {
	expr = strings.TrimSpace(expr)

	if expr == placeholder {
		return value, nil
	}
	if f, err := strconv.ParseFloat(expr, 64); err == nil {
		return f, nil
	}
	if expr == "true" {
		return true, nil
	}
	if expr == "false" {
		return false, nil
	}
	if len(expr) >= 2 &&
		((strings.HasPrefix(expr, "'") && strings.HasSuffix(expr, "'")) ||
			(strings.HasPrefix(expr, "\"") && strings.HasSuffix(expr, "\""))) {
		return expr[1 : len(expr)-1], nil
	}

	if strings.HasSuffix(expr, ")") {
		if open := strings.Index(expr, "("); open > 0 {
			name := strings.TrimSpace(expr[:open])
			if _, ok := exprFuncs[strings.ToLower(name)]; !ok {
				return nil, fmt.Errorf("unknown function %q", name)
			}
			args := splitArgs(expr[open+1 : len(expr)-1])
			evaluated := make([]any, len(args))
			for i, arg := range args {
				v, err := evalExpr(arg, value)
				if err != nil {
					return nil, err
				}
				evaluated[i] = v
			}
			return callFunc(strings.ToLower(name), evaluated)
		}
	}

	return nil, fmt.Errorf("unsupported expression %q", expr)
}

// splitArgs splits a comma-separated argument list, honoring quotes and
// nested parentheses.
func splitArgs(argsStr string) []string {
	var args []string
	if strings.TrimSpace(argsStr) == "" {
		return args
	}

	var current strings.Builder
	depth := 0
	inQuote := false
	var quoteChar byte

	for i := 0; i < len(argsStr); i++ {
		c := argsStr[i]
		switch {
		case c == '\'' || c == '"':
			if !inQuote {
				inQuote = true
				quoteChar = c
			} else if c == quoteChar {
				inQuote = false
			}
			current.WriteByte(c)
		case !inQuote && c == '(':
			depth++
			current.WriteByte(c)
		case !inQuote && c == ')':
			depth--
			current.WriteByte(c)
		case !inQuote && c == ',' && depth == 0:
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}
	args = append(args, strings.TrimSpace(current.String()))
	return args
}

func callFunc(name string, args []any) (any, error) {
	switch name {
	case "concat":
		var sb strings.Builder
		for _, arg := range args {
			if arg != nil {
				sb.WriteString(fmt.Sprintf("%v", arg))
			}
		}
		return sb.String(), nil

	case "if":
		if len(args) != 3 {
			return nil, fmt.Errorf("if expects 3 arguments, got %d", len(args))
		}
		cond, ok := args[0].(bool)
		if !ok {
			b, found := toBool(args[0])
			if !found {
				return nil, fmt.Errorf("if condition is not boolean")
			}
			cond = b
		}
		if cond {
			return args[1], nil
		}
		return args[2], nil

	case "eq", "ne":
		if len(args) != 2 {
			return nil, fmt.Errorf("%s expects 2 arguments", name)
		}
		equal := fmt.Sprintf("%v", args[0]) == fmt.Sprintf("%v", args[1])
		if name == "ne" {
			return !equal, nil
		}
		return equal, nil

	case "gt", "lt":
		if len(args) != 2 {
			return nil, fmt.Errorf("%s expects 2 arguments", name)
		}
		a, ok1 := ToFloat64(args[0])
		b, ok2 := ToFloat64(args[1])
		if ok1 && ok2 {
			if name == "gt" {
				return a > b, nil
			}
			return a < b, nil
		}
		if name == "gt" {
			return fmt.Sprintf("%v", args[0]) > fmt.Sprintf("%v", args[1]), nil
		}
		return fmt.Sprintf("%v", args[0]) < fmt.Sprintf("%v", args[1]), nil

	case "add", "sub", "mul", "div":
		if len(args) != 2 {
			return nil, fmt.Errorf("%s expects 2 arguments", name)
		}
		a, ok1 := ToFloat64(args[0])
		b, ok2 := ToFloat64(args[1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%s expects numeric arguments", name)
		}
		switch name {
		case "add":
			return a + b, nil
		case "sub":
			return a - b, nil
		case "mul":
			return a * b, nil
		default:
			if b == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return a / b, nil
		}

	case "upper":
		if len(args) != 1 {
			return nil, fmt.Errorf("upper expects 1 argument")
		}
		return strings.ToUpper(fmt.Sprintf("%v", args[0])), nil

	case "lower":
		if len(args) != 1 {
			return nil, fmt.Errorf("lower expects 1 argument")
		}
		return strings.ToLower(fmt.Sprintf("%v", args[0])), nil

	case "trim":
		if len(args) != 1 {
			return nil, fmt.Errorf("trim expects 1 argument")
		}
		return strings.TrimSpace(fmt.Sprintf("%v", args[0])), nil

	case "date_format":
		if len(args) < 2 {
			return nil, fmt.Errorf("date_format expects at least 2 arguments")
		}
		dateStr := fmt.Sprintf("%v", args[0])
		toLayout := fmt.Sprintf("%v", args[1])
		var t time.Time
		var err error
		if len(args) >= 3 {
			t, err = time.Parse(fmt.Sprintf("%v", args[2]), dateStr)
		} else {
			for _, layout := range dateLayouts {
				t, err = time.Parse(layout, dateStr)
				if err == nil {
					break
				}
			}
		}
		if err != nil {
			return nil, fmt.Errorf("cannot parse date %q", dateStr)
		}
		return t.Format(toLayout), nil
	}

	return nil, fmt.Errorf("unknown function %q", name)
}
