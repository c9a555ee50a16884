package builtin

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/hupe1980/agenthub/core"
	"github.com/hupe1980/agenthub/tool"
)

// CalculatorName is the tool name exposed to the model.
const CalculatorName = "Calculator"

// mathFuncs maps the function names accepted in expressions to their
// implementation in package math.
var mathFuncs = map[string]string{
	"abs":   "math.Abs",
	"acos":  "math.Acos",
	"asin":  "math.Asin",
	"atan":  "math.Atan",
	"atan2": "math.Atan2",
	"ceil":  "math.Ceil",
	"cos":   "math.Cos",
	"cosh":  "math.Cosh",
	"exp":   "math.Exp",
	"floor": "math.Floor",
	"log":   "math.Log",
	"log10": "math.Log10",
	"log2":  "math.Log2",
	"max":   "math.Max",
	"min":   "math.Min",
	"pow":   "math.Pow",
	"round": "math.Round",
	"sin":   "math.Sin",
	"sinh":  "math.Sinh",
	"sqrt":  "math.Sqrt",
	"tan":   "math.Tan",
	"tanh":  "math.Tanh",
}

var mathConsts = map[string]string{
	"pi": "math.Pi",
	"e":  "math.E",
}

// CalculatorOptions configures the calculator tool.
type CalculatorOptions struct {
	// Timeout bounds a single evaluation.
	Timeout time.Duration
}

// NewCalculator returns a tool that evaluates numeric expressions such as
// "37593 * 67" or "sqrt(2) * pi". Expressions are restricted to number
// literals, + - * / %, parentheses, pi, e and the functions in mathFuncs;
// everything else is rejected before evaluation.
func NewCalculator(optFns ...func(o *CalculatorOptions)) tool.Tool {
	opts := CalculatorOptions{Timeout: 5 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}

	return tool.NewFunctionTool(
		CalculatorName,
		"Calculates a math expression. Useful for when you need to answer questions about math. "+
			"This tool is only for math questions and nothing else. Only input math expressions. "+
			"Supports + - * / %, parentheses, pi, e and functions like sqrt, pow, log, sin.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expression": map[string]any{
					"type":        "string",
					"description": "A valid numerical expression, e.g. 2 * pow(3, 2)",
				},
			},
			"required": []string{"expression"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			expr, err := tool.StringArg(args, "expression")
			if err != nil {
				return nil, err
			}

			ctx, cancel := context.WithTimeout(tc.Context(), opts.Timeout)
			defer cancel()

			v, err := Evaluate(ctx, expr)
			if err != nil {
				return nil, fmt.Errorf("calculator(%q) raised error: %v. Please try again with a valid numerical expression", expr, err)
			}

			return FormatNumber(v), nil
		},
	)
}

// Evaluate computes expr with a sandboxed interpreter.
func Evaluate(ctx context.Context, expr string) (float64, error) {
	src, err := compileExpression(expr)
	if err != nil {
		return 0, err
	}

	type result struct {
		v   float64
		err error
	}

	done := make(chan result, 1)

	go func() {
		v, err := run(src)
		done <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case r := <-done:
		return r.v, r.err
	}
}

func run(src string) (v float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluation panic: %v", r)
		}
	}()

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return 0, fmt.Errorf("failed to load stdlib: %w", err)
	}

	program := "package main\n\nimport \"math\"\n\nfunc Calc() float64 { return " + src + " }\n"
	if _, err := i.Eval(program); err != nil {
		return 0, err
	}

	fv, err := i.Eval("main.Calc")
	if err != nil {
		return 0, err
	}

	fn, ok := fv.Interface().(func() float64)
	if !ok {
		return 0, fmt.Errorf("unexpected expression type %s", fv.Type())
	}

	return fn(), nil
}

// compileExpression parses expr and re-emits it as a float64 Go expression.
// Only whitelisted nodes survive.
func compileExpression(expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", fmt.Errorf("empty expression")
	}
	if strings.Contains(expr, "**") {
		return "", fmt.Errorf("use pow(x, y) for exponentiation")
	}

	node, err := parser.ParseExpr(expr)
	if err != nil {
		return "", fmt.Errorf("invalid expression: %w", err)
	}

	var b strings.Builder
	if err := emit(&b, node); err != nil {
		return "", err
	}

	return b.String(), nil
}

func emit(b *strings.Builder, n ast.Expr) error {
	switch v := n.(type) {
	case *ast.BasicLit:
		if v.Kind != token.INT && v.Kind != token.FLOAT {
			return fmt.Errorf("unsupported literal %s", v.Value)
		}
		b.WriteString("float64(")
		b.WriteString(v.Value)
		b.WriteString(")")
	case *ast.Ident:
		c, ok := mathConsts[v.Name]
		if !ok {
			return fmt.Errorf("unknown identifier %q", v.Name)
		}
		b.WriteString(c)
	case *ast.SelectorExpr:
		name, err := selectorName(v)
		if err != nil {
			return err
		}
		c, ok := mathConsts[name]
		if !ok {
			return fmt.Errorf("unknown identifier math.%s", v.Sel.Name)
		}
		b.WriteString(c)
	case *ast.ParenExpr:
		b.WriteString("(")
		if err := emit(b, v.X); err != nil {
			return err
		}
		b.WriteString(")")
	case *ast.UnaryExpr:
		if v.Op != token.SUB && v.Op != token.ADD {
			return fmt.Errorf("unsupported operator %s", v.Op)
		}
		b.WriteString(v.Op.String())
		b.WriteString("(")
		if err := emit(b, v.X); err != nil {
			return err
		}
		b.WriteString(")")
	case *ast.BinaryExpr:
		switch v.Op {
		case token.ADD, token.SUB, token.MUL, token.QUO:
			b.WriteString("(")
			if err := emit(b, v.X); err != nil {
				return err
			}
			b.WriteString(" " + v.Op.String() + " ")
			if err := emit(b, v.Y); err != nil {
				return err
			}
			b.WriteString(")")
		case token.REM:
			b.WriteString("math.Mod(")
			if err := emit(b, v.X); err != nil {
				return err
			}
			b.WriteString(", ")
			if err := emit(b, v.Y); err != nil {
				return err
			}
			b.WriteString(")")
		default:
			return fmt.Errorf("unsupported operator %s", v.Op)
		}
	case *ast.CallExpr:
		var name string
		switch fn := v.Fun.(type) {
		case *ast.Ident:
			name = fn.Name
		case *ast.SelectorExpr:
			n, err := selectorName(fn)
			if err != nil {
				return err
			}
			name = n
		default:
			return fmt.Errorf("unsupported call")
		}
		impl, ok := mathFuncs[name]
		if !ok {
			return fmt.Errorf("unknown function %q", name)
		}
		if v.Ellipsis.IsValid() {
			return fmt.Errorf("unsupported call")
		}
		b.WriteString(impl)
		b.WriteString("(")
		for i, arg := range v.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := emit(b, arg); err != nil {
				return err
			}
		}
		b.WriteString(")")
	default:
		return fmt.Errorf("unsupported expression %T", n)
	}

	return nil
}

// selectorName accepts math.X and returns the lower-cased name.
func selectorName(s *ast.SelectorExpr) (string, error) {
	pkg, ok := s.X.(*ast.Ident)
	if !ok || pkg.Name != "math" {
		return "", fmt.Errorf("unsupported selector")
	}
	return strings.ToLower(s.Sel.Name), nil
}

// FormatNumber renders integral values without a fractional part.
func FormatNumber(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
