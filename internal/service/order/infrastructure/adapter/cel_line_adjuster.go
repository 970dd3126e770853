package adapter

import (
	"context"
	"fmt"
	"math"

	"backoffice/internal/service/order/domain/port"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/shopspring/decimal"
)

// CELLineAdjuster 是 port.LineAdjuster 的 CEL 实现。
// 表达式可以引用 product_id、product_name、price、quantity、customer_email，
// 结果为数字，四舍五入到分。
type CELLineAdjuster struct {
	tax      cel.Program
	discount cel.Program
}

// NewCELLineAdjuster 在启动时编译表达式，语法错误直接返回。
// 两个表达式都为空时返回 nil, nil，表示不启用服务端规则。
func NewCELLineAdjuster(taxExpr, discountExpr string) (*CELLineAdjuster, error) {
	if taxExpr == "" && discountExpr == "" {
		return nil, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("product_id", cel.IntType),
		cel.Variable("product_name", cel.StringType),
		cel.Variable("price", cel.DoubleType),
		cel.Variable("quantity", cel.IntType),
		cel.Variable("customer_email", cel.StringType),
	)
	if err != nil {
		return nil, err
	}

	a := &CELLineAdjuster{}
	if a.tax, err = compile(env, "tax", taxExpr); err != nil {
		return nil, err
	}
	if a.discount, err = compile(env, "discount", discountExpr); err != nil {
		return nil, err
	}
	return a, nil
}

func compile(env *cel.Env, name, expr string) (cel.Program, error) {
	if expr == "" {
		expr = "0.0"
	}
	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("compile %s expression: %w", name, iss.Err())
	}
	switch ast.OutputType().Kind() {
	case types.DoubleKind, types.IntKind, types.UintKind, types.DynKind:
	default:
		return nil, fmt.Errorf("%s expression must evaluate to a number, got %s", name, ast.OutputType())
	}
	return env.Program(ast)
}

func (a *CELLineAdjuster) Adjust(ctx context.Context, facts port.LineFacts) (decimal.Decimal, decimal.Decimal, bool, error) {
	price, _ := facts.Price.Float64()
	vars := map[string]interface{}{
		"product_id":     facts.ProductID,
		"product_name":   facts.ProductName,
		"price":          price,
		"quantity":       int64(facts.Quantity),
		"customer_email": facts.CustomerEmail,
	}

	tax, err := eval(ctx, a.tax, vars)
	if err != nil {
		return decimal.Zero, decimal.Zero, false, fmt.Errorf("evaluate tax for product %d: %w", facts.ProductID, err)
	}
	discount, err := eval(ctx, a.discount, vars)
	if err != nil {
		return decimal.Zero, decimal.Zero, false, fmt.Errorf("evaluate discount for product %d: %w", facts.ProductID, err)
	}
	return tax, discount, true, nil
}

// eval 计算表达式，负数结果按 0 处理
func eval(ctx context.Context, prg cel.Program, vars map[string]interface{}) (decimal.Decimal, error) {
	out, _, err := prg.ContextEval(ctx, vars)
	if err != nil {
		return decimal.Zero, err
	}

	var v decimal.Decimal
	switch n := out.Value().(type) {
	case float64:
		if math.IsInf(n, 0) || math.IsNaN(n) {
			return decimal.Zero, fmt.Errorf("expression produced a non-finite value %v", n)
		}
		v = decimal.NewFromFloat(n)
	case int64:
		v = decimal.NewFromInt(n)
	case uint64:
		v = decimal.NewFromUint64(n)
	default:
		return decimal.Zero, fmt.Errorf("expression returned %T, want a number", n)
	}
	if v.IsNegative() {
		return decimal.Zero, nil
	}
	return v.Round(2), nil
}
