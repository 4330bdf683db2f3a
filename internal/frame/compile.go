// Package frame compiles pipelines of frame operations into DuckDB SQL.
//
// Each op is compiled as a SELECT wrapping the previous op's output, so a
// pipeline keeps the cell-by-cell semantics of an interactive analysis
// session: every step sees exactly the frame the step before it produced.
package frame

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gridlake/internal/domain"
	"gridlake/internal/engine"
)

// Compile turns a table name and op pipeline into a single SELECT statement.
// An empty pipeline compiles to a plain SELECT *.
func Compile(table string, ops []domain.Op) (string, error) {
	if err := engine.ValidateIdentifier(table); err != nil {
		return "", err
	}
	if err := domain.ValidateOps(ops); err != nil {
		return "", err
	}

	sql := "SELECT * FROM " + engine.QuoteIdentifier(table)
	for i := range ops {
		next, err := compileOp(sql, &ops[i], i)
		if err != nil {
			return "", err
		}
		sql = next
	}
	return sql, nil
}

// DescribeSQL returns summary statistics SQL for a table (DuckDB SUMMARIZE).
func DescribeSQL(table string) (string, error) {
	if err := engine.ValidateIdentifier(table); err != nil {
		return "", err
	}
	return "SUMMARIZE SELECT * FROM " + engine.QuoteIdentifier(table), nil
}

// PreviewSQL returns the first n rows of a table.
func PreviewSQL(table string, n int) (string, error) {
	if err := engine.ValidateIdentifier(table); err != nil {
		return "", err
	}
	if n <= 0 {
		n = 10
	}
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", engine.QuoteIdentifier(table), n), nil
}

// LimitSQL caps an already-compiled query at n rows.
func LimitSQL(sql string, n int) string {
	return fmt.Sprintf("SELECT * FROM (%s) AS capped LIMIT %d", sql, n)
}

func compileOp(inner string, op *domain.Op, index int) (string, error) {
	sub := "(" + inner + ") AS t" + strconv.Itoa(index)

	switch op.Kind {
	case domain.OpSelect:
		cols, err := quoteAll(op.Columns)
		if err != nil {
			return "", opErr(index, err)
		}
		return "SELECT " + strings.Join(cols, ", ") + " FROM " + sub, nil

	case domain.OpRename:
		pairs := make([]string, 0, len(op.Renames))
		for _, old := range sortedKeys(op.Renames) {
			if err := engine.ValidateIdentifier(old); err != nil {
				return "", opErr(index, err)
			}
			if err := engine.ValidateIdentifier(op.Renames[old]); err != nil {
				return "", opErr(index, err)
			}
			pairs = append(pairs, engine.QuoteIdentifier(old)+" AS "+engine.QuoteIdentifier(op.Renames[old]))
		}
		return "SELECT * RENAME (" + strings.Join(pairs, ", ") + ") FROM " + sub, nil

	case domain.OpDerive:
		if err := engine.ValidateIdentifier(op.Name); err != nil {
			return "", opErr(index, err)
		}
		if err := validateExpression(op.Expression); err != nil {
			return "", opErr(index, err)
		}
		return "SELECT *, (" + op.Expression + ") AS " + engine.QuoteIdentifier(op.Name) + " FROM " + sub, nil

	case domain.OpFilter:
		preds := make([]string, 0, len(op.Conditions))
		for _, c := range op.Conditions {
			if err := engine.ValidateIdentifier(c.Column); err != nil {
				return "", opErr(index, err)
			}
			lit, err := formatLiteral(c.Value)
			if err != nil {
				return "", opErr(index, err)
			}
			preds = append(preds, engine.QuoteIdentifier(c.Column)+" "+c.Operator+" "+lit)
		}
		return "SELECT * FROM " + sub + " WHERE " + strings.Join(preds, " AND "), nil

	case domain.OpSort:
		keys := make([]string, 0, len(op.Keys))
		for _, k := range op.Keys {
			if err := engine.ValidateIdentifier(k.Column); err != nil {
				return "", opErr(index, err)
			}
			dir := " ASC"
			if k.Desc {
				dir = " DESC"
			}
			keys = append(keys, engine.QuoteIdentifier(k.Column)+dir)
		}
		return "SELECT * FROM " + sub + " ORDER BY " + strings.Join(keys, ", "), nil

	case domain.OpLimit:
		return "SELECT * FROM " + sub + " LIMIT " + strconv.Itoa(op.N), nil

	case domain.OpGroupBy:
		by, err := quoteAll(op.By)
		if err != nil {
			return "", opErr(index, err)
		}
		exprs := make([]string, 0, len(op.By)+len(op.Aggregates))
		exprs = append(exprs, by...)
		for _, a := range op.Aggregates {
			expr, err := aggregateExpr(a)
			if err != nil {
				return "", opErr(index, err)
			}
			exprs = append(exprs, expr+" AS "+engine.QuoteIdentifier(a.OutputName()))
		}
		return "SELECT " + strings.Join(exprs, ", ") + " FROM " + sub +
			" GROUP BY " + strings.Join(by, ", "), nil

	case domain.OpPivot:
		if err := engine.ValidateIdentifier(op.On); err != nil {
			return "", opErr(index, err)
		}
		values := make([]string, 0, len(op.Values))
		for _, v := range op.Values {
			values = append(values, engine.QuoteLiteral(v))
		}
		using, err := aggregateExpr(op.Agg)
		if err != nil {
			return "", opErr(index, err)
		}
		return "SELECT * FROM (PIVOT (" + inner + ") ON " + engine.QuoteIdentifier(op.On) +
			" IN (" + strings.Join(values, ", ") + ") USING " + using + ") AS t" + strconv.Itoa(index), nil

	case domain.OpRolling:
		a := op.Aggregates[0]
		expr, err := aggregateExpr(a)
		if err != nil {
			return "", opErr(index, err)
		}
		over, err := overClause(op.By, op.OrderBy)
		if err != nil {
			return "", opErr(index, err)
		}
		window := fmt.Sprintf(" ROWS BETWEEN %d PRECEDING AND CURRENT ROW", op.Window-1)
		name := a.OutputName()
		if a.As == "" {
			name = fmt.Sprintf("rolling_%s_%d", name, op.Window)
		}
		return "SELECT *, " + expr + " OVER (" + over + window + ") AS " +
			engine.QuoteIdentifier(name) + " FROM " + sub, nil

	case domain.OpWindow:
		a := op.Aggregates[0]
		expr, err := aggregateExpr(a)
		if err != nil {
			return "", opErr(index, err)
		}
		over, err := overClause(op.By, op.OrderBy)
		if err != nil {
			return "", opErr(index, err)
		}
		name := a.OutputName()
		if a.As == "" {
			name = "running_" + name
		}
		return "SELECT *, " + expr + " OVER (" + over + ") AS " +
			engine.QuoteIdentifier(name) + " FROM " + sub, nil

	default:
		return "", opErr(index, domain.ErrValidation("unsupported op kind %q", op.Kind))
	}
}

// aggregateExpr renders an aggregate call; count without a column is count(*).
func aggregateExpr(a domain.Aggregation) (string, error) {
	if a.Column == "" {
		if a.Func != domain.AggCount {
			return "", domain.ErrValidation("%s: aggregate column is required", a.Func)
		}
		return "count(*)", nil
	}
	if err := engine.ValidateIdentifier(a.Column); err != nil {
		return "", err
	}
	return a.Func + "(" + engine.QuoteIdentifier(a.Column) + ")", nil
}

// overClause builds "PARTITION BY ... ORDER BY ..." for window functions.
func overClause(partitionBy, orderBy []string) (string, error) {
	var parts []string
	if len(partitionBy) > 0 {
		cols, err := quoteAll(partitionBy)
		if err != nil {
			return "", err
		}
		parts = append(parts, "PARTITION BY "+strings.Join(cols, ", "))
	}
	cols, err := quoteAll(orderBy)
	if err != nil {
		return "", err
	}
	parts = append(parts, "ORDER BY "+strings.Join(cols, ", "))
	return strings.Join(parts, " "), nil
}

func quoteAll(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if err := engine.ValidateIdentifier(n); err != nil {
			return nil, err
		}
		out = append(out, engine.QuoteIdentifier(n))
	}
	return out, nil
}

// validateExpression applies a light sanity check to derive expressions.
// The expression is still arbitrary SQL over the current frame's columns;
// statement separators and comments are rejected.
func validateExpression(expr string) error {
	if strings.ContainsAny(expr, ";") || strings.Contains(expr, "--") {
		return domain.ErrValidation("expression must not contain statement separators or comments")
	}
	return nil
}

// formatLiteral renders a filter value as a SQL literal.
func formatLiteral(v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return engine.QuoteLiteral(t), nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	default:
		return "", domain.ErrValidation("unsupported filter value type %T", v)
	}
}

func opErr(index int, err error) error {
	return domain.ErrValidation("op %d: %s", index, err.Error())
}

// sortedKeys returns map keys in deterministic order so compiled SQL is
// stable across runs.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
