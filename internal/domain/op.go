package domain

import "fmt"

// Op kinds. Each op consumes the frame produced by the previous op.
const (
	OpSelect  = "select"
	OpRename  = "rename"
	OpDerive  = "derive"
	OpFilter  = "filter"
	OpSort    = "sort"
	OpLimit   = "limit"
	OpGroupBy = "group_by"
	OpPivot   = "pivot"
	OpRolling = "rolling"
	OpWindow  = "window"
)

// Aggregate function names accepted by group_by, pivot, rolling and window.
const (
	AggSum   = "sum"
	AggAvg   = "avg"
	AggMin   = "min"
	AggMax   = "max"
	AggCount = "count"
)

// Filter comparison operators.
var filterOperators = map[string]bool{
	"=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

// SortKey is one ordering key of a sort op.
type SortKey struct {
	Column string `json:"column" yaml:"column"`
	Desc   bool   `json:"desc,omitempty" yaml:"desc,omitempty"`
}

// Aggregation is one aggregate of a group_by op, e.g. sum(generation_gwh).
type Aggregation struct {
	Func   string `json:"func" yaml:"func"`
	Column string `json:"column" yaml:"column"`
	As     string `json:"as,omitempty" yaml:"as,omitempty"`
}

// Condition is a single filter predicate: column <operator> value.
// Multiple conditions on one filter op are AND-combined.
type Condition struct {
	Column   string      `json:"column" yaml:"column"`
	Operator string      `json:"operator" yaml:"operator"`
	Value    interface{} `json:"value" yaml:"value"`
}

// Op is one pipeline step. Kind selects which fields are meaningful;
// Validate enforces the per-kind contract before SQL compilation.
type Op struct {
	Kind string `json:"kind" yaml:"kind"`

	// select
	Columns []string `json:"columns,omitempty" yaml:"columns,omitempty"`

	// rename: old name -> new name
	Renames map[string]string `json:"renames,omitempty" yaml:"renames,omitempty"`

	// derive: new column from a SQL expression over prior columns
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`

	// filter
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`

	// sort
	Keys []SortKey `json:"keys,omitempty" yaml:"keys,omitempty"`

	// limit
	N int `json:"n,omitempty" yaml:"n,omitempty"`

	// group_by / window / rolling
	By         []string      `json:"by,omitempty" yaml:"by,omitempty"`
	Aggregates []Aggregation `json:"aggregates,omitempty" yaml:"aggregates,omitempty"`

	// pivot: distinct Values of On become columns, cells aggregated with Agg
	On     string      `json:"on,omitempty" yaml:"on,omitempty"`
	Values []string    `json:"values,omitempty" yaml:"values,omitempty"`
	Agg    Aggregation `json:"agg,omitempty" yaml:"agg,omitempty"`

	// rolling / window ordering
	OrderBy []string `json:"order_by,omitempty" yaml:"order_by,omitempty"`

	// rolling window size (rows, including the current one)
	Window int `json:"window,omitempty" yaml:"window,omitempty"`
}

// Validate checks the op's per-kind contract. It does not check column
// existence: unknown columns surface as engine errors at execution time,
// wrapped with the op index.
func (o *Op) Validate() error {
	switch o.Kind {
	case OpSelect:
		if len(o.Columns) == 0 {
			return ErrValidation("select: columns must not be empty")
		}
	case OpRename:
		if len(o.Renames) == 0 {
			return ErrValidation("rename: renames must not be empty")
		}
	case OpDerive:
		if o.Name == "" || o.Expression == "" {
			return ErrValidation("derive: name and expression are required")
		}
	case OpFilter:
		if len(o.Conditions) == 0 {
			return ErrValidation("filter: conditions must not be empty")
		}
		for _, c := range o.Conditions {
			if c.Column == "" {
				return ErrValidation("filter: condition column is required")
			}
			if !filterOperators[c.Operator] {
				return ErrValidation("filter: unsupported operator %q", c.Operator)
			}
		}
	case OpSort:
		if len(o.Keys) == 0 {
			return ErrValidation("sort: keys must not be empty")
		}
		for _, k := range o.Keys {
			if k.Column == "" {
				return ErrValidation("sort: key column is required")
			}
		}
	case OpLimit:
		if o.N <= 0 {
			return ErrValidation("limit: n must be positive")
		}
	case OpGroupBy:
		if len(o.By) == 0 {
			return ErrValidation("group_by: by must not be empty")
		}
		if len(o.Aggregates) == 0 {
			return ErrValidation("group_by: aggregates must not be empty")
		}
		for _, a := range o.Aggregates {
			if err := validateAggregation(a); err != nil {
				return err
			}
		}
	case OpPivot:
		if o.On == "" {
			return ErrValidation("pivot: on is required")
		}
		if len(o.Values) == 0 {
			return ErrValidation("pivot: values must not be empty")
		}
		if o.Agg.Func == "" {
			o.Agg.Func = AggSum
		}
		if err := validateAggregation(o.Agg); err != nil {
			return err
		}
	case OpRolling:
		if o.Window < 1 {
			return ErrValidation("rolling: window must be at least 1")
		}
		if len(o.OrderBy) == 0 {
			return ErrValidation("rolling: order_by must not be empty")
		}
		if len(o.Aggregates) != 1 {
			return ErrValidation("rolling: exactly one aggregate is required")
		}
		if err := validateAggregation(o.Aggregates[0]); err != nil {
			return err
		}
	case OpWindow:
		if len(o.OrderBy) == 0 {
			return ErrValidation("window: order_by must not be empty")
		}
		if len(o.Aggregates) != 1 {
			return ErrValidation("window: exactly one aggregate is required")
		}
		if err := validateAggregation(o.Aggregates[0]); err != nil {
			return err
		}
	default:
		return ErrValidation("unsupported op kind %q", o.Kind)
	}
	return nil
}

func validateAggregation(a Aggregation) error {
	switch a.Func {
	case AggSum, AggAvg, AggMin, AggMax, AggCount:
	default:
		return ErrValidation("unsupported aggregate function %q", a.Func)
	}
	if a.Column == "" && a.Func != AggCount {
		return ErrValidation("%s: aggregate column is required", a.Func)
	}
	return nil
}

// OutputName returns the result column name of an aggregation:
// the explicit alias, or func_column (count without a column is "count").
func (a Aggregation) OutputName() string {
	if a.As != "" {
		return a.As
	}
	if a.Column == "" {
		return a.Func
	}
	return fmt.Sprintf("%s_%s", a.Func, a.Column)
}

// ValidateOps validates a whole pipeline, reporting the failing op index.
func ValidateOps(ops []Op) error {
	for i := range ops {
		if err := ops[i].Validate(); err != nil {
			return ErrValidation("op %d: %s", i, err.Error())
		}
	}
	return nil
}
