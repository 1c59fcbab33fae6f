package action

// Args is the canonical argument record produced by Normalize.
type Args interface {
	isArgs()
}

// TableArgs names a table, optionally aliased ("users as u").
type TableArgs struct {
	Table string
	Alias string
}

// ColumnsArgs lists column expressions.
type ColumnsArgs struct {
	Columns []string
}

// RawArgs is a raw SQL fragment with positional bindings.
type RawArgs struct {
	SQL      string
	Bindings []any
}

// NameArgs names a CTE or a subquery alias.
type NameArgs struct {
	Name string
}

// FlagArgs is a switch; Enabled is false only for an explicit false.
type FlagArgs struct {
	Enabled bool
}

// WhereArgs compares a column with a value.
type WhereArgs struct {
	Column   string
	Operator string
	Value    any
}

// InArgs tests membership. Values is nil when the list comes from a query.
type InArgs struct {
	Column string
	Values []any
}

// BetweenArgs bounds a column inclusively.
type BetweenArgs struct {
	Column string
	Start  any
	End    any
}

// ColumnArgs names a single column.
type ColumnArgs struct {
	Column string
}

// CompareArgs compares two columns.
type CompareArgs struct {
	First    string
	Operator string
	Second   string
}

// JoinArgs joins a table (or a subquery alias for joinSub kinds). First,
// Operator, and Second are empty when the join uses an "on" list.
type JoinArgs struct {
	Table    string
	Alias    string
	First    string
	Operator string
	Second   string
}

// OrderArgs orders by one column.
type OrderArgs struct {
	Column    string
	Direction string
}

// NumberArgs is a non-negative count.
type NumberArgs struct {
	Value uint64
}

// PageArgs selects a page. Zero values mean "use the default".
type PageArgs struct {
	Page    int
	MaxRows int
}

// FindArgs looks a row up by key.
type FindArgs struct {
	ID     any
	Column string
}

func (TableArgs) isArgs()   {}
func (ColumnsArgs) isArgs() {}
func (RawArgs) isArgs()     {}
func (NameArgs) isArgs()    {}
func (FlagArgs) isArgs()    {}
func (WhereArgs) isArgs()   {}
func (InArgs) isArgs()      {}
func (BetweenArgs) isArgs() {}
func (ColumnArgs) isArgs()  {}
func (CompareArgs) isArgs() {}
func (JoinArgs) isArgs()    {}
func (OrderArgs) isArgs()   {}
func (NumberArgs) isArgs()  {}
func (PageArgs) isArgs()    {}
func (FindArgs) isArgs()    {}
