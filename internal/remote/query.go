package remote

import (
	"sort"
	"strings"
)

type Op string

const (
	OpEq  Op = "=="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

type Order struct {
	Field     string
	Direction Direction
}

// Query 查询条件：过滤 + 排序 + 限制条数。Limit<=0 表示不限
type Query struct {
	Filters []Filter
	OrderBy []Order
	Limit   int
}

// Where 追加一个过滤条件，返回新的 Query
func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

func (q Query) Order(field string, dir Direction) Query {
	q.OrderBy = append(append([]Order(nil), q.OrderBy...), Order{Field: field, Direction: dir})
	return q
}

func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

// Apply 在内存中执行查询。docs 需按创建顺序传入；
// 缺少排序字段的文档会被排除，与远端存储保持一致
func Apply(docs []Document, q Query) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if matches(d.Data, q) {
			out = append(out, d)
		}
	}
	if len(q.OrderBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.OrderBy {
				a, _ := Lookup(out[i].Data, o.Field)
				b, _ := Lookup(out[j].Data, o.Field)
				c := compare(a, b)
				if c == 0 {
					continue
				}
				if o.Direction == Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func matches(data map[string]any, q Query) bool {
	for _, o := range q.OrderBy {
		if v, ok := Lookup(data, o.Field); !ok || v == nil {
			return false
		}
	}
	for _, f := range q.Filters {
		v, ok := Lookup(data, f.Field)
		if !ok {
			return false
		}
		if !sameKind(v, f.Value) {
			return false
		}
		c := compare(v, f.Value)
		switch f.Op {
		case OpEq:
			if c != 0 {
				return false
			}
		case OpLt:
			if c >= 0 {
				return false
			}
		case OpLte:
			if c > 0 {
				return false
			}
		case OpGt:
			if c <= 0 {
				return false
			}
		case OpGte:
			if c < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// 只有同类值之间才能比较：数字与数字、字符串与字符串、布尔与布尔
func sameKind(a, b any) bool {
	_, an := toFloat(a)
	_, bn := toFloat(b)
	if an || bn {
		return an && bn
	}
	switch a.(type) {
	case string:
		_, ok := b.(string)
		return ok
	case bool:
		_, ok := b.(bool)
		return ok
	}
	return false
}

// compare 返回 -1/0/1；不同类型按 nil < bool < number < string 排序
func compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 1:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case 2:
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case 3:
		return strings.Compare(a.(string), b.(string))
	}
	return 0
}

func rank(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := v.(bool); ok {
		return 1
	}
	if _, ok := toFloat(v); ok {
		return 2
	}
	if _, ok := v.(string); ok {
		return 3
	}
	return 4
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint:
		return float64(n), true
	}
	return 0, false
}
