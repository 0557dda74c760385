package docstore

import (
	"sort"
	"strings"
	"time"
)

// DocumentID is the pseudo field that addresses a document's id in filters.
const DocumentID = "__name__"

type Op string

const (
	OpEqual         Op = "=="
	OpArrayContains Op = "array-contains"
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

type Order struct {
	Field string
	Desc  bool
}

// Query selects documents of one collection.
type Query struct {
	Collection string
	Where      []Filter
	OrderBy    []Order
	Limit      int
}

// Where is a shorthand for a single filter query.
func Where(collection, field string, op Op, value any) Query {
	return Query{Collection: collection, Where: []Filter{{Field: field, Op: op, Value: value}}}
}

// OrderedBy returns a copy of q with an extra sort key.
func (q Query) OrderedBy(field string, desc bool) Query {
	q.OrderBy = append(append([]Order(nil), q.OrderBy...), Order{Field: field, Desc: desc})
	return q
}

// Matches reports whether doc passes every filter. Documents lacking an
// ordering field never match.
func (q Query) Matches(doc Document) bool {
	for _, f := range q.Where {
		if !f.matches(doc) {
			return false
		}
	}
	for _, o := range q.OrderBy {
		if _, ok := lookup(doc, o.Field); !ok {
			return false
		}
	}
	return true
}

func (f Filter) matches(doc Document) bool {
	v, ok := lookup(doc, f.Field)
	if !ok {
		return false
	}
	switch f.Op {
	case OpEqual:
		return compare(v, f.Value) == 0 && sameKind(v, f.Value)
	case OpArrayContains:
		items, ok := v.([]any)
		if !ok {
			if ss, isStrings := v.([]string); isStrings {
				for _, s := range ss {
					if s == f.Value {
						return true
					}
				}
			}
			return false
		}
		for _, item := range items {
			if sameKind(item, f.Value) && compare(item, f.Value) == 0 {
				return true
			}
		}
	}
	return false
}

// Apply filters, sorts and limits docs. The input order is kept for ties and
// when the query has no ordering.
func (q Query) Apply(docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if q.Matches(d) {
			out = append(out, d)
		}
	}
	if len(q.OrderBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.OrderBy {
				a, _ := lookup(out[i], o.Field)
				b, _ := lookup(out[j], o.Field)
				c := compare(a, b)
				if c == 0 {
					continue
				}
				if o.Desc {
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

func lookup(doc Document, field string) (any, bool) {
	if field == DocumentID {
		return doc.ID, true
	}
	var cur any = map[string]any(doc.Fields)
	for _, part := range strings.Split(field, ".") {
		m, ok := Map(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func sameKind(a, b any) bool {
	return kindRank(a) == kindRank(b)
}

// kindRank orders values of different types the way document databases do:
// null < bool < number < timestamp < string < anything else.
func kindRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int, int32, int64, float32, float64:
		return 2
	case time.Time:
		return 3
	case string:
		return 4
	}
	return 5
}

func compare(a, b any) int {
	ra, rb := kindRank(a), kindRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case time.Time:
		return x.Compare(b.(time.Time))
	case string:
		return strings.Compare(x, b.(string))
	}
	if ra == 2 {
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
