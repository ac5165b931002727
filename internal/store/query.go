package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

type Clause struct {
	c     *Collection
	field string
}

// Where starts an equality filter on field.
func (c *Collection) Where(field string) Clause {
	return Clause{c: c, field: field}
}

// Equals matches records whose field holds value. Numbers compare by value
// regardless of their Go type; a record without the field never matches.
func (cl Clause) Equals(value any) Filter {
	return Filter{c: cl.c, field: cl.field, value: value}
}

type Filter struct {
	c     *Collection
	field string
	value any
}

func (f Filter) match(r Record) bool {
	v, ok := r[f.field]
	if !ok {
		return false
	}
	return equal(v, f.value)
}

// First returns the first match in stored order.
func (f Filter) First(ctx context.Context) (Record, bool, error) {
	items, err := f.c.read(ctx, "first")
	if err != nil {
		return nil, false, err
	}
	for _, it := range items {
		if f.match(it) {
			return it, true, nil
		}
	}
	return nil, false, nil
}

// ToArray returns every match in stored order, never nil.
func (f Filter) ToArray(ctx context.Context) ([]Record, error) {
	items, err := f.c.read(ctx, "toArray")
	if err != nil {
		return nil, err
	}
	out := []Record{}
	for _, it := range items {
		if f.match(it) {
			out = append(out, it)
		}
	}
	return out, nil
}

// Delete removes every match in one write with one notification and
// reports how many records went.
func (f Filter) Delete(ctx context.Context) (int, error) {
	removed := 0
	err := f.c.mutate(ctx, OpDelete, func(items []Record) ([]Record, bool) {
		kept := items[:0]
		for _, it := range items {
			if f.match(it) {
				removed++
				continue
			}
			kept = append(kept, it)
		}
		return kept, removed > 0
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

type Order struct {
	c     *Collection
	field string
}

func (c *Collection) OrderBy(field string) Order {
	return Order{c: c, field: field}
}

// Last returns the record with the greatest field value. Ties keep stored
// order, so the later-stored record wins.
func (o Order) Last(ctx context.Context) (Record, bool, error) {
	items, err := o.c.read(ctx, "orderBy")
	if err != nil {
		return nil, false, err
	}
	if len(items) == 0 {
		return nil, false, nil
	}
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b Record) int {
		return Compare(a[o.field], b[o.field])
	})
	return sorted[len(sorted)-1], true, nil
}

// Compare orders two field values: missing or null first, then booleans,
// numbers and strings. Values of the same kind compare naturally; anything
// else compares by its printed form.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case rankNull:
		return 0
	case rankBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case rankNumber:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case rankString:
		return strings.Compare(a.(string), b.(string))
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

const (
	rankNull = iota
	rankBool
	rankNumber
	rankString
	rankOther
)

func rank(v any) int {
	if v == nil {
		return rankNull
	}
	if _, ok := v.(bool); ok {
		return rankBool
	}
	if _, ok := toFloat(v); ok {
		return rankNumber
	}
	if _, ok := v.(string); ok {
		return rankString
	}
	return rankOther
}

func equal(stored, want any) bool {
	if fs, ok := toFloat(stored); ok {
		fw, ok := toFloat(want)
		return ok && fs == fw
	}
	switch s := stored.(type) {
	case nil:
		return want == nil
	case string:
		w, ok := want.(string)
		return ok && s == w
	case bool:
		w, ok := want.(bool)
		return ok && s == w
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	}
	return 0, false
}
