package mockstore

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starford/gts-portal/internal/apperr"
)

// Order is one sort key.
type Order struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

// Query selects rows from a table.
//
// Where entries are ANDed; a slice value matches when the field equals any
// element. OrderBy keys apply in sequence. Limit <= 0 means no limit.
type Query struct {
	Where   map[string]any `json:"where,omitempty"`
	OrderBy []Order        `json:"order_by,omitempty"`
	Limit   int            `json:"limit,omitempty"`
	Offset  int            `json:"offset,omitempty"`
}

// ParseOrder parses a comma-separated list of sort keys, each optionally
// suffixed with ".asc" or ".desc", e.g. "amount.desc,title".
func ParseOrder(s string) ([]Order, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []Order
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		o := Order{Field: part}
		if i := strings.LastIndexByte(part, '.'); i >= 0 {
			switch part[i+1:] {
			case "desc":
				o = Order{Field: part[:i], Desc: true}
			case "asc":
				o = Order{Field: part[:i]}
			}
		}
		if o.Field == "" {
			return nil, fmt.Errorf("%w: empty order field", apperr.ErrInvalidInput)
		}
		out = append(out, o)
	}
	return out, nil
}

// normalize validates q and converts its filter values to JSON form.
func (q Query) normalize() (Query, error) {
	if q.Limit < 0 || q.Offset < 0 {
		return q, fmt.Errorf("%w: limit and offset must not be negative", apperr.ErrInvalidInput)
	}
	for _, o := range q.OrderBy {
		if o.Field == "" {
			return q, fmt.Errorf("%w: order field is required", apperr.ErrInvalidInput)
		}
	}
	if len(q.Where) == 0 {
		return q, nil
	}
	where := make(map[string]any, len(q.Where))
	for k, v := range q.Where {
		nv, err := normalizeValue(v)
		if err != nil {
			return q, fmt.Errorf("%w: where %s: %v", apperr.ErrInvalidInput, k, err)
		}
		where[k] = nv
	}
	q.Where = where
	return q, nil
}

func (q Query) matches(r Record) bool {
	for field, want := range q.Where {
		if !matchValue(r[field], want) {
			return false
		}
	}
	return true
}

// apply filters, sorts, and paginates rows. The input slice is not modified.
func (q Query) apply(rows []Record) []Record {
	return q.page(q.filterSort(rows))
}

// filterSort returns the rows matching q.Where in q.OrderBy order.
func (q Query) filterSort(rows []Record) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		if q.matches(r) {
			out = append(out, r)
		}
	}

	if len(q.OrderBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.OrderBy {
				a, b := out[i][o.Field], out[j][o.Field]
				// Missing values sort last in either direction.
				switch {
				case a == nil && b == nil:
					continue
				case a == nil:
					return false
				case b == nil:
					return true
				}
				c := compareValues(a, b)
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
	return out
}

// page applies q.Offset and q.Limit.
func (q Query) page(out []Record) []Record {
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return []Record{}
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out
}
