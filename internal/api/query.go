package api

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/starford/gts-portal/internal/apperr"
	"github.com/starford/gts-portal/internal/mockstore"
)

// Reserved query parameters; every other parameter is a filter.
const (
	paramOrder  = "order"
	paramLimit  = "limit"
	paramOffset = "offset"
)

// parseListQuery turns PostgREST-style query parameters into a store query:
//
//	status=vip                 equality
//	status=eq.vip              equality
//	status=in.(lead,active)    membership
//	manager_id=is.null         missing or null
//	order=amount.desc,title    sort keys, ascending by default
//	limit=10&offset=20         pagination
//
// Repeating a filter parameter is the same as an in list.
func parseListQuery(values url.Values) (mockstore.Query, error) {
	var q mockstore.Query

	for _, key := range []string{paramLimit, paramOffset} {
		raw := values.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, fmt.Errorf("%w: %s must be a non-negative integer", apperr.ErrInvalidInput, key)
		}
		if key == paramLimit {
			q.Limit = n
		} else {
			q.Offset = n
		}
	}

	order, err := mockstore.ParseOrder(values.Get(paramOrder))
	if err != nil {
		return q, err
	}
	q.OrderBy = order

	keys := make([]string, 0, len(values))
	for k := range values {
		switch k {
		case paramOrder, paramLimit, paramOffset:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, field := range keys {
		vals := values[field]
		if q.Where == nil {
			q.Where = make(map[string]any, len(keys))
		}
		if len(vals) == 1 {
			q.Where[field] = parseFilter(vals[0])
			continue
		}
		list := make([]any, 0, len(vals))
		for _, v := range vals {
			list = append(list, parseFilter(v))
		}
		q.Where[field] = list
	}
	return q, nil
}

func parseFilter(v string) any {
	switch {
	case v == "is.null":
		return nil
	case strings.HasPrefix(v, "eq."):
		return strings.TrimPrefix(v, "eq.")
	case strings.HasPrefix(v, "in.(") && strings.HasSuffix(v, ")"):
		inner := strings.TrimSuffix(strings.TrimPrefix(v, "in.("), ")")
		list := []any{}
		if inner == "" {
			return list
		}
		for _, item := range strings.Split(inner, ",") {
			list = append(list, strings.Trim(strings.TrimSpace(item), `"`))
		}
		return list
	default:
		return v
	}
}
