package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/restorank/restorank/core/restaurant"
)

// query params
const (
	pageParam   = "page"
	limitParam  = "limit"
	sortParam   = "sortBy"
	searchParam = "searchT"
	langParam   = "lang"
	tagsParam   = "tags"
)

// bindListFilter reads the listing query params leniently: malformed values fall back to defaults.
func bindListFilter(ctx echo.Context) restaurant.ListFilter {
	return restaurant.ListFilter{
		Page:   queryInt(ctx, pageParam),
		Limit:  queryInt(ctx, limitParam),
		Sort:   ctx.QueryParam(sortParam),
		Search: ctx.QueryParam(searchParam),
		Lang:   ctx.QueryParam(langParam),
		TagIDs: queryInts(ctx, tagsParam),
	}
}

func queryInt(ctx echo.Context, name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(ctx.QueryParam(name)))
	if err != nil {
		return 0
	}
	return n
}

// queryInts accepts both repeated (?tags=1&tags=2) and comma-separated (?tags=1,2) values.
func queryInts(ctx echo.Context, name string) []int {
	var ints []int
	for _, val := range ctx.QueryParams()[name] {
		for _, s := range strings.Split(val, ",") {
			if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
				ints = append(ints, n)
			}
		}
	}
	return ints
}

// pathID parses the ":id" path param; invalid IDs are reported as not found.
func pathID(ctx echo.Context) (int, bool) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}
