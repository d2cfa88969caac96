package httpx

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/linkshelf/pkg/linkshelf/errx"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PageQuery parses the page and pageSize query parameters. Missing values
// fall back to page 1 and DefaultPageSize; anything below 1 is rejected.
func PageQuery(c *gin.Context) (page, pageSize int, err error) {
	page, err = intQuery(c, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	pageSize, err = intQuery(c, "pageSize", DefaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	if pageSize > MaxPageSize {
		return 0, 0, FieldError("query", "pageSize", "must be at most "+strconv.Itoa(MaxPageSize))
	}
	return page, pageSize, nil
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, FieldError("query", name, "must be a number")
	}
	if n < 1 {
		return 0, FieldError("query", name, "must be at least 1")
	}
	return n, nil
}

// UintQuery parses an optional unsigned integer query parameter; a missing
// value yields 0.
func UintQuery(c *gin.Context, name string) (uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, FieldError("query", name, "must be a non-negative number")
	}
	return uint(n), nil
}

// UintParam parses a numeric path parameter.
func UintParam(c *gin.Context, name string) (uint, error) {
	n, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, errx.Errorf("param", errx.Invalid, "Invalid %s", name)
	}
	return uint(n), nil
}

// IDList parses a comma separated list of ids ("1,2,3"). Repeated query
// parameters (?tags=1&tags=2) are accepted as well.
func IDList(c *gin.Context, name string) ([]uint, error) {
	var ids []uint
	for _, raw := range c.QueryArray(name) {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.ParseUint(part, 10, 32)
			if err != nil {
				return nil, FieldError("query", name, "must be a comma separated list of ids")
			}
			ids = append(ids, uint(n))
		}
	}
	return ids, nil
}
