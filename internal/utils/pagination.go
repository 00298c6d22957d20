// Package utils holds small helpers shared by the transport and service
// layers. Nothing here knows about tenants or the pipeline.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses s (surrounding spaces ignored) or returns def when s is
// empty or not an integer.
func AtoiDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampPage bounds page to >= 1 and size to 1..maxSize. A non-positive size
// becomes def.
func ClampPage(page, size, def, maxSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = def
	}
	if size > maxSize {
		size = maxSize
	}
	return page, size
}

// PageOffset is the row offset of a 1-based page.
func PageOffset(page, size int) int {
	if page < 1 || size < 1 {
		return 0
	}
	return (page - 1) * size
}

// TotalPages rounds total/size up; zero when size is not positive.
func TotalPages(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
