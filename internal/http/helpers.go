package http

import (
	"net/http"
	"strconv"
	"strings"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// queryBool reads a boolean query parameter, accepting 1/true/yes.
func queryBool(r *http.Request, name string) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(name))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// queryInt reads a positive integer query parameter, falling back to def and
// capping at max.
func queryInt(r *http.Request, name string, def, max int) int {
	v, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(name)))
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
