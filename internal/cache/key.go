package cache

import (
	"sort"
	"strconv"
	"strings"

	"previsioni/internal/core"
)

// PredictionKey builds a stable key for a user and explicit feature set.
// Nil values are kept distinct from zero so substitution stays observable.
func PredictionKey(userID string, features core.Features) string {
	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(userID)
	for _, name := range names {
		b.WriteByte('|')
		b.WriteString(name)
		b.WriteByte('=')
		if v := features[name]; v == nil {
			b.WriteString("nil")
		} else {
			b.WriteString(strconv.FormatFloat(*v, 'g', -1, 64))
		}
	}
	return b.String()
}
