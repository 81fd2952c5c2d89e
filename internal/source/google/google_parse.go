package google

import (
	"fmt"
	"strings"

	"previsioni/internal/core"
)

// parseTransactions converts a values matrix (as returned by Sheets API)
// into transactions. The first row must be a header naming at least User,
// Amount and Date. Rows with an unparseable amount or no user are skipped.
func parseTransactions(values [][]interface{}) ([]core.Transaction, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := toStrings(values[0])
	colUser := indexOfAny(headers, "User", "user_id", "UserID")
	colAmount := indexOfAny(headers, "Amount", "expense_amount")
	colCategory := indexOfAny(headers, "Category", "category_name")
	colDate := indexOfAny(headers, "Date", "expense_date")
	colNote := indexOfAny(headers, "Note", "Description")
	if colUser == -1 || colAmount == -1 || colDate == -1 {
		missing := make([]string, 0, 3)
		if colUser == -1 {
			missing = append(missing, "User")
		}
		if colAmount == -1 {
			missing = append(missing, "Amount")
		}
		if colDate == -1 {
			missing = append(missing, "Date")
		}
		return nil, fmt.Errorf("unexpected expenses header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	var out []core.Transaction
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		user := safeGet(row, colUser)
		if user == "" {
			continue
		}
		amount, err := core.ParseAmount(safeGet(row, colAmount))
		if err != nil {
			continue
		}
		out = append(out, core.Transaction{
			UserID:   user,
			Amount:   amount,
			Category: safeGet(row, colCategory),
			Date:     safeGet(row, colDate),
			Note:     safeGet(row, colNote),
		})
	}
	return out, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOfAny(arr []string, targets ...string) int {
	for _, t := range targets {
		for i, v := range arr {
			if strings.EqualFold(strings.TrimSpace(v), t) {
				return i
			}
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
