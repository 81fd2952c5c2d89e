package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"previsioni/internal/core"
)

const maxBodyBytes = 1 << 20

var (
	errInvalidJSON   = errors.New("invalid JSON body")
	errMissingUserID = errors.New("missing user_id")
)

// UserID accepts both JSON numbers and strings and echoes the value back in
// the form it was received.
type UserID struct {
	value   string
	numeric bool
}

func (u UserID) String() string { return u.value }

// IsZero reports whether no usable id was given.
func (u UserID) IsZero() bool { return strings.TrimSpace(u.value) == "" }

func (u *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*u = UserID{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = UserID{value: strings.TrimSpace(s)}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user_id must be a string or a number")
	}
	*u = UserID{value: n.String(), numeric: true}
	return nil
}

func (u UserID) MarshalJSON() ([]byte, error) {
	if u.numeric {
		return []byte(u.value), nil
	}
	return json.Marshal(u.value)
}

// PredictRequest is the body of POST /predict. Features are optional; a null
// value asks for the reference mean of that column.
type PredictRequest struct {
	UserID   UserID        `json:"user_id"`
	Features core.Features `json:"features,omitempty"`
}

// ExpenseRequest is the body of POST /expenses. Amount may be a JSON number
// or a string using either decimal separator.
type ExpenseRequest struct {
	UserID   UserID          `json:"user_id"`
	Amount   json.RawMessage `json:"amount"`
	Category string          `json:"category"`
	Date     string          `json:"date"`
	Note     string          `json:"note"`
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return errInvalidJSON
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	return nil
}

// ParsePredictRequest decodes and validates a prediction request.
func ParsePredictRequest(w http.ResponseWriter, r *http.Request) (PredictRequest, error) {
	var req PredictRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return req, err
	}
	if req.UserID.IsZero() {
		return req, errMissingUserID
	}
	return req, nil
}

// ParseExpenseRequest decodes a JSON or form-encoded expense into a
// transaction.
func ParseExpenseRequest(w http.ResponseWriter, r *http.Request) (core.Transaction, error) {
	var req ExpenseRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return core.Transaction{}, fmt.Errorf("invalid form body: %w", err)
		}
		req = ExpenseRequest{
			UserID:   UserID{value: sanitizeInput(r.PostForm.Get("user_id"))},
			Amount:   json.RawMessage(strconv.Quote(r.PostForm.Get("amount"))),
			Category: r.PostForm.Get("category"),
			Date:     r.PostForm.Get("date"),
			Note:     r.PostForm.Get("note"),
		}
	} else if err := decodeJSON(w, r, &req); err != nil {
		return core.Transaction{}, err
	}

	if req.UserID.IsZero() {
		return core.Transaction{}, errMissingUserID
	}

	raw := strings.TrimSpace(string(req.Amount))
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	amount, err := core.ParseAmount(raw)
	if err != nil {
		return core.Transaction{}, err
	}

	date := sanitizeInput(req.Date)
	if _, err := core.ParseDate(date); err != nil {
		return core.Transaction{}, err
	}

	return core.Transaction{
		UserID:   req.UserID.String(),
		Amount:   amount,
		Category: sanitizeInput(req.Category),
		Date:     date,
		Note:     sanitizeInput(req.Note),
	}, nil
}
