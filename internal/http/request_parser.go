// Package http provides the JSON API of the ledger.
//
// This file implements utilities for reading identity, scope, months and
// JSON bodies from requests.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"finboard/internal/core"
)

const (
	// UserHeader carries the authenticated user id set by the gateway.
	UserHeader = "X-User-ID"

	maxBodyBytes = 1 << 20
)

var errMissingUser = errors.New("missing " + UserHeader + " header")

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string {
	return e.msg
}

// userID returns the caller identity.
func userID(r *http.Request) (string, error) {
	user := strings.TrimSpace(r.Header.Get(UserHeader))
	if user == "" {
		return "", errMissingUser
	}
	return user, nil
}

// scopeFor picks the board named by boardID, or the user's personal ledger.
func scopeFor(user, boardID string) core.Scope {
	if boardID = strings.TrimSpace(boardID); boardID != "" {
		return core.BoardScope(boardID)
	}
	return core.PersonalScope(user)
}

// parseMonthParam reads a YYYY-MM query value, falling back when absent.
func parseMonthParam(query url.Values, name string, fallback core.Month) (core.Month, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return fallback, nil
	}
	m, err := core.ParseMonth(v)
	if err != nil {
		return core.Month{}, &core.FieldError{Field: name, Err: core.ErrInvalidMonth}
	}
	return m, nil
}

// parseMonthRange reads month, or from and to. Missing values default to
// the current month and to defaults to from.
func parseMonthRange(query url.Values, current core.Month) (from, to core.Month, err error) {
	month, err := parseMonthParam(query, "month", current)
	if err != nil {
		return core.Month{}, core.Month{}, err
	}
	if from, err = parseMonthParam(query, "from", month); err != nil {
		return core.Month{}, core.Month{}, err
	}
	if to, err = parseMonthParam(query, "to", from); err != nil {
		return core.Month{}, core.Month{}, err
	}
	return from, to, nil
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return &badRequestError{msg: "request body is empty"}
		case errors.As(err, &maxErr):
			return &badRequestError{msg: fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)}
		default:
			return &badRequestError{msg: "invalid JSON body: " + err.Error()}
		}
	}
	if dec.More() {
		return &badRequestError{msg: "request body must hold a single JSON object"}
	}
	return nil
}
