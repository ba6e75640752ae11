package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/diewo77/go-pos/httpx"
	"github.com/diewo77/go-pos/internal/services"
)

// ActorResolver returns the service actor of the request's session.
type ActorResolver interface {
	Actor(ctx context.Context) (services.Actor, error)
}

// ActorFunc adapts a function to ActorResolver.
type ActorFunc func(ctx context.Context) (services.Actor, error)

func (f ActorFunc) Actor(ctx context.Context) (services.Actor, error) { return f(ctx) }

// Page is the envelope of paginated lists.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

func newPage[T any](items []T, total int64, page, limit int) Page[T] {
	if items == nil {
		items = []T{}
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return Page[T]{Items: items, Total: total, Page: page, Limit: limit}
}

func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return 0, false
	}
	return uint(id), true
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func queryUint(r *http.Request, key string) uint {
	n, _ := strconv.ParseUint(r.URL.Query().Get(key), 10, 64)
	return uint(n)
}

// queryTime accepts RFC 3339 timestamps or plain dates.
func queryTime(r *http.Request, key string) (*time.Time, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, &services.ValidationError{Fields: map[string]string{key: "invalid_date"}}
}
