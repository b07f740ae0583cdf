package http

import (
	"encoding/json"
	"net/http"
)

type PaginatedResponse[T any] struct {
	Data       []T                `json:"data"`
	Pagination PaginationMetadata `json:"pagination"`
}

type PaginationMetadata struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// WriteJSON sends v with status. Encode errors are dropped since the
// header is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, data)
}

// WritePaginatedSimple expects rows fetched with limit+1. The surplus row
// sets hasMore and is not sent.
func WritePaginatedSimple[T any](w http.ResponseWriter, rows []T, limit, offset int) {
	page := PaginatedResponse[T]{
		Data:       make([]T, 0, min(len(rows), limit)),
		Pagination: PaginationMetadata{Limit: limit, Offset: offset, HasMore: len(rows) > limit},
	}
	page.Data = append(page.Data, rows[:min(len(rows), limit)]...)
	WriteJSON(w, http.StatusOK, page)
}
