package http

import (
	"encoding/json"
	"net/http"
)

// PaginatedResponse is a page of history. There is no total count, so
// HasMore is a hint derived from a full page.
type PaginatedResponse[T any] struct {
	Data       []T                `json:"data"`
	Pagination PaginationMetadata `json:"pagination"`
}

type PaginationMetadata struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// SuccessResponse wraps a single resource or an acknowledgement message.
type SuccessResponse struct {
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// ListResponse is a complete, unpaginated collection.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Count int `json:"count"`
}

// WriteJSON encodes v with status. Encode failures after the header is sent
// are dropped.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, SuccessResponse{Data: data})
}

func WritePage[T any](w http.ResponseWriter, items []T, limit, offset int) {
	items = nonNil(items)
	WriteJSON(w, http.StatusOK, PaginatedResponse[T]{
		Data:       items,
		Pagination: PaginationMetadata{Limit: limit, Offset: offset, HasMore: limit > 0 && len(items) >= limit},
	})
}

func WriteList[T any](w http.ResponseWriter, items []T) {
	items = nonNil(items)
	WriteJSON(w, http.StatusOK, ListResponse[T]{Data: items, Count: len(items)})
}

// nonNil makes empty collections encode as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
