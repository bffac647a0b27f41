package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Pagination describes a cursor page in list responses.
type Pagination struct {
	Limit      int    `json:"limit"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// NewPagination builds the page metadata for a cursor result.
func NewPagination(limit int, nextCursor string) Pagination {
	return Pagination{Limit: limit, NextCursor: nextCursor, HasMore: nextCursor != ""}
}

// ListResult is the standard shape for paginated list endpoints.
type ListResult[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}
