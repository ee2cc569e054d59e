package commons

// Response is the envelope of every HTTP reply. ErrorClass tells clients
// whether a failed call may be retried as is.
type Response[T any] struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	Data       *T       `json:"data,omitempty"`
	Errors     []string `json:"errors,omitempty"`
	ErrorClass string   `json:"errorClass,omitempty"`
}

type Page[T any] struct {
	Items      []T   `json:"items"`
	NextCursor int64 `json:"nextCursor,omitempty"`
}

func SuccessResponse[T any](message string, data T) Response[T] {
	return Response[T]{
		Success: true,
		Message: message,
		Data:    &data,
	}
}

func ErrorResponse[T any](message string, errors ...string) Response[T] {
	return Response[T]{
		Success: false,
		Message: message,
		Errors:  errors,
	}
}

func ClassifiedErrorResponse[T any](message string, class string, errors ...string) Response[T] {
	response := ErrorResponse[T](message, errors...)
	response.ErrorClass = class
	return response
}
