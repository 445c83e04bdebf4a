package drive

// Result is the caller-facing envelope every adapter operation maps into at
// the surface boundary. Code 0 with empty Data is a valid success (an empty
// directory, for example).
type Result[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// NewResult wraps an operation outcome in the envelope. The error's taxonomy
// sentinel determines the code; human-readable detail goes in Message.
func NewResult[T any](data T, err error) Result[T] {
	if err != nil {
		return Result[T]{
			Code:    Code(err),
			Message: err.Error(),
			Data:    data,
		}
	}

	return Result[T]{
		Code:    codeOK,
		Message: "success",
		Data:    data,
	}
}

// OK reports whether the envelope carries a success.
func (r Result[T]) OK() bool {
	return r.Code == codeOK
}
