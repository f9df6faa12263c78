package pipeline

import (
	"errors"
	"fmt"
)

// Kind 错误分类，响应里只暴露 code + message
type Kind string

const (
	KindUnsupportedFormat   Kind = "unsupported_format"
	KindPayloadTooLarge     Kind = "payload_too_large"
	KindCorruptImage        Kind = "corrupt_image"
	KindDimensionOutOfRange Kind = "dimension_out_of_range"
	KindInvalidColor        Kind = "invalid_color"
	KindSegmentationFailed  Kind = "segmentation_failed"
	KindEncodingFailed      Kind = "encoding_failed"
	KindInternal            Kind = "internal_error"
)

// Error carries a stable classification plus a short caller-facing message.
// The wrapped cause stays server-side for logging.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf 取出错误分类，未分类的一律归为 internal_error
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-facing message for err. Unclassified errors
// get a generic message so internal detail never leaks.
func MessageOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	return "failed to process image"
}
