// Package apperr classifies failures of store-backed operations so each call
// site can decide between logging, surfacing a notice, or ignoring.
package apperr

import (
	"context"
	stderrors "errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindFetch: a read failed. Log and keep prior state.
	KindFetch
	// KindWrite: a primary insert/update/delete failed. Surface a notice.
	KindWrite
	// KindDependentWrite: a side-effect write failed after the primary
	// write succeeded. Log only.
	KindDependentWrite
	// KindValidation: input rejected before any store call.
	KindValidation
	// KindConflict: a compare-and-swap found a different current value.
	KindConflict
	// KindTimeout: the store call exceeded its deadline.
	KindTimeout
	// KindNotFound: the target row of a mutation does not exist.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindWrite:
		return "write"
	case KindDependentWrite:
		return "dependent_write"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindTimeout:
		return "timeout"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind  Kind
	Op    string
	Field string // validation only
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Field, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Fetch wraps a read failure. Deadline errors become KindTimeout.
func Fetch(op string, err error) error {
	return wrap(KindFetch, op, err)
}

// Write wraps a primary write failure. Deadline errors become KindTimeout.
func Write(op string, err error) error {
	return wrap(KindWrite, op, err)
}

// Dependent wraps a side-effect failure. It stays KindDependentWrite even on
// deadline so callers never surface it.
func Dependent(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindDependentWrite, Op: op, Err: err}
}

func Validation(field, msg string) error {
	return &Error{Kind: KindValidation, Op: "validate", Field: field, Err: stderrors.New(msg)}
}

func Conflict(op, msg string) error {
	return &Error{Kind: KindConflict, Op: op, Err: stderrors.New(msg)}
}

func NotFound(op, msg string) error {
	return &Error{Kind: KindNotFound, Op: op, Err: stderrors.New(msg)}
}

func wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if stderrors.As(err, &ae) && ae.Kind != KindUnknown {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var ae *Error
	if stderrors.As(err, &ae) {
		return ae.Kind
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FieldOf returns the offending field of a validation error.
func FieldOf(err error) string {
	var ae *Error
	if stderrors.As(err, &ae) {
		return ae.Field
	}
	return ""
}

// Surfaced reports whether err should be shown to the user. Read failures and
// side-effect failures are silent.
func Surfaced(err error) bool {
	switch KindOf(err) {
	case KindFetch, KindDependentWrite:
		return false
	}
	return err != nil
}

// UserMessage renders the transient notice for a surfaced error.
func UserMessage(err error) string {
	var ae *Error
	stderrors.As(err, &ae)
	switch KindOf(err) {
	case KindValidation:
		if ae != nil && ae.Err != nil && ae.Err.Error() != "" {
			return ae.Err.Error()
		}
		return "入力内容を確認してください。"
	case KindConflict:
		if ae != nil && ae.Err != nil && ae.Err.Error() != "" {
			return ae.Err.Error()
		}
		return "他のユーザーが先に更新しました。最新の状態を読み込んでから再度お試しください。"
	case KindTimeout:
		return "サーバーの応答がありません。時間をおいて再度お試しください。"
	case KindNotFound:
		if ae != nil && ae.Err != nil && ae.Err.Error() != "" {
			return ae.Err.Error()
		}
		return "対象のデータが見つかりません。"
	default:
		return "保存に失敗しました。時間をおいて再度お試しください。"
	}
}
