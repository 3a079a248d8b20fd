// File: protocol/http1/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package http1

import (
	"errors"

	"github.com/momentics/hioload-nio/api"
)

// Sentinel causes. Decode wraps them in *api.Error so callers can test
// either the cause with errors.Is or the class with api.CodeOf.
var (
	ErrHeaderTooLarge   = errors.New("http1: header block too large")
	ErrMalformedRequest = errors.New("http1: malformed request")
	ErrContentLength    = errors.New("http1: body strategy requires a positive content length")
	ErrBodyTooLarge     = errors.New("http1: buffered body too large")
	ErrUnexpectedEOF    = errors.New("http1: end of stream inside a request")
	ErrBodyAborted      = errors.New("http1: body stream aborted")
	ErrStateRegression  = errors.New("http1: decode state moved backwards")
)

func malformed(msg string) error {
	return api.NewError(api.ErrCodeMalformedRequest, msg).Wrap(ErrMalformedRequest)
}

func headerTooLarge(limit int) error {
	return api.NewError(api.ErrCodeMalformedRequest, "header block exceeds limit").
		WithContext("limit", limit).Wrap(ErrHeaderTooLarge)
}

func bodyTooLarge(length, limit int64) error {
	return api.NewError(api.ErrCodeResourceExhausted, "content length exceeds buffered body limit").
		WithContext("content_length", length).WithContext("limit", limit).Wrap(ErrBodyTooLarge)
}

func unexpectedEOF(part Part) error {
	return api.NewError(api.ErrCodeMalformedRequest, "peer closed mid request").
		WithContext("part", part.String()).Wrap(ErrUnexpectedEOF)
}

func contractViolation(cause error, kv ...any) error {
	e := api.NewError(api.ErrCodeContractViolation, "decoder contract violated")
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			e.WithContext(k, kv[i+1])
		}
	}
	return e.Wrap(cause)
}
