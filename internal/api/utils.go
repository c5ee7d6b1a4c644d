package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/schema"
)

type codedError struct {
	msg   string
	cause error
	code  int
}

func (e *codedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *codedError) Unwrap() error {
	return e.cause
}

func CodedErrorf(code int, format string, args ...any) error {
	return &codedError{msg: fmt.Sprintf(format, args...), code: code}
}

// DetailedError pairs a stable caller-facing message with the underlying
// cause; the cause lands in the response's details field.
func DetailedError(code int, msg string, cause error) error {
	return &codedError{msg: msg, cause: cause, code: code}
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJsonError(w http.ResponseWriter, code int, msg, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: msg, Details: details}); err != nil {
		slog.Error("error serializing error response", "error", err)
	}
}

func ParseRequest[T any](r *http.Request) (T, error) {
	var data T
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		slog.Error("error parsing request body", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request body")
	}
	return data, nil
}

func ParseRequestQueryParams[T any](r *http.Request) (T, error) {
	var data T
	if err := r.ParseForm(); err != nil {
		slog.Error("error parsing form", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request query params")
	}

	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	if err := decoder.Decode(&data, r.Form); err != nil {
		slog.Error("error decoding query params", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request query params")
	}

	return data, nil
}

// RestHandler adapts a handler returning (body, error) to http.HandlerFunc.
// Coded errors map to their status with a JSON {error, details} body; any
// other error is a 500 with the cause in details.
func RestHandler(handler func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r)
		if err != nil {
			var cerr *codedError
			if errors.As(err, &cerr) {
				details := ""
				if cerr.cause != nil {
					details = cerr.cause.Error()
				}
				writeJsonError(w, cerr.code, cerr.msg, details)
				if cerr.code == http.StatusInternalServerError {
					slog.Error("internal server error received in endpoint", "error", err)
				}
			} else {
				slog.Error("received non coded error from endpoint", "error", err)
				writeJsonError(w, http.StatusInternalServerError, "failed to process request", err.Error())
			}
			return
		}

		if res == nil {
			res = struct{}{}
		}

		WriteJsonResponse(w, res)
	}
}

func WriteJsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("error serializing response body", "error", err)
	}
}

// URLParamTokenId parses the {token_id} route parameter. Token ids are
// non-negative integers assigned by the registry contract.
func URLParamTokenId(r *http.Request) (uint64, error) {
	param := chi.URLParam(r, "token_id")

	if len(param) == 0 {
		return 0, CodedErrorf(http.StatusBadRequest, "invalid token ID format")
	}

	tokenId, err := strconv.ParseUint(param, 10, 64)
	if err != nil {
		return 0, CodedErrorf(http.StatusBadRequest, "invalid token ID: must be a non-negative number")
	}

	return tokenId, nil
}
