/*
Package req provides helper functions for HTTP request parsing and data binding.

It encapsulates JSON body binding with size limits and path parameter parsing,
mapping every failure onto an errs.CustomError for the REST envelope.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"campuschat/internal/pkg/errs"
)

// MaxJSONBodySize bounds the REST request bodies (block and report requests are tiny).
const MaxJSONBodySize int64 = 64 << 10 // 64 KB

// BindJSON attempts to bind the JSON data from the HTTP request body to the destination struct dst.
func BindJSON(r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxJSONBodySize))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}

// PathInt64 parses the named chi URL parameter as a positive int64.
func PathInt64(r *http.Request, name string) (int64, *errs.CustomError) {
	raw := chi.URLParam(r, name)

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, errs.NewError(errs.ErrInvalidParams)
	}

	return v, nil
}
