// Package httputil holds the request and response helpers shared by the HTTP handlers.
package httputil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"

	apperrors "commrouter/internal/errors"
)

// ClientIP returns the caller address: the first X-Forwarded-For hop, then
// X-Real-IP, then the connection's remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if addrPort, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return addrPort.Addr().String()
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as the standard error body with its mapped status.
func WriteError(w http.ResponseWriter, err error, requestID string) {
	WriteJSON(w, apperrors.HTTPStatusCode(err), apperrors.ToHTTPResponse(err, requestID))
}

// DecodeJSON reads at most maxBytes of body into v, rejecting unknown fields
// and trailing data.
func DecodeJSON(body io.Reader, maxBytes int64, v interface{}) error {
	data, err := io.ReadAll(io.LimitReader(body, maxBytes+1))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "failed to read request body")
	}
	if int64(len(data)) > maxBytes {
		return apperrors.New(apperrors.ErrCodeInvalidInput, fmt.Sprintf("request body exceeds %d bytes", maxBytes))
	}
	return DecodeJSONBytes(data, v)
}

// DecodeJSONBytes is DecodeJSON for an already buffered body.
func DecodeJSONBytes(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "invalid JSON body")
	}
	if dec.More() {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "unexpected data after JSON body")
	}
	return nil
}
