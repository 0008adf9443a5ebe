package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "commrouter/internal/errors"
)

const (
	signatureHeader = "X-Signature"
	timestampHeader = "X-Signature-Timestamp"
)

// verifySignature reads the request body and checks it against the
// "sha256=<hex>" HMAC of "<timestamp>.<body>". Requests whose timestamp is
// further than maxSkew from now are rejected to limit replays.
func verifySignature(r *http.Request, secretKey string, maxSkew time.Duration, maxBytes int64, now time.Time) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "failed to read request body")
	}
	if int64(len(body)) > maxBytes {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, fmt.Sprintf("request body exceeds %d bytes", maxBytes))
	}

	if secretKey == "" {
		if os.Getenv("COMMROUTER_ENV") == "production" {
			return nil, apperrors.NewAuthError("webhook secret is required in production mode")
		}
		return body, nil
	}

	header := r.Header.Get(signatureHeader)
	if header == "" {
		return nil, apperrors.NewAuthError("missing signature header")
	}
	scheme, expectedHex, ok := strings.Cut(header, "=")
	if !ok || strings.ToLower(scheme) != "sha256" {
		return nil, apperrors.NewAuthError("invalid signature format")
	}

	timestamp := r.Header.Get(timestampHeader)
	if timestamp == "" {
		return nil, apperrors.NewAuthError("missing signature timestamp")
	}
	sec, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return nil, apperrors.NewAuthError("invalid signature timestamp")
	}
	if skew := now.Sub(time.Unix(sec, 0)); skew > maxSkew || skew < -maxSkew {
		return nil, apperrors.NewAuthError("signature timestamp outside allowed window")
	}

	computed := signPayload(secretKey, timestamp, body)
	if !hmac.Equal([]byte(computed), []byte(strings.ToLower(expectedHex))) {
		return nil, apperrors.NewAuthError("signature mismatch")
	}
	return body, nil
}

// signPayload returns the hex HMAC-SHA256 of "<timestamp>.<body>".
func signPayload(secretKey, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
