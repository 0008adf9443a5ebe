package versioning

import (
	"context"
	"net/http"
	"strings"

	apperrors "commrouter/internal/errors"
	"commrouter/internal/httputil"
	"commrouter/internal/tracing"

	"github.com/sirupsen/logrus"
)

type contextKey string

const VersionContextKey contextKey = "api_version"

const (
	// Request headers
	AcceptVersionHeader = "Accept-Version"
	APIVersionHeader    = "X-API-Version"

	// Response headers
	CurrentVersionHeader    = "X-Current-Version"
	SupportedVersionsHeader = "X-Supported-Versions"
)

// VersionMiddleware negotiates the API version for HTTP requests
type VersionMiddleware struct {
	logger *logrus.Logger
}

func NewVersionMiddleware(logger *logrus.Logger) *VersionMiddleware {
	return &VersionMiddleware{logger: logger}
}

// VersionHandler resolves the requested version, rejects unsupported ones
// and stores the result in the request context.
func (vm *VersionMiddleware) VersionHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(CurrentVersionHeader, CurrentVersion.String())
		w.Header().Set(SupportedVersionsHeader, GetVersionRange())

		requested := vm.extractVersionFromRequest(r)
		if !IsVersionSupported(requested) {
			status := http.StatusNotImplemented
			message := "API version " + requested.String() + " is not yet available"
			if requested.Compare(MinimumSupportedVersion) < 0 {
				status = http.StatusUpgradeRequired
				message = "API version " + requested.String() + " is no longer supported"
			}
			vm.logger.WithFields(logrus.Fields{
				"requested_version": requested.String(),
				"current_version":   CurrentVersion.String(),
				"path":              r.URL.Path,
			}).Warn("Incompatible API version requested")

			err := apperrors.New(apperrors.ErrCodeVersionIncompatible, message).
				WithContext("supported_versions", GetVersionRange())
			httputil.WriteJSON(w, status, apperrors.ToHTTPResponse(err, tracing.GetRequestID(r.Context())))
			return
		}

		ctx := context.WithValue(r.Context(), VersionContextKey, requested)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractVersionFromRequest prefers Accept-Version, then X-API-Version, then
// the path's /vN segment, then the current version.
func (vm *VersionMiddleware) extractVersionFromRequest(r *http.Request) APIVersion {
	for _, header := range []string{AcceptVersionHeader, APIVersionHeader} {
		versionStr := r.Header.Get(header)
		if versionStr == "" {
			continue
		}
		if version, err := ParseVersion(versionStr); err == nil {
			return version
		}
		vm.logger.WithField("version_string", versionStr).Warnf("Invalid version in %s header", header)
	}

	if version := extractVersionFromPath(r.URL.Path); version.Major > 0 {
		return version
	}
	return CurrentVersion
}

// extractVersionFromPath turns "/v1/..." into 1.0.0 and "/v1.1/..." into 1.1.0.
// Major-only path versions resolve to the newest minor of that major.
func extractVersionFromPath(path string) APIVersion {
	for _, part := range strings.Split(path, "/") {
		if len(part) < 2 || part[0] != 'v' {
			continue
		}
		versionStr := part[1:]
		switch strings.Count(versionStr, ".") {
		case 0:
			if version, err := ParseVersion(versionStr + ".0.0"); err == nil {
				if version.Major == CurrentVersion.Major {
					return CurrentVersion
				}
				return version
			}
		case 1:
			versionStr += ".0"
			fallthrough
		default:
			if version, err := ParseVersion(versionStr); err == nil {
				return version
			}
		}
	}
	return APIVersion{}
}

// GetVersionFromContext extracts the API version from request context
func GetVersionFromContext(ctx context.Context) (APIVersion, bool) {
	version, ok := ctx.Value(VersionContextKey).(APIVersion)
	return version, ok
}

// RequireVersion rejects requests negotiated below min with 501.
func RequireVersion(min APIVersion) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if version, ok := GetVersionFromContext(r.Context()); ok && version.Compare(min) < 0 {
				err := apperrors.New(apperrors.ErrCodeVersionIncompatible, "endpoint requires API version "+min.String()).
					WithContext("requested_version", version.String())
				httputil.WriteJSON(w, http.StatusNotImplemented, apperrors.ToHTTPResponse(err, tracing.GetRequestID(r.Context())))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
