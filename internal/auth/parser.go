// Package auth provides the HTTP-facing wrapper around internal/sigv4.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cobaltfs/objectstore/internal/sigv4"
)

// =============================================================================
// Authorization Header Parsing
//
// ParseSignV4 and ParsePresignedV4 are thin translators over
// sigv4.ParseAuthorizationHeader and sigv4.ParsePresignedQuery: the
// credential/signature grammar lives in sigv4, this layer only reshapes the
// result into the HTTP-facing SignedValues type and S3 error codes.
// =============================================================================

// GetAuthType determines the authentication type from a request.
func GetAuthType(r *http.Request) AuthType {
	// Check Authorization header
	authHeader := r.Header.Get(AuthorizationHeader)

	if authHeader != "" {
		if strings.HasPrefix(authHeader, SignV4Algorithm) {
			return AuthTypeSignedV4
		}
		return AuthTypeUnknown
	}

	// Check for presigned URL
	query := r.URL.Query()
	if query.Get(XAmzAlgorithmHeader) == SignV4Algorithm {
		return AuthTypePresignedV4
	}

	return AuthTypeAnonymous
}

// ParseSignV4 parses an AWS v4 Authorization header.
// Format: AWS4-HMAC-SHA256 Credential=access_key/date/region/service/aws4_request, SignedHeaders=..., Signature=...
func ParseSignV4(authHeader string) (*SignedValues, error) {
	parsed, err := sigv4.ParseAuthorizationHeader(authHeader)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAuthorizationHeader, stripSentinel(err))
	}

	sorted := make([]string, len(parsed.SignedHeaders))
	copy(sorted, parsed.SignedHeaders)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] < sorted[i-1] {
			return nil, fmt.Errorf("%w: signed headers not sorted", ErrInvalidAuthorizationHeader)
		}
	}

	return &SignedValues{
		Credential: CredentialHeader{
			AccessKey: parsed.AccessKeyID,
			Scope:     parsed.Scope,
		},
		SignedHeaders: parsed.SignedHeaders,
		Signature:     parsed.Signature,
	}, nil
}

// ParsePresignedV4 parses presigned URL query parameters.
func ParsePresignedV4(r *http.Request) (*SignedValues, int64, error) {
	parsed, expires, err := sigv4.ParsePresignedQuery(r)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s", ErrInvalidPresignedURL, stripSentinel(err))
	}

	return &SignedValues{
		Credential: CredentialHeader{
			AccessKey: parsed.AccessKeyID,
			Scope:     parsed.Scope,
		},
		SignedHeaders: parsed.SignedHeaders,
		Signature:     parsed.Signature,
	}, int64(expires / time.Second), nil
}

// stripSentinel peels sigv4's own sentinel prefix off a wrapped error so the
// auth-level message doesn't repeat it twice.
func stripSentinel(err error) string {
	var sentinel error
	for _, s := range []error{sigv4.ErrMalformedAuthorization, sigv4.ErrMalformedPresignedURL} {
		if errors.Is(err, s) {
			sentinel = s
			break
		}
	}
	if sentinel == nil {
		return err.Error()
	}
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}

// ExtractSignedHeaders extracts header values for the signed headers.
func ExtractSignedHeaders(r *http.Request, signedHeaders []string) (http.Header, error) {
	extracted := make(http.Header)

	for _, header := range signedHeaders {
		headerLower := strings.ToLower(header)

		// Special case for host header
		if headerLower == "host" {
			extracted.Set("host", r.Host)
			continue
		}

		// Get header value
		value := r.Header.Get(header)
		if value == "" {
			// Check if it's a required header
			if headerLower == "host" || headerLower == "x-amz-date" || headerLower == "x-amz-content-sha256" {
				return nil, fmt.Errorf("%w: missing required header %s", ErrMissingSecurityHeader, header)
			}
		}

		extracted.Set(header, value)
	}

	return extracted, nil
}

// GetRequestTime extracts the request time from headers or query parameters.
func GetRequestTime(r *http.Request) (time.Time, error) {
	// Try X-Amz-Date header first
	if dateStr := r.Header.Get(XAmzDateHeader); dateStr != "" {
		return time.Parse(ISO8601BasicFormat, dateStr)
	}

	// Try X-Amz-Date query parameter (for presigned URLs)
	if dateStr := r.URL.Query().Get(XAmzDateHeader); dateStr != "" {
		return time.Parse(ISO8601BasicFormat, dateStr)
	}

	// Try Date header
	if dateStr := r.Header.Get("Date"); dateStr != "" {
		return time.Parse(time.RFC1123, dateStr)
	}

	return time.Time{}, ErrMissingSecurityHeader
}
