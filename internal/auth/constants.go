// Package auth wraps internal/sigv4 with the HTTP-facing parts of AWS
// Signature Version 4 authentication: header/query parsing, the request
// middleware, and S3 error-response shaping.
package auth

import (
	"time"

	"github.com/cobaltfs/objectstore/internal/sigv4"
)

// =============================================================================
// Constants
//
// The signing algorithm and timestamp formats live in internal/sigv4, the
// module that actually canonicalizes and signs; aliasing them here keeps
// auth's wire-level code from drifting against the engine it wraps.
// =============================================================================

const (
	// SignV4Algorithm is the algorithm identifier for AWS Signature Version 4.
	SignV4Algorithm = sigv4.Algorithm

	// ISO8601BasicFormat is the date format used in AWS v4 signatures.
	ISO8601BasicFormat = sigv4.DateTimeFormat

	// YYYYMMDD is the short date format used in credential scope.
	YYYYMMDD = sigv4.DateFormat

	// ServiceS3 is the service name for S3.
	ServiceS3 = "s3"

	// DefaultRegion is the default region if not specified.
	DefaultRegion = "us-east-1"

	// MaxSkewTime is the maximum allowed time skew for requests.
	MaxSkewTime = 15 * time.Minute

	// PresignedURLMaxExpiry is the maximum expiry time for presigned URLs (7 days).
	PresignedURLMaxExpiry = 7 * 24 * time.Hour

	// PresignedURLMinExpiry is the minimum expiry time for presigned URLs (1 second).
	PresignedURLMinExpiry = 1 * time.Second
)

// =============================================================================
// Authorization Header Constants
// =============================================================================

const (
	// AuthorizationHeader is the HTTP header for authorization.
	AuthorizationHeader = "Authorization"

	// XAmzDateHeader is the AWS date header.
	XAmzDateHeader = "X-Amz-Date"

	// XAmzContentSHA256Header is the content hash header.
	XAmzContentSHA256Header = "X-Amz-Content-Sha256"

	// XAmzSecurityTokenHeader is the session token header.
	XAmzSecurityTokenHeader = "X-Amz-Security-Token"

	// XAmzSignedHeadersHeader is the signed headers header.
	XAmzSignedHeadersHeader = "X-Amz-SignedHeaders"

	// XAmzAlgorithmHeader is the algorithm header (for presigned URLs).
	XAmzAlgorithmHeader = "X-Amz-Algorithm"

	// XAmzCredentialHeader is the credential header (for presigned URLs).
	XAmzCredentialHeader = "X-Amz-Credential"

	// XAmzExpiresHeader is the expiration header (for presigned URLs).
	XAmzExpiresHeader = "X-Amz-Expires"

	// XAmzSignatureHeader is the signature header (for presigned URLs).
	XAmzSignatureHeader = "X-Amz-Signature"
)

// =============================================================================
// Special Content Hash Values
// =============================================================================

const (
	// UnsignedPayload indicates the payload is not included in the signature.
	UnsignedPayload = sigv4.UnsignedPayload

	// StreamingPayload indicates chunked/streaming upload.
	StreamingPayload = sigv4.StreamingPayload

	// EmptyStringSHA256 is the SHA-256 hash of an empty string.
	EmptyStringSHA256 = sigv4.EmptyStringSHA256
)

