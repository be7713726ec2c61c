package sigv4

import (
	"crypto/hmac"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Sentinel verification errors.
var (
	ErrMalformedAuthorization = errors.New("malformed authorization header")
	ErrMalformedPresignedURL  = errors.New("malformed presigned url")
	ErrSignatureMismatch      = errors.New("the request signature we calculated does not match the signature you provided")
	ErrRequestExpired         = errors.New("request has expired")
	ErrRequestNotYetValid     = errors.New("request is not yet valid")
)

var (
	credentialRe     = regexp.MustCompile(`Credential=([^/]+)/(\d{8})/([^/]+)/([^/]+)/aws4_request`)
	signedHeadersRe  = regexp.MustCompile(`SignedHeaders=([^,\s]+)`)
	signatureRe      = regexp.MustCompile(`Signature=([a-f0-9]{64})`)
)

// ParsedSignature is the result of parsing either an Authorization header
// or a set of presigned query parameters.
type ParsedSignature struct {
	AccessKeyID   string
	Scope         Scope
	SignedHeaders []string
	Signature     string
}

// ParseAuthorizationHeader parses the `AWS4-HMAC-SHA256 Credential=..., SignedHeaders=..., Signature=...` form.
func ParseAuthorizationHeader(header string) (*ParsedSignature, error) {
	if !strings.HasPrefix(header, Algorithm) {
		return nil, ErrMalformedAuthorization
	}

	cred := credentialRe.FindStringSubmatch(header)
	if cred == nil {
		return nil, fmt.Errorf("%w: invalid credential", ErrMalformedAuthorization)
	}
	date, err := time.Parse(DateFormat, cred[2])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date", ErrMalformedAuthorization)
	}

	sh := signedHeadersRe.FindStringSubmatch(header)
	if sh == nil {
		return nil, fmt.Errorf("%w: missing signed headers", ErrMalformedAuthorization)
	}

	sig := signatureRe.FindStringSubmatch(header)
	if sig == nil {
		return nil, fmt.Errorf("%w: missing signature", ErrMalformedAuthorization)
	}

	return &ParsedSignature{
		AccessKeyID:   cred[1],
		Scope:         Scope{Date: date, Region: cred[3], Service: cred[4]},
		SignedHeaders: strings.Split(sh[1], ";"),
		Signature:     sig[1],
	}, nil
}

// ParsePresignedQuery parses the X-Amz-* presigned query parameters.
func ParsePresignedQuery(req *http.Request) (*ParsedSignature, time.Duration, error) {
	q := req.URL.Query()

	if q.Get("X-Amz-Algorithm") != Algorithm {
		return nil, 0, ErrMalformedPresignedURL
	}

	credential := q.Get("X-Amz-Credential")
	parts := strings.Split(credential, "/")
	if len(parts) != 5 || parts[4] != terminationString {
		return nil, 0, fmt.Errorf("%w: invalid credential", ErrMalformedPresignedURL)
	}
	date, err := time.Parse(DateFormat, parts[1])
	if err != nil {
		return nil, 0, fmt.Errorf("%w: invalid date", ErrMalformedPresignedURL)
	}

	var signedHeaders []string
	if sh := q.Get("X-Amz-SignedHeaders"); sh != "" {
		signedHeaders = strings.Split(sh, ";")
	}

	signature := q.Get("X-Amz-Signature")
	if len(signature) != 64 {
		return nil, 0, fmt.Errorf("%w: invalid signature", ErrMalformedPresignedURL)
	}

	var expiresSeconds int64
	if _, err := fmt.Sscanf(q.Get("X-Amz-Expires"), "%d", &expiresSeconds); err != nil {
		return nil, 0, fmt.Errorf("%w: invalid expires", ErrMalformedPresignedURL)
	}

	return &ParsedSignature{
		AccessKeyID:   parts[0],
		Scope:         Scope{Date: date, Region: parts[2], Service: parts[3]},
		SignedHeaders: signedHeaders,
		Signature:     signature,
	}, time.Duration(expiresSeconds) * time.Second, nil
}

// Verify reconstructs the canonical request the way Authorize would have
// built it and compares signatures in constant time. It is the exact
// inverse of Authorize, sharing the same canonicalization primitives so
// the two can never drift against each other.
func Verify(req *http.Request, secretKey string, parsed *ParsedSignature, payloadHash string, requestDateTime string) error {
	sort.Strings(parsed.SignedHeaders)

	signedHeaders, canonicalHeaders := CanonicalHeaders(req.Header, parsed.SignedHeaders)
	canonicalRequest := strings.Join([]string{
		req.Method,
		CanonicalURI(req.URL.Path, parsed.Scope.Service),
		CanonicalQueryString(withoutSignature(req.URL.RawQuery)),
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	stringToSign := StringToSign(requestDateTime, parsed.Scope, canonicalRequest)
	signingKey := DeriveSigningKey(secretKey, parsed.Scope.Date, parsed.Scope.Region, parsed.Scope.Service)
	expected := Sign(signingKey, stringToSign)

	if !hmac.Equal([]byte(expected), []byte(parsed.Signature)) {
		return ErrSignatureMismatch
	}
	return nil
}

// withoutSignature strips X-Amz-Signature from a presigned URL's raw query
// before canonicalizing it, mirroring how the value is absent at sign time.
func withoutSignature(rawQuery string) string {
	if !strings.Contains(rawQuery, "X-Amz-Signature") {
		return rawQuery
	}
	var kept []string
	for _, part := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(part, "X-Amz-Signature=") {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "&")
}

// CheckClockSkew validates a request timestamp against maxSkew of the wall
// clock given by now. A timestamp further than maxSkew in the past is
// ErrRequestExpired; one further than maxSkew in the future is
// ErrRequestNotYetValid.
func CheckClockSkew(requestTime, now time.Time, maxSkew time.Duration) error {
	if requestTime.After(now) && requestTime.Sub(now) > maxSkew {
		return ErrRequestNotYetValid
	}
	if now.Sub(requestTime) > maxSkew {
		return ErrRequestExpired
	}
	return nil
}
