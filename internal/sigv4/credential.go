package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// redactedString renders as a fixed mask under every verb, so a Credential
// can be passed to a logger field or a %+v dump without leaking secrets.
type redactedString string

func (redactedString) String() string   { return "****" }
func (redactedString) GoString() string { return "\"****\"" }

// Credential is an immutable AWS-style credential triple. Construct via
// NewCredential; the zero value is not valid (AccessKeyID is empty).
type Credential struct {
	AccessKeyID string
	secretKey   redactedString
	sessionToken redactedString
}

// NewCredential builds a Credential. sessionToken may be empty for
// long-term (non-temporary) credentials.
func NewCredential(accessKeyID, secretKey, sessionToken string) *Credential {
	return &Credential{
		AccessKeyID:  accessKeyID,
		secretKey:    redactedString(secretKey),
		sessionToken: redactedString(sessionToken),
	}
}

// SecretKey returns the raw secret. Callers should not log the result.
func (c *Credential) SecretKey() string { return string(c.secretKey) }

// SessionToken returns the raw session token, or "" if this is not a
// temporary credential.
func (c *Credential) SessionToken() string { return string(c.sessionToken) }

// HasSessionToken reports whether this credential carries a session token.
func (c *Credential) HasSessionToken() bool { return c.sessionToken != "" }

func (c *Credential) String() string {
	return fmt.Sprintf("Credential{AccessKeyID:%s, SecretKey:%s, SessionToken:%s}", c.AccessKeyID, c.secretKey, c.sessionToken)
}

// Scope is the `YYYYMMDD/region/service/aws4_request` credential scope.
type Scope struct {
	Date    time.Time
	Region  string
	Service string
}

func (s Scope) String() string {
	return s.Date.Format(DateFormat) + "/" + s.Region + "/" + s.Service + "/" + terminationString
}

const (
	// Algorithm is the SigV4 algorithm identifier.
	Algorithm = "AWS4-HMAC-SHA256"

	// DateTimeFormat is the full ISO-8601 basic timestamp used in
	// x-amz-date and the string-to-sign.
	DateTimeFormat = "20060102T150405Z"

	// DateFormat is the short date used in the credential scope.
	DateFormat = "20060102"

	terminationString = "aws4_request"

	// EmptyStringSHA256 is the constant SHA-256 digest of the empty body.
	EmptyStringSHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	// UnsignedPayload marks a request whose body is not included in the
	// signature.
	UnsignedPayload = "UNSIGNED-PAYLOAD"

	// StreamingPayload marks a chunked/streaming signed-payload upload.
	StreamingPayload = "STREAMING-AWS4-HMAC-SHA256-PAYLOAD"
)

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// DeriveSigningKey runs the four-step SigV4 key-derivation chain.
func DeriveSigningKey(secretKey string, date time.Time, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), []byte(date.Format(DateFormat)))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	return hmacSHA256(kService, []byte(terminationString))
}

// Sign computes the lowercase-hex signature of stringToSign under
// signingKey.
func Sign(signingKey []byte, stringToSign string) string {
	return hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))
}

// HashHex returns the lowercase hex SHA-256 digest of data.
func HashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// StringToSign assembles the four-line string that gets signed.
func StringToSign(requestDateTime string, scope Scope, canonicalRequest string) string {
	return Algorithm + "\n" +
		requestDateTime + "\n" +
		scope.String() + "\n" +
		HashHex([]byte(canonicalRequest))
}
