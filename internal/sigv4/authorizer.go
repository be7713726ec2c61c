package sigv4

import (
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TokenHeaderName is the default header used to carry a session token.
const TokenHeaderName = "X-Amz-Security-Token"

// Authorizer binds a credential to a service/region and signs requests on
// its behalf. A single Authorizer is reused across many requests; it holds
// no per-request state.
type Authorizer struct {
	Credential      *Credential
	Region          string
	Service         string
	SignPayload     bool
	TokenHeaderName string
	RequestPayer    bool

	// Now overrides time.Now for tests; nil uses the real clock.
	Now func() time.Time
}

// NewAuthorizer builds an Authorizer with sign_payload defaulted to true,
// matching the common case of signing in-memory request bodies.
func NewAuthorizer(cred *Credential, region, service string) *Authorizer {
	return &Authorizer{
		Credential:  cred,
		Region:      region,
		Service:     service,
		SignPayload: true,
	}
}

func (a *Authorizer) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now().UTC()
}

func (a *Authorizer) tokenHeader() string {
	if a.TokenHeaderName != "" {
		return a.TokenHeaderName
	}
	return TokenHeaderName
}

// PayloadHashInput carries the optional precomputed digest and in-memory
// body bytes authorize() needs to pick a payload hash per the five-branch
// priority order. Leave Body nil for a streaming body.
type PayloadHashInput struct {
	PrecomputedDigest string
	Body              []byte
	IsStreaming       bool
}

func (a *Authorizer) payloadHash(in PayloadHashInput) string {
	switch {
	case !a.SignPayload:
		return UnsignedPayload
	case in.PrecomputedDigest != "":
		return strings.ToLower(in.PrecomputedDigest)
	case in.IsStreaming:
		return StreamingPayload
	case len(in.Body) == 0:
		return EmptyStringSHA256
	default:
		return HashHex(in.Body)
	}
}

// Authorize mutates req in place, adding every header SigV4 requires and
// finally the Authorization header itself. date, if zero, defaults to now.
func (a *Authorizer) Authorize(req *http.Request, in PayloadHashInput, date time.Time) error {
	if date.IsZero() {
		date = a.now()
	}

	if a.Credential.HasSessionToken() {
		req.Header.Set(a.tokenHeader(), a.Credential.SessionToken())
	}
	req.Header.Set("host", req.URL.Host)
	req.Header.Set("x-amz-date", date.Format(DateTimeFormat))

	payloadHash := a.payloadHash(in)
	req.Header.Set("x-amz-content-sha256", payloadHash)

	if a.RequestPayer {
		req.Header.Set("x-amz-request-payer", "requester")
	}

	scope := Scope{Date: date, Region: a.Region, Service: a.Service}

	signedHeaders, canonicalHeaders := CanonicalHeaders(req.Header, HeaderNames(req.Header))
	canonicalRequest := strings.Join([]string{
		req.Method,
		CanonicalURI(req.URL.Path, a.Service),
		CanonicalQueryString(req.URL.RawQuery),
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	stringToSign := StringToSign(date.Format(DateTimeFormat), scope, canonicalRequest)
	signingKey := DeriveSigningKey(a.Credential.SecretKey(), date, a.Region, a.Service)
	signature := Sign(signingKey, stringToSign)

	req.Header.Set("Authorization", Algorithm+" Credential="+a.Credential.AccessKeyID+"/"+scope.String()+
		", SignedHeaders="+signedHeaders+", Signature="+signature)

	return nil
}

// Sign produces a presigned URL for method/rawURL valid for expiresIn.
// Payload hash is always UNSIGNED-PAYLOAD; only the "host" header is
// signed.
func (a *Authorizer) Sign(method string, rawURL *url.URL, expiresIn time.Duration, date time.Time) (*url.URL, error) {
	if date.IsZero() {
		date = a.now()
	}

	out := *rawURL
	scope := Scope{Date: date, Region: a.Region, Service: a.Service}

	q := out.Query()
	q.Set("X-Amz-Algorithm", Algorithm)
	q.Set("X-Amz-Credential", a.Credential.AccessKeyID+"/"+scope.String())
	q.Set("X-Amz-Date", date.Format(DateTimeFormat))
	q.Set("X-Amz-Expires", strconv.FormatInt(int64(expiresIn/time.Second), 10))
	q.Set("X-Amz-SignedHeaders", "host")
	if a.RequestPayer {
		q.Set("x-amz-request-payer", "requester")
	}
	if a.Credential.HasSessionToken() {
		q.Set("X-Amz-Security-Token", a.Credential.SessionToken())
	}
	out.RawQuery = encodeSortedQuery(q)

	header := http.Header{"host": []string{out.Host}}
	signedHeaders, canonicalHeaders := CanonicalHeaders(header, []string{"host"})

	canonicalRequest := strings.Join([]string{
		method,
		CanonicalURI(out.Path, a.Service),
		CanonicalQueryString(out.RawQuery),
		canonicalHeaders,
		signedHeaders,
		UnsignedPayload,
	}, "\n")

	stringToSign := StringToSign(date.Format(DateTimeFormat), scope, canonicalRequest)
	signingKey := DeriveSigningKey(a.Credential.SecretKey(), date, a.Region, a.Service)
	signature := Sign(signingKey, stringToSign)

	q = out.Query()
	q.Set("X-Amz-Signature", signature)
	out.RawQuery = encodeSortedQuery(q)

	return &out, nil
}

// encodeSortedQuery re-encodes a url.Values map with keys in byte order,
// matching url.Values.Encode but kept local so the presign path's ordering
// guarantee doesn't depend on net/url's internal sort stability.
func encodeSortedQuery(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range q[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
