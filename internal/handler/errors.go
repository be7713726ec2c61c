// Package handler provides HTTP handlers for the S3-compatible API.
package handler

import (
	"encoding/xml"
	"errors"
	"net/http"

	"github.com/cobaltfs/objectstore/internal/domain"
	"github.com/cobaltfs/objectstore/internal/service"
)

// S3Error represents an S3-compatible XML error response.
type S3Error struct {
	Code           string
	Message        string
	HTTPStatusCode int
	Resource       string
	RequestID      string
}

// s3ErrorXML is the wire representation of an S3 error document.
type s3ErrorXML struct {
	XMLName  xml.Name `xml:"Error"`
	Code     string   `xml:"Code"`
	Message  string   `xml:"Message"`
	Resource string   `xml:"Resource,omitempty"`
	RequestID string  `xml:"RequestId,omitempty"`
}

// Common S3 error definitions, matching the codes and default messages
// AWS S3 returns for the same conditions.
var (
	ErrNoSuchBucket = S3Error{
		Code:           "NoSuchBucket",
		Message:        "The specified bucket does not exist.",
		HTTPStatusCode: http.StatusNotFound,
	}
	ErrNoSuchKey = S3Error{
		Code:           "NoSuchKey",
		Message:        "The specified key does not exist.",
		HTTPStatusCode: http.StatusNotFound,
	}
	ErrNoSuchUpload = S3Error{
		Code:           "NoSuchUpload",
		Message:        "The specified multipart upload does not exist.",
		HTTPStatusCode: http.StatusNotFound,
	}
	ErrNoSuchVersion = S3Error{
		Code:           "NoSuchVersion",
		Message:        "The specified version does not exist.",
		HTTPStatusCode: http.StatusNotFound,
	}
	ErrBucketAlreadyExists = S3Error{
		Code:           "BucketAlreadyExists",
		Message:        "The requested bucket name is not available.",
		HTTPStatusCode: http.StatusConflict,
	}
	ErrBucketNotEmpty = S3Error{
		Code:           "BucketNotEmpty",
		Message:        "The bucket you tried to delete is not empty.",
		HTTPStatusCode: http.StatusConflict,
	}
	ErrAccessDenied = S3Error{
		Code:           "AccessDenied",
		Message:        "Access Denied.",
		HTTPStatusCode: http.StatusForbidden,
	}
	ErrInvalidBucketName = S3Error{
		Code:           "InvalidBucketName",
		Message:        "The specified bucket is not valid.",
		HTTPStatusCode: http.StatusBadRequest,
	}
	ErrInvalidArgument = S3Error{
		Code:           "InvalidArgument",
		Message:        "Invalid argument.",
		HTTPStatusCode: http.StatusBadRequest,
	}
	ErrInvalidRange = S3Error{
		Code:           "InvalidRange",
		Message:        "The requested range is not satisfiable.",
		HTTPStatusCode: http.StatusRequestedRangeNotSatisfiable,
	}
	ErrMethodNotAllowed = S3Error{
		Code:           "MethodNotAllowed",
		Message:        "The specified method is not allowed against this resource.",
		HTTPStatusCode: http.StatusMethodNotAllowed,
	}
	ErrInternal = S3Error{
		Code:           "InternalError",
		Message:        "We encountered an internal error. Please try again.",
		HTTPStatusCode: http.StatusInternalServerError,
	}
)

// writeError writes an S3-compatible XML error document.
func writeError(w http.ResponseWriter, e S3Error) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(e.HTTPStatusCode)

	body := s3ErrorXML{
		Code:      e.Code,
		Message:   e.Message,
		Resource:  e.Resource,
		RequestID: e.RequestID,
	}

	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(body)
}

// withResource returns a copy of e with Resource set.
func (e S3Error) withResource(resource string) S3Error {
	e.Resource = resource
	return e
}

// mapServiceError translates a domain/service sentinel error into its
// S3-compatible wire error, falling back to InternalError.
func mapServiceError(err error) S3Error {
	switch {
	case errors.Is(err, domain.ErrBucketNotFound):
		return ErrNoSuchBucket
	case errors.Is(err, domain.ErrBucketAlreadyExists):
		return ErrBucketAlreadyExists
	case errors.Is(err, domain.ErrBucketNotEmpty):
		return ErrBucketNotEmpty
	case errors.Is(err, domain.ErrBucketNameLength), errors.Is(err, domain.ErrBucketNameFormat), errors.Is(err, domain.ErrBucketNameIPFormat):
		return ErrInvalidBucketName
	case errors.Is(err, domain.ErrObjectNotFound), errors.Is(err, domain.ErrObjectDeleted):
		return ErrNoSuchKey
	case errors.Is(err, domain.ErrVersionNotFound):
		return ErrNoSuchVersion
	case errors.Is(err, domain.ErrInvalidVersionID), errors.Is(err, domain.ErrObjectKeyEmpty), errors.Is(err, domain.ErrObjectKeyTooLong):
		return ErrInvalidArgument
	case errors.Is(err, domain.ErrMultipartUploadNotFound), errors.Is(err, domain.ErrMultipartUploadAborted):
		return ErrNoSuchUpload
	case errors.Is(err, domain.ErrInvalidPartNumber), errors.Is(err, domain.ErrPartTooSmall), errors.Is(err, domain.ErrPartTooLarge),
		errors.Is(err, domain.ErrInvalidPartOrder), errors.Is(err, domain.ErrNoPartsProvided), errors.Is(err, domain.ErrPartETagMismatch):
		return ErrInvalidArgument
	case errors.Is(err, service.ErrBucketAccessDenied), errors.Is(err, domain.ErrAccessDenied):
		return ErrAccessDenied
	case errors.Is(err, service.ErrInvalidVersioningStatus), errors.Is(err, service.ErrInvalidBucketACL):
		return ErrInvalidArgument
	default:
		return ErrInternal
	}
}
