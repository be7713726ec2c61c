// Package handler provides HTTP handlers for the S3-compatible API.
package handler

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cobaltfs/objectstore/internal/service"
)

// ObjectHandler handles object-level S3 API requests.
type ObjectHandler struct {
	objectService *service.ObjectService
	logger        zerolog.Logger
}

// NewObjectHandler creates a new ObjectHandler.
func NewObjectHandler(objectService *service.ObjectService, logger zerolog.Logger) *ObjectHandler {
	return &ObjectHandler{
		objectService: objectService,
		logger:        logger.With().Str("handler", "object").Logger(),
	}
}

// =============================================================================
// XML Response Types
// =============================================================================

type listBucketResult struct {
	XMLName               xml.Name       `xml:"ListBucketResult"`
	Name                  string         `xml:"Name"`
	Prefix                string         `xml:"Prefix"`
	Delimiter             string         `xml:"Delimiter,omitempty"`
	Marker                string         `xml:"Marker,omitempty"`
	NextMarker            string         `xml:"NextMarker,omitempty"`
	ContinuationToken     string         `xml:"ContinuationToken,omitempty"`
	NextContinuationToken string         `xml:"NextContinuationToken,omitempty"`
	KeyCount              int            `xml:"KeyCount,omitempty"`
	MaxKeys               int            `xml:"MaxKeys"`
	IsTruncated           bool           `xml:"IsTruncated"`
	Contents              []objectXML    `xml:"Contents"`
	CommonPrefixes        []commonPrefix `xml:"CommonPrefixes,omitempty"`
}

type objectXML struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int64  `xml:"Size"`
	StorageClass string `xml:"StorageClass"`
}

type commonPrefix struct {
	Prefix string `xml:"Prefix"`
}

type copyObjectResult struct {
	XMLName      xml.Name `xml:"CopyObjectResult"`
	ETag         string   `xml:"ETag"`
	LastModified string   `xml:"LastModified"`
}

// parseRangeHeader parses a "bytes=start-end" Range header.
func parseRangeHeader(header string, size int64) (*service.ByteRange, error) {
	if header == "" {
		return nil, nil
	}
	if !strings.HasPrefix(header, "bytes=") {
		return nil, fmt.Errorf("unsupported range unit")
	}
	spec := strings.TrimPrefix(header, "bytes=")
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed range")
	}

	var start, end int64
	var err error
	if parts[0] == "" {
		// suffix range: last N bytes
		n, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, err
		}
		start = size - n
		if start < 0 {
			start = 0
		}
		end = size - 1
		return &service.ByteRange{Start: start, End: end}, nil
	}

	start, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, err
	}
	if parts[1] == "" {
		end = size - 1
	} else {
		end, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, err
		}
	}
	if end >= size {
		end = size - 1
	}
	return &service.ByteRange{Start: start, End: end}, nil
}

// HandleGetObject handles GET /{bucket}/{key}.
func (h *ObjectHandler) HandleGetObject(w http.ResponseWriter, r *http.Request, bucketName, objectKey string) {
	versionID := r.URL.Query().Get("versionId")

	output, err := h.objectService.GetObject(r.Context(), service.GetObjectInput{
		BucketName: bucketName,
		Key:        objectKey,
		VersionID:  versionID,
		OwnerID:    ownerIDFromRequest(r),
		Range:      nil,
	})
	if err != nil {
		writeError(w, mapServiceError(err).withResource(bucketName+"/"+objectKey))
		return
	}
	defer output.Body.Close()

	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		br, err := parseRangeHeader(rangeHeader, output.ContentLength)
		if err == nil && br != nil {
			_ = output.Body.Close()
			rangedOutput, rErr := h.objectService.GetObject(r.Context(), service.GetObjectInput{
				BucketName: bucketName,
				Key:        objectKey,
				VersionID:  versionID,
				OwnerID:    ownerIDFromRequest(r),
				Range:      br,
			})
			if rErr != nil {
				writeError(w, mapServiceError(rErr).withResource(bucketName+"/"+objectKey))
				return
			}
			defer rangedOutput.Body.Close()
			writeObjectHeaders(w, rangedOutput.ContentType, rangedOutput.ETag, rangedOutput.VersionID, rangedOutput.Metadata, rangedOutput.LastModified)
			w.Header().Set("Content-Range", rangedOutput.ContentRange)
			w.Header().Set("Content-Length", strconv.FormatInt(rangedOutput.ContentLength, 10))
			w.WriteHeader(http.StatusPartialContent)
			_, _ = io.Copy(w, rangedOutput.Body)
			return
		}
	}

	writeObjectHeaders(w, output.ContentType, output.ETag, output.VersionID, output.Metadata, output.LastModified)
	w.Header().Set("Content-Length", strconv.FormatInt(output.ContentLength, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, output.Body)
}

// HandleHeadObject handles HEAD /{bucket}/{key}.
func (h *ObjectHandler) HandleHeadObject(w http.ResponseWriter, r *http.Request, bucketName, objectKey string) {
	versionID := r.URL.Query().Get("versionId")

	output, err := h.objectService.HeadObject(r.Context(), service.HeadObjectInput{
		BucketName: bucketName,
		Key:        objectKey,
		VersionID:  versionID,
		OwnerID:    ownerIDFromRequest(r),
	})
	if err != nil {
		writeError(w, mapServiceError(err).withResource(bucketName+"/"+objectKey))
		return
	}

	writeObjectHeaders(w, output.ContentType, output.ETag, output.VersionID, output.Metadata, output.LastModified)
	w.Header().Set("Content-Length", strconv.FormatInt(output.ContentLength, 10))
	w.WriteHeader(http.StatusOK)
}

// HandlePutObject handles PUT /{bucket}/{key}.
func (h *ObjectHandler) HandlePutObject(w http.ResponseWriter, r *http.Request, bucketName, objectKey string) {
	metadata := extractUserMetadata(r.Header)

	output, err := h.objectService.PutObject(r.Context(), service.PutObjectInput{
		BucketName:  bucketName,
		Key:         objectKey,
		Body:        r.Body,
		Size:        r.ContentLength,
		ContentType: r.Header.Get("Content-Type"),
		Metadata:    metadata,
		OwnerID:     ownerIDFromRequest(r),
	})
	if err != nil {
		h.logger.Error().Err(err).Str("bucket", bucketName).Str("key", objectKey).Msg("failed to put object")
		writeError(w, mapServiceError(err).withResource(bucketName+"/"+objectKey))
		return
	}

	w.Header().Set("ETag", output.ETag)
	if output.VersionID != "" {
		w.Header().Set("x-amz-version-id", output.VersionID)
	}
	w.WriteHeader(http.StatusOK)
}

// HandleCopyObject handles PUT /{bucket}/{key} with x-amz-copy-source.
func (h *ObjectHandler) HandleCopyObject(w http.ResponseWriter, r *http.Request, bucketName, objectKey string) {
	copySource := strings.TrimPrefix(r.Header.Get("x-amz-copy-source"), "/")
	parts := strings.SplitN(copySource, "/", 2)
	if len(parts) != 2 {
		writeError(w, ErrInvalidArgument.withResource(bucketName+"/"+objectKey))
		return
	}
	srcBucket, srcKey := parts[0], parts[1]
	srcVersionID := ""
	if idx := strings.Index(srcKey, "?versionId="); idx >= 0 {
		srcVersionID = srcKey[idx+len("?versionId="):]
		srcKey = srcKey[:idx]
	}

	directive := r.Header.Get("x-amz-metadata-directive")
	if directive == "" {
		directive = "COPY"
	}

	output, err := h.objectService.CopyObject(r.Context(), service.CopyObjectInput{
		SourceBucket:      srcBucket,
		SourceKey:         srcKey,
		SourceVersionID:   srcVersionID,
		DestBucket:        bucketName,
		DestKey:           objectKey,
		ContentType:       r.Header.Get("Content-Type"),
		Metadata:          extractUserMetadata(r.Header),
		MetadataDirective: directive,
		OwnerID:           ownerIDFromRequest(r),
	})
	if err != nil {
		writeError(w, mapServiceError(err).withResource(bucketName+"/"+objectKey))
		return
	}

	writeXML(w, http.StatusOK, copyObjectResult{
		ETag:         output.ETag,
		LastModified: output.LastModified.UTC().Format(time.RFC3339),
	})
}

// HandleDeleteObject handles DELETE /{bucket}/{key}.
func (h *ObjectHandler) HandleDeleteObject(w http.ResponseWriter, r *http.Request, bucketName, objectKey, versionID string) {
	output, err := h.objectService.DeleteObject(r.Context(), service.DeleteObjectInput{
		BucketName: bucketName,
		Key:        objectKey,
		VersionID:  versionID,
		OwnerID:    ownerIDFromRequest(r),
	})
	if err != nil {
		writeError(w, mapServiceError(err).withResource(bucketName+"/"+objectKey))
		return
	}

	if output.DeleteMarker {
		w.Header().Set("x-amz-delete-marker", "true")
	}
	if output.VersionID != "" {
		w.Header().Set("x-amz-version-id", output.VersionID)
	} else if output.DeleteMarkerVersionID != "" {
		w.Header().Set("x-amz-version-id", output.DeleteMarkerVersionID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListObjectsV2 handles GET /{bucket}?list-type=2.
func (h *ObjectHandler) HandleListObjectsV2(w http.ResponseWriter, r *http.Request, bucketName string) {
	query := r.URL.Query()
	h.listObjects(w, r, bucketName, service.ListObjectsInput{
		BucketName:        bucketName,
		Prefix:            query.Get("prefix"),
		Delimiter:         query.Get("delimiter"),
		MaxKeys:           atoiDefault(query.Get("max-keys"), 0),
		StartAfter:        query.Get("start-after"),
		ContinuationToken: query.Get("continuation-token"),
		OwnerID:           ownerIDFromRequest(r),
	})
}

// HandleListObjects handles GET /{bucket} (v1).
func (h *ObjectHandler) HandleListObjects(w http.ResponseWriter, r *http.Request, bucketName string) {
	query := r.URL.Query()
	h.listObjects(w, r, bucketName, service.ListObjectsInput{
		BucketName: bucketName,
		Prefix:     query.Get("prefix"),
		Delimiter:  query.Get("delimiter"),
		MaxKeys:    atoiDefault(query.Get("max-keys"), 0),
		Marker:     query.Get("marker"),
		OwnerID:    ownerIDFromRequest(r),
	})
}

func (h *ObjectHandler) listObjects(w http.ResponseWriter, r *http.Request, bucketName string, input service.ListObjectsInput) {
	output, err := h.objectService.ListObjects(r.Context(), input)
	if err != nil {
		writeError(w, mapServiceError(err).withResource(bucketName))
		return
	}

	result := listBucketResult{
		Name:                  output.Name,
		Prefix:                output.Prefix,
		Delimiter:             output.Delimiter,
		Marker:                input.Marker,
		NextMarker:            output.NextMarker,
		ContinuationToken:     input.ContinuationToken,
		NextContinuationToken: output.NextContinuationToken,
		KeyCount:              output.KeyCount,
		MaxKeys:               output.MaxKeys,
		IsTruncated:           output.IsTruncated,
	}
	for _, obj := range output.Contents {
		result.Contents = append(result.Contents, objectXML{
			Key:          obj.Key,
			LastModified: obj.LastModified.UTC().Format(time.RFC3339),
			ETag:         obj.ETag,
			Size:         obj.Size,
			StorageClass: string(obj.StorageClass),
		})
	}
	for _, prefix := range output.CommonPrefixes {
		result.CommonPrefixes = append(result.CommonPrefixes, commonPrefix{Prefix: prefix})
	}

	writeXML(w, http.StatusOK, result)
}

// =============================================================================
// Helpers
// =============================================================================

const userMetadataPrefix = "x-amz-meta-"

func extractUserMetadata(header http.Header) map[string]string {
	metadata := make(map[string]string)
	for name, values := range header {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, userMetadataPrefix) && len(values) > 0 {
			metadata[strings.TrimPrefix(lower, userMetadataPrefix)] = values[0]
		}
	}
	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func writeObjectHeaders(w http.ResponseWriter, contentType, etag, versionID string, metadata map[string]string, lastModified time.Time) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("ETag", etag)
	w.Header().Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	if versionID != "" {
		w.Header().Set("x-amz-version-id", versionID)
	}
	for k, v := range metadata {
		w.Header().Set(userMetadataPrefix+k, v)
	}
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

