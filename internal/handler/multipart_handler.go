package handler

import (
	"encoding/xml"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cobaltfs/objectstore/internal/domain"
	"github.com/cobaltfs/objectstore/internal/service"
)

// MultipartHandler handles S3 multipart upload API requests.
type MultipartHandler struct {
	multipartService *service.MultipartService
	logger           zerolog.Logger
}

// NewMultipartHandler creates a new MultipartHandler.
func NewMultipartHandler(multipartService *service.MultipartService, logger zerolog.Logger) *MultipartHandler {
	return &MultipartHandler{
		multipartService: multipartService,
		logger:           logger.With().Str("handler", "multipart").Logger(),
	}
}

type initiateMultipartUploadResult struct {
	XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	UploadID string   `xml:"UploadId"`
}

type completeMultipartUpload struct {
	XMLName xml.Name               `xml:"CompleteMultipartUpload"`
	Parts   []completedPartRequest `xml:"Part"`
}

type completedPartRequest struct {
	PartNumber int    `xml:"PartNumber"`
	ETag       string `xml:"ETag"`
}

type completeMultipartUploadResult struct {
	XMLName  xml.Name `xml:"CompleteMultipartUploadResult"`
	Location string   `xml:"Location"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	ETag     string   `xml:"ETag"`
}

type listMultipartUploadsResult struct {
	XMLName            xml.Name            `xml:"ListMultipartUploadsResult"`
	Bucket             string              `xml:"Bucket"`
	KeyMarker          string              `xml:"KeyMarker"`
	UploadIDMarker     string              `xml:"UploadIdMarker"`
	NextKeyMarker      string              `xml:"NextKeyMarker,omitempty"`
	NextUploadIDMarker string              `xml:"NextUploadIdMarker,omitempty"`
	Prefix             string              `xml:"Prefix"`
	Delimiter          string              `xml:"Delimiter,omitempty"`
	MaxUploads         int                 `xml:"MaxUploads"`
	IsTruncated        bool                `xml:"IsTruncated"`
	Uploads            []uploadXML        `xml:"Upload"`
	CommonPrefixes     []commonPrefix      `xml:"CommonPrefixes,omitempty"`
}

type uploadXML struct {
	Key          string `xml:"Key"`
	UploadID     string `xml:"UploadId"`
	Initiated    string `xml:"Initiated"`
	StorageClass string `xml:"StorageClass"`
}

type listPartsResult struct {
	XMLName              xml.Name   `xml:"ListPartsResult"`
	Bucket               string     `xml:"Bucket"`
	Key                  string     `xml:"Key"`
	UploadID             string     `xml:"UploadId"`
	PartNumberMarker     int        `xml:"PartNumberMarker"`
	NextPartNumberMarker int        `xml:"NextPartNumberMarker,omitempty"`
	MaxParts             int        `xml:"MaxParts"`
	IsTruncated          bool       `xml:"IsTruncated"`
	StorageClass         string     `xml:"StorageClass"`
	Parts                []partXML `xml:"Part"`
}

type partXML struct {
	PartNumber   int    `xml:"PartNumber"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int64  `xml:"Size"`
}

// InitiateMultipartUpload handles POST /{bucket}/{key}?uploads.
func (h *MultipartHandler) InitiateMultipartUpload(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "*")

	output, err := h.multipartService.InitiateMultipartUpload(r.Context(), service.InitiateMultipartUploadInput{
		BucketName:   bucket,
		Key:          key,
		ContentType:  r.Header.Get("Content-Type"),
		Metadata:     extractUserMetadata(r.Header),
		StorageClass: domain.StorageClass(r.Header.Get("x-amz-storage-class")),
		OwnerID:      ownerIDFromRequest(r),
	})
	if err != nil {
		h.logger.Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("failed to initiate multipart upload")
		writeError(w, mapServiceError(err).withResource(key))
		return
	}

	writeXML(w, http.StatusOK, initiateMultipartUploadResult{
		Bucket:   output.Bucket,
		Key:      output.Key,
		UploadID: output.UploadID,
	})
}

// UploadPart handles PUT /{bucket}/{key}?partNumber=N&uploadId=X.
func (h *MultipartHandler) UploadPart(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "*")
	query := r.URL.Query()

	partNumber, err := strconv.Atoi(query.Get("partNumber"))
	if err != nil {
		writeError(w, ErrInvalidArgument.withResource(key))
		return
	}

	output, err := h.multipartService.UploadPart(r.Context(), service.UploadPartInput{
		BucketName: bucket,
		Key:        key,
		UploadID:   query.Get("uploadId"),
		PartNumber: partNumber,
		Body:       r.Body,
		Size:       r.ContentLength,
		OwnerID:    ownerIDFromRequest(r),
	})
	if err != nil {
		h.logger.Error().Err(err).Str("bucket", bucket).Str("key", key).Int("part", partNumber).Msg("failed to upload part")
		writeError(w, mapServiceError(err).withResource(key))
		return
	}

	w.Header().Set("ETag", output.ETag)
	w.WriteHeader(http.StatusOK)
}

// CompleteMultipartUpload handles POST /{bucket}/{key}?uploadId=X.
func (h *MultipartHandler) CompleteMultipartUpload(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "*")
	uploadID := r.URL.Query().Get("uploadId")

	var body completeMultipartUpload
	if err := xml.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, ErrInvalidArgument.withResource(key))
		return
	}

	parts := make([]domain.CompletedPart, len(body.Parts))
	for i, p := range body.Parts {
		parts[i] = domain.CompletedPart{PartNumber: p.PartNumber, ETag: p.ETag}
	}

	output, err := h.multipartService.CompleteMultipartUpload(r.Context(), service.CompleteMultipartUploadInput{
		BucketName: bucket,
		Key:        key,
		UploadID:   uploadID,
		Parts:      parts,
		OwnerID:    ownerIDFromRequest(r),
	})
	if err != nil {
		h.logger.Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("failed to complete multipart upload")
		writeError(w, mapServiceError(err).withResource(key))
		return
	}

	if output.VersionID != "" {
		w.Header().Set("x-amz-version-id", output.VersionID)
	}

	writeXML(w, http.StatusOK, completeMultipartUploadResult{
		Location: output.Location,
		Bucket:   output.Bucket,
		Key:      output.Key,
		ETag:     output.ETag,
	})
}

// AbortMultipartUpload handles DELETE /{bucket}/{key}?uploadId=X.
func (h *MultipartHandler) AbortMultipartUpload(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "*")
	uploadID := r.URL.Query().Get("uploadId")

	err := h.multipartService.AbortMultipartUpload(r.Context(), service.AbortMultipartUploadInput{
		BucketName: bucket,
		Key:        key,
		UploadID:   uploadID,
		OwnerID:    ownerIDFromRequest(r),
	})
	if err != nil {
		h.logger.Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("failed to abort multipart upload")
		writeError(w, mapServiceError(err).withResource(key))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMultipartUploads handles GET /{bucket}?uploads.
func (h *MultipartHandler) ListMultipartUploads(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	query := r.URL.Query()

	output, err := h.multipartService.ListMultipartUploads(r.Context(), service.ListMultipartUploadsInput{
		BucketName:     bucket,
		Prefix:         query.Get("prefix"),
		Delimiter:      query.Get("delimiter"),
		KeyMarker:      query.Get("key-marker"),
		UploadIDMarker: query.Get("upload-id-marker"),
		MaxUploads:     atoiDefault(query.Get("max-uploads"), 0),
		OwnerID:        ownerIDFromRequest(r),
	})
	if err != nil {
		h.logger.Error().Err(err).Str("bucket", bucket).Msg("failed to list multipart uploads")
		writeError(w, mapServiceError(err).withResource(bucket))
		return
	}

	result := listMultipartUploadsResult{
		Bucket:             output.Bucket,
		KeyMarker:          output.KeyMarker,
		UploadIDMarker:     output.UploadIDMarker,
		NextKeyMarker:      output.NextKeyMarker,
		NextUploadIDMarker: output.NextUploadIDMarker,
		Prefix:             output.Prefix,
		Delimiter:          output.Delimiter,
		MaxUploads:         output.MaxUploads,
		IsTruncated:        output.IsTruncated,
	}
	for _, u := range output.Uploads {
		result.Uploads = append(result.Uploads, uploadXML{
			Key:          u.Key,
			UploadID:     u.UploadID,
			Initiated:    u.Initiated.UTC().Format(time.RFC3339),
			StorageClass: string(u.StorageClass),
		})
	}
	for _, p := range output.CommonPrefixes {
		result.CommonPrefixes = append(result.CommonPrefixes, commonPrefix{Prefix: p})
	}

	writeXML(w, http.StatusOK, result)
}

// ListParts handles GET /{bucket}/{key}?uploadId=X.
func (h *MultipartHandler) ListParts(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "*")
	query := r.URL.Query()
	uploadID := query.Get("uploadId")

	output, err := h.multipartService.ListParts(r.Context(), service.ListPartsInput{
		BucketName:       bucket,
		Key:              key,
		UploadID:         uploadID,
		PartNumberMarker: atoiDefault(query.Get("part-number-marker"), 0),
		MaxParts:         atoiDefault(query.Get("max-parts"), 0),
		OwnerID:          ownerIDFromRequest(r),
	})
	if err != nil {
		h.logger.Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("failed to list parts")
		writeError(w, mapServiceError(err).withResource(key))
		return
	}

	result := listPartsResult{
		Bucket:               output.Bucket,
		Key:                  output.Key,
		UploadID:             output.UploadID,
		PartNumberMarker:     output.PartNumberMarker,
		NextPartNumberMarker: output.NextPartNumberMarker,
		MaxParts:             output.MaxParts,
		IsTruncated:          output.IsTruncated,
		StorageClass:         string(output.StorageClass),
	}
	for _, p := range output.Parts {
		result.Parts = append(result.Parts, partXML{
			PartNumber:   p.PartNumber,
			LastModified: p.LastModified.UTC().Format(time.RFC3339),
			ETag:         p.ETag,
			Size:         p.Size,
		})
	}

	writeXML(w, http.StatusOK, result)
}
