// Package handler provides HTTP handlers for the S3-compatible API.
package handler

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cobaltfs/objectstore/internal/auth"
	"github.com/cobaltfs/objectstore/internal/domain"
	"github.com/cobaltfs/objectstore/internal/service"
)

// BucketHandler handles bucket-level S3 API requests.
type BucketHandler struct {
	bucketService *service.BucketService
	logger        zerolog.Logger
}

// NewBucketHandler creates a new BucketHandler.
func NewBucketHandler(bucketService *service.BucketService, logger zerolog.Logger) *BucketHandler {
	return &BucketHandler{
		bucketService: bucketService,
		logger:        logger.With().Str("handler", "bucket").Logger(),
	}
}

// =============================================================================
// XML Response Types
// =============================================================================

type listAllMyBucketsResult struct {
	XMLName xml.Name       `xml:"ListAllMyBucketsResult"`
	Owner   bucketOwnerXML `xml:"Owner"`
	Buckets []bucketXML    `xml:"Buckets>Bucket"`
}

type bucketOwnerXML struct {
	ID          string `xml:"ID"`
	DisplayName string `xml:"DisplayName"`
}

type bucketXML struct {
	Name         string `xml:"Name"`
	CreationDate string `xml:"CreationDate"`
}

type versioningConfigurationXML struct {
	XMLName xml.Name `xml:"VersioningConfiguration"`
	Status  string   `xml:"Status,omitempty"`
}

// ownerIDFromRequest extracts the authenticated caller's user ID, or 0 for
// anonymous requests allowed through by bucket ACLs.
func ownerIDFromRequest(r *http.Request) int64 {
	if authCtx := auth.GetAuthContext(r.Context()); authCtx != nil {
		return authCtx.UserID
	}
	return 0
}

// ListBuckets handles GET /.
func (h *BucketHandler) ListBuckets(w http.ResponseWriter, r *http.Request) {
	output, err := h.bucketService.ListBuckets(r.Context(), service.ListBucketsInput{
		OwnerID: ownerIDFromRequest(r),
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list buckets")
		writeError(w, mapServiceError(err))
		return
	}

	result := listAllMyBucketsResult{
		Owner: bucketOwnerXML{ID: "owner", DisplayName: "owner"},
	}
	for _, b := range output.Buckets {
		result.Buckets = append(result.Buckets, bucketXML{
			Name:         b.Name,
			CreationDate: b.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	writeXML(w, http.StatusOK, result)
}

// HeadBucket handles HEAD /{bucket}.
func (h *BucketHandler) HeadBucket(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "bucket")

	output, err := h.bucketService.HeadBucket(r.Context(), service.HeadBucketInput{
		Name:    name,
		OwnerID: ownerIDFromRequest(r),
	})
	if err != nil {
		writeError(w, mapServiceError(err).withResource(name))
		return
	}
	if !output.Exists {
		writeError(w, ErrNoSuchBucket.withResource(name))
		return
	}

	w.Header().Set("x-amz-bucket-region", output.Region)
	w.WriteHeader(http.StatusOK)
}

// CreateBucket handles PUT /{bucket}.
func (h *BucketHandler) CreateBucket(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "bucket")

	output, err := h.bucketService.CreateBucket(r.Context(), service.CreateBucketInput{
		OwnerID: ownerIDFromRequest(r),
		Name:    name,
		Region:  r.Header.Get("x-amz-bucket-region"),
	})
	if err != nil {
		h.logger.Error().Err(err).Str("bucket", name).Msg("failed to create bucket")
		writeError(w, mapServiceError(err).withResource(name))
		return
	}

	w.Header().Set("Location", "/"+output.Bucket.Name)
	w.WriteHeader(http.StatusOK)
}

// DeleteBucket handles DELETE /{bucket}.
func (h *BucketHandler) DeleteBucket(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "bucket")

	err := h.bucketService.DeleteBucket(r.Context(), service.DeleteBucketInput{
		Name:    name,
		OwnerID: ownerIDFromRequest(r),
	})
	if err != nil {
		h.logger.Error().Err(err).Str("bucket", name).Msg("failed to delete bucket")
		writeError(w, mapServiceError(err).withResource(name))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetBucketVersioning handles GET /{bucket}?versioning.
func (h *BucketHandler) GetBucketVersioning(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "bucket")

	output, err := h.bucketService.GetBucketVersioning(r.Context(), service.GetBucketVersioningInput{
		Name:    name,
		OwnerID: ownerIDFromRequest(r),
	})
	if err != nil {
		writeError(w, mapServiceError(err).withResource(name))
		return
	}

	status := ""
	if output.Status == domain.VersioningEnabled || output.Status == domain.VersioningSuspended {
		status = string(output.Status)
	}

	writeXML(w, http.StatusOK, versioningConfigurationXML{Status: status})
}

// PutBucketVersioning handles PUT /{bucket}?versioning.
func (h *BucketHandler) PutBucketVersioning(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "bucket")

	var body versioningConfigurationXML
	if err := xml.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, ErrInvalidArgument.withResource(name))
		return
	}

	err := h.bucketService.PutBucketVersioning(r.Context(), service.PutBucketVersioningInput{
		Name:    name,
		OwnerID: ownerIDFromRequest(r),
		Status:  domain.VersioningStatus(body.Status),
	})
	if err != nil {
		h.logger.Error().Err(err).Str("bucket", name).Msg("failed to update bucket versioning")
		writeError(w, mapServiceError(err).withResource(name))
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetBucketACL handles GET /{bucket}?acl.
func (h *BucketHandler) GetBucketACL(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "bucket")

	acl, err := h.bucketService.GetBucketACL(r.Context(), name)
	if err != nil {
		writeError(w, mapServiceError(err).withResource(name))
		return
	}
	if acl == "" {
		writeError(w, ErrNoSuchBucket.withResource(name))
		return
	}

	writeXML(w, http.StatusOK, struct {
		XMLName xml.Name `xml:"AccessControlPolicy"`
		ACL     string   `xml:"CannedACL"`
	}{ACL: string(acl)})
}

// PutBucketACL handles PUT /{bucket}?acl.
func (h *BucketHandler) PutBucketACL(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "bucket")

	acl := domain.BucketACL(r.Header.Get("x-amz-acl"))
	if acl == "" {
		writeError(w, ErrInvalidArgument.withResource(name))
		return
	}

	if err := h.bucketService.PutBucketACL(r.Context(), name, acl, ownerIDFromRequest(r)); err != nil {
		h.logger.Error().Err(err).Str("bucket", name).Msg("failed to update bucket acl")
		writeError(w, mapServiceError(err).withResource(name))
		return
	}

	w.WriteHeader(http.StatusOK)
}

// writeXML marshals v as an S3-style XML document.
func writeXML(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(v)
}
