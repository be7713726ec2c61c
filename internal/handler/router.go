// Package handler provides HTTP handlers for the S3-compatible API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/cobaltfs/objectstore/internal/auth"
	"github.com/cobaltfs/objectstore/internal/metrics"
	"github.com/cobaltfs/objectstore/internal/middleware"
)

// Router handles HTTP routing for the S3-compatible API.
type Router struct {
	cfg RouterConfig
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	BucketHandler    *BucketHandler
	ObjectHandler    *ObjectHandler
	MultipartHandler *MultipartHandler
	HealthChecker    *HealthChecker
	AuthMiddleware   func(http.Handler) http.Handler
	RateLimiter      *middleware.RateLimiter
	Tracing          *middleware.Tracing
	Metrics          *metrics.Metrics
	Logger           zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(cfg RouterConfig) *Router {
	return &Router{cfg: cfg}
}

// Handler builds and returns the main HTTP handler, wiring middleware and
// routes for the S3-compatible surface: bucket, object, multipart, and
// health endpoints.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	if rt.cfg.Tracing != nil {
		r.Use(rt.cfg.Tracing.Middleware)
	}
	if rt.cfg.RateLimiter != nil {
		r.Use(rt.cfg.RateLimiter.Middleware)
	}

	if rt.cfg.HealthChecker != nil {
		r.Get("/health", rt.cfg.HealthChecker.Liveness)
		r.Get("/healthz", rt.cfg.HealthChecker.Liveness)
		r.Get("/readyz", rt.cfg.HealthChecker.Readiness)
	}

	s3Router := chi.NewRouter()
	if rt.cfg.AuthMiddleware != nil {
		s3Router.Use(rt.cfg.AuthMiddleware)
	}

	s3Router.Get("/", rt.cfg.BucketHandler.ListBuckets)

	s3Router.Route("/{bucket}", func(b chi.Router) {
		b.Head("/", rt.cfg.BucketHandler.HeadBucket)
		b.Put("/", rt.handleBucketPut)
		b.Delete("/", rt.cfg.BucketHandler.DeleteBucket)
		b.Get("/", rt.handleBucketGet)

		b.Route("/*", func(o chi.Router) {
			o.Get("/", rt.handleObjectGet)
			o.Head("/", rt.handleObjectHead)
			o.Put("/", rt.handleObjectPut)
			o.Post("/", rt.handleObjectPost)
			o.Delete("/", rt.handleObjectDelete)
		})
	})

	r.Mount("/", s3Router)

	return r
}

// handleBucketGet dispatches a bucket-level GET based on query sub-resources:
// ?versioning, ?acl, ?uploads, or a plain ListObjects/ListObjectsV2 call.
func (rt *Router) handleBucketGet(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	switch {
	case hasQueryKey(query, "versioning"):
		rt.cfg.BucketHandler.GetBucketVersioning(w, r)
	case hasQueryKey(query, "acl"):
		rt.cfg.BucketHandler.GetBucketACL(w, r)
	case hasQueryKey(query, "uploads"):
		rt.cfg.MultipartHandler.ListMultipartUploads(w, r)
	case query.Get("list-type") == "2":
		bucket := chi.URLParam(r, "bucket")
		rt.cfg.ObjectHandler.HandleListObjectsV2(w, r, bucket)
	default:
		bucket := chi.URLParam(r, "bucket")
		rt.cfg.ObjectHandler.HandleListObjects(w, r, bucket)
	}
}

// handleBucketPut dispatches a bucket-level PUT based on query sub-resources:
// ?versioning, ?acl, or a plain CreateBucket call.
func (rt *Router) handleBucketPut(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	switch {
	case hasQueryKey(query, "versioning"):
		rt.cfg.BucketHandler.PutBucketVersioning(w, r)
	case hasQueryKey(query, "acl"):
		rt.cfg.BucketHandler.PutBucketACL(w, r)
	default:
		rt.cfg.BucketHandler.CreateBucket(w, r)
	}
}

// handleObjectGet dispatches an object-level GET: ?uploadId lists parts of
// an in-progress multipart upload, otherwise it fetches the object.
func (rt *Router) handleObjectGet(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if query.Get("uploadId") != "" {
		rt.cfg.MultipartHandler.ListParts(w, r)
		return
	}

	bucket := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "*")
	rt.cfg.ObjectHandler.HandleGetObject(w, r, bucket, key)
}

// handleObjectHead fetches object metadata headers.
func (rt *Router) handleObjectHead(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "*")
	rt.cfg.ObjectHandler.HandleHeadObject(w, r, bucket, key)
}

// handleObjectPut dispatches an object-level PUT: versioning config, a
// multipart part upload, a copy (x-amz-copy-source), or a plain PutObject.
func (rt *Router) handleObjectPut(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if query.Get("partNumber") != "" && query.Get("uploadId") != "" {
		rt.cfg.MultipartHandler.UploadPart(w, r)
		return
	}

	bucket := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "*")

	if r.Header.Get("x-amz-copy-source") != "" {
		rt.cfg.ObjectHandler.HandleCopyObject(w, r, bucket, key)
		return
	}

	rt.cfg.ObjectHandler.HandlePutObject(w, r, bucket, key)
}

// handleObjectPost dispatches an object-level POST: ?uploads initiates a
// multipart upload, ?uploadId completes one.
func (rt *Router) handleObjectPost(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	switch {
	case hasQueryKey(query, "uploads"):
		rt.cfg.MultipartHandler.InitiateMultipartUpload(w, r)
	case query.Get("uploadId") != "":
		rt.cfg.MultipartHandler.CompleteMultipartUpload(w, r)
	default:
		writeError(w, ErrMethodNotAllowed)
	}
}

// handleObjectDelete dispatches an object-level DELETE: ?uploadId aborts a
// multipart upload, otherwise it deletes the object (optionally a version).
func (rt *Router) handleObjectDelete(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if query.Get("uploadId") != "" {
		rt.cfg.MultipartHandler.AbortMultipartUpload(w, r)
		return
	}

	bucket := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "*")
	rt.cfg.ObjectHandler.HandleDeleteObject(w, r, bucket, key, query.Get("versionId"))
}

func hasQueryKey(query map[string][]string, key string) bool {
	_, ok := query[key]
	return ok
}

// CreateAuthMiddleware creates an authentication middleware using the provided store.
func CreateAuthMiddleware(store auth.AccessKeyStore, config auth.Config) func(http.Handler) http.Handler {
	return auth.Middleware(store, config)
}
