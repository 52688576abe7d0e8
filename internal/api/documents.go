package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/docpipe/internal/auth"
	"github.com/sells-group/docpipe/internal/model"
	"github.com/sells-group/docpipe/internal/store"
)

// handleUploadDocument accepts a multipart upload, registers the document,
// and runs extraction in the background. Duplicate content for the tenant
// gets 409 with the existing document's id.
func handleUploadDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := auth.TenantFrom(r.Context())
		if err != nil {
			httpError(w, http.StatusUnauthorized, "authentication_error", "no tenant")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "multipart field 'file' is required")
			return
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "read upload: %v", err)
			return
		}

		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = http.DetectContentType(content)
		}

		sum := sha256.Sum256(content)
		doc, err := deps.Store.CreateDocument(r.Context(), &model.Document{
			TenantID:    tenantID,
			FileName:    header.Filename,
			ContentHash: hex.EncodeToString(sum[:]),
			MimeType:    mimeType,
			SizeBytes:   int64(len(content)),
			SourceType:  model.SourceUpload,
			Status:      model.DocumentPending,
		})
		if err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				existing, lookupErr := deps.Store.GetDocumentByHash(r.Context(), tenantID, hex.EncodeToString(sum[:]))
				if lookupErr == nil {
					writeJSON(w, http.StatusConflict, map[string]any{
						"error":       map[string]any{"message": "document already exists", "type": "duplicate"},
						"document_id": existing.ID,
					})
					return
				}
			}
			writeServiceError(w, err)
			return
		}

		// The request returns as soon as the document is registered;
		// extraction progress is visible via document status.
		go func() {
			if _, err := deps.Orchestrator.Process(context.WithoutCancel(r.Context()), tenantID, doc, content); err != nil {
				zap.L().Error("upload extraction failed",
					zap.String("tenant_id", tenantID),
					zap.String("document_id", doc.ID),
					zap.Error(err),
				)
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]any{
			"document_id": doc.ID,
			"status":      doc.Status,
		})
	}
}

func handleGetDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := auth.TenantFrom(r.Context())
		if err != nil {
			httpError(w, http.StatusUnauthorized, "authentication_error", "no tenant")
			return
		}

		doc, err := deps.Store.GetDocument(r.Context(), tenantID, chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func handleListExtractions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := auth.TenantFrom(r.Context())
		if err != nil {
			httpError(w, http.StatusUnauthorized, "authentication_error", "no tenant")
			return
		}

		exts, err := deps.Store.ListExtractions(r.Context(), tenantID, chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"extractions": exts})
	}
}

func handleGetExtraction(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := auth.TenantFrom(r.Context())
		if err != nil {
			httpError(w, http.StatusUnauthorized, "authentication_error", "no tenant")
			return
		}

		ext, err := deps.Store.GetExtraction(r.Context(), tenantID, chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ext)
	}
}

func handleListFields(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := auth.TenantFrom(r.Context())
		if err != nil {
			httpError(w, http.StatusUnauthorized, "authentication_error", "no tenant")
			return
		}

		fields, err := deps.Store.ListFields(r.Context(), tenantID, chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"fields": fields})
	}
}

func handleListTables(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := auth.TenantFrom(r.Context())
		if err != nil {
			httpError(w, http.StatusUnauthorized, "authentication_error", "no tenant")
			return
		}

		tables, err := deps.Store.ListTables(r.Context(), tenantID, chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
	}
}

func handleOverrideField(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := auth.TenantFrom(r.Context())
		if err != nil {
			httpError(w, http.StatusUnauthorized, "authentication_error", "no tenant")
			return
		}

		var req struct {
			Value any    `json:"value"`
			Actor string `json:"actor"`
		}
		if err := decodeJSON(r, &req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Actor == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "actor is required")
			return
		}

		field, err := deps.Store.OverrideField(r.Context(), tenantID, chi.URLParam(r, "id"), req.Value, req.Actor)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, field)
	}
}
