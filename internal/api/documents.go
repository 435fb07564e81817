package api

import (
	"net/http"

	"machtms/internal/auth"
	"machtms/internal/documents"
)

func (s *Server) registerDocumentRoutes(mux *http.ServeMux) {
	mux.Handle("POST /api/v1/loads/{id}/documents/session", s.handle("documents.open_session", s.openUploadSession))
	mux.Handle("POST /api/v1/documents/sessions/{id}/uploads", s.handle("documents.register_upload", s.registerUpload))
	mux.Handle("POST /api/v1/documents/sessions/{id}/finalize", s.handle("documents.finalize", s.finalizeSession))
	mux.Handle("GET /api/v1/documents/sessions/{id}", s.handle("documents.session_status", s.uploadSessionStatus))
	mux.Handle("POST /api/v1/loads/{id}/documents/direct", s.handle("documents.direct_upload", s.registerDirectUpload))
	mux.Handle("GET /api/v1/loads/{id}/documents", s.handle("documents.list", s.listLoadDocuments))
}

func (s *Server) openUploadSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.deps.Documents.OpenSession(r.Context(), auth.OrgFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

type registerUploadRequest struct {
	ObjectKey   string `json:"object_key"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Category    string `json:"category"`
}

func (s *Server) registerUpload(w http.ResponseWriter, r *http.Request) {
	var req registerUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	log, err := s.deps.Documents.RegisterUpload(r.Context(), auth.OrgFromContext(r.Context()),
		r.PathValue("id"), req.ObjectKey, req.FileName, req.ContentType, documents.Category(req.Category))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, log)
}

func (s *Server) finalizeSession(w http.ResponseWriter, r *http.Request) {
	queued, err := s.deps.Documents.FinalizeSession(r.Context(), auth.OrgFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"task_id": queued.ID})
}

func (s *Server) uploadSessionStatus(w http.ResponseWriter, r *http.Request) {
	session, logs, err := s.deps.Documents.SessionStatus(r.Context(), auth.OrgFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session": session,
		"uploads": logs,
	})
}

func (s *Server) registerDirectUpload(w http.ResponseWriter, r *http.Request) {
	var req registerUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	upload, err := s.deps.Documents.RegisterDirectUpload(r.Context(), auth.OrgFromContext(r.Context()),
		r.PathValue("id"), req.ObjectKey, req.FileName, documents.Category(req.Category))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, upload)
}

func (s *Server) listLoadDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.deps.Documents.ListLoadDocuments(r.Context(), auth.OrgFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": docs})
}
