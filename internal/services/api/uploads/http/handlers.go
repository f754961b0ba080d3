// Package http provides http transport for upload jobs
package http

import (
	"fmt"
	stdhttp "net/http"
	"path/filepath"

	"rollcall/internal/modkit/httpkit"
	"rollcall/internal/platform/net/http/bind"
	"rollcall/internal/services/api/uploads/domain"
	svc "rollcall/internal/services/api/uploads/service"
)

// Register mounts the /uploads routes
func Register(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}
	httpkit.Post(r, "/", h.submit)
	httpkit.Get(r, "/{id}", h.status)
	httpkit.Post(r, "/{id}/cancel", h.cancel)
	httpkit.Post(r, "/{id}/retry", h.retry)
	httpkit.Get(r, "/{id}/result", h.result)
	r.Get("/{id}/report", h.report)
}

// RegisterVerify mounts the /verify routes
func RegisterVerify(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}
	httpkit.Get(r, "/rate-limit", h.rateLimit)
}

type handlers struct{ svc svc.Service }

// @Summary Submit a spreadsheet for processing
// @Tags uploads
// @Accept json
// @Produce json
// @Param payload body domain.SubmitInput true "Submission"
// @Success 201 {object} domain.SubmitOutput "queued"
// @Failure 400 {object} httpkit.Envelope "invalid body"
// @Failure 422 {object} httpkit.Envelope "unsupported file"
// @Failure 404 {object} httpkit.Envelope "file not found"
// @Router /uploads [post]
func (h *handlers) submit(r *stdhttp.Request) (any, error) {
	in, err := bind.ParseJSON[domain.SubmitInput](r)
	if err != nil {
		return nil, err
	}
	out, err := h.svc.Submit(r.Context(), in)
	if err != nil {
		return nil, err
	}
	return httpkit.Created(out), nil
}

// @Summary Upload job status
// @Tags uploads
// @Produce json
// @Param id path string true "Job id"
// @Success 200 {object} domain.StatusOutput "ok"
// @Failure 404 {object} httpkit.Envelope "not found"
// @Router /uploads/{id} [get]
func (h *handlers) status(r *stdhttp.Request) (any, error) {
	return h.svc.Status(r.Context(), httpkit.Param(r, "id"))
}

// @Summary Cancel a queued job
// @Tags uploads
// @Produce json
// @Param id path string true "Job id"
// @Success 200 {object} domain.StatusOutput "cancelled"
// @Failure 409 {object} httpkit.Envelope "not queued"
// @Router /uploads/{id}/cancel [post]
func (h *handlers) cancel(r *stdhttp.Request) (any, error) {
	return h.svc.Cancel(r.Context(), httpkit.Param(r, "id"))
}

// @Summary Retry a failed job
// @Tags uploads
// @Produce json
// @Param id path string true "Job id"
// @Success 200 {object} domain.StatusOutput "queued again"
// @Failure 409 {object} httpkit.Envelope "not failed"
// @Router /uploads/{id}/retry [post]
func (h *handlers) retry(r *stdhttp.Request) (any, error) {
	return h.svc.Retry(r.Context(), httpkit.Param(r, "id"))
}

// @Summary Processing result of a completed job
// @Tags uploads
// @Produce json
// @Param id path string true "Job id"
// @Success 200 {object} object "processing result"
// @Failure 409 {object} httpkit.Envelope "not completed"
// @Router /uploads/{id}/result [get]
func (h *handlers) result(r *stdhttp.Request) (any, error) {
	return h.svc.Result(r.Context(), httpkit.Param(r, "id"))
}

// @Summary Download the outcome workbook
// @Tags uploads
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Job id"
// @Success 200 {file} file "report"
// @Failure 404 {object} httpkit.Envelope "no report"
// @Router /uploads/{id}/report [get]
func (h *handlers) report(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	path, err := h.svc.ReportPath(r.Context(), httpkit.Param(r, "id"))
	if err != nil {
		httpkit.RespondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	stdhttp.ServeFile(w, r, path)
}

// @Summary Verification quota for the current hour
// @Tags verify
// @Produce json
// @Success 200 {object} domain.RateLimitOutput "ok"
// @Router /verify/rate-limit [get]
func (h *handlers) rateLimit(r *stdhttp.Request) (any, error) {
	return h.svc.RateLimit(r.Context())
}
