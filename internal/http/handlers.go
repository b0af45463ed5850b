package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"zhangdan/internal/core"
	"zhangdan/internal/log"
)

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var d core.Draft
	if err := decodeJSON(w, r, maxBodyBytes, &d); err != nil {
		writeBadRequest(w, "请求体格式错误: "+err.Error())
		return
	}
	t, err := s.svc.Create(r.Context(), sanitizeDraft(d))
	if err != nil {
		writeError(w, r, log.OpCreate, err, "账单添加失败")
		return
	}
	writeOK(w, t, "账单添加成功")
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	txs, err := s.svc.Query(r.Context(), parseFilter(r.URL.Query()))
	if err != nil {
		writeError(w, r, log.OpQuery, err, "查询交易失败")
		return
	}
	writeOK(w, txs, "查询交易成功")
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	_, t, err := s.svc.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpRead, err, "查询交易失败")
		return
	}
	writeOK(w, t, "查询交易成功")
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var p core.Patch
	if err := decodeJSON(w, r, maxBodyBytes, &p); err != nil {
		writeBadRequest(w, "请求体格式错误: "+err.Error())
		return
	}
	t, err := s.svc.Update(r.Context(), id, sanitizePatch(p))
	if err != nil {
		writeError(w, r, log.OpUpdate, err, "账单更新失败")
		return
	}
	writeOK(w, t, "账单更新成功")
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := s.svc.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpDelete, err, "删除失败")
		return
	}
	writeOK(w, t, "删除成功: "+id)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	drafts, err := decodeBatch(w, r)
	if err != nil && !core.IsValidation(err) {
		writeBadRequest(w, "请求体格式错误: "+err.Error())
		return
	}
	var txs []core.Transaction
	if err == nil {
		txs, err = s.svc.CreateBatch(r.Context(), drafts)
	}
	if err != nil {
		writeError(w, r, log.OpBatch, err, "批量添加交易失败")
		return
	}
	writeOK(w, txs, "批量添加交易成功")
}

func (s *Server) handleBatchText(w http.ResponseWriter, r *http.Request) {
	var req batchTextRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeBadRequest(w, "请求体格式错误: "+err.Error())
		return
	}
	typ := core.TransactionType(strings.TrimSpace(string(req.Type)))
	txs, err := s.svc.CreateFromText(r.Context(), sanitizeInput(req.Text), strings.TrimSpace(req.Date), typ)
	if err != nil {
		writeError(w, r, log.OpBatch, err, "批量添加交易失败")
		return
	}
	writeOK(w, txs, "批量添加交易成功")
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Export(r.Context())
	if err != nil {
		writeError(w, r, log.OpExport, err, "导出数据失败")
		return
	}
	writeOK(w, snap, "数据导出成功")
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	snap, err := decodeImport(w, r)
	if err != nil {
		writeBadRequest(w, "导入数据格式错误")
		return
	}
	res, err := s.svc.Import(r.Context(), snap)
	if err != nil {
		writeError(w, r, log.OpImport, err, "导入数据失败")
		return
	}
	writeOK(w, res, "数据导入成功")
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if month == "" {
		month = s.now().Format("2006-01")
	}
	ov, err := s.svc.Summary(r.Context(), month)
	if err != nil {
		writeError(w, r, log.OpRead, err, "统计失败")
		return
	}
	writeOK(w, ov, "统计成功")
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.svc.Categories(), "ok")
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusNotFound, nil, "not found: "+r.URL.Path)
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusMethodNotAllowed, nil, "method not allowed: "+r.Method)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeEnvelope(w, http.StatusTooManyRequests, nil, "rate limit exceeded, retry later")
}

// uptime is reported by /healthz.
func (s *Server) uptime() time.Duration {
	return s.now().Sub(s.started)
}
