package server

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"

	"github.com/deidaraiorek/expense-eagle-reporter/internal/metrics"
	"github.com/deidaraiorek/expense-eagle-reporter/internal/receipt"
	"github.com/deidaraiorek/expense-eagle-reporter/internal/report"
)

const recentReceipts = 5

type dashboardResponse struct {
	Summary    report.Summary     `json:"summary"`
	ByCategory []report.Bucket    `json:"by_category"`
	ByMonth    []report.Bucket    `json:"by_month"`
	Recent     []*receipt.Receipt `json:"recent"`
}

// handleDashboard summarises every receipt the caller can see
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	receipts, err := s.service.Receipts(identity)
	if err != nil {
		writeError(w, err)
		return
	}

	recent := make([]*receipt.Receipt, len(receipts))
	copy(recent, receipts)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].Date.After(recent[j].Date) })
	if len(recent) > recentReceipts {
		recent = recent[:recentReceipts]
	}

	writeJSON(w, http.StatusOK, dashboardResponse{
		Summary:    report.Summarize(receipts),
		ByCategory: report.Breakdown(receipts, report.ByCategory, nil),
		ByMonth:    report.Breakdown(receipts, report.ByMonth, nil),
		Recent:     recent,
	})
}

// buildReport assembles a report from the request's filters and group_by
func (s *Server) buildReport(r *http.Request, identity receipt.Identity) (*report.Report, error) {
	q := r.URL.Query()
	filter, err := report.ParseFilter(q, s.now())
	if err != nil {
		return nil, err
	}
	dim, err := report.ParseDimension(q.Get("group_by"))
	if err != nil {
		return nil, err
	}
	receipts, err := s.service.Receipts(identity)
	if err != nil {
		return nil, err
	}
	names, err := s.directory.FirstNames()
	if err != nil {
		return nil, err
	}
	return report.Build(receipts, names, filter, dim, s.now()), nil
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	rep, err := s.buildReport(r, identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleExportReport downloads a report as CSV, PDF or XLSX
func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = report.FormatCSV
	}
	contentType, ext, err := report.ContentType(format)
	if err != nil {
		writeError(w, err)
		return
	}
	rep, err := s.buildReport(r, identity)
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, format, rep); err != nil {
		writeError(w, fmt.Errorf("exporting report: %w", err))
		return
	}
	metrics.ObserveExport(format)

	filename := fmt.Sprintf("expense-report-%s.%s", rep.GeneratedAt.Format(receipt.DateLayout), ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(buf.Bytes())
}

// handleUserSpending summarises one user's receipts; employees may only ask about themselves
func (s *Server) handleUserSpending(w http.ResponseWriter, r *http.Request, identity receipt.Identity) {
	id := r.PathValue("id")
	if id != identity.UserID && !receipt.CanViewAll(identity) {
		writeError(w, fmt.Errorf("viewing spending of user %s: %w", id, receipt.ErrForbidden))
		return
	}
	user, err := s.directory.User(id)
	if err != nil {
		writeError(w, err)
		return
	}
	receipts, err := s.service.Receipts(identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Spending(receipts, user))
}
