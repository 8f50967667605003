package api

import (
	"bytes"
	"mime"
	"net/http"
	"strconv"

	"github.com/warp/activity-engine/generic"
	"github.com/warp/activity-engine/observability"
	"github.com/warp/activity-engine/report"
)

// Report layouts, also used as the metrics label.
const (
	layoutMonthly  = "monthly"
	layoutAnnual   = "annual"
	layoutAcademic = "academic"
	layoutSummary  = "summary"
)

// MonthlyReport exports ?month= for exactly one of ?operator= or ?group=.
func (h *Handler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month", err)
		return
	}
	q := r.URL.Query()
	sel := report.Selector{Operator: q.Get("operator"), Group: q.Get("group")}

	h.export(w, r, layoutMonthly, func(recs []generic.ActivityRecord) (report.Table, error) {
		return report.MonthlyList(recs, generic.PayPeriodFor(month), sel)
	})
}

// AnnualReport exports the calendar-year matrix of ?group= for ?year=.
func (h *Handler) AnnualReport(w http.ResponseWriter, r *http.Request) {
	h.groupMatrix(w, r, layoutAnnual, report.AnnualMatrix)
}

// AcademicReport exports the Nov..Jun matrix of ?group= ending in ?year=.
func (h *Handler) AcademicReport(w http.ResponseWriter, r *http.Request) {
	h.groupMatrix(w, r, layoutAcademic, report.AcademicMatrix)
}

// SummaryReport exports per-group monthly totals for the academic year ending in ?year=.
func (h *Handler) SummaryReport(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", err)
		return
	}
	h.export(w, r, layoutSummary, func(recs []generic.ActivityRecord) (report.Table, error) {
		return report.AcademicSummary(recs, year), nil
	})
}

func (h *Handler) groupMatrix(w http.ResponseWriter, r *http.Request, layout string, build func([]generic.ActivityRecord, string, int) report.Table) {
	group := r.URL.Query().Get("group")
	if group == "" {
		writeError(w, http.StatusBadRequest, "group is required", report.ErrSelector)
		return
	}
	year, err := yearParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", err)
		return
	}
	h.export(w, r, layout, func(recs []generic.ActivityRecord) (report.Table, error) {
		return build(recs, group, year), nil
	})
}

// export renders into memory first so a failure still gets a JSON error.
func (h *Handler) export(w http.ResponseWriter, r *http.Request, layout string, build func([]generic.ActivityRecord) (report.Table, error)) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid format", err)
		return
	}
	recs, err := h.Records.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load activities", err)
		return
	}
	tbl, err := build(recs)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, tbl, format); err != nil {
		writeDomainError(w, r, err)
		return
	}
	observability.RecordExport(layout)

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": report.Filename(tbl, format)}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
