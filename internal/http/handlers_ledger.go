package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ropastore/internal/auth"
	"ropastore/internal/core"
	"ropastore/internal/log"
	"ropastore/internal/report"
	"ropastore/internal/storage"
)

// reportSummary is the template view of one aggregated report.
type reportSummary struct {
	Label         string
	Sales         []core.Sale
	Expenses      []core.Expense
	SalesTotal    core.Money
	ExpensesTotal core.Money
	Net           core.Money
	GeneratedAt   time.Time
}

func newReportSummary(label string, s report.Summary) reportSummary {
	return reportSummary{
		Label:         label,
		Sales:         s.Sales,
		Expenses:      s.Expenses,
		SalesTotal:    s.SalesTotal,
		ExpensesTotal: s.ExpensesTotal,
		Net:           s.Net,
		GeneratedAt:   s.GeneratedAt,
	}
}

func (s *Server) reportWindow(r *http.Request) report.Window {
	q := r.URL.Query()
	return report.ParseWindow(
		q.Get("from"),
		q.Get("to"),
		sanitizeInput(q.Get("customer")),
		time.Now(),
	)
}

func (s *Server) handleAdminSales(w http.ResponseWriter, r *http.Request, session auth.Session) {
	q := r.URL.Query()
	window := s.reportWindow(r)
	summary, err := s.reports.Aggregate(r.Context(), window)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Report aggregation failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data := struct {
		pageData
		Summary  reportSummary
		From     string
		To       string
		Customer string
		PDFQuery string
	}{
		pageData: s.pageData(w, r),
		Summary:  newReportSummary(summary.Window.Label(), summary),
		From:     q.Get("from"),
		To:       q.Get("to"),
		Customer: q.Get("customer"),
		PDFQuery: strings.TrimPrefix(reportQuery(q.Get("from"), q.Get("to"), q.Get("customer")), "&"),
	}
	s.render(w, r, "admin_sales.html", data)
}

func (s *Server) handleSaleForm(w http.ResponseWriter, r *http.Request, session auth.Session) {
	products, err := s.store.ListProducts(r.Context(), storage.ProductFilter{InStockOnly: true})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List products failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data := struct {
		pageData
		Products []core.Product
		Rows     []int
	}{s.pageData(w, r), products, make([]int, 5)}
	s.render(w, r, "sale_form.html", data)
}

// handleSaleCreate records a counter sale typed in by the admin. The sale is
// attributed to the admin's own account.
func (s *Server) handleSaleCreate(w http.ResponseWriter, r *http.Request, session auth.Session) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	lines, err := parseSaleLines(r.Form["product_id"], r.Form["quantity"])
	if err != nil {
		setFlash(w, "Invalid sale: "+err.Error())
		http.Redirect(w, r, "/admin/sales/new", http.StatusSeeOther)
		return
	}

	sale, err := s.ledger.CommitSale(r.Context(), session.AccountID, lines)
	switch {
	case errors.Is(err, core.ErrEmptyCart):
		setFlash(w, "Add at least one product to the sale.")
		http.Redirect(w, r, "/admin/sales/new", http.StatusSeeOther)
		return
	case errors.Is(err, core.ErrInsufficientStock):
		setFlash(w, "Not enough stock for one of the lines. Nothing was recorded.")
		http.Redirect(w, r, "/admin/sales/new", http.StatusSeeOther)
		return
	case errors.Is(err, core.ErrProductNotFound):
		setFlash(w, "One of the products no longer exists.")
		http.Redirect(w, r, "/admin/sales/new", http.StatusSeeOther)
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "Sale commit failed", log.FieldError, err)
		setFlash(w, "Could not record the sale.")
		http.Redirect(w, r, "/admin/sales/new", http.StatusSeeOther)
		return
	}

	setFlash(w, fmt.Sprintf("Sale #%d recorded. Total %s.", sale.ID, sale.Total))
	http.Redirect(w, r, "/admin/sales", http.StatusSeeOther)
}

// parseSaleLines pairs the product_id and quantity form arrays. Rows with an
// empty product are skipped so unused form rows do not fail the submission.
func parseSaleLines(productIDs, quantities []string) ([]core.LineRequest, error) {
	if len(productIDs) != len(quantities) {
		return nil, errors.New("mismatched line fields")
	}

	var lines []core.LineRequest
	for i, raw := range productIDs {
		if raw == "" || raw == "0" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad product id %q", raw)
		}
		qty, err := strconv.Atoi(quantities[i])
		if err != nil || qty < 1 {
			return nil, fmt.Errorf("bad quantity %q", quantities[i])
		}
		lines = append(lines, core.LineRequest{ProductID: id, Quantity: qty})
	}
	return lines, nil
}

func (s *Server) handleSaleView(w http.ResponseWriter, r *http.Request, session auth.Session) {
	id, err := parseID(r, "id")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	sale, err := s.store.GetSale(r.Context(), id)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	data := struct {
		pageData
		Sale core.Sale
	}{s.pageData(w, r), sale}
	s.render(w, r, "sale_view.html", data)
}

// handleSaleDelete removes a sale from the ledger. Sold stock stays sold.
func (s *Server) handleSaleDelete(w http.ResponseWriter, r *http.Request, session auth.Session) {
	id, err := parseID(r, "id")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	err = s.ledger.DeleteSale(r.Context(), id)
	switch {
	case errors.Is(err, core.ErrNotFound):
		setFlash(w, "Sale not found.")
	case err != nil:
		s.logger.ErrorContext(r.Context(), "Sale delete failed", log.FieldError, err)
		setFlash(w, "Could not delete sale.")
	default:
		setFlash(w, "Sale deleted.")
	}
	http.Redirect(w, r, "/admin/sales", http.StatusSeeOther)
}

func (s *Server) handleExpenseCreate(w http.ResponseWriter, r *http.Request, session auth.Session) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	cents, err := core.ParseDecimalToCents(r.Form.Get("amount"))
	if err != nil {
		setFlash(w, "Invalid amount.")
		http.Redirect(w, r, "/admin/sales", http.StatusSeeOther)
		return
	}

	expense, err := s.ledger.CreateExpense(r.Context(), core.Expense{
		Description: sanitizeInput(r.Form.Get("description")),
		Amount:      core.Money{Cents: cents},
		Category:    sanitizeInput(r.Form.Get("category")),
	})
	if err != nil {
		setFlash(w, "Could not record expense: "+err.Error())
		http.Redirect(w, r, "/admin/sales", http.StatusSeeOther)
		return
	}

	setFlash(w, fmt.Sprintf("Expense #%d recorded.", expense.ID))
	http.Redirect(w, r, "/admin/sales", http.StatusSeeOther)
}

func (s *Server) handleExpenseDelete(w http.ResponseWriter, r *http.Request, session auth.Session) {
	id, err := parseID(r, "id")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	err = s.ledger.DeleteExpense(r.Context(), id)
	switch {
	case errors.Is(err, core.ErrNotFound):
		setFlash(w, "Expense not found.")
	case err != nil:
		s.logger.ErrorContext(r.Context(), "Expense delete failed", log.FieldError, err)
		setFlash(w, "Could not delete expense.")
	default:
		setFlash(w, "Expense deleted.")
	}
	http.Redirect(w, r, "/admin/sales", http.StatusSeeOther)
}

// handleReportPDF prints the current report window to PDF. The renderer
// drives a headless browser back at this server, so the render page is
// guarded with a short-lived single-purpose token instead of the admin's
// own session cookie.
func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request, session auth.Session) {
	token, err := s.sessions.IssueRenderToken()
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Render token issue failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	renderPath := "/reports/render?token=" + url.QueryEscape(token) +
		reportQuery(q.Get("from"), q.Get("to"), q.Get("customer"))

	pdf, err := s.pdf.Render(r.Context(), renderPath)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "PDF render failed", log.FieldError, err)
		setFlash(w, "PDF generation failed. Is a Chrome or Chromium browser installed?")
		http.Redirect(w, r, "/admin/sales", http.StatusSeeOther)
		return
	}

	filename := "report-" + time.Now().Format("2006-01-02") + ".pdf"
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.Write(pdf)
}

// handleReportRender serves the print layout the PDF renderer captures.
// It is reachable without a session; the render token is the only guard.
func (s *Server) handleReportRender(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.ParseRenderToken(r.URL.Query().Get("token")); err != nil {
		http.NotFound(w, r)
		return
	}

	window := s.reportWindow(r)
	summary, err := s.reports.Aggregate(r.Context(), window)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Report aggregation failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "report_document.html", newReportSummary(window.Label(), summary))
}

// reportQuery rebuilds the filter query string so the listing page, the PDF
// link and the render page all agree on the window.
func reportQuery(from, to, customer string) string {
	q := ""
	if from != "" {
		q += "&from=" + url.QueryEscape(from)
	}
	if to != "" {
		q += "&to=" + url.QueryEscape(to)
	}
	if customer != "" {
		q += "&customer=" + url.QueryEscape(customer)
	}
	return q
}
