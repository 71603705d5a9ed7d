// Package http serves the storefront and the back office. All pages are
// rendered server-side from embedded templates.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"ropastore/internal/auth"
	"ropastore/internal/cartstore"
	"ropastore/internal/config"
	"ropastore/internal/core"
	"ropastore/internal/log"
	"ropastore/internal/report"
	"ropastore/internal/services"
	"ropastore/internal/storage"
	"ropastore/internal/uploads"
	appweb "ropastore/web"
)

const sessionCookie = "session"

type Server struct {
	http.Server

	cfg       *config.Config
	store     *storage.Store
	ledger    *services.LedgerService
	sessions  *auth.Sessions
	carts     *cartstore.Store
	uploads   *uploads.Manager
	reports   *report.Engine
	pdf       *report.PDFRenderer
	templates *template.Template
	logger    *log.Logger

	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(
	cfg *config.Config,
	store *storage.Store,
	ledger *services.LedgerService,
	sessions *auth.Sessions,
	carts *cartstore.Store,
	uploadMgr *uploads.Manager,
	reports *report.Engine,
	pdf *report.PDFRenderer,
	logger *log.Logger,
) (*Server, error) {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    ":" + cfg.Port,
			Handler: mux,
		},
		cfg:         cfg,
		store:       store,
		ledger:      ledger,
		sessions:    sessions,
		carts:       carts,
		uploads:     uploadMgr,
		reports:     reports,
		pdf:         pdf,
		logger:      logger.WithComponent(log.ComponentHTTP),
		rateLimiter: newRateLimiter(),
	}

	t, err := template.New("").Funcs(template.FuncMap{
		"money":   func(m core.Money) string { return m.String() },
		"decimal": func(m core.Money) string { return fmt.Sprintf("%d.%02d", m.Cents/100, m.Cents%100) },
		"deref":   func(p *int64) int64 { return *p },
	}).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	s.templates = t

	// Static assets, served from the embedded FS.
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	// Uploaded product images.
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/",
		http.FileServer(http.Dir(uploadMgr.Dir()))))

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	// Storefront.
	mux.HandleFunc("GET /{$}", s.secure(s.handleHome))
	mux.HandleFunc("GET /shop", s.secure(s.requireAuth(s.handleShop)))

	// Auth.
	mux.HandleFunc("GET /login", s.secure(s.handleLoginForm))
	mux.HandleFunc("POST /login", s.secure(s.handleLogin))
	mux.HandleFunc("GET /register", s.secure(s.handleRegisterForm))
	mux.HandleFunc("POST /register", s.secure(s.handleRegister))
	mux.HandleFunc("POST /logout", s.secure(s.handleLogout))

	// Cart.
	mux.HandleFunc("GET /cart", s.secure(s.requireAuth(s.handleCart)))
	mux.HandleFunc("POST /cart/add", s.secure(s.requireAuth(s.handleCartAdd)))
	mux.HandleFunc("POST /cart/remove", s.secure(s.requireAuth(s.handleCartRemove)))
	mux.HandleFunc("POST /cart/clear", s.secure(s.requireAuth(s.handleCartClear)))
	mux.HandleFunc("POST /cart/checkout", s.secure(s.requireAuth(s.handleCheckout)))

	// Back office.
	mux.HandleFunc("GET /admin", s.secure(s.requireAdmin(s.handleAdminDashboard)))

	mux.HandleFunc("GET /admin/products", s.secure(s.requireAdmin(s.handleAdminProducts)))
	mux.HandleFunc("GET /admin/products/new", s.secure(s.requireAdmin(s.handleProductForm)))
	mux.HandleFunc("POST /admin/products", s.secure(s.requireAdmin(s.handleProductCreate)))
	mux.HandleFunc("GET /admin/products/{id}/edit", s.secure(s.requireAdmin(s.handleProductForm)))
	mux.HandleFunc("POST /admin/products/{id}", s.secure(s.requireAdmin(s.handleProductUpdate)))
	mux.HandleFunc("POST /admin/products/{id}/delete", s.secure(s.requireAdmin(s.handleProductDelete)))

	mux.HandleFunc("POST /admin/categories", s.secure(s.requireAdmin(s.handleCategoryCreate)))
	mux.HandleFunc("POST /admin/categories/{id}", s.secure(s.requireAdmin(s.handleCategoryUpdate)))
	mux.HandleFunc("POST /admin/categories/{id}/delete", s.secure(s.requireAdmin(s.handleCategoryDelete)))

	mux.HandleFunc("GET /admin/users", s.secure(s.requireAdmin(s.handleAdminUsers)))
	mux.HandleFunc("GET /admin/users/new", s.secure(s.requireAdmin(s.handleUserForm)))
	mux.HandleFunc("POST /admin/users", s.secure(s.requireAdmin(s.handleUserCreate)))
	mux.HandleFunc("GET /admin/users/{id}/edit", s.secure(s.requireAdmin(s.handleUserForm)))
	mux.HandleFunc("POST /admin/users/{id}", s.secure(s.requireAdmin(s.handleUserUpdate)))
	mux.HandleFunc("POST /admin/users/{id}/delete", s.secure(s.requireAdmin(s.handleUserDelete)))

	mux.HandleFunc("GET /admin/sales", s.secure(s.requireAdmin(s.handleAdminSales)))
	mux.HandleFunc("GET /admin/sales/new", s.secure(s.requireAdmin(s.handleSaleForm)))
	mux.HandleFunc("POST /admin/sales", s.secure(s.requireAdmin(s.handleSaleCreate)))
	mux.HandleFunc("GET /admin/sales/{id}", s.secure(s.requireAdmin(s.handleSaleView)))
	mux.HandleFunc("POST /admin/sales/{id}/delete", s.secure(s.requireAdmin(s.handleSaleDelete)))

	mux.HandleFunc("POST /admin/expenses", s.secure(s.requireAdmin(s.handleExpenseCreate)))
	mux.HandleFunc("POST /admin/expenses/{id}/delete", s.secure(s.requireAdmin(s.handleExpenseDelete)))

	mux.HandleFunc("GET /admin/reports/pdf", s.secure(s.requireAdmin(s.handleReportPDF)))
	mux.HandleFunc("GET /reports/render", s.secure(s.handleReportRender))

	return s, nil
}

// secure adds security headers, rate limiting and request logging.
func (s *Server) secure(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ip := clientIP(r)
		requestID := generateRequestID()

		if r.Method == http.MethodPost && !s.rateLimiter.allow(ip) {
			s.logger.WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, ip,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.InfoContext(r.Context(), "Request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldClientIP, ip)
	}
}

// requireAuth redirects anonymous visitors to the login page.
func (s *Server) requireAuth(next func(http.ResponseWriter, *http.Request, auth.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := s.currentSession(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r, session)
	}
}

// requireAdmin hides the back office from non-admin accounts.
func (s *Server) requireAdmin(next func(http.ResponseWriter, *http.Request, auth.Session)) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request, session auth.Session) {
		if !session.Admin {
			http.NotFound(w, r)
			return
		}
		next(w, r, session)
	})
}

func (s *Server) currentSession(r *http.Request) (auth.Session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return auth.Session{}, false
	}
	session, err := s.sessions.Parse(c.Value)
	if err != nil {
		return auth.Session{}, false
	}
	return session, true
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessions.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			"template", name,
			log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// Shutdown stops the rate limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
