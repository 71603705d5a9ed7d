package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
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
)

const testSecret = "test-secret-0123456789abcdefghij"

type testServer struct {
	srv      *Server
	store    *storage.Store
	sessions *auth.Sessions
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := log.New(log.Config{
		Handler: slog.NewTextHandler(io.Discard, nil),
	})

	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	uploadMgr, err := uploads.NewManager(t.TempDir(), 1200, logger)
	if err != nil {
		t.Fatalf("uploads manager: %v", err)
	}

	cfg := &config.Config{
		Port:                 "8080",
		BaseURL:              "http://localhost:8080",
		SessionSecret:        testSecret,
		SessionTTL:           time.Hour,
		CategoryDeletePolicy: config.CategoryDeleteRestrict,
		LowStockThreshold:    10,
		MaxImageWidth:        1200,
	}

	sessions := auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL)
	carts := cartstore.New(100, time.Hour)
	carts.StartCleanup(time.Hour)
	t.Cleanup(carts.Stop)

	srv, err := NewServer(
		cfg,
		store,
		services.NewLedgerService(store, nil, logger),
		sessions,
		carts,
		uploadMgr,
		report.NewEngine(store),
		report.NewPDFRenderer(cfg.BaseURL, "", logger),
		logger,
	)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(srv.rateLimiter.stop)

	return &testServer{srv: srv, store: store, sessions: sessions}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rec, req)
	return rec
}

// createAccount seeds an account with a real password hash and returns it.
func (ts *testServer) createAccount(t *testing.T, username, password string, admin bool) core.Account {
	t.Helper()

	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	account, err := ts.store.CreateAccount(context.Background(), core.Account{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Admin:        admin,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

// loginCookie issues a session for the account without going through the
// login form.
func (ts *testServer) loginCookie(t *testing.T, account core.Account) *http.Cookie {
	t.Helper()

	token, err := ts.sessions.Issue(account.ID, account.Username, account.Admin)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return &http.Cookie{Name: sessionCookie, Value: token}
}

func (ts *testServer) createProduct(t *testing.T, name string, cents int64, stock int) core.Product {
	t.Helper()

	p, err := ts.store.CreateProduct(context.Background(), core.Product{
		Name:  name,
		Price: core.Money{Cents: cents},
		Stock: stock,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := ts.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestHomePage(t *testing.T) {
	ts := newTestServer(t)
	ts.createProduct(t, "New Jacket", 5000, 3)
	if _, err := ts.store.CreateCategory(context.Background(), core.Category{Name: "Outerwear"}); err != nil {
		t.Fatalf("create category: %v", err)
	}
	ts.createAccount(t, "bob", "password123", false)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}

	body := rec.Body.String()
	// Categories, the recent listing and the catalog statistics all render
	// on the public landing page.
	for _, want := range []string{"Outerwear", "New Jacket", "New arrivals", "Customers"} {
		if !strings.Contains(body, want) {
			t.Errorf("home page missing %q", want)
		}
	}
}

func TestAuthRedirects(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/shop", "/cart", "/admin"} {
		rec := ts.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusSeeOther {
			t.Errorf("GET %s anonymous = %d, want %d", path, rec.Code, http.StatusSeeOther)
			continue
		}
		if loc := rec.Header().Get("Location"); loc != "/login" {
			t.Errorf("GET %s redirects to %q, want /login", path, loc)
		}
	}
}

func TestAdminHiddenFromRegularUsers(t *testing.T) {
	ts := newTestServer(t)
	user := ts.createAccount(t, "bob", "password123", false)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(ts.loginCookie(t, user))

	if rec := ts.do(req); rec.Code != http.StatusNotFound {
		t.Errorf("GET /admin as regular user = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestAdminDashboard(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.createAccount(t, "alice", "password123", true)
	product := ts.createProduct(t, "Shirt", 1000, 10)
	if _, err := ts.store.CreateCategory(context.Background(), core.Category{Name: "Tops"}); err != nil {
		t.Fatalf("create category: %v", err)
	}

	// Two sales this month: 1000 + 3000, so the average ticket is 2000.
	for _, qty := range []int{1, 3} {
		if _, err := ts.store.CommitSale(context.Background(), admin.ID, []core.LineRequest{
			{ProductID: product.ID, Quantity: qty},
		}); err != nil {
			t.Fatalf("commit sale: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(ts.loginCookie(t, admin))

	rec := ts.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /admin as admin = %d, want %d", rec.Code, http.StatusOK)
	}

	body := rec.Body.String()
	for _, want := range []string{"Average ticket", "$20.00", "Sales this month", "Categories"} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	ts.createAccount(t, "alice", "password123", false)

	t.Run("valid credentials set a session and redirect to the shop", func(t *testing.T) {
		rec := ts.do(postForm("/login", url.Values{
			"username": {"alice"},
			"password": {"password123"},
		}))
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
		}
		if loc := rec.Header().Get("Location"); loc != "/shop" {
			t.Errorf("redirect = %q, want /shop", loc)
		}

		var session *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == sessionCookie {
				session = c
			}
		}
		if session == nil || session.Value == "" {
			t.Fatal("no session cookie set")
		}
		if _, err := ts.sessions.Parse(session.Value); err != nil {
			t.Errorf("session cookie does not parse: %v", err)
		}
	})

	t.Run("wrong password bounces back to the login form", func(t *testing.T) {
		rec := ts.do(postForm("/login", url.Values{
			"username": {"alice"},
			"password": {"wrong"},
		}))
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
		}
		if loc := rec.Header().Get("Location"); loc != "/login" {
			t.Errorf("redirect = %q, want /login", loc)
		}
		for _, c := range rec.Result().Cookies() {
			if c.Name == sessionCookie {
				t.Error("session cookie set on failed login")
			}
		}
	})
}

func TestRegister(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(postForm("/register", url.Values{
		"username": {"carol"},
		"email":    {"carol@example.com"},
		"password": {"password123"},
	}))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}

	account, err := ts.store.GetAccountByUsername(context.Background(), "carol")
	if err != nil {
		t.Fatalf("registered account not stored: %v", err)
	}
	if account.Admin {
		t.Error("self-registered account must not be admin")
	}
	if !account.Active {
		t.Error("self-registered account should be active")
	}
	if err := auth.CheckPassword(account.PasswordHash, "password123"); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestCartCheckoutFlow(t *testing.T) {
	ts := newTestServer(t)
	user := ts.createAccount(t, "dave", "password123", false)
	product := ts.createProduct(t, "Scarf", 1500, 4)
	cookie := ts.loginCookie(t, user)

	add := postForm("/cart/add", url.Values{"product_id": {"1"}})
	add.AddCookie(cookie)
	if rec := ts.do(add); rec.Code != http.StatusSeeOther {
		t.Fatalf("cart add = %d, want %d", rec.Code, http.StatusSeeOther)
	}

	view := httptest.NewRequest(http.MethodGet, "/cart", nil)
	view.AddCookie(cookie)
	rec := ts.do(view)
	if rec.Code != http.StatusOK {
		t.Fatalf("cart view = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "Scarf") {
		t.Error("cart page does not show the added product")
	}

	checkout := postForm("/cart/checkout", nil)
	checkout.AddCookie(cookie)
	if rec := ts.do(checkout); rec.Code != http.StatusSeeOther {
		t.Fatalf("checkout = %d, want %d", rec.Code, http.StatusSeeOther)
	}

	got, err := ts.store.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if got.Stock != 3 {
		t.Errorf("stock after checkout = %d, want 3", got.Stock)
	}

	count, err := ts.store.CountSales(context.Background())
	if err != nil {
		t.Fatalf("count sales: %v", err)
	}
	if count != 1 {
		t.Errorf("sales recorded = %d, want 1", count)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	ts := newTestServer(t)
	user := ts.createAccount(t, "erin", "password123", false)

	checkout := postForm("/cart/checkout", nil)
	checkout.AddCookie(ts.loginCookie(t, user))
	rec := ts.do(checkout)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("checkout = %d, want %d", rec.Code, http.StatusSeeOther)
	}

	count, err := ts.store.CountSales(context.Background())
	if err != nil {
		t.Fatalf("count sales: %v", err)
	}
	if count != 0 {
		t.Errorf("sales recorded = %d, want 0", count)
	}
}

func TestAdminRecordSale(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.createAccount(t, "alice", "password123", true)
	ts.createProduct(t, "Hat", 2000, 5)

	req := postForm("/admin/sales", url.Values{
		"product_id": {"1", ""},
		"quantity":   {"2", "1"},
	})
	req.AddCookie(ts.loginCookie(t, admin))

	rec := ts.do(req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("record sale = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/admin/sales" {
		t.Errorf("redirect = %q, want /admin/sales", loc)
	}

	sale, err := ts.store.GetSale(context.Background(), 1)
	if err != nil {
		t.Fatalf("load sale: %v", err)
	}
	if sale.Total.Cents != 4000 {
		t.Errorf("total = %d, want 4000", sale.Total.Cents)
	}
	if sale.AccountID != admin.ID {
		t.Errorf("account = %d, want %d", sale.AccountID, admin.ID)
	}
}

func TestRenderPageTokenGuard(t *testing.T) {
	ts := newTestServer(t)

	t.Run("no token", func(t *testing.T) {
		rec := ts.do(httptest.NewRequest(http.MethodGet, "/reports/render", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("session token is not a render token", func(t *testing.T) {
		account := ts.createAccount(t, "alice", "password123", true)
		token, err := ts.sessions.Issue(account.ID, account.Username, true)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		rec := ts.do(httptest.NewRequest(http.MethodGet, "/reports/render?token="+url.QueryEscape(token), nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("valid render token", func(t *testing.T) {
		token, err := ts.sessions.IssueRenderToken()
		if err != nil {
			t.Fatalf("issue render token: %v", err)
		}
		rec := ts.do(httptest.NewRequest(http.MethodGet, "/reports/render?token="+url.QueryEscape(token), nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		if !strings.Contains(rec.Body.String(), "Ropastore report") {
			t.Error("render page does not contain the report heading")
		}
	})
}

func TestCategoryManagement(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.createAccount(t, "alice", "password123", true)
	cookie := ts.loginCookie(t, admin)

	create := postForm("/admin/categories", url.Values{"name": {"Coats"}})
	create.AddCookie(cookie)
	if rec := ts.do(create); rec.Code != http.StatusSeeOther {
		t.Fatalf("create category = %d, want %d", rec.Code, http.StatusSeeOther)
	}

	categories, err := ts.store.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(categories) != 1 || categories[0].Name != "Coats" {
		t.Fatalf("categories = %+v, want one named Coats", categories)
	}

	update := postForm("/admin/categories/1", url.Values{
		"name":        {"Winter coats"},
		"description": {"Heavy outerwear"},
	})
	update.AddCookie(cookie)
	if rec := ts.do(update); rec.Code != http.StatusSeeOther {
		t.Fatalf("update category = %d, want %d", rec.Code, http.StatusSeeOther)
	}

	category, err := ts.store.GetCategory(context.Background(), 1)
	if err != nil {
		t.Fatalf("get category: %v", err)
	}
	if category.Name != "Winter coats" || category.Description != "Heavy outerwear" {
		t.Errorf("category after update = %+v", category)
	}
}

func TestUserDeleteGuardsOwnAccount(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.createAccount(t, "alice", "password123", true)

	req := postForm("/admin/users/1/delete", nil)
	req.AddCookie(ts.loginCookie(t, admin))
	if rec := ts.do(req); rec.Code != http.StatusSeeOther {
		t.Fatalf("delete = %d, want %d", rec.Code, http.StatusSeeOther)
	}

	if _, err := ts.store.GetAccount(context.Background(), admin.ID); err != nil {
		t.Errorf("admin deleted their own account: %v", err)
	}
}
