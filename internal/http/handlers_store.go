package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"ropastore/internal/auth"
	"ropastore/internal/core"
	"ropastore/internal/log"
	"ropastore/internal/storage"
)

// pageData carries the state every page shares: who is logged in and any
// pending flash message.
type pageData struct {
	LoggedIn  bool
	Username  string
	Admin     bool
	Flash     string
	CartCount int
}

func (s *Server) pageData(w http.ResponseWriter, r *http.Request) pageData {
	pd := pageData{Flash: popFlash(w, r)}
	if session, ok := s.currentSession(r); ok {
		pd.LoggedIn = true
		pd.Username = session.Username
		pd.Admin = session.Admin
		pd.CartCount = s.carts.Get(session.CartKey).Count()
	}
	return pd
}

// homePageSize caps the featured and recent listings on the landing page.
const homePageSize = 8

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	featured, err := s.store.ListProducts(ctx, storage.ProductFilter{FeaturedOnly: true, Limit: homePageSize})
	if err != nil {
		s.logger.ErrorContext(ctx, "List featured products failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	recent, err := s.store.RecentProducts(ctx, homePageSize)
	if err != nil {
		s.logger.ErrorContext(ctx, "List recent products failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "List categories failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	productCount, err := s.store.CountProducts(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Count products failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	categoryCount, err := s.store.CountCategories(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Count categories failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	customerCount, err := s.store.CountCustomers(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Count customers failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data := struct {
		pageData
		Featured      []core.Product
		Recent        []core.Product
		Categories    []core.Category
		ProductCount  int64
		CategoryCount int64
		CustomerCount int64
	}{
		pageData:      s.pageData(w, r),
		Featured:      featured,
		Recent:        recent,
		Categories:    categories,
		ProductCount:  productCount,
		CategoryCount: categoryCount,
		CustomerCount: customerCount,
	}
	s.render(w, r, "home.html", data)
}

func (s *Server) handleShop(w http.ResponseWriter, r *http.Request, session auth.Session) {
	filter := storage.ProductFilter{
		Search: sanitizeInput(r.URL.Query().Get("q")),
	}
	if v := r.URL.Query().Get("category"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.CategoryID = id
		}
	}

	products, err := s.store.ListProducts(r.Context(), filter)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List products failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List categories failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data := struct {
		pageData
		Products   []core.Product
		Categories []core.Category
		Query      string
		CategoryID int64
	}{s.pageData(w, r), products, categories, filter.Search, filter.CategoryID}
	s.render(w, r, "shop.html", data)
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "login.html", s.pageData(w, r))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	username := sanitizeInput(r.Form.Get("username"))
	password := r.Form.Get("password")

	account, err := s.store.GetAccountByUsername(r.Context(), username)
	if err != nil {
		// Same response as a bad password; no account probing.
		setFlash(w, "Invalid username or password.")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if !account.Active {
		setFlash(w, "This account is disabled.")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if err := auth.CheckPassword(account.PasswordHash, password); err != nil {
		setFlash(w, "Invalid username or password.")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	token, err := s.sessions.Issue(account.ID, account.Username, account.Admin)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Issue session failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.setSessionCookie(w, token)

	s.logger.InfoContext(r.Context(), "Login",
		log.FieldAccountID, account.ID,
		log.FieldUsername, account.Username)

	if account.Admin {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/shop", http.StatusSeeOther)
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "register.html", s.pageData(w, r))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	username := sanitizeInput(r.Form.Get("username"))
	email := sanitizeInput(r.Form.Get("email"))
	password := r.Form.Get("password")

	if len(password) < 8 {
		setFlash(w, "Password must be at least 8 characters.")
		http.Redirect(w, r, "/register", http.StatusSeeOther)
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Hash password failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	account, err := s.store.CreateAccount(r.Context(), core.Account{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Active:       true,
	})
	if errors.Is(err, core.ErrDuplicateName) {
		setFlash(w, "That username or email is already taken.")
		http.Redirect(w, r, "/register", http.StatusSeeOther)
		return
	}
	if err != nil {
		setFlash(w, "Registration failed: "+err.Error())
		http.Redirect(w, r, "/register", http.StatusSeeOther)
		return
	}

	token, err := s.sessions.Issue(account.ID, account.Username, false)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Issue session failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.setSessionCookie(w, token)
	http.Redirect(w, r, "/shop", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if session, ok := s.currentSession(r); ok {
		s.carts.Delete(session.CartKey)
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request, session auth.Session) {
	cart := s.carts.Get(session.CartKey)
	data := struct {
		pageData
		Cart core.Cart
	}{s.pageData(w, r), cart}
	s.render(w, r, "cart.html", data)
}

func (s *Server) handleCartAdd(w http.ResponseWriter, r *http.Request, session auth.Session) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	productID, err := strconv.ParseInt(r.Form.Get("product_id"), 10, 64)
	if err != nil || productID <= 0 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	product, err := s.store.GetProduct(r.Context(), productID)
	if errors.Is(err, core.ErrProductNotFound) {
		setFlash(w, "That product is no longer available.")
		http.Redirect(w, r, "/shop", http.StatusSeeOther)
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Get product failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	cart := s.carts.Get(session.CartKey).Add(product, parseQuantity(r, "quantity"))
	s.carts.Put(session.CartKey, cart)

	setFlash(w, fmt.Sprintf("%s added to cart.", product.Name))
	http.Redirect(w, r, "/shop", http.StatusSeeOther)
}

func (s *Server) handleCartRemove(w http.ResponseWriter, r *http.Request, session auth.Session) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	productID, err := strconv.ParseInt(r.Form.Get("product_id"), 10, 64)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	cart := s.carts.Get(session.CartKey).Remove(productID)
	s.carts.Put(session.CartKey, cart)
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}

func (s *Server) handleCartClear(w http.ResponseWriter, r *http.Request, session auth.Session) {
	s.carts.Delete(session.CartKey)
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request, session auth.Session) {
	cart := s.carts.Get(session.CartKey)
	if cart.Empty() {
		setFlash(w, "Your cart is empty.")
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
		return
	}

	sale, err := s.ledger.CommitSale(r.Context(), session.AccountID, cart.Lines())
	switch {
	case errors.Is(err, core.ErrInsufficientStock):
		setFlash(w, "Sorry, there is not enough stock for one of your items. Nothing was charged.")
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
		return
	case errors.Is(err, core.ErrProductNotFound):
		setFlash(w, "One of your items was removed from the catalog. Please review your cart.")
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "Checkout failed",
			log.FieldAccountID, session.AccountID,
			log.FieldError, err)
		setFlash(w, "Checkout failed. Please try again.")
		http.Redirect(w, r, "/cart", http.StatusSeeOther)
		return
	}

	msg := fmt.Sprintf("Order #%d placed. Total %s.", sale.ID, sale.Total)
	if drift := priceDriftNotice(cart, sale); drift != "" {
		msg += " " + drift
	}
	setFlash(w, msg)

	s.carts.Delete(session.CartKey)
	http.Redirect(w, r, "/shop", http.StatusSeeOther)
}

// priceDriftNotice reports items whose catalog price changed between adding
// to the cart and committing. The sale is already charged at the commit-time
// price; the notice just keeps the buyer informed.
func priceDriftNotice(cart core.Cart, sale core.Sale) string {
	snapshot := make(map[int64]core.Money, len(cart.Items))
	for _, it := range cart.Items {
		snapshot[it.ProductID] = it.Price
	}

	var changed []string
	for _, line := range sale.Lines {
		if was, ok := snapshot[line.ProductID]; ok && was != line.UnitPrice {
			changed = append(changed, fmt.Sprintf("%s is now %s (was %s)",
				line.ProductName, line.UnitPrice, was))
		}
	}
	if len(changed) == 0 {
		return ""
	}
	return "Note: prices changed while you were shopping: " + strings.Join(changed, "; ") + "."
}
