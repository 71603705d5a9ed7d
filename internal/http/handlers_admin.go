package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"ropastore/internal/auth"
	"ropastore/internal/core"
	"ropastore/internal/log"
	"ropastore/internal/storage"
	"ropastore/internal/uploads"
)

const maxUploadBytes = 10 << 20

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request, session auth.Session) {
	ctx := r.Context()

	productCount, err := s.store.CountProducts(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Count products failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	accountCount, err := s.store.CountAccounts(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Count accounts failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	saleCount, err := s.store.CountSales(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Count sales failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	categoryCount, err := s.store.CountCategories(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Count categories failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	monthSaleCount, err := s.store.CountSalesInMonth(ctx, time.Now().Month())
	if err != nil {
		s.logger.ErrorContext(ctx, "Count month sales failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	revenue, err := s.store.TotalRevenue(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Total revenue failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	expensesTotal, err := s.store.TotalExpenses(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Total expenses failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	lowStock, err := s.store.LowStockProducts(ctx, s.cfg.LowStockThreshold)
	if err != nil {
		s.logger.ErrorContext(ctx, "Low stock listing failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	monthly, err := s.reports.MonthlySales(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Monthly sales failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Average ticket over all sales; zero when nothing was sold yet.
	var averageTicket core.Money
	if saleCount > 0 {
		averageTicket = core.Money{Cents: revenue.Cents / saleCount}
	}

	data := struct {
		pageData
		ProductCount   int64
		AccountCount   int64
		CategoryCount  int64
		SaleCount      int64
		MonthSaleCount int64
		Revenue        core.Money
		ExpensesTotal  core.Money
		Net            core.Money
		AverageTicket  core.Money
		LowStock       []core.Product
		Monthly        []core.MonthTotal
	}{
		pageData:       s.pageData(w, r),
		ProductCount:   productCount,
		AccountCount:   accountCount,
		CategoryCount:  categoryCount,
		SaleCount:      saleCount,
		MonthSaleCount: monthSaleCount,
		Revenue:        revenue,
		ExpensesTotal:  expensesTotal,
		Net:            revenue.Sub(expensesTotal),
		AverageTicket:  averageTicket,
		LowStock:       lowStock,
		Monthly:        monthly,
	}
	s.render(w, r, "admin_dashboard.html", data)
}

func (s *Server) handleAdminProducts(w http.ResponseWriter, r *http.Request, session auth.Session) {
	products, err := s.store.ListProducts(r.Context(), storage.ProductFilter{
		Search: sanitizeInput(r.URL.Query().Get("q")),
	})
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
	}{s.pageData(w, r), products, categories, r.URL.Query().Get("q")}
	s.render(w, r, "admin_products.html", data)
}

// handleProductForm serves both the create and the edit form.
func (s *Server) handleProductForm(w http.ResponseWriter, r *http.Request, session auth.Session) {
	var product core.Product
	if r.PathValue("id") != "" {
		id, err := parseID(r, "id")
		if err != nil {
			http.NotFound(w, r)
			return
		}
		product, err = s.store.GetProduct(r.Context(), id)
		if err != nil {
			http.NotFound(w, r)
			return
		}
	}

	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List categories failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data := struct {
		pageData
		Product    core.Product
		Categories []core.Category
		Editing    bool
	}{s.pageData(w, r), product, categories, product.ID != 0}
	s.render(w, r, "product_form.html", data)
}

// parseProductForm reads the shared fields of the create and edit forms.
func (s *Server) parseProductForm(r *http.Request) (core.Product, error) {
	var p core.Product

	p.Name = sanitizeInput(r.FormValue("name"))
	p.Description = sanitizeInput(r.FormValue("description"))
	p.Featured = r.FormValue("featured") == "on"

	cents, err := core.ParseDecimalToCents(r.FormValue("price"))
	if err != nil {
		return p, err
	}
	p.Price = core.Money{Cents: cents}

	stock, err := strconv.Atoi(r.FormValue("stock"))
	if err != nil || stock < 0 {
		return p, errors.New("invalid stock")
	}
	p.Stock = stock

	if v := r.FormValue("category_id"); v != "" && v != "0" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return p, errors.New("invalid category")
		}
		p.CategoryID = &id
	}
	return p, nil
}

// saveUploadedImage stores the optional product image from the form.
// An absent file is fine; the product keeps its current image.
func (s *Server) saveUploadedImage(r *http.Request) (string, error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()
	return s.uploads.Save(header.Filename, file)
}

func (s *Server) handleProductCreate(w http.ResponseWriter, r *http.Request, session auth.Session) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	product, err := s.parseProductForm(r)
	if err != nil {
		setFlash(w, "Invalid product: "+err.Error())
		http.Redirect(w, r, "/admin/products/new", http.StatusSeeOther)
		return
	}

	image, err := s.saveUploadedImage(r)
	if errors.Is(err, uploads.ErrUnsupportedType) {
		setFlash(w, "Unsupported image type.")
		http.Redirect(w, r, "/admin/products/new", http.StatusSeeOther)
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Image upload failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	product.Image = image

	if _, err := s.store.CreateProduct(r.Context(), product); err != nil {
		setFlash(w, "Could not create product: "+err.Error())
		http.Redirect(w, r, "/admin/products/new", http.StatusSeeOther)
		return
	}

	setFlash(w, "Product created.")
	http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
}

func (s *Server) handleProductUpdate(w http.ResponseWriter, r *http.Request, session auth.Session) {
	id, err := parseID(r, "id")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	existing, err := s.store.GetProduct(r.Context(), id)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	product, err := s.parseProductForm(r)
	if err != nil {
		setFlash(w, "Invalid product: "+err.Error())
		http.Redirect(w, r, "/admin/products/"+r.PathValue("id")+"/edit", http.StatusSeeOther)
		return
	}
	product.ID = id
	product.Image = existing.Image

	if image, err := s.saveUploadedImage(r); err == nil && image != "" {
		if err := s.uploads.Remove(existing.Image); err != nil {
			s.logger.WarnContext(r.Context(), "Failed to remove old image",
				"image", existing.Image, log.FieldError, err)
		}
		product.Image = image
	} else if errors.Is(err, uploads.ErrUnsupportedType) {
		setFlash(w, "Unsupported image type.")
		http.Redirect(w, r, "/admin/products/"+r.PathValue("id")+"/edit", http.StatusSeeOther)
		return
	}

	if err := s.store.UpdateProduct(r.Context(), product); err != nil {
		setFlash(w, "Could not update product: "+err.Error())
		http.Redirect(w, r, "/admin/products/"+r.PathValue("id")+"/edit", http.StatusSeeOther)
		return
	}

	setFlash(w, "Product updated.")
	http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
}

func (s *Server) handleProductDelete(w http.ResponseWriter, r *http.Request, session auth.Session) {
	id, err := parseID(r, "id")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	product, err := s.store.GetProduct(r.Context(), id)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := s.store.DeleteProduct(r.Context(), id); err != nil {
		setFlash(w, "Could not delete product: it has recorded sales.")
		http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
		return
	}
	if err := s.uploads.Remove(product.Image); err != nil {
		s.logger.WarnContext(r.Context(), "Failed to remove product image",
			"image", product.Image, log.FieldError, err)
	}

	setFlash(w, "Product deleted.")
	http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
}

func (s *Server) handleCategoryCreate(w http.ResponseWriter, r *http.Request, session auth.Session) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	_, err := s.store.CreateCategory(r.Context(), core.Category{
		Name:        sanitizeInput(r.Form.Get("name")),
		Description: sanitizeInput(r.Form.Get("description")),
	})
	switch {
	case errors.Is(err, core.ErrDuplicateName):
		setFlash(w, "A category with that name already exists.")
	case errors.Is(err, core.ErrEmptyName):
		setFlash(w, "Category name cannot be empty.")
	case err != nil:
		setFlash(w, "Could not create category: "+err.Error())
	default:
		setFlash(w, "Category created.")
	}
	http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
}

func (s *Server) handleCategoryUpdate(w http.ResponseWriter, r *http.Request, session auth.Session) {
	id, err := parseID(r, "id")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	err = s.store.UpdateCategory(r.Context(), core.Category{
		ID:          id,
		Name:        sanitizeInput(r.Form.Get("name")),
		Description: sanitizeInput(r.Form.Get("description")),
	})
	switch {
	case errors.Is(err, core.ErrDuplicateName):
		setFlash(w, "A category with that name already exists.")
	case errors.Is(err, core.ErrEmptyName):
		setFlash(w, "Category name cannot be empty.")
	case errors.Is(err, core.ErrNotFound):
		setFlash(w, "Category not found.")
	case err != nil:
		setFlash(w, "Could not update category: "+err.Error())
	default:
		setFlash(w, "Category updated.")
	}
	http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
}

func (s *Server) handleCategoryDelete(w http.ResponseWriter, r *http.Request, session auth.Session) {
	id, err := parseID(r, "id")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	err = s.store.DeleteCategory(r.Context(), id, s.cfg.CategoryDeletePolicy)
	switch {
	case errors.Is(err, storage.ErrCategoryInUse):
		setFlash(w, "Category still has products; move or delete them first.")
	case errors.Is(err, core.ErrNotFound):
		setFlash(w, "Category not found.")
	case err != nil:
		setFlash(w, "Could not delete category: "+err.Error())
	default:
		setFlash(w, "Category deleted.")
	}
	http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, session auth.Session) {
	accounts, err := s.store.ListAccounts(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List accounts failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data := struct {
		pageData
		Accounts []core.Account
	}{s.pageData(w, r), accounts}
	s.render(w, r, "admin_users.html", data)
}

func (s *Server) handleUserForm(w http.ResponseWriter, r *http.Request, session auth.Session) {
	var account core.Account
	if r.PathValue("id") != "" {
		id, err := parseID(r, "id")
		if err != nil {
			http.NotFound(w, r)
			return
		}
		account, err = s.store.GetAccount(r.Context(), id)
		if err != nil {
			http.NotFound(w, r)
			return
		}
	}

	data := struct {
		pageData
		Account core.Account
		Editing bool
	}{s.pageData(w, r), account, account.ID != 0}
	s.render(w, r, "user_form.html", data)
}

func (s *Server) handleUserCreate(w http.ResponseWriter, r *http.Request, session auth.Session) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	password := r.Form.Get("password")
	if len(password) < 8 {
		setFlash(w, "Password must be at least 8 characters.")
		http.Redirect(w, r, "/admin/users/new", http.StatusSeeOther)
		return
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Hash password failed", log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	_, err = s.store.CreateAccount(r.Context(), core.Account{
		Username:     sanitizeInput(r.Form.Get("username")),
		Email:        sanitizeInput(r.Form.Get("email")),
		PasswordHash: hash,
		Admin:        r.Form.Get("admin") == "on",
		Active:       true,
	})
	if err != nil {
		setFlash(w, "Could not create user: "+err.Error())
		http.Redirect(w, r, "/admin/users/new", http.StatusSeeOther)
		return
	}

	setFlash(w, "User created.")
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

func (s *Server) handleUserUpdate(w http.ResponseWriter, r *http.Request, session auth.Session) {
	id, err := parseID(r, "id")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	account := core.Account{
		ID:       id,
		Username: sanitizeInput(r.Form.Get("username")),
		Email:    sanitizeInput(r.Form.Get("email")),
		Admin:    r.Form.Get("admin") == "on",
		Active:   r.Form.Get("active") == "on",
	}

	// Only replace the password when a new one was typed.
	if password := r.Form.Get("password"); password != "" {
		if len(password) < 8 {
			setFlash(w, "Password must be at least 8 characters.")
			http.Redirect(w, r, "/admin/users/"+r.PathValue("id")+"/edit", http.StatusSeeOther)
			return
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Hash password failed", log.FieldError, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		account.PasswordHash = hash
	}

	if err := s.store.UpdateAccount(r.Context(), account); err != nil {
		setFlash(w, "Could not update user: "+err.Error())
		http.Redirect(w, r, "/admin/users/"+r.PathValue("id")+"/edit", http.StatusSeeOther)
		return
	}

	setFlash(w, "User updated.")
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

func (s *Server) handleUserDelete(w http.ResponseWriter, r *http.Request, session auth.Session) {
	id, err := parseID(r, "id")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if id == session.AccountID {
		setFlash(w, "You cannot delete your own account.")
		http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
		return
	}

	if err := s.store.DeleteAccount(r.Context(), id); err != nil {
		setFlash(w, "Could not delete user: they have recorded sales.")
		http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
		return
	}

	setFlash(w, "User deleted.")
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}
