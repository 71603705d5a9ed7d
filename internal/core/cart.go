package core

// CartItem is one pre-commit selection. Name, Price and Image are snapshots
// taken when the product was first added; they are display values only and
// are re-read from the catalog when the cart is committed.
type CartItem struct {
	ProductID int64
	Name      string
	Price     Money
	Image     string
	Quantity  int
}

// Cart is the transient, per-session selection of products. It is a plain
// value: every operation returns the updated cart and the web layer stores
// the result back into its session store. Items keep insertion order so a
// committed sale's lines match the order products were added.
type Cart struct {
	Items []CartItem
}

// Add puts a product in the cart. A product already present has its quantity
// incremented by exactly one, whatever quantity was requested; the storefront
// has always behaved this way on repeated taps of "add". A new product starts
// at quantity one with a snapshot of its current name, price and image.
func (c Cart) Add(p Product, _ int) Cart {
	for i, it := range c.Items {
		if it.ProductID == p.ID {
			c.Items = cloneItems(c.Items)
			c.Items[i].Quantity++
			return c
		}
	}
	c.Items = append(cloneItems(c.Items), CartItem{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Image:     p.Image,
		Quantity:  1,
	})
	return c
}

// Remove drops a product from the cart. Removing an absent product is a
// no-op, not an error.
func (c Cart) Remove(productID int64) Cart {
	out := make([]CartItem, 0, len(c.Items))
	for _, it := range c.Items {
		if it.ProductID != productID {
			out = append(out, it)
		}
	}
	c.Items = out
	return c
}

// Clear empties the cart unconditionally.
func (c Cart) Clear() Cart {
	c.Items = nil
	return c
}

// Total sums snapshot price times quantity over all items. It never reads
// the catalog.
func (c Cart) Total() Money {
	var total Money
	for _, it := range c.Items {
		total = total.Add(it.Price.Mul(it.Quantity))
	}
	return total
}

// Empty reports whether the cart has no items.
func (c Cart) Empty() bool {
	return len(c.Items) == 0
}

// Count returns the total number of units across all items.
func (c Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Lines converts the cart into sale line requests, preserving item order.
func (c Cart) Lines() []LineRequest {
	lines := make([]LineRequest, len(c.Items))
	for i, it := range c.Items {
		lines[i] = LineRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return lines
}

func cloneItems(items []CartItem) []CartItem {
	out := make([]CartItem, len(items))
	copy(out, items)
	return out
}
