package domain

// CartLine is one selected menu item with the price captured when it was first added.
type CartLine struct {
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	Price      int    `json:"price"`
	Quantity   int    `json:"quantity"`
}

// Cart aggregates selected items into an order draft. Lines keep insertion order.
type Cart struct {
	StoreID string
	lines   map[string]*CartLine
	order   []string
}

func NewCart(storeID string) *Cart {
	return &Cart{StoreID: storeID, lines: make(map[string]*CartLine)}
}

// RestoreCart rebuilds a cart from staged lines, keeping their price snapshots.
// Lines with a non-positive quantity are dropped.
func RestoreCart(storeID string, lines []CartLine) *Cart {
	c := NewCart(storeID)
	for _, l := range lines {
		if l.Quantity < 1 {
			continue
		}
		if existing, ok := c.lines[l.MenuItemID]; ok {
			existing.Quantity += l.Quantity
			continue
		}
		line := l
		c.lines[l.MenuItemID] = &line
		c.order = append(c.order, l.MenuItemID)
	}
	return c
}

// Increase adds one unit of item. The price is captured only on first addition.
func (c *Cart) Increase(item MenuItem) {
	if line, ok := c.lines[item.ID]; ok {
		line.Quantity++
		return
	}
	c.lines[item.ID] = &CartLine{
		MenuItemID: item.ID,
		Name:       item.Name,
		Price:      item.Price,
		Quantity:   1,
	}
	c.order = append(c.order, item.ID)
}

// Decrease removes one unit of the item; a line that reaches zero is removed.
func (c *Cart) Decrease(itemID string) {
	line, ok := c.lines[itemID]
	if !ok {
		return
	}
	line.Quantity--
	if line.Quantity > 0 {
		return
	}
	delete(c.lines, itemID)
	for i, id := range c.order {
		if id == itemID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Cart) Quantity(itemID string) int {
	if line, ok := c.lines[itemID]; ok {
		return line.Quantity
	}
	return 0
}

func (c *Cart) Total() int {
	total := 0
	for _, line := range c.lines {
		total += line.Price * line.Quantity
	}
	return total
}

func (c *Cart) ItemCount() int {
	n := 0
	for _, line := range c.lines {
		n += line.Quantity
	}
	return n
}

func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.lines[id])
	}
	return out
}

// OrderItems converts the cart into order lines carrying the price snapshots.
func (c *Cart) OrderItems() []OrderItem {
	items := make([]OrderItem, 0, len(c.order))
	for _, line := range c.Lines() {
		items = append(items, OrderItem{
			MenuItemID: line.MenuItemID,
			Name:       line.Name,
			Quantity:   line.Quantity,
			Price:      line.Price,
		})
	}
	return items
}
