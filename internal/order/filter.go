package order

// ListFilter narrows an order listing. A nil Status matches every status.
type ListFilter struct {
	Status *Status
	Limit  int
	Offset int
}

// Matches reports whether o passes the status filter.
func (f ListFilter) Matches(o *Order) bool {
	return f.Status == nil || o.Status == *f.Status
}
