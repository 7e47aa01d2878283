// Package listing filters, sorts and pages the admin bookings table.
package listing

import (
	"sort"
	"strings"

	"laundrylink-backend/internal/model"
)

// DefaultPageSize is the number of rows per page when none is requested.
const DefaultPageSize = 10

// MaxPageSize caps the requested page size.
const MaxPageSize = 100

// Sort fields accepted by Query.SortField.
const (
	SortBookingDate = "booking_date"
	SortCreatedAt   = "created_at"
	SortTimeSlot    = "time_slot"
	SortServiceType = "service_type"
	SortStatus      = "status"
	SortCost        = "cost"
)

// ValidSortField reports whether f is a sortable column.
func ValidSortField(f string) bool {
	switch f {
	case SortBookingDate, SortCreatedAt, SortTimeSlot, SortServiceType, SortStatus, SortCost:
		return true
	}
	return false
}

// Query is the admin table state, bound from the request query string.
type Query struct {
	Search      string `form:"search"`
	Status      string `form:"status"`
	ServiceType string `form:"service_type"`
	Date        string `form:"date"`
	SortField   string `form:"sort"`
	SortDesc    bool   `form:"desc"`
	Page        int    `form:"page"`
	PageSize    int    `form:"page_size"`
}

// Row is a booking joined with its owner's email and machine name.
type Row struct {
	model.Booking
	UserEmail   string `json:"user_email"`
	MachineName string `json:"machine_name"`
}

// Page is one page of filtered, sorted rows.
type Page struct {
	Rows         []Row    `json:"rows"`
	Page         int      `json:"page"`
	PageSize     int      `json:"page_size"`
	TotalItems   int      `json:"total_items"`
	TotalPages   int      `json:"total_pages"`
	ServiceTypes []string `json:"service_types"`
}

// Join attaches profile emails and machine names to bookings. Bookings whose
// owner is unknown get an empty email.
func Join(bookings []model.Booking, profiles []model.Profile) []Row {
	emails := make(map[string]string, len(profiles))
	for _, p := range profiles {
		emails[p.ID] = p.Email
	}

	rows := make([]Row, 0, len(bookings))
	for _, b := range bookings {
		row := Row{Booking: b, UserEmail: emails[b.UserID], MachineName: b.MachineID}
		if b.Machine != nil && b.Machine.Name != "" {
			row.MachineName = b.Machine.Name
		}
		rows = append(rows, row)
	}
	return rows
}

// Apply filters, sorts and slices rows according to q. Out-of-range pages
// are clamped to the nearest valid page and page sizes to MaxPageSize.
func Apply(rows []Row, q Query) Page {
	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	filtered := make([]Row, 0, len(rows))
	for _, r := range rows {
		if q.matches(r) {
			filtered = append(filtered, r)
		}
	}

	if ValidSortField(q.SortField) {
		less := lessFunc(q.SortField)
		sort.SliceStable(filtered, func(i, j int) bool {
			if q.SortDesc {
				return less(filtered[j], filtered[i])
			}
			return less(filtered[i], filtered[j])
		})
	}

	total := len(filtered)
	pages := total / size
	if total%size != 0 {
		pages++
	}
	page := q.Page
	if page > pages {
		page = pages
	}
	if page < 1 {
		page = 1
	}

	// page <= max(pages, 1), so start never exceeds total.
	start := (page - 1) * size
	end := min(start+size, total)

	return Page{
		Rows:         filtered[start:end],
		Page:         page,
		PageSize:     size,
		TotalItems:   total,
		TotalPages:   pages,
		ServiceTypes: ServiceTypes(rows),
	}
}

// ServiceTypes returns the distinct service types in first-seen order.
func ServiceTypes(rows []Row) []string {
	seen := make(map[string]struct{})
	types := []string{}
	for _, r := range rows {
		if _, ok := seen[r.ServiceType]; ok {
			continue
		}
		seen[r.ServiceType] = struct{}{}
		types = append(types, r.ServiceType)
	}
	return types
}

func (q Query) matches(r Row) bool {
	if q.Status != "" && q.Status != "all" && string(r.Status) != q.Status {
		return false
	}
	if q.ServiceType != "" && q.ServiceType != "all" && r.ServiceType != q.ServiceType {
		return false
	}
	if q.Date != "" && r.BookingDate != q.Date {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(q.Search)); term != "" {
		return strings.Contains(strings.ToLower(r.UserEmail), term) ||
			strings.Contains(strings.ToLower(r.MachineName), term) ||
			strings.Contains(strings.ToLower(r.ID), term)
	}
	return true
}

func lessFunc(field string) func(a, b Row) bool {
	switch field {
	case SortCreatedAt:
		return func(a, b Row) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortTimeSlot:
		return func(a, b Row) bool { return a.TimeSlot < b.TimeSlot }
	case SortServiceType:
		return func(a, b Row) bool { return a.ServiceType < b.ServiceType }
	case SortStatus:
		return func(a, b Row) bool { return a.Status < b.Status }
	case SortCost:
		return func(a, b Row) bool { return a.CostValue() < b.CostValue() }
	default:
		return func(a, b Row) bool { return a.BookingDate < b.BookingDate }
	}
}
