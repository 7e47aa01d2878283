package analytics

import "laundrylink-backend/internal/model"

// Summary counts a user's bookings per status.
type Summary struct {
	Total     int `json:"total"`
	Upcoming  int `json:"upcoming"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

// Summarize counts bookings per status.
func Summarize(bookings []model.Booking) Summary {
	s := Summary{Total: len(bookings)}
	for _, b := range bookings {
		switch b.Status {
		case model.BookingUpcoming:
			s.Upcoming++
		case model.BookingCompleted:
			s.Completed++
		case model.BookingCancelled:
			s.Cancelled++
		}
	}
	return s
}

// DateGroup holds the bookings of one booking date.
type DateGroup struct {
	Date     string          `json:"date"`
	Bookings []model.Booking `json:"bookings"`
}

// GroupByDate groups bookings by booking date. Groups appear in the order
// their date is first seen, so date-sorted input yields date-sorted groups.
func GroupByDate(bookings []model.Booking) []DateGroup {
	index := make(map[string]int)
	groups := []DateGroup{}
	for _, b := range bookings {
		i, ok := index[b.BookingDate]
		if !ok {
			i = len(groups)
			index[b.BookingDate] = i
			groups = append(groups, DateGroup{Date: b.BookingDate})
		}
		groups[i].Bookings = append(groups[i].Bookings, b)
	}
	return groups
}
