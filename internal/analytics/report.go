// Package analytics turns raw booking rows into the summary buckets shown on
// the admin dashboard.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"laundrylink-backend/internal/model"
	"laundrylink-backend/internal/parse"
)

const (
	// TopMachines caps the popular-machines list.
	TopMachines = 5
	// TrendMonths is the number of calendar months in the monthly trend.
	TrendMonths = 6
	// AverageCycleMinutes is a fixed placeholder, not derived from data.
	AverageCycleMinutes = 45
	// MonthLayout labels monthly buckets, e.g. "Mar 2026".
	MonthLayout = "Jan 2006"
)

// HourCount is the number of bookings starting at an hour token.
type HourCount struct {
	Hour     string `json:"hour"`
	Bookings int    `json:"bookings"`
}

// MachineUsage is the number of bookings made on a machine.
type MachineUsage struct {
	MachineID string `json:"machineId"`
	Machine   string `json:"machine"`
	Usage     int    `json:"usage"`
}

// MonthBucket aggregates bookings created in one calendar month.
type MonthBucket struct {
	Month    string  `json:"month"`
	Bookings int     `json:"bookings"`
	Revenue  float64 `json:"revenue"`
}

// ServiceStat aggregates bookings of one service type.
type ServiceStat struct {
	Service string  `json:"service"`
	Count   int     `json:"count"`
	Revenue float64 `json:"revenue"`
}

// Totals holds the scalar figures of the report.
type Totals struct {
	TotalBookings      int     `json:"totalBookings"`
	TotalUsers         int     `json:"totalUsers"`
	TotalRevenue       float64 `json:"totalRevenue"`
	AverageBookingTime int     `json:"averageBookingTime"`
}

// Report is the fixed-shape output consumed by the dashboard charts.
type Report struct {
	PeakHours       []HourCount    `json:"peakHours"`
	PopularMachines []MachineUsage `json:"popularMachines"`
	MonthlyBookings []MonthBucket  `json:"monthlyBookings"`
	ServiceStats    []ServiceStat  `json:"serviceStats"`
	TotalStats      Totals         `json:"totalStats"`
}

// Source provides the rows a report is computed from.
type Source interface {
	ListAllBookings(ctx context.Context) ([]model.Booking, error)
	ListStudents(ctx context.Context) ([]model.Profile, error)
}

// Compute fetches bookings and students and builds the report. Any fetch
// error aborts the whole computation.
func Compute(ctx context.Context, src Source, now time.Time) (*Report, error) {
	bookings, err := src.ListAllBookings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bookings: %w", err)
	}
	students, err := src.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch students: %w", err)
	}
	report := Build(bookings, len(students), now)
	return &report, nil
}

// Build aggregates bookings. now decides the trend window and the timezone
// in which creation months are bucketed.
func Build(bookings []model.Booking, students int, now time.Time) Report {
	return Report{
		PeakHours:       peakHours(bookings),
		PopularMachines: popularMachines(bookings),
		MonthlyBookings: monthlyTrend(bookings, now),
		ServiceStats:    serviceStats(bookings),
		TotalStats:      totals(bookings, students),
	}
}

func peakHours(bookings []model.Booking) []HourCount {
	counts := make(map[string]int)
	for _, b := range bookings {
		counts[parse.StartToken(b.TimeSlot)]++
	}

	out := make([]HourCount, 0, len(counts))
	for hour, n := range counts {
		out = append(out, HourCount{Hour: hour, Bookings: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out
}

func popularMachines(bookings []model.Booking) []MachineUsage {
	index := make(map[string]int)
	var out []MachineUsage
	for _, b := range bookings {
		i, ok := index[b.MachineID]
		if !ok {
			i = len(out)
			index[b.MachineID] = i
			out = append(out, MachineUsage{MachineID: b.MachineID, Machine: machineLabel(b)})
		}
		out[i].Usage++
	}

	// Stable: ties keep the order in which machines were first seen.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Usage > out[j].Usage })
	if len(out) > TopMachines {
		out = out[:TopMachines]
	}
	if out == nil {
		out = []MachineUsage{}
	}
	return out
}

func machineLabel(b model.Booking) string {
	if b.Machine != nil && b.Machine.Name != "" {
		return b.Machine.Name
	}
	return "Machine " + b.MachineID
}

func monthlyTrend(bookings []model.Booking, now time.Time) []MonthBucket {
	loc := now.Location()
	out := make([]MonthBucket, TrendMonths)
	index := make(map[string]int, TrendMonths)
	for i := 0; i < TrendMonths; i++ {
		offset := TrendMonths - 1 - i
		first := time.Date(now.Year(), now.Month()-time.Month(offset), 1, 0, 0, 0, 0, loc)
		label := first.Format(MonthLayout)
		out[i] = MonthBucket{Month: label}
		index[label] = i
	}

	for _, b := range bookings {
		i, ok := index[b.CreatedAt.In(loc).Format(MonthLayout)]
		if !ok {
			continue
		}
		out[i].Bookings++
		out[i].Revenue += b.CostValue()
	}
	return out
}

func serviceStats(bookings []model.Booking) []ServiceStat {
	index := make(map[string]int)
	var out []ServiceStat
	for _, b := range bookings {
		i, ok := index[b.ServiceType]
		if !ok {
			i = len(out)
			index[b.ServiceType] = i
			out = append(out, ServiceStat{Service: b.ServiceType})
		}
		out[i].Count++
		out[i].Revenue += b.CostValue()
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if out == nil {
		out = []ServiceStat{}
	}
	return out
}

func totals(bookings []model.Booking, students int) Totals {
	t := Totals{
		TotalBookings:      len(bookings),
		TotalUsers:         students,
		AverageBookingTime: AverageCycleMinutes,
	}
	for _, b := range bookings {
		t.TotalRevenue += b.CostValue()
	}
	return t
}
