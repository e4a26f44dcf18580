package scheduling

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/foodrescue-nyc/coordinator/internal/storage"
)

// Staffing thresholds: a delivery is shorthanded until it has two drivers
// and three packers.
const (
	optimalDatesWindow = 30 // default days ahead scanned for open weekend dates
	optimalDatesLimit  = 10 // suggestions returned
	optimalDatesPerDay = 2  // default deliveries per day before a date stops being suggested
	overloadedAbove    = 3  // upcoming assignments beyond which a volunteer is overloaded
)

// Reporter answers read-only scheduling questions over the store.
type Reporter struct {
	store *storage.Store
	now   func() time.Time
}

func NewReporter(store *storage.Store) *Reporter {
	return &Reporter{store: store, now: time.Now}
}

func (r *Reporter) today() string {
	return r.now().UTC().Format(storage.DateLayout)
}

// Availability reports whether a volunteer is free on a date.
type Availability struct {
	VolunteerID string `json:"volunteer_id"`
	Date        string `json:"date"`
	IsAvailable bool   `json:"is_available"`
	Conflicts   int    `json:"conflicts"`
}

// CheckAvailability counts the volunteer's active assignments on date.
// Cancelled and completed assignments do not conflict; the volunteer is
// available exactly when the count is zero.
func (r *Reporter) CheckAvailability(volunteerID, date string) (Availability, error) {
	if err := validateDate(date); err != nil {
		return Availability{}, err
	}
	n, err := r.store.CountConflicts(volunteerID, date)
	if err != nil {
		return Availability{}, fmt.Errorf("counting conflicts: %w", err)
	}
	return Availability{
		VolunteerID: volunteerID,
		Date:        date,
		IsAvailable: n == 0,
		Conflicts:   n,
	}, nil
}

// StaffingSummary describes how close one delivery is to full staffing.
type StaffingSummary struct {
	DeliveryID       string `json:"delivery_id"`
	Date             string `json:"delivery_date"`
	Status           string `json:"status"`
	OrgName          string `json:"organization_name,omitempty"`
	TotalVolunteers  int    `json:"total_volunteers"`
	Drivers          int    `json:"drivers"`
	Packers          int    `json:"packers"`
	VolunteerList    string `json:"volunteer_list,omitempty"`
	NeedsMoreDrivers bool   `json:"needs_more_drivers"`
	NeedsMorePackers bool   `json:"needs_more_packers"`
	IsFullyStaffed   bool   `json:"is_fully_staffed"`
}

// DeliveryStaffing aggregates assignment counts for one delivery and applies
// the staffing thresholds. storage.ErrNotFound for an unknown delivery.
func (r *Reporter) DeliveryStaffing(deliveryID string) (StaffingSummary, error) {
	row, err := r.store.DeliveryStaffing(deliveryID)
	if err != nil {
		return StaffingSummary{}, err
	}
	return summarize(row), nil
}

func summarize(row storage.CalendarRow) StaffingSummary {
	s := StaffingSummary{
		DeliveryID:      row.DeliveryID,
		Date:            row.Date,
		Status:          row.Status,
		OrgName:         row.OrgName,
		TotalVolunteers: row.Volunteers,
		Drivers:         row.Drivers,
		Packers:         row.Packers,
		VolunteerList:   row.VolunteerList,
	}
	s.NeedsMoreDrivers = s.Drivers < DriverCapacity
	s.NeedsMorePackers = s.Packers < PackerCapacity
	s.IsFullyStaffed = !s.NeedsMoreDrivers && !s.NeedsMorePackers
	return s
}

// MonthlyCalendar is one month of deliveries, both as a flat list and
// grouped by date.
type MonthlyCalendar struct {
	Month             string                           `json:"month"` // YYYY-MM
	Appointments      []storage.CalendarRow            `json:"appointments"`
	CalendarView      map[string][]storage.CalendarRow `json:"calendar_view"`
	TotalAppointments int                              `json:"total_appointments"`
}

// MonthlyCalendar returns all non-cancelled deliveries in the given month.
// Month must be 1 through 12.
func (r *Reporter) MonthlyCalendar(year, month int) (MonthlyCalendar, error) {
	if month < 1 || month > 12 {
		return MonthlyCalendar{}, fmt.Errorf("%w: month must be between 1 and 12, got %d", ErrValidation, month)
	}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	rows, err := r.store.DeliveriesInRange(first.Format(storage.DateLayout), last.Format(storage.DateLayout))
	if err != nil {
		return MonthlyCalendar{}, fmt.Errorf("listing deliveries: %w", err)
	}

	view := make(map[string][]storage.CalendarRow, len(rows))
	for _, row := range rows {
		view[row.Date] = append(view[row.Date], row)
	}

	return MonthlyCalendar{
		Month:             first.Format("2006-01"),
		Appointments:      rows,
		CalendarView:      view,
		TotalAppointments: len(rows),
	}, nil
}

// UpcomingAppointments lists the next daysAhead days of deliveries with
// their staffing summaries, today included.
func (r *Reporter) UpcomingAppointments(daysAhead int) ([]StaffingSummary, error) {
	if daysAhead <= 0 {
		daysAhead = 7
	}
	from := r.today()
	to := r.now().UTC().AddDate(0, 0, daysAhead).Format(storage.DateLayout)

	rows, err := r.store.DeliveriesInRange(from, to)
	if err != nil {
		return nil, fmt.Errorf("listing deliveries: %w", err)
	}

	summaries := make([]StaffingSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, summarize(row))
	}
	return summaries, nil
}

// VolunteerSchedule lists a volunteer's upcoming assignments within
// daysAhead days.
func (r *Reporter) VolunteerSchedule(volunteerID string, daysAhead int) ([]storage.ScheduleRow, error) {
	if daysAhead <= 0 {
		daysAhead = 30
	}
	if _, err := r.store.GetVolunteer(volunteerID); err != nil {
		return nil, fmt.Errorf("looking up volunteer %s: %w", volunteerID, err)
	}
	from := r.today()
	to := r.now().UTC().AddDate(0, 0, daysAhead).Format(storage.DateLayout)
	return r.store.VolunteerSchedule(volunteerID, from, to)
}

// OptimalDate is a suggested low-load weekend date.
type OptimalDate struct {
	Date               string `json:"date"`
	DayOfWeek          string `json:"day_of_week"`
	ExistingDeliveries int    `json:"existing_deliveries"`
}

// FindOptimalDates suggests weekend dates within the next daysAhead days that
// still have fewer than maxPerDay deliveries, emptiest days first. Zero or
// negative arguments fall back to a 30-day window and 2 per day.
func (r *Reporter) FindOptimalDates(daysAhead, maxPerDay int) ([]OptimalDate, error) {
	if daysAhead <= 0 {
		daysAhead = optimalDatesWindow
	}
	if maxPerDay <= 0 {
		maxPerDay = optimalDatesPerDay
	}
	start := r.now().UTC().Truncate(24 * time.Hour)
	until := start.AddDate(0, 0, daysAhead)

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: []rrule.Weekday{rrule.SA, rrule.SU},
		Dtstart:   start,
		Until:     until,
	})
	if err != nil {
		return nil, fmt.Errorf("building weekend rule: %w", err)
	}

	counts, err := r.store.DeliveryCountsByDate(start.Format(storage.DateLayout), until.Format(storage.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("counting deliveries: %w", err)
	}

	var candidates []OptimalDate
	for _, day := range rule.All() {
		date := day.Format(storage.DateLayout)
		if n := counts[date]; n < maxPerDay {
			candidates = append(candidates, OptimalDate{
				Date:               date,
				DayOfWeek:          day.Weekday().String(),
				ExistingDeliveries: n,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].ExistingDeliveries != candidates[j].ExistingDeliveries {
			return candidates[i].ExistingDeliveries < candidates[j].ExistingDeliveries
		}
		return candidates[i].Date < candidates[j].Date
	})

	if len(candidates) > optimalDatesLimit {
		candidates = candidates[:optimalDatesLimit]
	}
	return candidates, nil
}

// Workload classifies volunteers by upcoming load.
type Workload struct {
	TimeframeDays int                   `json:"timeframe_days"`
	Volunteers    []storage.WorkloadRow `json:"volunteers"`
	Overloaded    []storage.WorkloadRow `json:"overloaded"`
	Underutilized []storage.WorkloadRow `json:"underutilized"`
	Summary       WorkloadSummary       `json:"summary"`
}

type WorkloadSummary struct {
	TotalVolunteers    int `json:"total_volunteers"`
	OverloadedCount    int `json:"overloaded_count"`
	UnderutilizedCount int `json:"underutilized_count"`
}

// WorkloadAnalysis tallies every volunteer's assignments over the next
// timeframeDays days. More than three upcoming assignments is overloaded;
// zero is underutilized.
func (r *Reporter) WorkloadAnalysis(timeframeDays int) (Workload, error) {
	if timeframeDays <= 0 {
		timeframeDays = 30
	}
	horizon := r.now().UTC().AddDate(0, 0, timeframeDays).Format(storage.DateLayout)

	rows, err := r.store.VolunteerWorkloads(r.today(), horizon)
	if err != nil {
		return Workload{}, fmt.Errorf("loading workloads: %w", err)
	}

	w := Workload{TimeframeDays: timeframeDays, Volunteers: rows}
	for _, row := range rows {
		switch {
		case row.Upcoming > overloadedAbove:
			w.Overloaded = append(w.Overloaded, row)
		case row.Upcoming == 0:
			w.Underutilized = append(w.Underutilized, row)
		}
	}
	w.Summary = WorkloadSummary{
		TotalVolunteers:    len(rows),
		OverloadedCount:    len(w.Overloaded),
		UnderutilizedCount: len(w.Underutilized),
	}
	return w, nil
}

// AvailableVolunteers lists volunteers free on date, optionally filtered to
// those who can fill the given role.
func (r *Reporter) AvailableVolunteers(date, role string) ([]storage.Volunteer, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	if role != "" && role != storage.RoleDriver && role != storage.RolePacker {
		return nil, fmt.Errorf("%w: role must be %q or %q, got %q", ErrValidation, storage.RoleDriver, storage.RolePacker, role)
	}
	return r.store.AvailableVolunteers(date, role)
}

// VolunteerStats returns headline volunteer counts by role and activity.
func (r *Reporter) VolunteerStats() (storage.VolunteerStats, error) {
	return r.store.GetVolunteerStats()
}
