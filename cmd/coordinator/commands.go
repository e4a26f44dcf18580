package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// --- volunteers ---

var volunteersCmd = &cobra.Command{
	Use:   "volunteers",
	Short: "Manage volunteers",
}

var volunteersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered volunteers",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/volunteers")
		if err != nil {
			return err
		}

		var volunteers []struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Email string `json:"email"`
			Phone string `json:"phone"`
			Role  string `json:"role"`
		}
		if _, err := decodeAPI(resp, &volunteers); err != nil {
			return err
		}

		if len(volunteers) == 0 {
			fmt.Println("No volunteers registered.")
			return nil
		}
		for _, v := range volunteers {
			phone := v.Phone
			if phone == "" {
				phone = "-"
			}
			fmt.Printf("%s  %-20s %-30s %-8s %s\n",
				colorize(colorCyan, v.ID[:8]), v.Name, v.Email, v.Role, phone)
		}
		return nil
	},
}

var volunteersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new volunteer",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		phone, _ := cmd.Flags().GetString("phone")
		role, _ := cmd.Flags().GetString("role")

		if name == "" || email == "" {
			return fmt.Errorf("--name and --email are required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]string{
			"name":  name,
			"email": email,
			"phone": phone,
			"role":  role,
		}
		resp, err := client.post(cmd.Context(), "/api/volunteers", req)
		if err != nil {
			return err
		}

		var created struct {
			ID string `json:"id"`
		}
		if _, err := decodeAPI(resp, &created); err != nil {
			return err
		}

		printSuccess("Registered %s (%s) as %s", name, email, role)
		return nil
	},
}

var volunteersStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show volunteer counts by role",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/volunteers/stats")
		if err != nil {
			return err
		}

		var stats struct {
			Total   int `json:"total_volunteers"`
			Drivers int `json:"drivers"`
			Packers int `json:"packers"`
			Both    int `json:"both"`
			Active  int `json:"active_volunteers"`
		}
		if _, err := decodeAPI(resp, &stats); err != nil {
			return err
		}

		printStatus("Total", "%d", stats.Total)
		printStatus("Drivers", "%d", stats.Drivers)
		printStatus("Packers", "%d", stats.Packers)
		printStatus("Both roles", "%d", stats.Both)
		printStatus("Active", "%d", stats.Active)
		return nil
	},
}

func init() {
	volunteersAddCmd.Flags().String("name", "", "volunteer name")
	volunteersAddCmd.Flags().String("email", "", "volunteer email")
	volunteersAddCmd.Flags().String("phone", "", "volunteer phone number")
	volunteersAddCmd.Flags().String("role", "both", "role: driver, packer, or both")
	volunteersCmd.AddCommand(volunteersListCmd)
	volunteersCmd.AddCommand(volunteersAddCmd)
	volunteersCmd.AddCommand(volunteersStatsCmd)
}

// --- organizations ---

var organizationsCmd = &cobra.Command{
	Use:     "organizations",
	Aliases: []string{"orgs"},
	Short:   "Manage partner organizations",
}

var organizationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List partner organizations",
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/api/organizations"
		if category != "" {
			path += "?category=" + category
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var orgs []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Address  string `json:"address"`
			Category string `json:"category"`
			Status   string `json:"status"`
		}
		if _, err := decodeAPI(resp, &orgs); err != nil {
			return err
		}

		if len(orgs) == 0 {
			fmt.Println("No organizations found.")
			return nil
		}
		for _, o := range orgs {
			fmt.Printf("%s  %-28s %-8s %-10s %s\n",
				colorize(colorCyan, o.ID[:8]), o.Name, o.Category, o.Status, o.Address)
		}
		return nil
	},
}

var organizationsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a potential partner organization",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		address, _ := cmd.Flags().GetString("address")
		contact, _ := cmd.Flags().GetString("contact")
		phone, _ := cmd.Flags().GetString("phone")
		email, _ := cmd.Flags().GetString("email")
		category, _ := cmd.Flags().GetString("category")

		if name == "" || address == "" || contact == "" {
			return fmt.Errorf("--name, --address, and --contact are required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]string{
			"name":           name,
			"address":        address,
			"contact_person": contact,
			"contact_phone":  phone,
			"contact_email":  email,
			"category":       category,
		}
		resp, err := client.post(cmd.Context(), "/api/organizations", req)
		if err != nil {
			return err
		}
		if _, err := decodeAPI(resp, nil); err != nil {
			return err
		}

		printSuccess("Added %s %q as a potential partner", category, name)
		return nil
	},
}

func init() {
	organizationsListCmd.Flags().String("category", "", "filter by category: store or kitchen")
	organizationsAddCmd.Flags().String("name", "", "organization name")
	organizationsAddCmd.Flags().String("address", "", "street address")
	organizationsAddCmd.Flags().String("contact", "", "contact person")
	organizationsAddCmd.Flags().String("phone", "", "contact phone")
	organizationsAddCmd.Flags().String("email", "", "contact email")
	organizationsAddCmd.Flags().String("category", "store", "category: store or kitchen")
	organizationsCmd.AddCommand(organizationsListCmd)
	organizationsCmd.AddCommand(organizationsAddCmd)
}

// --- deliveries ---

var deliveriesCmd = &cobra.Command{
	Use:   "deliveries",
	Short: "Manage delivery events",
}

var deliveriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List delivery events",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/deliveries")
		if err != nil {
			return err
		}

		var deliveries []struct {
			ID     string `json:"id"`
			Date   string `json:"delivery_date"`
			Status string `json:"status"`
			Notes  string `json:"notes"`
		}
		if _, err := decodeAPI(resp, &deliveries); err != nil {
			return err
		}

		if len(deliveries) == 0 {
			fmt.Println("No deliveries scheduled.")
			return nil
		}
		for _, d := range deliveries {
			notes := d.Notes
			if len(notes) > 60 {
				notes = notes[:60] + "..."
			}
			fmt.Printf("%s  %s  %-10s %s\n",
				colorize(colorCyan, d.ID[:8]), d.Date, d.Status, notes)
		}
		return nil
	},
}

var deliveriesAddCmd = &cobra.Command{
	Use:   "add <date>",
	Short: "Schedule a delivery event (date YYYY-MM-DD)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		notes, _ := cmd.Flags().GetString("notes")
		org, _ := cmd.Flags().GetString("organization")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]string{
			"date":            args[0],
			"notes":           notes,
			"organization_id": org,
		}
		resp, err := client.post(cmd.Context(), "/api/deliveries", req)
		if err != nil {
			return err
		}

		var created struct {
			ID string `json:"id"`
		}
		if _, err := decodeAPI(resp, &created); err != nil {
			return err
		}

		printSuccess("Scheduled delivery %s on %s", created.ID[:8], args[0])
		return nil
	},
}

var deliveriesStaffingCmd = &cobra.Command{
	Use:   "staffing <delivery-id>",
	Short: "Show the staffing level of a delivery",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/deliveries/"+args[0]+"/staffing")
		if err != nil {
			return err
		}

		var s struct {
			Date             string `json:"delivery_date"`
			Drivers          int    `json:"drivers"`
			Packers          int    `json:"packers"`
			VolunteerList    string `json:"volunteer_list"`
			NeedsMoreDrivers bool   `json:"needs_more_drivers"`
			NeedsMorePackers bool   `json:"needs_more_packers"`
			IsFullyStaffed   bool   `json:"is_fully_staffed"`
		}
		if _, err := decodeAPI(resp, &s); err != nil {
			return err
		}

		printStatus("Date", "%s", s.Date)
		printStatus("Drivers", "%d", s.Drivers)
		printStatus("Packers", "%d", s.Packers)
		if s.VolunteerList != "" {
			printStatus("Volunteers", "%s", s.VolunteerList)
		}
		switch {
		case s.IsFullyStaffed:
			printSuccess("Fully staffed")
		case s.NeedsMoreDrivers && s.NeedsMorePackers:
			printWarning("Needs more drivers and packers")
		case s.NeedsMoreDrivers:
			printWarning("Needs more drivers")
		case s.NeedsMorePackers:
			printWarning("Needs more packers")
		}
		return nil
	},
}

var deliveriesRecurringCmd = &cobra.Command{
	Use:   "recurring <start-date>",
	Short: "Plan biweekly Saturday deliveries from a start date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"start_date": args[0],
			"count":      count,
		}
		resp, err := client.post(cmd.Context(), "/api/deliveries/recurring", req)
		if err != nil {
			return err
		}

		var created []struct {
			Date string `json:"delivery_date"`
		}
		if _, err := decodeAPI(resp, &created); err != nil {
			return err
		}

		if len(created) == 0 {
			fmt.Println("All dates in the series already have deliveries.")
			return nil
		}
		dates := make([]string, len(created))
		for i, d := range created {
			dates[i] = d.Date
		}
		printSuccess("Scheduled %d deliveries: %s", len(created), strings.Join(dates, ", "))
		return nil
	},
}

func init() {
	deliveriesAddCmd.Flags().String("notes", "", "delivery notes")
	deliveriesAddCmd.Flags().String("organization", "", "partner organization ID")
	deliveriesRecurringCmd.Flags().Int("count", 6, "number of occurrences (1-52)")
	deliveriesCmd.AddCommand(deliveriesListCmd)
	deliveriesCmd.AddCommand(deliveriesAddCmd)
	deliveriesCmd.AddCommand(deliveriesStaffingCmd)
	deliveriesCmd.AddCommand(deliveriesRecurringCmd)
}

// --- signup / cancel ---

var signupCmd = &cobra.Command{
	Use:   "signup <email> <date>",
	Short: "Sign a volunteer up for a delivery date",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]string{
			"email": args[0],
			"role":  role,
		}
		resp, err := client.post(cmd.Context(), "/api/deliveries/"+args[1]+"/signup", req)
		if err != nil {
			return err
		}

		var result struct {
			Slot            int  `json:"slot"`
			CreatedDelivery bool `json:"created_delivery"`
			Delivery        struct {
				Date string `json:"delivery_date"`
			} `json:"delivery"`
		}
		if _, err := decodeAPI(resp, &result); err != nil {
			return err
		}

		if result.CreatedDelivery {
			printSuccess("Created delivery on %s and signed up %s as %s %d",
				result.Delivery.Date, args[0], role, result.Slot)
		} else {
			printSuccess("Signed up %s as %s %d on %s",
				args[0], role, result.Slot, result.Delivery.Date)
		}
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <email> <delivery>",
	Short: "Cancel a volunteer's signup (delivery ID or date)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]string{"email": args[0]}
		resp, err := client.put(cmd.Context(), "/api/deliveries/"+args[1]+"/cancel", req)
		if err != nil {
			return err
		}

		var result struct {
			Cleared int `json:"cleared"`
		}
		if _, err := decodeAPI(resp, &result); err != nil {
			return err
		}

		if result.Cleared == 0 {
			printWarning("No active signups found for %s", args[0])
		} else {
			printSuccess("Cancelled %d signup(s) for %s", result.Cleared, args[0])
		}
		return nil
	},
}

func init() {
	signupCmd.Flags().String("role", "driver", "role to sign up for: driver or packer")
}

// --- calendar ---

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Scheduling reports",
}

var calendarUpcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "Show upcoming deliveries with staffing levels",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/api/calendar/upcoming?days=%d", days))
		if err != nil {
			return err
		}

		var rows []struct {
			Date           string `json:"delivery_date"`
			Drivers        int    `json:"drivers"`
			Packers        int    `json:"packers"`
			IsFullyStaffed bool   `json:"is_fully_staffed"`
			OrgName        string `json:"organization_name"`
		}
		if _, err := decodeAPI(resp, &rows); err != nil {
			return err
		}

		if len(rows) == 0 {
			fmt.Printf("No deliveries in the next %d days.\n", days)
			return nil
		}
		for _, r := range rows {
			staffed := colorize(colorYellow, "needs volunteers")
			if r.IsFullyStaffed {
				staffed = colorize(colorGreen, "fully staffed")
			}
			fmt.Printf("%s  %d driver(s), %d packer(s)  %s  %s\n",
				r.Date, r.Drivers, r.Packers, staffed, r.OrgName)
		}
		return nil
	},
}

var calendarMonthCmd = &cobra.Command{
	Use:   "month <year> <month>",
	Short: "Show the delivery calendar for a month",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/api/calendar/month/%s/%s", args[0], args[1]))
		if err != nil {
			return err
		}

		var cal struct {
			Month        string `json:"month"`
			Appointments []struct {
				Date    string `json:"delivery_date"`
				Status  string `json:"status"`
				Drivers int    `json:"drivers"`
				Packers int    `json:"packers"`
			} `json:"appointments"`
			TotalAppointments int `json:"total_appointments"`
		}
		if _, err := decodeAPI(resp, &cal); err != nil {
			return err
		}

		fmt.Printf("%s — %d delivery(ies)\n", colorize(colorBold, cal.Month), cal.TotalAppointments)
		for _, a := range cal.Appointments {
			fmt.Printf("  %s  %-10s %d driver(s), %d packer(s)\n", a.Date, a.Status, a.Drivers, a.Packers)
		}
		return nil
	},
}

var calendarOptimalCmd = &cobra.Command{
	Use:   "optimal-dates",
	Short: "Suggest weekend dates with open delivery capacity",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/calendar/optimal-dates")
		if err != nil {
			return err
		}

		var dates []struct {
			Date               string `json:"date"`
			DayOfWeek          string `json:"day_of_week"`
			ExistingDeliveries int    `json:"existing_deliveries"`
		}
		if _, err := decodeAPI(resp, &dates); err != nil {
			return err
		}

		if len(dates) == 0 {
			fmt.Println("No open weekend dates in the next 30 days.")
			return nil
		}
		for _, d := range dates {
			fmt.Printf("%s  %-9s %d existing delivery(ies)\n", d.Date, d.DayOfWeek, d.ExistingDeliveries)
		}
		return nil
	},
}

var calendarWorkloadCmd = &cobra.Command{
	Use:   "workload",
	Short: "Analyze volunteer workload balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/api/calendar/workload-analysis?days=%d", days))
		if err != nil {
			return err
		}

		var analysis struct {
			Overloaded []struct {
				Name     string `json:"name"`
				Upcoming int    `json:"upcoming_assignments"`
			} `json:"overloaded"`
			Underutilized []struct {
				Name string `json:"name"`
			} `json:"underutilized"`
			Summary struct {
				TotalVolunteers int `json:"total_volunteers"`
			} `json:"summary"`
		}
		if _, err := decodeAPI(resp, &analysis); err != nil {
			return err
		}

		printStatus("Volunteers", "%d", analysis.Summary.TotalVolunteers)
		for _, v := range analysis.Overloaded {
			printWarning("%s is overloaded (%d upcoming)", v.Name, v.Upcoming)
		}
		for _, v := range analysis.Underutilized {
			fmt.Printf("  %s has no upcoming assignments\n", v.Name)
		}
		return nil
	},
}

func init() {
	calendarUpcomingCmd.Flags().Int("days", 7, "days ahead to look")
	calendarWorkloadCmd.Flags().Int("days", 30, "timeframe in days")
	calendarCmd.AddCommand(calendarUpcomingCmd)
	calendarCmd.AddCommand(calendarMonthCmd)
	calendarCmd.AddCommand(calendarOptimalCmd)
	calendarCmd.AddCommand(calendarWorkloadCmd)
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Talk to the coordination assistant",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		if email == "" {
			return fmt.Errorf("--email is required so the assistant knows who is asking")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]string{
			"message":    strings.Join(args, " "),
			"user_email": email,
		}
		resp, err := client.post(cmd.Context(), "/api/chat", req)
		if err != nil {
			return err
		}

		var reply struct {
			Response    string          `json:"response"`
			Action      string          `json:"action"`
			Result      json.RawMessage `json:"result"`
			ActionError string          `json:"action_error"`
		}
		if _, err := decodeAPI(resp, &reply); err != nil {
			return err
		}

		fmt.Println(reply.Response)
		if reply.Action != "" {
			printStatus("Action", "%s", reply.Action)
		}
		if reply.ActionError != "" {
			printError("Action failed: %s", reply.ActionError)
		}
		if len(reply.Result) > 0 && string(reply.Result) != "null" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			var result any
			if json.Unmarshal(reply.Result, &result) == nil {
				enc.Encode(result)
			}
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().String("email", "", "email of the person chatting")
}
