package notify

import (
	"fmt"
	"strings"
)

// Template is a canned email with {{field}} placeholders in both subject
// and body.
type Template struct {
	Subject string
	Body    string
}

var templates = map[string]Template{
	"volunteer_confirmation": {
		Subject: "You're confirmed for {{delivery_date}}",
		Body: "Hi {{volunteer_name}},\n\n" +
			"You're signed up as a {{volunteer_role}} for the food rescue delivery on {{delivery_date}}.\n\n" +
			"We'll send directions and your route closer to the date. If your plans change, " +
			"please cancel through the coordinator so someone else can take the slot.\n\n" +
			"Thank you for volunteering!",
	},
	"delivery_rescheduled": {
		Subject: "Delivery moved from {{old_date}} to {{new_date}}",
		Body: "Hi {{volunteer_name}},\n\n" +
			"The delivery you signed up for on {{old_date}} has been rescheduled to {{new_date}}.\n" +
			"Reason: {{reason}}\n\n" +
			"Your signup carries over automatically. If the new date doesn't work for you, " +
			"please cancel so we can fill the slot.",
	},
	"store_partnership": {
		Subject: "Partnering with {{organization_name}} on food rescue",
		Body: "Hello {{contact_person}},\n\n" +
			"We run a volunteer food rescue program that picks up surplus groceries and delivers " +
			"them to community kitchens across the city. We'd love to add {{organization_name}} " +
			"as a pickup partner.\n\n" +
			"Pickups happen on weekend mornings with our own drivers and take about 20 minutes. " +
			"Would you have time for a short call this week?",
	},
	"kitchen_partnership": {
		Subject: "Free weekend food deliveries for {{organization_name}}",
		Body: "Hello {{contact_person}},\n\n" +
			"We coordinate volunteer drivers who rescue surplus groceries from partner stores and " +
			"deliver them to community kitchens. We'd like to add {{organization_name}} to our " +
			"delivery rotation at no cost to you.\n\n" +
			"Deliveries arrive on weekend mornings. Could you let us know your intake hours and " +
			"roughly how much you can accept per delivery?",
	},
}

// Render fills the named template's placeholders from fields. Placeholders
// with no matching field are left in place.
func Render(name string, fields map[string]string) (subject, body string, err error) {
	tmpl, ok := templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", name)
	}
	pairs := make([]string, 0, len(fields)*2)
	for k, v := range fields {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(tmpl.Subject), r.Replace(tmpl.Body), nil
}

// TemplateNames lists the registered templates in no particular order.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	return names
}
