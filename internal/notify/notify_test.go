package notify

import (
	"context"
	"strings"
	"testing"
)

func TestRenderSubstitutesFields(t *testing.T) {
	subject, body, err := Render("volunteer_confirmation", map[string]string{
		"volunteer_name": "Ada",
		"delivery_date":  "2026-10-03",
		"volunteer_role": "driver",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(subject, "2026-10-03") {
		t.Errorf("subject = %q, want the delivery date", subject)
	}
	if !strings.Contains(body, "Hi Ada,") || !strings.Contains(body, "as a driver") {
		t.Errorf("body = %q", body)
	}
	if strings.Contains(body, "{{") {
		t.Errorf("body still has placeholders: %q", body)
	}
}

func TestRenderLeavesUnknownPlaceholders(t *testing.T) {
	_, body, err := Render("delivery_rescheduled", map[string]string{
		"volunteer_name": "Ada",
		"old_date":       "2026-10-03",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(body, "{{new_date}}") {
		t.Errorf("missing field should stay as placeholder, body = %q", body)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	if _, _, err := Render("carrier_pigeon", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestPartnershipTemplatesExist(t *testing.T) {
	fields := map[string]string{
		"organization_name": "Corner Grocery",
		"contact_person":    "Sam",
	}
	for _, name := range []string{"store_partnership", "kitchen_partnership"} {
		subject, body, err := Render(name, fields)
		if err != nil {
			t.Fatalf("Render(%s): %v", name, err)
		}
		if !strings.Contains(subject, "Corner Grocery") {
			t.Errorf("%s subject = %q", name, subject)
		}
		if !strings.Contains(body, "Hello Sam,") {
			t.Errorf("%s body missing greeting", name)
		}
	}
}

func TestLogSenderValidatesTemplate(t *testing.T) {
	var s LogSender
	if err := s.Send(context.Background(), "volunteer_confirmation", "ada@example.org", nil); err != nil {
		t.Errorf("Send: %v", err)
	}
	if err := s.Send(context.Background(), "nope", "ada@example.org", nil); err == nil {
		t.Error("expected error for unknown template")
	}
}
