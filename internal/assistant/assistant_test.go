package assistant

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/foodrescue-nyc/coordinator/internal/scheduling"
	"github.com/foodrescue-nyc/coordinator/internal/storage"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  Command
	}{
		{
			name:  "no marker",
			reply: "Sure, I can help with that!",
			want:  nil,
		},
		{
			name:  "signup with quoted args",
			reply: `Great, signing you up!` + "\n" + `FUNCTION_CALL: signupForEvent("ada@example.org", "2026-10-03", "driver")`,
			want:  SignUp{Email: "ada@example.org", DeliveryRef: "2026-10-03", Role: "driver"},
		},
		{
			name:  "add volunteer with null phone",
			reply: `FUNCTION_CALL: addVolunteer("Frank", "frank@example.org", null)`,
			want:  AddVolunteer{Name: "Frank", Email: "frank@example.org"},
		},
		{
			name:  "cancel",
			reply: `FUNCTION_CALL: cancelVolunteerFromEvent("ada@example.org", "2026-10-03")`,
			want:  CancelSignup{Email: "ada@example.org", DeliveryRef: "2026-10-03"},
		},
		{
			name:  "zero-arg query",
			reply: "Here are the partner kitchens:\nFUNCTION_CALL: getKitchens()",
			want:  ListOrganizations{},
		},
		{
			name:  "save state with JSON data",
			reply: `FUNCTION_CALL: saveConversationState("x@example.org", "kitchen_registration", "waiting_for_address", {"name": "Downtown Soup Kitchen"})`,
			want: SaveState{
				Email:       "x@example.org",
				ProcessType: "kitchen_registration",
				Step:        "waiting_for_address",
				Data:        map[string]string{"name": "Downtown Soup Kitchen"},
			},
		},
		{
			name:  "clear state without email",
			reply: `FUNCTION_CALL: clearConversationState()`,
			want:  ClearState{},
		},
		{
			name:  "finish registration from state",
			reply: `All set! FUNCTION_CALL: addKitchen()`,
			want:  AddOrganization{FromState: true},
		},
		{
			name:  "unknown function is ignored",
			reply: `FUNCTION_CALL: dropAllTables()`,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.reply)
			if err != nil {
				t.Fatalf("ParseCommand: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParseCommandRejectsMalformedArgs(t *testing.T) {
	bad := []string{
		`FUNCTION_CALL: signupForEvent("ada@example.org")`,                  // too few
		`FUNCTION_CALL: updateVolunteerPhone("a", "b", "c")`,                // too many
		`FUNCTION_CALL: signupForEvent("a", "b", "c"`,                       // unbalanced
		`FUNCTION_CALL: saveConversationState("a", "b", "c", not-json)`,     // bad data blob
		`FUNCTION_CALL: saveConversationState("a", "b", "c", {"n": ["x"]})`, // nested data
	}
	for _, reply := range bad {
		if _, err := ParseCommand(reply); err == nil {
			t.Errorf("ParseCommand(%q) accepted malformed input", reply)
		}
	}
}

func TestStripMarker(t *testing.T) {
	in := "You're signed up for Saturday!\nFUNCTION_CALL: signupForEvent(\"a\", \"b\", \"driver\")\nSee you there."
	got := StripMarker(in)
	if strings.Contains(got, "FUNCTION_CALL") {
		t.Errorf("marker survived: %q", got)
	}
	if !strings.Contains(got, "signed up for Saturday") || !strings.Contains(got, "See you there.") {
		t.Errorf("conversational text lost: %q", got)
	}
}

// fakeCompleter returns a scripted reply and records the prompt it saw.
type fakeCompleter struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeCompleter) GenerateContent(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func newTestAssistant(t *testing.T, completer Completer) (*Assistant, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	engine := scheduling.NewEngine(store, nil)
	reporter := scheduling.NewReporter(store)
	return New(completer, store, engine, reporter), store
}

func seedVolunteer(t *testing.T, store *storage.Store, name, email string) {
	t.Helper()
	err := store.CreateVolunteer(storage.Volunteer{
		ID: uuid.New().String(), Name: name, Email: email,
		Role: storage.RoleBoth, CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seeding volunteer: %v", err)
	}
}

func TestRespondExecutesSignup(t *testing.T) {
	completer := &fakeCompleter{
		reply: "You're in for the 3rd!\nFUNCTION_CALL: signupForEvent(\"ada@example.org\", \"2026-10-03\", \"driver\")",
	}
	a, store := newTestAssistant(t, completer)
	seedVolunteer(t, store, "Ada", "ada@example.org")

	reply, err := a.Respond(context.Background(), "ada@example.org", "sign me up to drive on oct 3")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.Action != "signupForEvent" {
		t.Errorf("action = %q", reply.Action)
	}
	if reply.ActionError != "" {
		t.Errorf("action error = %q", reply.ActionError)
	}
	if strings.Contains(reply.Response, "FUNCTION_CALL") {
		t.Errorf("marker leaked to user: %q", reply.Response)
	}

	// The signup actually landed.
	deliveries, err := store.DeliveriesInRange("2026-10-03", "2026-10-03")
	if err != nil {
		t.Fatalf("DeliveriesInRange: %v", err)
	}
	if len(deliveries) != 1 || deliveries[0].Drivers != 1 {
		t.Errorf("deliveries = %+v, want one with one driver", deliveries)
	}

	// The prompt carried the registered volunteer.
	if !strings.Contains(completer.prompt, "ada@example.org") {
		t.Error("prompt missing volunteer snapshot")
	}
}

func TestRespondSurfacesCommandFailure(t *testing.T) {
	completer := &fakeCompleter{
		reply: "Signing you up!\nFUNCTION_CALL: signupForEvent(\"ghost@example.org\", \"2026-10-03\", \"driver\")",
	}
	a, _ := newTestAssistant(t, completer)

	reply, err := a.Respond(context.Background(), "ghost@example.org", "sign me up")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.ActionError == "" {
		t.Error("expected action error for unregistered volunteer")
	}
	if reply.Response == "" {
		t.Error("conversational reply should survive a failed command")
	}
}

func TestRespondIgnoresUnknownFunction(t *testing.T) {
	completer := &fakeCompleter{reply: "Done!\nFUNCTION_CALL: deleteEverything()"}
	a, _ := newTestAssistant(t, completer)

	reply, err := a.Respond(context.Background(), "x@example.org", "hi")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.Action != "" || reply.Result != nil || reply.ActionError != "" {
		t.Errorf("unknown function should be a silent no-op, got %+v", reply)
	}
}

func TestRespondGuidedRegistration(t *testing.T) {
	completer := &fakeCompleter{
		reply: `What's the address? FUNCTION_CALL: saveConversationState("k@example.org", "kitchen_registration", "waiting_for_address", {"name": "Downtown Soup Kitchen"})`,
	}
	a, store := newTestAssistant(t, completer)

	if _, err := a.Respond(context.Background(), "k@example.org", "register kitchen called Downtown Soup Kitchen"); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	cs, err := store.GetConversationState("k@example.org")
	if err != nil {
		t.Fatalf("GetConversationState: %v", err)
	}
	if cs.CurrentStep != "waiting_for_address" || cs.CollectedData["name"] != "Downtown Soup Kitchen" {
		t.Errorf("state = %+v", cs)
	}

	// Second turn: everything collected, addKitchen() pulls from state.
	full := storage.ConversationState{
		UserEmail:   "k@example.org",
		ProcessType: "kitchen_registration",
		CurrentStep: "complete",
		CollectedData: map[string]string{
			"name": "Downtown Soup Kitchen", "address": "123 Main St",
			"contact": "John Smith", "phone": "555-1234", "category": "kitchen",
		},
		UpdatedAt: time.Now().UTC(),
	}
	if err := store.SaveConversationState(full); err != nil {
		t.Fatalf("SaveConversationState: %v", err)
	}

	completer.reply = "All registered! FUNCTION_CALL: addKitchen()"
	reply, err := a.Respond(context.Background(), "k@example.org", "that's everything")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.ActionError != "" {
		t.Fatalf("addKitchen failed: %s", reply.ActionError)
	}

	orgs, err := store.ListOrganizations("kitchen")
	if err != nil {
		t.Fatalf("ListOrganizations: %v", err)
	}
	if len(orgs) != 1 || orgs[0].Name != "Downtown Soup Kitchen" {
		t.Errorf("orgs = %+v", orgs)
	}
}

func TestRespondCompleterFailure(t *testing.T) {
	completer := &fakeCompleter{err: context.DeadlineExceeded}
	a, _ := newTestAssistant(t, completer)

	_, err := a.Respond(context.Background(), "x@example.org", "hi")
	if err == nil {
		t.Fatal("expected error when the completion backend fails")
	}
	if !errors.Is(err, ErrCompletion) {
		t.Errorf("err = %v, want ErrCompletion", err)
	}
}
