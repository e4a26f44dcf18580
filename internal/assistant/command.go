package assistant

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Marker introduces a structured action in the model's reply. Everything
// after it on the line is parsed as name(args); the rest of the reply is
// shown to the user verbatim.
const Marker = "FUNCTION_CALL:"

// Command is one validated action extracted from the model's reply. The set
// of variants is closed: the parser only ever produces the types below, with
// argument counts checked, so the dispatch layer never interprets raw model
// text.
type Command interface {
	commandName() string
}

type AddVolunteer struct {
	Name  string
	Email string
	Phone string
}

type UpdatePhone struct {
	Email string
	Phone string
}

// SignUp registers a volunteer for a delivery. DeliveryRef is either a
// delivery ID from the snapshot or a YYYY-MM-DD date.
type SignUp struct {
	Email       string
	DeliveryRef string
	Role        string
}

type CancelSignup struct {
	Email       string
	DeliveryRef string
}

type AssignRoute struct {
	Email          string
	DeliveryID     string
	OrganizationID string
}

type ListDeliveries struct{}

type ListVolunteersFor struct {
	DeliveryID string
}

type ListRoutesFor struct {
	DeliveryID string
}

type ListOrganizations struct{}

// AddOrganization registers a partner kitchen or store. With FromState set
// the fields come from the caller's saved conversation state instead of the
// argument list.
type AddOrganization struct {
	FromState     bool
	Name          string
	Address       string
	ContactPerson string
	Phone         string
	Email         string
	Category      string
}

// SaveState checkpoints a multi-step registration flow. An empty Email means
// the requesting user.
type SaveState struct {
	Email       string
	ProcessType string
	Step        string
	Data        map[string]string
}

type ClearState struct {
	Email string
}

func (AddVolunteer) commandName() string      { return "addVolunteer" }
func (UpdatePhone) commandName() string       { return "updateVolunteerPhone" }
func (SignUp) commandName() string            { return "signupForEvent" }
func (CancelSignup) commandName() string      { return "cancelVolunteerFromEvent" }
func (AssignRoute) commandName() string       { return "assignDriverRoute" }
func (ListDeliveries) commandName() string    { return "getEvents" }
func (ListVolunteersFor) commandName() string { return "getEventVolunteers" }
func (ListRoutesFor) commandName() string     { return "getEventRoutes" }
func (ListOrganizations) commandName() string { return "getKitchens" }
func (AddOrganization) commandName() string   { return "addKitchen" }
func (SaveState) commandName() string         { return "saveConversationState" }
func (ClearState) commandName() string        { return "clearConversationState" }

// ParseCommand extracts at most one command from the model's reply. It
// returns (nil, nil) when the reply carries no marker or names a function
// outside the closed set, and an error when a known function call has a
// malformed argument list. Only the first marker is considered.
func ParseCommand(reply string) (Command, error) {
	idx := strings.Index(reply, Marker)
	if idx < 0 {
		return nil, nil
	}
	rest := reply[idx+len(Marker):]

	open := strings.Index(rest, "(")
	if open < 0 {
		return nil, fmt.Errorf("missing argument list after %s", Marker)
	}
	name := strings.TrimSpace(rest[:open])
	if name == "" || strings.ContainsAny(name, " \t\n") {
		return nil, fmt.Errorf("malformed function name %q", name)
	}

	argsText, err := scanBalanced(rest[open:])
	if err != nil {
		return nil, err
	}
	args, err := splitArgs(argsText)
	if err != nil {
		return nil, err
	}

	return buildCommand(name, args)
}

func buildCommand(name string, args []string) (Command, error) {
	switch name {
	case "addVolunteer":
		if err := arity(name, args, 2, 3); err != nil {
			return nil, err
		}
		cmd := AddVolunteer{Name: args[0], Email: args[1]}
		if len(args) == 3 {
			cmd.Phone = args[2]
		}
		return cmd, nil

	case "updateVolunteerPhone":
		if err := arity(name, args, 2, 2); err != nil {
			return nil, err
		}
		return UpdatePhone{Email: args[0], Phone: args[1]}, nil

	case "signupForEvent":
		if err := arity(name, args, 3, 3); err != nil {
			return nil, err
		}
		return SignUp{Email: args[0], DeliveryRef: args[1], Role: args[2]}, nil

	case "cancelVolunteerFromEvent":
		if err := arity(name, args, 2, 2); err != nil {
			return nil, err
		}
		return CancelSignup{Email: args[0], DeliveryRef: args[1]}, nil

	case "assignDriverRoute":
		if err := arity(name, args, 3, 3); err != nil {
			return nil, err
		}
		return AssignRoute{Email: args[0], DeliveryID: args[1], OrganizationID: args[2]}, nil

	case "getEvents":
		if err := arity(name, args, 0, 0); err != nil {
			return nil, err
		}
		return ListDeliveries{}, nil

	case "getEventVolunteers":
		if err := arity(name, args, 1, 1); err != nil {
			return nil, err
		}
		return ListVolunteersFor{DeliveryID: args[0]}, nil

	case "getEventRoutes":
		if err := arity(name, args, 1, 1); err != nil {
			return nil, err
		}
		return ListRoutesFor{DeliveryID: args[0]}, nil

	case "getKitchens":
		if err := arity(name, args, 0, 0); err != nil {
			return nil, err
		}
		return ListOrganizations{}, nil

	case "addKitchen":
		// Zero arguments means "finish the guided registration from saved
		// state"; otherwise the full field list is expected.
		if len(args) == 0 {
			return AddOrganization{FromState: true}, nil
		}
		if err := arity(name, args, 5, 6); err != nil {
			return nil, err
		}
		cmd := AddOrganization{
			Name:          args[0],
			Address:       args[1],
			ContactPerson: args[2],
			Phone:         args[3],
		}
		if len(args) == 6 {
			cmd.Email = args[4]
			cmd.Category = args[5]
		} else {
			cmd.Category = args[4]
		}
		return cmd, nil

	case "saveConversationState":
		if err := arity(name, args, 4, 4); err != nil {
			return nil, err
		}
		var data map[string]string
		if err := json.Unmarshal([]byte(args[3]), &data); err != nil {
			return nil, fmt.Errorf("saveConversationState: data is not a flat JSON object: %w", err)
		}
		return SaveState{Email: args[0], ProcessType: args[1], Step: args[2], Data: data}, nil

	case "clearConversationState":
		if err := arity(name, args, 0, 1); err != nil {
			return nil, err
		}
		cmd := ClearState{}
		if len(args) == 1 {
			cmd.Email = args[0]
		}
		return cmd, nil
	}

	// Names outside the closed set are ignored, never executed.
	return nil, nil
}

func arity(name string, args []string, min, max int) error {
	if len(args) < min || len(args) > max {
		if min == max {
			return fmt.Errorf("%s: got %d arguments, want %d", name, len(args), min)
		}
		return fmt.Errorf("%s: got %d arguments, want %d to %d", name, len(args), min, max)
	}
	return nil
}

// scanBalanced takes text starting at "(" and returns the content up to the
// matching ")", honoring nested braces/parens and double-quoted strings.
func scanBalanced(s string) (string, error) {
	depth := 0
	inString := false
	for i, r := range s {
		switch {
		case inString:
			if r == '"' {
				inString = false
			}
		case r == '"':
			inString = true
		case r == '(' || r == '{' || r == '[':
			depth++
		case r == ')' || r == '}' || r == ']':
			depth--
			if depth == 0 {
				return s[1:i], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced argument list")
}

// splitArgs splits a comma-separated argument list at the top level,
// unquoting string literals and mapping null to the empty string.
func splitArgs(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var args []string
	var cur strings.Builder
	depth := 0
	inString := false

	flush := func() error {
		raw := strings.TrimSpace(cur.String())
		cur.Reset()
		switch {
		case raw == "null" || raw == "":
			args = append(args, "")
		case strings.HasPrefix(raw, `"`):
			if !strings.HasSuffix(raw, `"`) || len(raw) < 2 {
				return fmt.Errorf("unterminated string literal %q", raw)
			}
			args = append(args, raw[1:len(raw)-1])
		default:
			args = append(args, raw)
		}
		return nil
	}

	for _, r := range s {
		switch {
		case inString:
			cur.WriteRune(r)
			if r == '"' {
				inString = false
			}
		case r == '"':
			cur.WriteRune(r)
			inString = true
		case r == '{' || r == '[' || r == '(':
			depth++
			cur.WriteRune(r)
		case r == '}' || r == ']' || r == ')':
			depth--
			cur.WriteRune(r)
		case r == ',' && depth == 0:
			if err := flush(); err != nil {
				return nil, err
			}
		default:
			cur.WriteRune(r)
		}
	}
	if inString {
		return nil, fmt.Errorf("unterminated string literal")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return args, nil
}

// StripMarker removes marker lines from the model's reply so the user only
// sees the conversational text.
func StripMarker(reply string) string {
	lines := strings.Split(reply, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if idx := strings.Index(line, Marker); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
			if line == "" {
				continue
			}
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
