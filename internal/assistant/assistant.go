// Package assistant turns free-form coordinator chat into validated calls
// against the scheduling engine. The model's reply may carry one marker line
// naming an action; the parser validates it against a closed command set
// before anything touches the store.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foodrescue-nyc/coordinator/internal/scheduling"
	"github.com/foodrescue-nyc/coordinator/internal/storage"
)

const respondTimeout = 45 * time.Second

// ErrCompletion marks a failure of the completion backend itself, as opposed
// to snapshot or dispatch failures. Callers use it to report the upstream
// model as unavailable.
var ErrCompletion = errors.New("completion failed")

// Completer is the text-completion backend.
type Completer interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Assistant handles one chat turn end to end: snapshot, prompt, completion,
// command extraction, dispatch.
type Assistant struct {
	completer Completer
	store     *storage.Store
	engine    *scheduling.Engine
	reporter  *scheduling.Reporter
}

func New(completer Completer, store *storage.Store, engine *scheduling.Engine, reporter *scheduling.Reporter) *Assistant {
	return &Assistant{completer: completer, store: store, engine: engine, reporter: reporter}
}

// Reply is the outcome of one chat turn. Action and Result are set only when
// the model requested a command and it executed; ActionError carries a
// user-readable failure when the command was rejected or failed.
type Reply struct {
	Response    string `json:"response"`
	Action      string `json:"action,omitempty"`
	Result      any    `json:"result,omitempty"`
	ActionError string `json:"action_error,omitempty"`
}

// Respond processes one user message. Completion failures (timeouts
// included) surface as errors; command failures do not — the conversational
// reply still goes back to the user with the failure attached.
func (a *Assistant) Respond(ctx context.Context, userEmail, message string) (Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, respondTimeout)
	defer cancel()

	snap, err := loadSnapshot(ctx, a.store, userEmail)
	if err != nil {
		return Reply{}, err
	}

	raw, err := a.completer.GenerateContent(ctx, buildPrompt(snap, userEmail, message))
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrCompletion, err)
	}

	reply := Reply{Response: StripMarker(raw)}

	cmd, err := ParseCommand(raw)
	if err != nil {
		slog.Warn("rejected malformed command from model", "user", userEmail, "error", err)
		reply.ActionError = err.Error()
		return reply, nil
	}
	if cmd == nil {
		return reply, nil
	}

	reply.Action = cmd.commandName()
	result, err := a.dispatch(ctx, cmd, userEmail)
	if err != nil {
		slog.Warn("chat command failed", "user", userEmail, "action", reply.Action, "error", err)
		reply.ActionError = err.Error()
		return reply, nil
	}
	reply.Result = result

	slog.Info("chat command executed", "user", userEmail, "action", reply.Action)
	return reply, nil
}
