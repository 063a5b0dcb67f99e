package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/archipel-project/vmagent/internal/models"
)

// RegisterVocabulary hands the chat-phrase table to the bus's vocabulary
// registrar. The registrar itself is an external
// collaborator; this method only supplies the contract.
func (a *Agent) RegisterVocabulary() error {
	return a.bus.RegisterVocabulary(models.DefaultVocabulary)
}

// InvokeVocabulary resolves a chat phrase's bound handler and runs it,
// enforcing its permission itself since chat dispatch never passes through
// the Request Router.
// This is also where the resolved message_reboot vs iq_reboot asymmetry
// (DESIGN.md) is enforced: reboot's vocabulary entry now requires the same
// permission the control-namespace action does.
func (a *Agent) InvokeVocabulary(ctx context.Context, subject string, entry models.VocabularyEntry) error {
	if entry.Permission != "" {
		granted, err := a.perms.Check(ctx, subject, entry.Permission)
		if err != nil {
			return err
		}
		if !granted {
			return fmt.Errorf("vocabulary: %s lacks permission %q", subject, entry.Permission)
		}
	}

	fn, ok := a.handlers[entry.Handler]
	if !ok {
		return fmt.Errorf("vocabulary: handler %q not registered", entry.Handler)
	}
	return fn(ctx)
}

// InfoSummary formats the domain's info as a one-line chat reply, distinct
// from the typed control-namespace info reply. The "info" vocabulary
// handler run by InvokeVocabulary returns only Info's error and does not
// call this method.
func (a *Agent) InfoSummary(ctx context.Context) (string, error) {
	res, err := a.Info(ctx)
	if err != nil {
		return "", err
	}
	memMB := res.Memory / 1024
	zap.S().Named("vocabulary").Debugw("info summary requested", "state", res.State)
	return fmt.Sprintf("I'm in state %s, I use %d Mo of memory and %d virtual CPUs.",
		res.State, memMB, res.NrVirtCPU), nil
}
