package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/archipel-project/vmagent/internal/bus"
	"github.com/archipel-project/vmagent/internal/hypervisor"
	"github.com/archipel-project/vmagent/internal/models"
	"github.com/archipel-project/vmagent/internal/presence"
	vmerrors "github.com/archipel-project/vmagent/pkg/errors"
)

// migrationTokenTTL bounds the handshake token's validity — layered on top
// of the bus jid+password credential.
const migrationTokenTTL = 30 * time.Second

type migrationClaims struct {
	jwt.RegisteredClaims
	SourceJID string `json:"source_jid"`
}

// signMigrationToken produces the short-lived handshake token the source
// hands its target peer during step 2, so the target can attribute the
// incoming SendPeerRequest to this agent's identity.
func (a *Agent) signMigrationToken(targetJID string) (string, error) {
	claims := migrationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(migrationTokenTTL)),
			Subject:   a.identity.JID,
			Audience:  jwt.ClaimStrings{targetJID},
		},
		SourceJID: a.identity.JID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.identity.Password))
}

// StartMigration runs steps 1 and 2 of the Migration Coordinator
// synchronously and dispatches step 3 to the scheduler.
func (a *Agent) StartMigration(ctx context.Context, targetJID string) error {
	log := zap.S().Named("migration")

	if targetJID == "" {
		return vmerrors.NewCapabilityRefused("no target hypervisor specified")
	}

	// Step 1: preconditions.
	if a.driver.Class() != hypervisor.ClassQEMU {
		return vmerrors.NewCapabilityRefused("live migration requires a QEMU/KVM driver")
	}
	if a.IsMigrating() {
		return vmerrors.NewCapabilityRefused("virtual machine is already migrating")
	}
	dom := a.currentDomain()
	if dom == nil {
		return vmerrors.NewCapabilityRefused("virtual machine must be defined")
	}
	status := a.observedStatus()
	if status != models.StatusRunning && status != models.StatusBlocked {
		return vmerrors.NewCapabilityRefused("virtual machine must be running")
	}
	if targetJID == a.identity.JID {
		return vmerrors.NewCapabilityRefused("migration target must not be the local hypervisor")
	}

	a.mu.Lock()
	a.migrating = true
	a.mu.Unlock()

	// Step 2: request the peer's driver URI.
	token, err := a.signMigrationToken(targetJID)
	if err != nil {
		a.clearMigrating()
		return &vmerrors.ActionError{Code: vmerrors.VMMigrate, Message: fmt.Sprintf("migration: sign handshake token: %v", err), Cause: err}
	}

	reply, err := a.sendPeerURIRequest(ctx, targetJID, token)
	if err != nil || reply.Err != nil {
		a.clearMigrating()
		if err != nil {
			return &vmerrors.ActionError{Code: vmerrors.VMMigrate, Message: fmt.Sprintf("migration: peer uri request: %v", err), Cause: err}
		}
		return vmerrors.New(vmerrors.VMMigrate, reply.Err.Message)
	}
	uri := reply.Attrs["uri"]
	if uri == "" {
		a.clearMigrating()
		return vmerrors.New(vmerrors.VMMigrate, "peer did not return a driver uri")
	}

	a.applyPresence(ctx, status, presence.PhaseMigrating)

	a.scheduler.AddWork(func(workCtx context.Context) (any, error) {
		a.runMigration(workCtx, dom, uri, targetJID)
		return nil, nil
	})

	log.Infow("migration started", "target", targetJID)
	return nil
}

// sendPeerURIRequest retries the peer hand-off with exponential backoff —
// a transient bus hiccup shouldn't abort a migration that's otherwise
// fully validated.
func (a *Agent) sendPeerURIRequest(ctx context.Context, targetJID, token string) (bus.Reply, error) {
	return backoff.Retry(ctx, func() (bus.Reply, error) {
		return a.bus.SendPeerRequest(ctx, targetJID, "migrate_uri", map[string]string{
			"token": token,
		})
	}, backoff.WithMaxTries(3))
}

func (a *Agent) clearMigrating() {
	a.mu.Lock()
	a.migrating = false
	a.mu.Unlock()
}

// runMigration is step 3, run in the background: it performs the live
// transfer and, on failure, clears the migration flag, sets a literal
// failure presence, and broadcasts a diagnostic chat message. On success the migration flag is left set — the hypervisor
// supervisor is responsible for terminating this agent once the transfer is
// confirmed.
func (a *Agent) runMigration(ctx context.Context, dom hypervisor.Domain, uri, targetJID string) {
	flags := hypervisor.MigrateFlags{PeerToPeer: true, PersistDestination: true, Live: true}
	if err := dom.MigrateToURI(ctx, uri, flags, 0); err != nil {
		zap.S().Named("migration").Errorw("migration failed", "target", targetJID, "error", err)
		a.clearMigrating()
		if pubErr := a.bus.PublishPresence(ctx, models.Presence{Show: models.ShowAvailable, Status: "Can't migrate."}); pubErr != nil {
			zap.S().Named("migration").Errorw("failed to publish failure presence", "error", pubErr)
		}
		if bErr := a.bus.Broadcast(ctx, a.identity.JID, fmt.Sprintf("migration to %s failed: %v", targetJID, err)); bErr != nil {
			zap.S().Named("migration").Errorw("failed to broadcast migration failure", "error", bErr)
		}
	}
}
