package agent

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/archipel-project/vmagent/internal/presence"
)

// ClonePayload is the hook payload the Clone Worker consumes — published by
// whatever entity originates a clone request (the hypervisor supervisor),
// an external collaborator this package only supplies the contract for.
type ClonePayload struct {
	Definition string
	SourcePath string
	ParentUUID string
	ParentName string
}

// StartClone rewrites the source definition's parent identity to this
// agent's own, shows "Cloning...", and dispatches the file copy + define to
// the background. Substitution is literal string
// replacement, matching archipelVirtualMachine.py's clone() exactly — the
// original XML's attribute/namespace ordering must survive unchanged.
func (a *Agent) StartClone(ctx context.Context, payload ClonePayload) {
	newXML := strings.ReplaceAll(payload.Definition, payload.ParentUUID, a.identity.UUID.String())
	newXML = strings.ReplaceAll(newXML, payload.ParentName, a.identity.DisplayName)

	a.applyPresence(ctx, a.observedStatus(), presence.PhaseCloning)

	a.scheduler.AddWork(func(workCtx context.Context) (any, error) {
		a.performClone(workCtx, payload.SourcePath, newXML)
		return nil, nil
	})
}

// performClone copies every file from sourcePath into the VM folder, then
// defines the domain from the rewritten XML. No partial-failure rollback is
// attempted; failures are logged.
func (a *Agent) performClone(ctx context.Context, sourcePath, newXML string) {
	log := zap.S().Named("clone")
	destFolder := filepath.Join(a.cfg.BaseFolder, a.identity.UUID.String())

	entries, err := os.ReadDir(sourcePath)
	if err != nil {
		log.Errorw("failed to read source folder", "source", sourcePath, "error", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(sourcePath, entry.Name()), filepath.Join(destFolder, entry.Name())); err != nil {
			log.Errorw("failed to copy clone artifact", "file", entry.Name(), "error", err)
		}
	}

	if err := a.Define(ctx, newXML); err != nil {
		log.Errorw("failed to define cloned domain", "error", err)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
