// Package reconcile implements notesock's startup reconciler:
// ensuring the socket and paste directories exist, clearing a stale
// socket file, and either purging surviving paste directories or handing
// them to the generator as already-live identifiers.
package reconcile

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	apperrors "github.com/sir-photch/notesock/internal/pkg/errors"
	applog "github.com/sir-photch/notesock/pkg/log"
)

const component = "reconcile"

// Result reports what the reconciler found, for the caller to seed the
// generator and log a summary.
type Result struct {
	// Present holds the names of surviving paste directories when
	// noCleanup is true; they must be fed to the generator's present set
	// so they are never handed out again.
	Present []string

	// Purged counts directories removed because noCleanup was false.
	Purged int
}

// Run performs the full startup sequence.
//
//   - sockDir / pasteDir are created recursively if missing.
//   - a stale socket file at <sockDir>/<socketName> is unlinked.
//   - top-level entries of pasteDir are kept only if their name matches
//     [a-z0-9]{idLowerLen,} (idLowerLen = len(idLower), the configured
//     lower bound string).
//   - surviving entries are purged, unless noCleanup is set, in which case
//     their names are returned as Present so the generator treats them as
//     already live. Survivors carried over this way are never scheduled
//     for expiry; only pastes written during the current run are.
func Run(sockDir, pasteDir, socketName, idLower string, noCleanup bool) (*Result, error) {
	if err := os.MkdirAll(sockDir, 0o755); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.IO, "create socket directory %q", sockDir)
	}
	if err := os.MkdirAll(pasteDir, 0o755); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.IO, "create paste directory %q", pasteDir)
	}

	socketPath := filepath.Join(sockDir, socketName)
	if err := removeStaleSocket(socketPath); err != nil {
		return nil, err
	}

	minLen := len(idLower)
	if minLen < 1 {
		minLen = 1
	}
	pattern, err := regexp.Compile(`^[a-z0-9]{` + strconv.Itoa(minLen) + `,}$`)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.Configuration, "compile paste-directory pattern for id-lower length %d", len(idLower))
	}

	entries, err := os.ReadDir(pasteDir)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.IO, "list paste directory %q", pasteDir)
	}

	result := &Result{}

	for _, entry := range entries {
		if !entry.IsDir() || !pattern.MatchString(entry.Name()) {
			continue
		}

		fullPath := filepath.Join(pasteDir, entry.Name())

		if noCleanup {
			result.Present = append(result.Present, entry.Name())
			continue
		}

		if err := os.RemoveAll(fullPath); err != nil {
			applog.WithComponentAndFields(component, applog.Fields{"dir": fullPath}).WithError(err).Error("failed to purge stale paste directory")
			continue
		}
		result.Purged++
	}

	applog.WithComponentAndFields(component, applog.Fields{
		"retained":   len(result.Present),
		"purged":     result.Purged,
		"no_cleanup": noCleanup,
	}).Info("startup reconciliation complete")

	return result, nil
}

func removeStaleSocket(socketPath string) error {
	info, err := os.Lstat(socketPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperrors.Wrapf(err, apperrors.IO, "stat socket path %q", socketPath)
	}

	if info.Mode()&os.ModeSocket == 0 {
		return apperrors.Newf(apperrors.Configuration, "%q exists and is not a socket", socketPath)
	}

	if err := os.Remove(socketPath); err != nil {
		return apperrors.Wrapf(err, apperrors.IO, "remove stale socket %q", socketPath)
	}

	applog.WithComponent(component).WithField("path", socketPath).Info("removed stale socket from a previous run")
	return nil
}
