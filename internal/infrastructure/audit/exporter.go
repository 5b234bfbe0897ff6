// Package audit writes the operator-only plain-text dump of all identities.
// The file contains tokens and must never be served over HTTP.
package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/anonqr/identity-service/internal/core/domain"
)

const (
	unknownPseudo = "(unknown)"
	missingEmail  = "(not provided)"
	separator     = "-----"
)

type FileExporter struct {
	path string
}

func NewFileExporter(path string) *FileExporter {
	return &FileExporter{path: path}
}

// Export overwrites the dump with one block per user, in the given order.
func (e *FileExporter) Export(_ context.Context, users []*domain.User) error {
	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	if err := os.WriteFile(e.path, []byte(Render(users)), 0o600); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// Render formats users the way the export file stores them.
func Render(users []*domain.User) string {
	blocks := make([]string, 0, len(users))
	for _, u := range users {
		blocks = append(blocks, strings.Join([]string{
			"Pseudo : " + orDefault(u.Pseudo, unknownPseudo),
			"ID : " + u.ID,
			"Password : " + u.Token,
			"Email : " + orDefault(u.Email, missingEmail),
			separator,
		}, "\n"))
	}
	out := strings.Join(blocks, "\n")
	if out != "" {
		out += "\n"
	}
	return out
}

func orDefault(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}
