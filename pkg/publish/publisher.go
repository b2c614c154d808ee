// Package publish hands deployed assemblies to the runtime that serves them.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ekaya-inc/assembly-factory/pkg/models"
)

// Publisher makes a deployed assembly visible to its target role, and takes
// it down again on rollback.
type Publisher interface {
	Publish(ctx context.Context, a *models.Assembly) (location string, err error)
	Withdraw(ctx context.Context, a *models.Assembly) error
}

// Manifest is the document published for a deployed assembly.
type Manifest struct {
	ID          string                `json:"id"`
	Code        string                `json:"code"`
	Name        string                `json:"name"`
	TargetRole  string                `json:"target_role"`
	Version     int                   `json:"version"`
	Parts       []models.PartInstance `json:"parts"`
	PublishedAt time.Time             `json:"published_at"`
}

// NewManifest snapshots an assembly for publishing.
func NewManifest(a *models.Assembly, now time.Time) Manifest {
	parts := make([]models.PartInstance, len(a.Parts))
	for i, p := range a.Parts {
		parts[i] = p.Clone()
	}
	return Manifest{
		ID:          a.ID.String(),
		Code:        a.Code,
		Name:        a.Name,
		TargetRole:  a.TargetRole,
		Version:     a.Version,
		Parts:       parts,
		PublishedAt: now.UTC(),
	}
}

// Encode renders the manifest as indented JSON.
func (m Manifest) Encode() ([]byte, error) {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest for %s: %w", m.Code, err)
	}
	return b, nil
}

// Noop is used when no publish target is configured.
type Noop struct{}

var _ Publisher = Noop{}

func (Noop) Publish(ctx context.Context, a *models.Assembly) (string, error) { return "", nil }

func (Noop) Withdraw(ctx context.Context, a *models.Assembly) error { return nil }
