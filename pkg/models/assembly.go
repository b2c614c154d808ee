package models

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// ============================================================================
// Assembly Status
// ============================================================================

// AssemblyStatus is the release lifecycle state of an assembly.
type AssemblyStatus string

const (
	AssemblyStatusDraft    AssemblyStatus = "DRAFT"
	AssemblyStatusTesting  AssemblyStatus = "TESTING"
	AssemblyStatusApproved AssemblyStatus = "APPROVED"
	AssemblyStatusDeployed AssemblyStatus = "DEPLOYED"
)

// ValidAssemblyStatuses contains all valid status values.
var ValidAssemblyStatuses = []AssemblyStatus{
	AssemblyStatusDraft,
	AssemblyStatusTesting,
	AssemblyStatusApproved,
	AssemblyStatusDeployed,
}

// IsValidAssemblyStatus checks if the given status is valid.
func IsValidAssemblyStatus(s AssemblyStatus) bool {
	for _, v := range ValidAssemblyStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// CanTransitionTo returns true if moving from this status to target is one
// of the release lifecycle edges. Self transitions are never valid.
func (s AssemblyStatus) CanTransitionTo(target AssemblyStatus) bool {
	switch s {
	case AssemblyStatusDraft:
		// Approval does not require a testing period.
		return target == AssemblyStatusTesting || target == AssemblyStatusApproved
	case AssemblyStatusTesting:
		return target == AssemblyStatusApproved || target == AssemblyStatusDraft
	case AssemblyStatusApproved:
		return target == AssemblyStatusDeployed || target == AssemblyStatusDraft
	case AssemblyStatusDeployed:
		return target == AssemblyStatusApproved // Rollback
	default:
		return false
	}
}

// AllowsMembershipEdits reports whether parts may be added, removed,
// reordered or reconfigured in this status.
func (s AssemblyStatus) AllowsMembershipEdits() bool {
	return s != AssemblyStatusDeployed
}

// ============================================================================
// Part Instances
// ============================================================================

// PartInstance is a part placed inside a composition.
// Config is an opaque document shaped by the part's props schema; it may be
// empty (defaults apply) or malformed (isolated at render time).
type PartInstance struct {
	InstanceID uuid.UUID       `json:"instance_id"`
	PartCode   string          `json:"part_code"`
	SortOrder  int             `json:"sort_order"`
	Config     json.RawMessage `json:"config,omitempty"`
}

// Clone returns a copy that shares no memory with the receiver.
func (p PartInstance) Clone() PartInstance {
	if p.Config != nil {
		p.Config = append(json.RawMessage(nil), p.Config...)
	}
	return p
}

// MarshalJSON keeps malformed config documents representable by emitting
// them as a JSON string instead of raw JSON.
func (p PartInstance) MarshalJSON() ([]byte, error) {
	type wire struct {
		InstanceID uuid.UUID       `json:"instance_id"`
		PartCode   string          `json:"part_code"`
		SortOrder  int             `json:"sort_order"`
		Config     json.RawMessage `json:"config,omitempty"`
	}
	w := wire{InstanceID: p.InstanceID, PartCode: p.PartCode, SortOrder: p.SortOrder}
	switch {
	case len(p.Config) == 0:
	case json.Valid(p.Config):
		w.Config = p.Config
	default:
		quoted, err := json.Marshal(string(p.Config))
		if err != nil {
			return nil, err
		}
		w.Config = quoted
	}
	return json.Marshal(w)
}

// InstanceSpec is the ordered instance input of createAssembly.
type InstanceSpec struct {
	PartCode  string          `json:"part_code" yaml:"part_code"`
	SortOrder int             `json:"sort_order" yaml:"sort_order"`
	Config    json.RawMessage `json:"config,omitempty" yaml:"-"`
}

// ============================================================================
// Assembly
// ============================================================================

// Assembly is a named, versioned, persisted composition targeted at a role.
type Assembly struct {
	ID         uuid.UUID      `json:"id"`
	Code       string         `json:"code"`
	Name       string         `json:"name"`
	TargetRole string         `json:"target_role"`
	Version    int            `json:"version"`
	Status     AssemblyStatus `json:"status"`
	Parts      []PartInstance `json:"parts"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// AssemblyPatch carries a partial update. Nil fields are left unchanged.
type AssemblyPatch struct {
	Name       *string         `json:"name,omitempty"`
	TargetRole *string         `json:"target_role,omitempty"`
	Parts      *[]InstanceSpec `json:"parts,omitempty"`
}

// TouchesMembership reports whether the patch changes the part set.
func (p AssemblyPatch) TouchesMembership() bool {
	return p.Parts != nil
}

// IsEmpty reports whether the patch changes nothing.
func (p AssemblyPatch) IsEmpty() bool {
	return p.Name == nil && p.TargetRole == nil && p.Parts == nil
}

// Slugify derives an assembly code from its display name:
// lower case, ASCII letters and digits, words joined by single hyphens.
func Slugify(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}
