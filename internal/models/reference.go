package models

import (
	"fmt"
	"strings"
)

// RefKind identifies the store a reference points into.
type RefKind string

const (
	RefEmail      RefKind = "email"
	RefTranscript RefKind = "transcript"
	RefProject    RefKind = "project"
	RefProposal   RefKind = "proposal"
	RefContact    RefKind = "contact"
)

// Reference is a typed locator of the form "kind:id", e.g. "email:1042"
// or "project:PRJ-2024-117".
type Reference struct {
	Kind RefKind
	ID   string
}

func (r Reference) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// ParseReference splits a "kind:id" locator without validating the kind.
func ParseReference(raw string) (Reference, error) {
	kind, id, ok := strings.Cut(raw, ":")
	if !ok || kind == "" || id == "" {
		return Reference{}, fmt.Errorf("malformed reference %q", raw)
	}
	return Reference{Kind: RefKind(kind), ID: id}, nil
}

// ParseSourceReference accepts locators into the correspondence stores.
func ParseSourceReference(raw string) (Reference, error) {
	ref, err := ParseReference(raw)
	if err != nil {
		return Reference{}, err
	}
	switch ref.Kind {
	case RefEmail, RefTranscript:
		return ref, nil
	default:
		return Reference{}, fmt.Errorf("unsupported source kind %q", ref.Kind)
	}
}

// ParseTargetReference accepts locators into the business entity stores.
func ParseTargetReference(raw string) (Reference, error) {
	ref, err := ParseReference(raw)
	if err != nil {
		return Reference{}, err
	}
	switch ref.Kind {
	case RefProject, RefProposal, RefContact:
		return ref, nil
	default:
		return Reference{}, fmt.Errorf("unsupported target kind %q", ref.Kind)
	}
}
