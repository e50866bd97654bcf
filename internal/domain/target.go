package domain

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// TargetType classifies a fundable entity.
type TargetType string

const (
	TargetTypeDAO         TargetType = "dao"
	TargetTypeGrant       TargetType = "grant"
	TargetTypeScholarship TargetType = "scholarship"
)

// TargetTypes lists every accepted target type.
func TargetTypes() []TargetType {
	return []TargetType{TargetTypeDAO, TargetTypeGrant, TargetTypeScholarship}
}

// Valid reports whether t is one of the known target types.
func (t TargetType) Valid() bool {
	return slices.Contains(TargetTypes(), t)
}

// ParseTargetType converts a string into a TargetType, rejecting unknown values.
func ParseTargetType(s string) (TargetType, error) {
	t := TargetType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		names := lo.Map(TargetTypes(), func(t TargetType, _ int) string { return string(t) })
		return "", fmt.Errorf("unknown target type %q (want one of %s)", s, strings.Join(names, ", "))
	}
	return t, nil
}
