package auth

import (
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Identity is the verified claim set returned by the identity provider for
// one login.
type Identity struct {
	Subject string
	Email   string
	Name    string
	// Roles are the role or group names asserted by the provider, unfiltered.
	Roles []string
}

// ClaimMapping names the ID token claims an Identity is built from.
type ClaimMapping struct {
	SubjectField string // Default: "oid", falls back to "sub"
	EmailField   string // Default: "preferred_username", falls back to "email"
	RolesField   string // Default: "roles"
	GroupsField  string // Default: "groups", used when RolesField is absent
	GroupsPath   string // Optional: for nested extraction (e.g., "name" for [{name:"editor"}])
}

// DefaultClaimMapping matches Microsoft Entra ID tokens.
func DefaultClaimMapping() ClaimMapping {
	return ClaimMapping{
		SubjectField: "oid",
		EmailField:   "preferred_username",
		RolesField:   "roles",
		GroupsField:  "groups",
	}
}

// Identity extracts an Identity from raw ID token claims. Subject and email
// are required.
func (m ClaimMapping) Identity(claims map[string]any) (*Identity, error) {
	subject := firstClaimString(claims, m.SubjectField, "sub")
	if subject == "" {
		return nil, errors.New("id token has no subject claim")
	}
	email := firstClaimString(claims, m.EmailField, "email")
	if email == "" {
		return nil, errors.New("id token has no email claim")
	}

	return &Identity{
		Subject: subject,
		Email:   email,
		Name:    ExtractNameFromClaims(claims),
		Roles:   ExtractRoles(claims, m.RolesField, m.GroupsField, m.GroupsPath),
	}, nil
}

// ExtractRoles returns the names in the roles claim, or in the groups claim
// when the roles claim is absent or unusable. A missing claim yields an
// empty list.
func ExtractRoles(claims map[string]any, rolesField, groupsField, groupsPath string) []string {
	for _, field := range []string{rolesField, groupsField} {
		if field == "" {
			continue
		}
		if _, ok := claims[field]; !ok {
			continue
		}
		roles, err := ExtractGroups(claims, field, groupsPath)
		if err == nil {
			return roles
		}
	}
	return []string{}
}

// ExtractGroups handles both flat and nested group claims from JWT tokens
// Supports:
//   - Flat arrays: ["editor", "viewer"]
//   - A single string: "editor"
//   - Nested objects: [{"name": "editor", "type": "app-role"}] with claimPath="name"
func ExtractGroups(claims map[string]any, claimField string, claimPath string) ([]string, error) {
	rawValue, ok := claims[claimField]
	if !ok {
		return []string{}, nil
	}

	switch v := rawValue.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		result := make([]string, 0, len(v))
		for _, g := range v {
			if str, ok := g.(string); ok {
				result = append(result, str)
			}
		}
		if len(result) > 0 || len(v) == 0 {
			return result, nil
		}
	}

	if claimPath != "" {
		return extractNestedGroups(rawValue, claimPath)
	}

	return nil, fmt.Errorf("claim %s has invalid format (expected []string or []object with path)", claimField)
}

// extractNestedGroups uses mapstructure to extract from nested objects
// Supports simple single-level paths like "name", "value", "id"
func extractNestedGroups(rawValue any, path string) ([]string, error) {
	var objects []map[string]any
	if err := mapstructure.Decode(rawValue, &objects); err != nil {
		return nil, fmt.Errorf("failed to decode nested groups: %w", err)
	}

	result := make([]string, 0, len(objects))
	for _, obj := range objects {
		if val, ok := obj[path].(string); ok {
			result = append(result, val)
		}
	}
	return result, nil
}

// extractClaimString extracts a non-empty string claim.
func extractClaimString(claims map[string]any, claimField string) (string, error) {
	rawValue, ok := claims[claimField]
	if !ok {
		return "", fmt.Errorf("claim field %s not found", claimField)
	}

	value, ok := rawValue.(string)
	if !ok {
		return "", fmt.Errorf("claim field %s is not a string", claimField)
	}

	if value == "" {
		return "", fmt.Errorf("claim field %s is empty", claimField)
	}

	return value, nil
}

// ExtractNameFromClaims extracts the optional display name
func ExtractNameFromClaims(claims map[string]any) string {
	name, _ := claims["name"].(string)
	return name
}

func firstClaimString(claims map[string]any, fields ...string) string {
	for _, f := range fields {
		if f == "" {
			continue
		}
		if v, err := extractClaimString(claims, f); err == nil {
			return v
		}
	}
	return ""
}
