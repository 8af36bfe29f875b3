package config

import "strings"

// SchemaVersion selects how phone numbers are tied to organizations.
type SchemaVersion string

const (
	// SchemaDirect stores ownership in phone_numbers.org_id.
	SchemaDirect SchemaVersion = "direct"
	// SchemaMapped stores ownership in the org_phone_numbers join table.
	SchemaMapped SchemaVersion = "mapped"
)

type SchemaConfig struct {
	PhoneAssignment SchemaVersion
}

// ParseSchemaVersion maps the configured value to a known version.
// Unknown values fall back to SchemaDirect.
func ParseSchemaVersion(raw string) SchemaVersion {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mapped", "org_phone_numbers", "join":
		return SchemaMapped
	default:
		return SchemaDirect
	}
}
