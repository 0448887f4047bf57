// internal/models/role.go
package models

// RoleDefinition maps a platform role to the capability tokens it grants.
// Tokens follow the "<domain>_<view|modify>" convention.
type RoleDefinition struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}
