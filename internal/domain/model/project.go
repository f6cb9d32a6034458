package model

import "time"

// Project is a catalogued repository as stored in the projects table. The same
// type backs the collector's write path and the read API.
type Project struct {
	ID           int64 // GitHub repository ID, primary key.
	Name         string
	Description  *string
	URL          string
	Stars        int
	Language     *string
	Organization *string
	CreatedAt    *time.Time
	UpdatedAt    *time.Time
	Topics       []string // Never nil once normalized; serialized as a JSON array.
}

// OrganizationName returns the owning account login, or "" when unknown.
func (p Project) OrganizationName() string {
	if p.Organization == nil {
		return ""
	}
	return *p.Organization
}
