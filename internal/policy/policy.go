// Package policy holds the role-based access rules as a pure lookup,
// consumed by both the HTTP middleware and the services. It has no side
// effects and no persistence.
package policy

import "github.com/noah-isme/college-portal-api/internal/models"

// Action identifies what the caller wants to do with a resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"
)

// Resource identifies the kind of record being acted on.
type Resource string

const (
	ResourceNotice   Resource = "notice"
	ResourceStudent  Resource = "student"
	ResourceStaff    Resource = "staff"
	ResourceSubject  Resource = "subject"
	ResourceSyllabus Resource = "syllabus"
	ResourceHOD      Resource = "hod"
	ResourceExport   Resource = "export"
)

type rule struct {
	resource Resource
	action   Action
}

var adminOnly = map[models.UserRole]struct{}{
	models.RoleAdmin: {},
}

var adminOrStaff = map[models.UserRole]struct{}{
	models.RoleAdmin: {},
	models.RoleStaff: {},
}

var anyAuthenticated = map[models.UserRole]struct{}{
	models.RoleAdmin:   {},
	models.RoleStaff:   {},
	models.RoleStudent: {},
}

// rules is the authoritative permission table. Anything not listed is
// denied.
var rules = map[rule]map[models.UserRole]struct{}{
	{ResourceNotice, ActionCreate}: adminOrStaff,
	{ResourceNotice, ActionUpdate}: adminOnly,
	{ResourceNotice, ActionDelete}: adminOnly,
	{ResourceNotice, ActionRead}:   anyAuthenticated,
	{ResourceNotice, ActionList}:   anyAuthenticated,

	{ResourceStudent, ActionCreate}: adminOrStaff,
	{ResourceStudent, ActionRead}:   adminOrStaff,
	{ResourceStudent, ActionUpdate}: adminOnly,
	{ResourceStudent, ActionDelete}: adminOnly,
	{ResourceStudent, ActionList}:   adminOnly,

	{ResourceStaff, ActionCreate}: adminOnly,
	{ResourceStaff, ActionRead}:   adminOrStaff,
	{ResourceStaff, ActionUpdate}: adminOnly,
	{ResourceStaff, ActionDelete}: adminOnly,
	{ResourceStaff, ActionList}:   adminOnly,

	{ResourceSubject, ActionCreate}: adminOrStaff,
	{ResourceSubject, ActionUpdate}: adminOrStaff,
	{ResourceSubject, ActionDelete}: adminOrStaff,
	{ResourceSubject, ActionRead}:   anyAuthenticated,
	{ResourceSubject, ActionList}:   anyAuthenticated,

	{ResourceSyllabus, ActionCreate}: adminOrStaff,
	{ResourceSyllabus, ActionUpdate}: adminOrStaff,
	{ResourceSyllabus, ActionDelete}: adminOrStaff,
	{ResourceSyllabus, ActionRead}:   anyAuthenticated,
	{ResourceSyllabus, ActionList}:   anyAuthenticated,

	{ResourceHOD, ActionCreate}: adminOnly,
	{ResourceHOD, ActionUpdate}: adminOnly,
	{ResourceHOD, ActionDelete}: adminOnly,
	{ResourceHOD, ActionList}:   adminOnly,
	// Current-HOD-by-department is open to any authenticated user.
	{ResourceHOD, ActionRead}: anyAuthenticated,

	{ResourceExport, ActionCreate}: adminOnly,
	{ResourceExport, ActionRead}:   adminOnly,
}

// Allowed reports whether the role may perform the action on the resource
// kind. Note: audience-level restrictions on notice reads (students may only
// see audience=all rows) are enforced at the read filter, not here.
func Allowed(role models.UserRole, action Action, resource Resource) bool {
	if !role.Valid() {
		return false
	}
	allowed, ok := rules[rule{resource, action}]
	if !ok {
		return false
	}
	_, ok = allowed[role]
	return ok
}
