package models

import "sort"

// StaffDepartments maps department codes usable on student/staff profiles and
// HOD appointments to their display names.
var StaffDepartments = map[string]string{
	"IT":       "Information Technology",
	"CS":       "Computer Science",
	"EE":       "Electrical Engineering",
	"ME":       "Mechanical Engineering",
	"CE":       "Civil Engineering",
	"ADMIN":    "Administration",
	"ACCOUNTS": "Accounts",
	"LIBRARY":  "Library",
	"OTHER":    "Other",
}

// CatalogDepartments maps academic department codes used by the subject
// catalog to their display names.
var CatalogDepartments = map[string]string{
	"CS":    "Computer Science & Engineering",
	"ECE":   "Electronics & Communication Engineering",
	"EE":    "Electrical & Electronics Engineering",
	"MECH":  "Mechanical Engineering",
	"CIVIL": "Civil Engineering",
	"IT":    "Information Technology",
}

// Department pairs a code with its display name.
type Department struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// DepartmentList flattens a department set into a slice sorted by code.
func DepartmentList(set map[string]string) []Department {
	out := make([]Department, 0, len(set))
	for code, name := range set {
		out = append(out, Department{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// DepartmentName resolves a code against the given department set, falling
// back to the raw code when unknown.
func DepartmentName(set map[string]string, code string) string {
	if name, ok := set[code]; ok {
		return name
	}
	return code
}
