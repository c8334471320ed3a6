package resolve

// The role candidate lists mirror the column headings seen across customer
// planning sheets and the standard reference tables.

// StyleRole matches the garment style identifier column.
func StyleRole() Role {
	return Role{
		Name: "style",
		Candidates: []string{
			"style #",
			"style no",
			"style number",
			"style",
		},
	}
}

// DepartmentRole matches the customer department / ship-to column.
func DepartmentRole() Role {
	return Role{
		Name: "department",
		Candidates: []string{
			"customer department",
			"cust dept",
			"department",
			"dept",
			"buying office",
			"ship to",
			"customer",
		},
	}
}

// AllocationRole matches the reference value column. A column naming both
// "chassis" and "alloc" is preferred over any single-candidate hit.
func AllocationRole() Role {
	return Role{
		Name:     "allocation",
		Required: []string{"chassis", "alloc"},
		Candidates: []string{
			"latestsubchassis",
			"latest subchassis",
			"chassis allocation",
			"subchassis",
			"chassis",
			"allocation",
		},
	}
}
