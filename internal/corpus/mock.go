package corpus

// Built-in datasets served when no live or cached snapshot exists.

func MockPolicies() []Document {
	return []Document{
		{
			ID:                 "POL-1001",
			Title:              "Auto Loan Requirements",
			Category:           "Consumer Lending",
			Author:             "Credit Risk Committee",
			ApplicabilityGroup: "Lending Operations",
			Text: "Applicants for an auto loan must provide proof of income, a valid driver's license " +
				"and proof of insurance. Minimum credit score is 640. Maximum loan term is 72 months " +
				"for new vehicles and 60 months for used vehicles. Loan-to-value may not exceed 110%.",
			URL: "https://policies.example.org/policy/1001",
		},
		{
			ID:                 "POL-1002",
			Title:              "Mortgage Underwriting Guidelines",
			Category:           "Consumer Lending",
			Author:             "Mortgage Department",
			ApplicabilityGroup: "Lending Operations",
			Text: "Debt-to-income ratio must not exceed 43%. Appraisals are required for all purchase " +
				"transactions. Income must be verified with two years of tax returns.",
			URL: "https://policies.example.org/policy/1002",
		},
		{
			ID:                 "POL-2001",
			Title:              "Remote Work Policy",
			Category:           "Human Resources",
			Author:             "HR Policy Office",
			ApplicabilityGroup: "All Employees",
			Text: "Employees may work remotely up to three days per week with manager approval. " +
				"Company equipment must be used on a secured network.",
			URL: "https://policies.example.org/policy/2001",
		},
		{
			ID:                 "POL-3001",
			Title:              "Information Security Acceptable Use",
			Category:           "Information Security",
			Author:             "Chief Information Security Officer",
			ApplicabilityGroup: "All Employees",
			Text: "Passwords must be at least 14 characters. Sharing credentials is prohibited. " +
				"Report suspected phishing to the security operations center.",
			URL: "https://policies.example.org/policy/3001",
		},
		{
			ID:                 "POL-4001",
			Title:              "Travel and Expense Reimbursement",
			Category:           "Finance",
			Author:             "Controller",
			ApplicabilityGroup: "All Employees",
			Text: "Expense reports must be submitted within 30 days with itemized receipts. " +
				"Economy class is required for flights under six hours.",
			URL: "https://policies.example.org/policy/4001",
		},
	}
}

func MockSchema() []SchemaObject {
	return []SchemaObject{
		{
			ID: "SampleDB.dbo.Employees", Database: "SampleDB", Schema: "dbo", Kind: KindTable, Name: "Employees",
			Columns: []Column{
				{Name: "EmployeeID", Type: "int", Description: "Primary key"},
				{Name: "FirstName", Type: "varchar", Description: "Employee first name"},
				{Name: "LastName", Type: "varchar", Description: "Employee last name"},
				{Name: "Department", Type: "varchar", Nullable: true, Description: "Employee department"},
			},
		},
		{
			ID: "SampleDB.dbo.Departments", Database: "SampleDB", Schema: "dbo", Kind: KindTable, Name: "Departments",
			Columns: []Column{
				{Name: "DepartmentID", Type: "int", Description: "Primary key"},
				{Name: "DepartmentName", Type: "varchar", Description: "Department name"},
				{Name: "ManagerID", Type: "int", Nullable: true, Description: "Department manager"},
			},
		},
		{
			ID: "SampleDB.dbo.Customers", Database: "SampleDB", Schema: "dbo", Kind: KindTable, Name: "Customers",
			Columns: []Column{
				{Name: "CustomerID", Type: "int", Description: "Primary key"},
				{Name: "FullName", Type: "varchar", Description: "Customer full name"},
				{Name: "Email", Type: "varchar", Nullable: true, Description: "Contact email"},
				{Name: "Phone", Type: "varchar", Nullable: true, Description: "Contact phone"},
				{Name: "CreatedAt", Type: "datetime", Description: "Account creation time"},
			},
		},
		{
			ID: "SampleDB.dbo.EmployeeDetails", Database: "SampleDB", Schema: "dbo", Kind: KindView, Name: "EmployeeDetails",
			Columns: []Column{
				{Name: "EmployeeID", Type: "int", Description: "Employee ID"},
				{Name: "FullName", Type: "varchar", Description: "Employee full name"},
				{Name: "DepartmentName", Type: "varchar", Nullable: true, Description: "Department name"},
			},
			Definition: "CREATE VIEW EmployeeDetails AS SELECT e.EmployeeID, e.FirstName + ' ' + e.LastName AS FullName, " +
				"d.DepartmentName FROM Employees e LEFT JOIN Departments d ON e.Department = d.DepartmentName",
		},
		{
			ID: "SampleDB.dbo.GetEmployeeByID", Database: "SampleDB", Schema: "dbo", Kind: KindProcedure, Name: "GetEmployeeByID",
			Definition: "CREATE PROCEDURE GetEmployeeByID @EmployeeID int AS SELECT * FROM Employees WHERE EmployeeID = @EmployeeID",
		},
	}
}

func MockDocs() []DocFile {
	return []DocFile{
		{
			ID:    "etl/overview.md",
			Title: "ETL Overview",
			Text: "# ETL Overview\n\nThe nightly ETL job loads Employees and Departments from the HR system.\n" +
				"Customer records are synchronized from the CRM every hour.\n" +
				"Failed loads are retried three times before paging the data engineering on-call.",
		},
		{
			ID:    "onboarding.md",
			Title: "Onboarding",
			Text: "# Onboarding\n\nNew analysts request read access to the reporting database through the service desk.\n" +
				"Write access to production data is never granted to analysts.",
		},
	}
}
