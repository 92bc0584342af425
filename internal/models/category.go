package models

// Category is a node of the bank service taxonomy.
type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// GeneralCategoryID is used when a document fits no other category.
const GeneralCategoryID = 9

// DefaultCategories is the fixed service taxonomy seeded at startup.
var DefaultCategories = []Category{
	{ID: 1, Name: "Accounts & Savings", Description: "Documents about deposit accounts, current and savings accounts, and related terms."},
	{ID: 2, Name: "Loans", Description: "Documents covering personal, mortgage, auto, and business loan products and terms."},
	{ID: 3, Name: "Cards", Description: "Information on debit, credit, and prepaid card products and fees."},
	{ID: 4, Name: "Investments", Description: "Materials related to investment products, mutual funds, and wealth services."},
	{ID: 5, Name: "Business & Corporate Banking", Description: "Services and products tailored for corporate and business customers."},
	{ID: 6, Name: "Insurance (Bancassurance)", Description: "Insurance products offered through the bank (bancassurance)."},
	{ID: 7, Name: "Digital & E-Banking", Description: "Digital channels, mobile and online banking services, and related security guidance."},
	{ID: 8, Name: "Payroll Services", Description: "Payroll and salary account services for employers and employees."},
	{ID: GeneralCategoryID, Name: "General Information", Description: "General bank information, annual reports, and documents that span multiple categories."},
}

// ValidCategory reports whether id belongs to the taxonomy.
func ValidCategory(id int) bool {
	for _, c := range DefaultCategories {
		if c.ID == id {
			return true
		}
	}
	return false
}
