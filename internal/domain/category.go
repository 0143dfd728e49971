package domain

// Category is a surplus/demand goods category.
type Category string

const (
	CategoryPerishableFood    Category = "perishable_food"
	CategoryNonPerishableFood Category = "non_perishable_food"
	CategoryBeverages         Category = "beverages"
	CategoryWater             Category = "water"
	CategoryMedicalSupplies   Category = "medical_supplies"
	CategoryHygieneProducts   Category = "hygiene_products"
	CategoryBlankets          Category = "blankets"
	CategoryTents             Category = "tents"
	CategoryClothing          Category = "clothing"
	CategoryBabySupplies      Category = "baby_supplies"
	CategoryPetSupplies       Category = "pet_supplies"
	CategoryCleaningSupplies  Category = "cleaning_supplies"
)

// categoryFamilies groups categories the matching engine considers "related"
// for the purposes of the category sub-score (SPEC_FULL.md §4.5).
var categoryFamilies = map[Category]string{
	CategoryPerishableFood:    "food",
	CategoryNonPerishableFood: "food",
	CategoryBeverages:         "food",
	CategoryWater:             "food",

	CategoryMedicalSupplies: "medical",
	CategoryHygieneProducts: "medical",

	CategoryBlankets: "shelter",
	CategoryTents:    "shelter",
	CategoryClothing: "shelter",

	CategoryBabySupplies:     "supplies",
	CategoryPetSupplies:      "supplies",
	CategoryCleaningSupplies: "supplies",
}

// Family returns the category family name, or "" if the category is unknown.
func (c Category) Family() string {
	return categoryFamilies[c]
}

// SameFamily reports whether a and b belong to the same category family.
func SameFamily(a, b Category) bool {
	fa, fb := a.Family(), b.Family()
	return fa != "" && fa == fb
}
