package pipeline

import "strings"

// categoryRule maps name keywords to a category slug. Rules are
// ordered; the first match wins.
type categoryRule struct {
	category string
	keywords []string
}

var categoryRules = []categoryRule{
	{"beverages", []string{"water", "juice", "soda", "cola", "coffee", "tea", "beer", "wine", "drink", "milk", "smoothie"}},
	{"dairy", []string{"cheese", "yogurt", "yoghurt", "butter", "cream", "curd"}},
	{"produce", []string{"apple", "banana", "tomato", "onion", "potato", "lettuce", "fruit", "vegetable", "avocado", "berry"}},
	{"bakery", []string{"bread", "bagel", "croissant", "bun", "cake", "muffin", "baguette"}},
	{"meat-seafood", []string{"chicken", "beef", "pork", "salmon", "tuna", "shrimp", "sausage", "bacon", "fish"}},
	{"pantry", []string{"pasta", "rice", "flour", "sugar", "salt", "oil", "sauce", "cereal", "beans", "soup"}},
	{"snacks", []string{"chips", "chocolate", "candy", "cookie", "cracker", "popcorn", "nuts", "granola"}},
	{"frozen", []string{"frozen", "ice cream", "pizza"}},
	{"household", []string{"detergent", "soap", "shampoo", "paper towel", "toilet", "cleaner", "toothpaste", "diaper"}},
	{"electronics", []string{"charger", "cable", "headphone", "battery", "speaker", "phone", "tablet", "laptop"}},
}

// inferCategory keyword-matches the item name. Unmatched names land
// in "general" rather than being dropped; category is a navigation
// aid, not a validity requirement.
func inferCategory(name string) string {
	lower := strings.ToLower(name)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return "general"
}

// knownBrands is the curated brand list checked by substring before
// falling back to the first name token.
var knownBrands = []string{
	"Coca-Cola", "Pepsi", "Nestle", "Nestlé", "Danone", "Kellogg's",
	"Heinz", "Barilla", "Oatly", "Alpro", "Lavazza", "Illy",
	"Ben & Jerry's", "Häagen-Dazs", "Doritos", "Lay's", "Pringles",
	"Colgate", "Dove", "Ariel", "Persil", "Samsung", "Sony",
	"Logitech", "Anker", "Philips", "Bosch",
}

// resolveBrand prefers the explicitly extracted brand text, then a
// curated-list hit inside the name, then the name's first token.
func resolveBrand(name, brandText string) string {
	if brandText != "" {
		return brandText
	}
	lower := strings.ToLower(name)
	for _, b := range knownBrands {
		if strings.Contains(lower, strings.ToLower(b)) {
			return b
		}
	}
	if fields := strings.Fields(name); len(fields) > 0 {
		return strings.Trim(fields[0], ",.;:")
	}
	return ""
}
