package ranking

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Category is the closed set of transport kinds an option can belong to.
type Category string

const (
	CategoryCar           Category = "car"
	CategoryElectricCar   Category = "electric_car"
	CategoryTaxi          Category = "taxi"
	CategoryWalking       Category = "walking"
	CategoryBicycle       Category = "bicycle"
	CategoryPublicTransit Category = "public_transit"
	CategoryTrain         Category = "train"
	CategoryPlane         Category = "plane"
	CategoryOther         Category = "other"
)

// AllCategories lists every valid category in display order.
var AllCategories = []Category{
	CategoryWalking,
	CategoryBicycle,
	CategoryPublicTransit,
	CategoryTrain,
	CategoryElectricCar,
	CategoryCar,
	CategoryTaxi,
	CategoryPlane,
	CategoryOther,
}

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory converts a backend tag to a Category.
// The second return value is false when the tag is empty or unknown.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c == "" || !c.IsValid() {
		return "", false
	}
	return c, true
}

// keywordRule maps a set of name tokens to a category. Rules are evaluated in
// order, so more specific rules come first.
type keywordRule struct {
	category Category
	all      []string // every token must be present
	any      []string // at least one token must be present
}

var classifierRules = []keywordRule{
	{category: CategoryElectricCar, all: []string{"electrique"}, any: []string{"voiture", "auto", "car"}},
	{category: CategoryElectricCar, all: []string{"electric"}, any: []string{"voiture", "auto", "car"}},
	{category: CategoryElectricCar, any: []string{"ev", "vehicule_electrique"}},
	{category: CategoryTaxi, any: []string{"taxi", "vtc"}},
	{category: CategoryCar, any: []string{"voiture", "thermique", "auto", "automobile", "driving", "diesel", "essence"}},
	{category: CategoryWalking, any: []string{"marche", "pieton", "walking", "walk", "foot"}},
	{category: CategoryWalking, all: []string{"a", "pied"}},
	{category: CategoryBicycle, any: []string{"velo", "bicyclette", "bike", "bicycle", "bicycling", "cycling"}},
	{category: CategoryPlane, any: []string{"avion", "plane", "flight", "airplane"}},
	{category: CategoryPublicTransit, any: []string{"commun", "transit", "bus", "tram", "tramway", "metro", "subway", "rer", "ferry", "navette"}},
	{category: CategoryTrain, any: []string{"train", "ter", "tgv", "intercites", "rail", "heavy_rail", "high_speed_train"}},
}

// Classify derives a category from free-text mode and sub-mode names. It is
// only a fallback for backends that do not tag options; the mode name is tried
// first and the sub-mode second.
func Classify(mode, subMode string) Category {
	if c := classifyName(mode); c != CategoryOther {
		return c
	}
	return classifyName(subMode)
}

func classifyName(name string) Category {
	tokens := tokenize(name)
	if len(tokens) == 0 {
		return CategoryOther
	}
	for _, rule := range classifierRules {
		if rule.matches(tokens) {
			return rule.category
		}
	}
	return CategoryOther
}

func (r keywordRule) matches(tokens map[string]bool) bool {
	for _, t := range r.all {
		if !tokens[t] {
			return false
		}
	}
	if len(r.any) == 0 {
		return len(r.all) > 0
	}
	for _, t := range r.any {
		if tokens[t] {
			return true
		}
	}
	return false
}

// tokenize lowercases, strips diacritics and splits on anything that is not a
// letter, digit or underscore.
func tokenize(s string) map[string]bool {
	folded := foldAccents(strings.ToLower(s))
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	tokens := make(map[string]bool, len(fields))
	for _, f := range fields {
		tokens[f] = true
	}
	return tokens
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

var subModeLabels = map[string]string{
	"bus":              "Bus",
	"subway":           "Metro",
	"metro":            "Metro",
	"tram":             "Tram",
	"train":            "TER",
	"heavy_rail":       "TER",
	"high_speed_train": "TGV",
	"ferry":            "Ferry",
}

// FormatLabel turns a backend sub-mode identifier into a display label.
// Unknown sub-modes are title-cased.
func FormatLabel(subMode string) string {
	key := strings.ToLower(strings.TrimSpace(subMode))
	if key == "" {
		return ""
	}
	if label, ok := subModeLabels[key]; ok {
		return label
	}
	key = strings.ReplaceAll(key, "_", " ")
	runesOf := []rune(key)
	runesOf[0] = unicode.ToUpper(runesOf[0])
	return string(runesOf)
}
