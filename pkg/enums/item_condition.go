package enums

import "fmt"

// ItemCondition describes the physical state a seller declares for a listing.
type ItemCondition string

const (
	ItemConditionNew      ItemCondition = "new"
	ItemConditionLikeNew  ItemCondition = "like_new"
	ItemConditionGood     ItemCondition = "good"
	ItemConditionFair     ItemCondition = "fair"
	ItemConditionForParts ItemCondition = "for_parts"
)

var validItemConditions = []ItemCondition{
	ItemConditionNew,
	ItemConditionLikeNew,
	ItemConditionGood,
	ItemConditionFair,
	ItemConditionForParts,
}

// IsValid reports whether the value is a known ItemCondition.
func (i ItemCondition) IsValid() bool {
	for _, candidate := range validItemConditions {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseItemCondition converts raw input into an ItemCondition.
func ParseItemCondition(value string) (ItemCondition, error) {
	for _, candidate := range validItemConditions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item condition %q", value)
}
