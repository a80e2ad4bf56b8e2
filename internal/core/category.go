package core

import "strings"

// FixedBillsCategory is the built-in category for recurring bills.
const FixedBillsCategory = "Fixed Bills"

// BuiltinCategories are available to every user.
var BuiltinCategories = []string{
	FixedBillsCategory,
	"Housing",
	"Groceries",
	"Transport",
	"Health",
	"Leisure",
	"Salary",
	"Other",
}

// IsBuiltinCategory compares names ignoring surrounding whitespace.
func IsBuiltinCategory(name string) bool {
	name = strings.TrimSpace(name)
	for _, c := range BuiltinCategories {
		if c == name {
			return true
		}
	}
	return false
}

// MergeCategories returns the built-ins followed by custom names, without
// blanks or duplicates.
func MergeCategories(custom []string) []string {
	seen := make(map[string]struct{}, len(BuiltinCategories)+len(custom))
	out := make([]string, 0, len(BuiltinCategories)+len(custom))
	for _, list := range [][]string{BuiltinCategories, custom} {
		for _, c := range list {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
