package catalog

import (
	"sort"
	"strings"
)

// AllChannels is the pseudo-category always listed first.
const AllChannels = "ALL CHANNELS"

// PriorityLanguages are listed directly after AllChannels, in this order.
var PriorityLanguages = []string{
	"ENGLISH",
	"HINDI",
	"URDU",
	"PUNJABI",
	"TAMIL",
	"BENGALI",
}

// SecondaryGroups follow the priority block, in this order.
var SecondaryGroups = []string{
	"ARABIC",
	"SPANISH",
	"FRENCH",
	"PORTUGUESE",
	"TELUGU",
	"MARATHI",
	"GUJARATI",
	"KANNADA",
	"MALAYALAM",
	"SPORTS",
	"ADULT",
}

// Tier is the navigation block a category belongs to.
type Tier int

const (
	TierAll Tier = iota
	TierPriority
	TierSecondary
	TierOther
)

func (t Tier) String() string {
	switch t {
	case TierAll:
		return "all"
	case TierPriority:
		return "priority"
	case TierSecondary:
		return "secondary"
	default:
		return "other"
	}
}

// Classification places a category in a tier. Rank is the index of the
// matching prefix within PriorityLanguages or SecondaryGroups, 0 otherwise.
type Classification struct {
	Tier Tier
	Rank int
}

// Classify assigns name to a tier by upper-cased prefix. Matching is purely
// prefix based: "ENGLISHTOWN" lands in the English block.
func Classify(name string) Classification {
	upper := strings.ToUpper(name)
	for i, lang := range PriorityLanguages {
		if strings.HasPrefix(upper, lang) {
			return Classification{Tier: TierPriority, Rank: i}
		}
	}
	for i, group := range SecondaryGroups {
		if strings.HasPrefix(upper, group) {
			return Classification{Tier: TierSecondary, Rank: i}
		}
	}
	if upper == AllChannels {
		return Classification{Tier: TierAll}
	}
	return Classification{Tier: TierOther}
}

// Merge concatenates lists and drops exact duplicates, keeping the first
// occurrence of each string.
func Merge(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, name := range list {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// Sort returns the navigation order: AllChannels (keeping the casing of the
// first case-insensitive match, or the literal constant when absent), then
// each priority language, then each secondary group, then everything else.
// Names inside a bucket are sorted ascending. Input should be deduplicated.
func Sort(categories []string) []string {
	all := ""
	priority := make([][]string, len(PriorityLanguages))
	secondary := make([][]string, len(SecondaryGroups))
	var rest []string

	for _, name := range categories {
		c := Classify(name)
		switch c.Tier {
		case TierAll:
			if all == "" {
				all = name
			}
		case TierPriority:
			priority[c.Rank] = append(priority[c.Rank], name)
		case TierSecondary:
			secondary[c.Rank] = append(secondary[c.Rank], name)
		default:
			rest = append(rest, name)
		}
	}
	if all == "" {
		all = AllChannels
	}

	out := make([]string, 0, len(categories)+1)
	out = append(out, all)
	for _, bucket := range priority {
		out = appendSorted(out, bucket)
	}
	for _, bucket := range secondary {
		out = appendSorted(out, bucket)
	}
	return appendSorted(out, rest)
}

func appendSorted(dst, bucket []string) []string {
	sort.Strings(bucket)
	return append(dst, bucket...)
}
