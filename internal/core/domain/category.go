package domain

import "strings"

type Category string

const (
	CategoryTechnology    Category = "Technology & Programming"
	CategoryInvesting     Category = "Investing & Crypto"
	CategoryScience       Category = "Science & Education"
	CategoryEntertainment Category = "Entertainment & Gaming"
	CategoryOther         Category = "Other"
)

type categoryRule struct {
	category Category
	keywords []string
}

// First match wins, so the order below is significant.
var categoryRules = []categoryRule{
	{CategoryTechnology, []string{"programming", "webdev", "javascript", "typescript", "react", "node", "technology", "coding", "developer", "software", "tech"}},
	{CategoryInvesting, []string{"bitcoin", "cryptocurrency", "investing", "stocks", "wallstreetbets", "finance", "crypto", "trading"}},
	{CategoryScience, []string{"science", "space", "physics", "biology", "chemistry", "education", "learning", "research", "study"}},
	{CategoryEntertainment, []string{"gaming", "games", "pcgaming", "nintendo", "playstation", "xbox", "entertainment", "movies", "television"}},
	{CategoryOther, nil},
}

// ClassifyPost maps a post to a topic category by keyword matching over its
// community hint, title and content.
func ClassifyPost(post Post) Category {
	text := strings.ToLower(strings.Join([]string{post.Community, post.Title, post.Content}, " "))
	for _, rule := range categoryRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(text, keyword) {
				return rule.category
			}
		}
	}
	return CategoryOther
}

// Categories returns the topic categories in declared order.
func Categories() []Category {
	out := make([]Category, 0, len(categoryRules))
	for _, rule := range categoryRules {
		out = append(out, rule.category)
	}
	return out
}

func IsKnownCategory(c Category) bool {
	for _, rule := range categoryRules {
		if rule.category == c {
			return true
		}
	}
	return false
}

func categoryRank(c Category) int {
	for i, rule := range categoryRules {
		if rule.category == c {
			return i
		}
	}
	return len(categoryRules)
}
