package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/tracklight/tracklight-api/internal/models"
)

func TestRuleMatcherKinds(t *testing.T) {
	m := NewRuleMatcher(zap.NewNop())

	cases := []struct {
		name  string
		title string
		rule  models.ClassificationRule
		want  bool
	}{
		{"starts with", "Standup notes", models.ClassificationRule{Kind: models.RuleStartsWith, Pattern: "Standup"}, true},
		{"starts with miss", "Weekly standup", models.ClassificationRule{Kind: models.RuleStartsWith, Pattern: "Standup"}, false},
		{"ends with", "Review 1:1", models.ClassificationRule{Kind: models.RuleEndsWith, Pattern: "1:1"}, true},
		{"contains", "Team meeting prep", models.ClassificationRule{Kind: models.RuleContains, Pattern: "meeting"}, true},
		{"contains is case sensitive", "Team Meeting prep", models.ClassificationRule{Kind: models.RuleContains, Pattern: "meeting"}, false},
		{"equals", "Lunch", models.ClassificationRule{Kind: models.RuleEquals, Pattern: "Lunch"}, true},
		{"equals miss", "Lunch break", models.ClassificationRule{Kind: models.RuleEquals, Pattern: "Lunch"}, false},
		{"regex", "Sprint 42 planning", models.ClassificationRule{Kind: models.RuleRegex, Pattern: `sprint \d+`}, true},
		{"regex is case insensitive", "SPRINT 7 review", models.ClassificationRule{Kind: models.RuleRegex, Pattern: `sprint \d+`}, true},
		{"unknown kind", "anything", models.ClassificationRule{Kind: "GLOB", Pattern: "*"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, m.Matches(tc.title, tc.rule))
		})
	}
}

func TestRuleMatcherInvalidRegexNeverMatches(t *testing.T) {
	m := NewRuleMatcher(zap.NewNop())
	rule := models.ClassificationRule{Kind: models.RuleRegex, Pattern: "("}

	assert.False(t, m.Matches("(", rule))
	// second evaluation hits the invalid-pattern cache
	assert.False(t, m.Matches("(", rule))
}

func TestRuleMatcherCachesCompiledRegex(t *testing.T) {
	m := NewRuleMatcher(zap.NewNop())
	rule := models.ClassificationRule{Kind: models.RuleRegex, Pattern: "gym"}

	assert.True(t, m.Matches("Gym session", rule))
	assert.Len(t, m.compiled, 1)
	assert.True(t, m.Matches("gym", rule))
	assert.Len(t, m.compiled, 1)
}
