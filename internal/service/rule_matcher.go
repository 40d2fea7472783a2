package service

import (
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/tracklight/tracklight-api/internal/models"
)

// RuleMatcher evaluates classification rules against event titles.
// Plain-text kinds are case-sensitive; regex matching is
// case-insensitive. Invalid regex patterns are logged once and treated
// as perpetual non-matches.
type RuleMatcher struct {
	logger *zap.Logger

	mu       sync.Mutex
	compiled map[string]*regexp.Regexp
	invalid  map[string]struct{}
}

// NewRuleMatcher constructs a matcher.
func NewRuleMatcher(logger *zap.Logger) *RuleMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleMatcher{
		logger:   logger,
		compiled: make(map[string]*regexp.Regexp),
		invalid:  make(map[string]struct{}),
	}
}

// Matches reports whether the rule matches the given title.
func (m *RuleMatcher) Matches(title string, rule models.ClassificationRule) bool {
	switch rule.Kind {
	case models.RuleStartsWith:
		return strings.HasPrefix(title, rule.Pattern)
	case models.RuleEndsWith:
		return strings.HasSuffix(title, rule.Pattern)
	case models.RuleContains:
		return strings.Contains(title, rule.Pattern)
	case models.RuleEquals:
		return title == rule.Pattern
	case models.RuleRegex:
		re := m.regex(rule.Pattern)
		if re == nil {
			return false
		}
		return re.MatchString(title)
	default:
		return false
	}
}

func (m *RuleMatcher) regex(pattern string) *regexp.Regexp {
	m.mu.Lock()
	defer m.mu.Unlock()

	if re, ok := m.compiled[pattern]; ok {
		return re
	}
	if _, ok := m.invalid[pattern]; ok {
		return nil
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		m.invalid[pattern] = struct{}{}
		m.logger.Warn("invalid classification regex", zap.String("pattern", pattern), zap.Error(err))
		return nil
	}
	m.compiled[pattern] = re
	return re
}
