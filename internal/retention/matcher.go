package retention

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// conflictMatcher tests other agents' names against a policy's
// conflicts_with pattern. The zero matcher is disabled and matches
// nothing. Compiled fresh for every evaluation, never cached.
type conflictMatcher struct {
	pattern string
	re      *regexp.Regexp
}

// compileConflicts builds the matcher for one evaluation. A pattern that
// fails to compile disables conflict checking for this tick and emits a
// diagnostic naming the pattern and the agent under evaluation; it never
// aborts the evaluation.
func compileConflicts(pattern, agentName string, logger zerolog.Logger) conflictMatcher {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return conflictMatcher{}
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		logger.Error().
			Str("agent", agentName).
			Str("conflicts_with", pattern).
			Err(err).
			Msg("invalid conflicts_with regex, conflict checking disabled for this evaluation")
		return conflictMatcher{}
	}
	return conflictMatcher{pattern: pattern, re: re}
}

func (m conflictMatcher) active() bool { return m.re != nil }

// matches reports whether the pattern occurs anywhere within name.
func (m conflictMatcher) matches(name string) bool {
	return m.re != nil && m.re.MatchString(name)
}

// ValidateConflictPattern reports whether a conflicts_with value would
// compile. Exposed for configuration-time tooling (API and CLI); the
// engine itself degrades to no conflict checking instead of rejecting.
func ValidateConflictPattern(pattern string) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil
	}
	_, err := regexp.Compile(pattern)
	return err
}
