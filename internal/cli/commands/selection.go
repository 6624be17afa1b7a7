package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/taskforge/internal/session"
)

// parseAssignment splits "slug=option".
func parseAssignment(s string) (slug, option string, err error) {
	slug, option, ok := strings.Cut(s, "=")
	slug, option = strings.TrimSpace(slug), strings.TrimSpace(option)
	if !ok || slug == "" || option == "" {
		return "", "", fmt.Errorf("invalid assignment %q, expected slug=option", s)
	}
	return slug, option, nil
}

// applyChoice selects the option of slug named option (by name or label).
func applyChoice(s *session.Session, slug, option string) error {
	id, ok := s.LookupOption(slug, option)
	if !ok {
		return fmt.Errorf("parameter %s has no option %q", slug, option)
	}
	return s.SelectOption(slug, id)
}
