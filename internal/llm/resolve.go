package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/efebarandurmaz/hybridrag/internal/domain"
)

// DefaultPullHint is shown when no compatible model is installed.
const DefaultPullHint = "ollama pull qwen2.5:3b"

// ResolveModel picks the model used for answering.
//
// An exact match on preferred wins. Otherwise the first installed model, in
// lexicographic order, whose lowercased name contains family is chosen. With
// no match the result is a *domain.ModelError; there is no fallback to an
// unrelated model.
func ResolveModel(ctx context.Context, lister ModelLister, preferred, family string) (string, error) {
	if lister == nil {
		return "", &domain.ModelError{Reason: "provider cannot list installed models"}
	}

	installed, err := lister.ListModels(ctx)
	if err != nil {
		return "", &domain.ModelError{
			Reason:      fmt.Sprintf("listing models failed: %v", err),
			Remediation: "check that the model server is running",
		}
	}

	return SelectModel(installed, preferred, family)
}

// SelectModel applies the ResolveModel rules to an already fetched list.
func SelectModel(installed []string, preferred, family string) (string, error) {
	names := append([]string(nil), installed...)
	sort.Strings(names)

	if preferred != "" {
		for _, n := range names {
			if n == preferred {
				return n, nil
			}
		}
	}

	family = strings.ToLower(strings.TrimSpace(family))
	if family != "" {
		for _, n := range names {
			if strings.Contains(strings.ToLower(n), family) {
				return n, nil
			}
		}
	}

	reason := "no installed model matches"
	switch {
	case preferred != "" && family != "":
		reason = fmt.Sprintf("model %q is not installed and no %q model was found", preferred, family)
	case preferred != "":
		reason = fmt.Sprintf("model %q is not installed", preferred)
	case family != "":
		reason = fmt.Sprintf("no %q model found among %d installed models", family, len(names))
	}

	hint := DefaultPullHint
	if preferred != "" {
		hint = "ollama pull " + preferred
	}
	return "", &domain.ModelError{Reason: reason, Remediation: "run: " + hint}
}
