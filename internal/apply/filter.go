package apply

import (
	"fmt"

	"github.com/bmatcuk/doublestar"

	"github.com/eniac111/cookbook/internal/types"
)

// Filter keeps only the artifacts whose target path matches a doublestar
// pattern such as "/data/**/database.yml". Actions are kept as they are.
// An empty pattern returns the plan unchanged.
func Filter(plan types.Plan, pattern string) (types.Plan, error) {
	if pattern == "" {
		return plan, nil
	}
	out := types.Plan{Actions: plan.Actions}
	for _, a := range plan.Artifacts {
		ok, err := doublestar.Match(pattern, a.TargetPath)
		if err != nil {
			return types.Plan{}, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if ok {
			out.Artifacts = append(out.Artifacts, a)
		}
	}
	return out, nil
}
