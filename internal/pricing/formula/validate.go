package formula

import "fmt"

type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Validate checks that the pipeline has steps, that step ids are unique and that every percentage base and
// sum component names a step of the pipeline. Ordering is not checked: a
// reference to a later step evaluates to zero.
func Validate(p Pipeline) ValidationResult {
	errs := make([]string, 0)
	if len(p) == 0 {
		errs = append(errs, "pipeline has no steps")
	}
	ids := make(map[string]struct{}, len(p))
	for i, step := range p {
		if step == nil {
			errs = append(errs, fmt.Sprintf("step %d is empty", i))
			continue
		}
		id := step.StepID()
		if id == "" {
			errs = append(errs, fmt.Sprintf("step %d missing id", i))
			continue
		}
		if _, ok := ids[id]; ok {
			errs = append(errs, fmt.Sprintf("duplicate step id: %s", id))
		}
		ids[id] = struct{}{}
	}

	for _, step := range p {
		switch s := step.(type) {
		case Percentage:
			if _, ok := ids[s.AppliesTo]; !ok {
				errs = append(errs, fmt.Sprintf("step %s references non-existent base: %s", s.ID, s.AppliesTo))
			}
		case Sum:
			for _, component := range s.Components {
				if _, ok := ids[component]; !ok {
					errs = append(errs, fmt.Sprintf("step %s references non-existent component: %s", s.ID, component))
				}
			}
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
