package conditionals

import (
	"encoding/json"
	"fmt"

	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

// Unreachable checks, at job-creation time, whether any of a unit's
// conditionals reference a variable the codebook does not define, or a
// condition field that is not one of the unit content's text_fields.
// Condition values are not checked against the codebook's answer options.
// It returns the variable names whose conditionals are unreachable.
func Unreachable(unit *schema.Unit, codebook json.RawMessage) ([]string, error) {
	if !unit.HasConditionals() {
		return nil, nil
	}

	var conditionals []schema.Conditional
	if err := unit.Conditionals.Unmarshal(&conditionals); err != nil {
		return nil, fmt.Errorf("conditionals: %w", err)
	}

	var cb struct {
		Type      string `json:"type"`
		Questions []struct {
			Name  string          `json:"name"`
			Type  string          `json:"type"`
			Codes json.RawMessage `json:"codes"`
			Items []struct {
				Name string `json:"name"`
				Type string `json:"type"`
			} `json:"items"`
		} `json:"questions"`
		Variables []struct {
			Name  string          `json:"name"`
			Codes json.RawMessage `json:"codes"`
		} `json:"variables"`
	}
	if len(codebook) > 0 {
		if err := json.Unmarshal(codebook, &cb); err != nil {
			return nil, fmt.Errorf("conditionals: codebook: %w", err)
		}
	}

	var textFields []string
	if !unit.Content.IsNull() {
		var content struct {
			TextFields []struct {
				Name string `json:"name"`
			} `json:"text_fields"`
		}
		if err := json.Unmarshal(unit.Content, &content); err == nil {
			for _, f := range content.TextFields {
				textFields = append(textFields, f.Name)
			}
		}
	}

	var unreachable []string
	for _, c := range conditionals {
		if !positionPossible(c.Conditions, textFields) {
			unreachable = append(unreachable, c.Variable)
			continue
		}
		reachable := false
		switch cb.Type {
		case "questions":
			for _, q := range cb.Questions {
				if q.Name == c.Variable || containsPrefixedItem(q.Name, q.Items, c.Variable) {
					reachable = true
				}
			}
		case "annotate":
			for _, v := range cb.Variables {
				if v.Name == c.Variable {
					reachable = true
				}
			}
		default:
			// Unknown codebook shape: conservatively assume reachable
			// rather than blocking deployment on a format this check
			// doesn't understand.
			reachable = true
		}
		if !reachable {
			unreachable = append(unreachable, c.Variable)
		}
	}
	return unreachable, nil
}

func containsPrefixedItem(questionName string, items []struct {
	Name string `json:"name"`
	Type string `json:"type"`
}, variable string) bool {
	for _, it := range items {
		if questionName+"."+it.Name == variable {
			return true
		}
	}
	return false
}

// positionPossible reports whether a condition naming a field the unit
// doesn't have among its text fields could ever match.
func positionPossible(conditions []schema.Condition, textFields []string) bool {
	for _, c := range conditions {
		if c.Field == nil {
			continue
		}
		found := false
		for _, f := range textFields {
			if f == *c.Field {
				found = true
				break
			}
		}
		if !found && len(textFields) > 0 {
			return false
		}
	}
	return true
}
