// Package conditionals implements C3: a pure function
// that checks a unit's declared conditionals against a coder's
// annotation, producing a damage amount and a per-variable report coders
// see as feedback.
package conditionals

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

// Result is the per-variable outcome of evaluating one conditional.
type Result struct {
	Action      string                  `json:"action,omitempty"`
	Message     string                  `json:"message,omitempty"`
	Submessages []string                `json:"submessages,omitempty"`
	Correct     []schema.AnnotationItem `json:"correct,omitempty"`
	Incorrect   []schema.AnnotationItem `json:"incorrect,omitempty"`
}

// Defaults returns the unit-type-driven fallback action/message/damage,
// used whenever a conditional doesn't name its own
// onSuccess/onFail/message/damage.
func Defaults(unitType schema.UnitType) (successAction, failAction, message string, damage float64) {
	switch unitType {
	case schema.UnitTypeTrain:
		successAction = "applaud"
		failAction = "retry"
		message = "Please retry. This is a training unit and the given answer was incorrect."
	case schema.UnitTypeScreen:
		failAction = "block"
		message = "Thank you for participating. Based on your answer you do not meet the qualifications for this job."
	case schema.UnitTypeTest:
		damage = 10
	}
	return
}

// Evaluate checks unit.Conditionals against annotation and returns the
// total damage incurred and a report keyed by conditional variable.
// reportSuccess controls whether a satisfied conditional also produces
// a (typically silent) success entry: with false only failures surface;
// internal/reconciler, which processes submissions, passes true so
// success actions like "applaud" are returned too.
// status decides what a conditional with zero pertinent annotation items
// means: if the submission is DONE, a variable the coder never touched
// still counts as coded and fails (a missing required answer); if it is
// still IN_PROGRESS, an untouched variable is skipped rather than failed.
func Evaluate(unit *schema.Unit, annotation []schema.AnnotationItem, status schema.AnnotationStatus, reportSuccess bool) (float64, map[string]Result, error) {
	evaluation := make(map[string]Result)
	if !unit.HasConditionals() {
		return 0, evaluation, nil
	}

	var conditionals []schema.Conditional
	if err := unit.Conditionals.Unmarshal(&conditionals); err != nil {
		return 0, nil, fmt.Errorf("conditionals: %w", err)
	}

	defaultSuccess, defaultFail, defaultMessage, defaultDamage := Defaults(unit.UnitType)

	var totalDamage float64
	for _, cond := range conditionals {
		res := Result{}
		validAnnotation := make(map[int]bool)
		variableCoded := status == schema.StatusDone
		var submessages []string
		var conditionDamage float64

		for _, c := range cond.Conditions {
			foundMatch := false
			for i, a := range annotation {
				if a.Variable != cond.Variable {
					continue
				}
				if c.Field != nil && (a.Field == nil || *a.Field != *c.Field) {
					continue
				}
				if c.Offset != nil && (a.Offset == nil || *a.Offset != *c.Offset) {
					continue
				}
				if c.Length != nil && (a.Length == nil || *a.Length != *c.Length) {
					continue
				}
				if _, ok := validAnnotation[i]; !ok {
					validAnnotation[i] = false
				}
				variableCoded = true

				match, err := matchOperator(operatorOrDefault(c.Operator), a.Value, c.Value)
				if err != nil {
					return 0, nil, err
				}
				if match {
					foundMatch = true
					validAnnotation[i] = true
				}
			}
			if foundMatch || !variableCoded {
				continue
			}
			if c.Damage != nil {
				conditionDamage += *c.Damage
			}
			if c.Submessage != nil {
				submessages = append(submessages, *c.Submessage)
			}
		}

		var correct, incorrect []schema.AnnotationItem
		for i, ok := range validAnnotation {
			if ok {
				correct = append(correct, annotation[i])
			} else {
				incorrect = append(incorrect, annotation[i])
			}
		}
		// A DONE submission with no item for this variable is a missing
		// required answer.
		touched := false
		for _, a := range annotation {
			if a.Variable == cond.Variable {
				touched = true
				break
			}
		}
		success := len(incorrect) == 0 && (touched || status != schema.StatusDone)

		if success {
			if reportSuccess {
				res.Action = stringOrDefault(cond.OnSuccess, defaultSuccess)
				if res.Action != "" {
					evaluation[cond.Variable] = res
				}
			}
			continue
		}

		res.Action = stringOrDefault(cond.OnFail, defaultFail)
		res.Message = stringOrDefault(cond.Message, defaultMessage)
		res.Submessages = submessages
		res.Correct = correct
		res.Incorrect = incorrect
		evaluation[cond.Variable] = res

		if cond.Damage != nil {
			totalDamage += *cond.Damage
		} else {
			totalDamage += defaultDamage
		}
		totalDamage += conditionDamage
	}
	return totalDamage, evaluation, nil
}

func operatorOrDefault(op string) string {
	if op == "" {
		return "=="
	}
	return op
}

func stringOrDefault(s *string, def string) string {
	if s != nil {
		return *s
	}
	return def
}

var (
	programMu sync.Mutex
	programs  = map[string]*vm.Program{}
)

var operatorExpr = map[string]string{
	"==": "a == b",
	"!=": "a != b",
	"<":  "a < b",
	"<=": "a <= b",
	">":  "a > b",
	">=": "a >= b",
}

// matchOperator evaluates a comparison between an annotated value and a
// conditional's expected value using expr-lang/expr so the six supported
// operators (==, !=, <, <=, >, >=) work across the dynamically-typed
// JSON values the annotation payload carries.
func matchOperator(op string, a, b interface{}) (bool, error) {
	src, ok := operatorExpr[op]
	if !ok {
		src = operatorExpr["=="]
	}

	programMu.Lock()
	program, cached := programs[src]
	if !cached {
		var err error
		program, err = expr.Compile(src)
		if err != nil {
			programMu.Unlock()
			return false, fmt.Errorf("conditionals: compiling operator %q: %w", op, err)
		}
		programs[src] = program
	}
	programMu.Unlock()

	out, err := expr.Run(program, map[string]interface{}{"a": a, "b": b})
	if err != nil {
		// Type mismatches (e.g. comparing a string to a number) are not
		// matches, not evaluator failures.
		return false, nil
	}
	matched, _ := out.(bool)
	return matched, nil
}
