// Package expr evaluates decision branch conditions and guardrail checks.
// Expressions are JMESPath queries whose result is interpreted as a boolean.
package expr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/jmespath/go-jmespath"
)

var ErrInvalidExpression = errors.New("invalid expression")

// Evaluator compiles expressions once and reuses them. It is safe for
// concurrent use.
type Evaluator struct {
	mu       sync.RWMutex
	compiled map[string]*jmespath.JMESPath
}

func NewEvaluator() *Evaluator {
	return &Evaluator{compiled: make(map[string]*jmespath.JMESPath)}
}

// Compile checks the expression syntax and caches the compiled form.
func (e *Evaluator) Compile(expression string) error {
	_, err := e.compile(expression)

	return err
}

func (e *Evaluator) compile(expression string) (*jmespath.JMESPath, error) {
	e.mu.RLock()
	c, ok := e.compiled[expression]
	e.mu.RUnlock()

	if ok {
		return c, nil
	}

	c, err := jmespath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidExpression, expression, err)
	}

	e.mu.Lock()
	e.compiled[expression] = c
	e.mu.Unlock()

	return c, nil
}

// Search runs the expression against data. Structs are normalized through
// JSON first so field names match their json tags.
func (e *Evaluator) Search(expression string, data any) (any, error) {
	c, err := e.compile(expression)
	if err != nil {
		return nil, err
	}

	normalized, err := Normalize(data)
	if err != nil {
		return nil, err
	}

	result, err := c.Search(normalized)
	if err != nil {
		return nil, fmt.Errorf("evaluating %q: %w", expression, err)
	}

	return result, nil
}

// Match reports whether the expression holds for data. An empty expression
// always matches.
func (e *Evaluator) Match(expression string, data any) (bool, error) {
	if expression == "" {
		return true, nil
	}

	result, err := e.Search(expression, data)
	if err != nil {
		return false, err
	}

	return Truthy(result)
}

// Normalize converts data into the generic map/slice form JMESPath expects,
// with every number as float64.
func Normalize(data any) (any, error) {
	switch data.(type) {
	case nil, bool, string, float64:
		return data, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("normalizing %T: %w", data, err)
	}

	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("normalizing %T: %w", data, err)
	}

	return out, nil
}

// Truthy interprets a query result as a boolean. Null, empty strings and
// empty collections are false; "true"/"false" strings are parsed.
func Truthy(v any) (bool, error) {
	switch val := v.(type) {
	case nil:
		return false, nil
	case bool:
		return val, nil
	case string:
		if val == "" {
			return false, nil
		}

		if b, err := strconv.ParseBool(val); err == nil {
			return b, nil
		}

		return true, nil
	case int:
		return val != 0, nil
	case int64:
		return val != 0, nil
	case float64:
		return val != 0, nil
	case []any:
		return len(val) > 0, nil
	case map[string]any:
		return len(val) > 0, nil
	default:
		return false, fmt.Errorf("cannot convert %T to boolean", v)
	}
}
