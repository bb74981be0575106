package rules

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	sigma "github.com/bradleyjkemp/sigma-go"
	sigmaevaluator "github.com/bradleyjkemp/sigma-go/evaluator"

	"transitiongraph/pkg/models"
)

// Mode selects what happens to events that match a rule.
type Mode string

const (
	// ModeKeep keeps only matching events.
	ModeKeep Mode = "keep"
	// ModeDrop removes matching events.
	ModeDrop Mode = "drop"
)

// ParseMode parses a configured filter mode.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeKeep:
		return ModeKeep, nil
	case ModeDrop:
		return ModeDrop, nil
	default:
		return "", fmt.Errorf("unknown rules mode: %s", raw)
	}
}

// SigmaLoadStats tracks the number of loaded and skipped rules.
type SigmaLoadStats struct {
	TotalFiles     int
	Loaded         int
	SkippedComplex int
	SkippedInvalid int
}

type compiledSigmaRule struct {
	rule  sigma.Rule
	eval  *sigmaevaluator.RuleEvaluator
	title string
}

// SigmaFilter selects events with single-event Sigma rules.
type SigmaFilter struct {
	rules []compiledSigmaRule
	mode  Mode
	ctx   context.Context
}

// NewSigmaFilter loads Sigma rules from a file or directory.
// Rules with timeframes, aggregations or keyword searches are skipped and
// included in stats.
func NewSigmaFilter(path string, mode Mode) (*SigmaFilter, SigmaLoadStats, error) {
	var stats SigmaLoadStats

	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, stats, fmt.Errorf("resolve rule path: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, stats, fmt.Errorf("stat rule path: %w", err)
	}

	files := make([]string, 0, 64)
	if info.IsDir() {
		err = filepath.WalkDir(resolved, func(filePath string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if !entry.IsDir() && isYAMLFile(filePath) {
				files = append(files, filePath)
			}
			return nil
		})
		if err != nil {
			return nil, stats, fmt.Errorf("walk rule directory: %w", err)
		}
	} else {
		if !isYAMLFile(resolved) {
			return nil, stats, fmt.Errorf("rule file must end with .yml or .yaml: %s", resolved)
		}
		files = append(files, resolved)
	}

	stats.TotalFiles = len(files)
	compiled := make([]compiledSigmaRule, 0, len(files))
	for _, ruleFile := range files {
		rule, err := parseSigmaRuleFile(ruleFile)
		if err != nil {
			stats.SkippedInvalid++
			continue
		}
		if ok, _ := isSimpleSingleEventRule(rule); !ok {
			stats.SkippedComplex++
			continue
		}
		compiled = append(compiled, compiledSigmaRule{
			rule:  rule,
			eval:  sigmaevaluator.ForRule(rule),
			title: ruleTitle(rule),
		})
		stats.Loaded++
	}

	return &SigmaFilter{rules: compiled, mode: mode, ctx: context.Background()}, stats, nil
}

// Match returns the titles of the rules that match event.
func (f *SigmaFilter) Match(event *models.Event) []string {
	if f == nil || event == nil || len(f.rules) == 0 {
		return nil
	}

	eventMap := sigmaEventFrom(event)
	var out []string
	for _, rule := range f.rules {
		res, err := rule.eval.Matches(f.ctx, eventMap)
		if err != nil {
			continue
		}
		if res.Match {
			out = append(out, rule.title)
		}
	}
	return out
}

// Keep applies the filter mode to the rule matches of event.
func (f *SigmaFilter) Keep(event *models.Event) bool {
	matched := len(f.Match(event)) > 0
	if f.mode == ModeDrop {
		return !matched
	}
	return matched
}

func parseSigmaRuleFile(path string) (sigma.Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("read sigma rule %s: %w", path, err)
	}
	rule, err := sigma.ParseRule(raw)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("parse sigma rule %s: %w", path, err)
	}
	return rule, nil
}

func isYAMLFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml")
}

func isSimpleSingleEventRule(rule sigma.Rule) (bool, string) {
	if rule.Detection.Timeframe > 0 {
		return false, "timeframe is not supported"
	}

	for _, cond := range rule.Detection.Conditions {
		if cond.Aggregation != nil {
			return false, "aggregation condition is not supported"
		}
		if !isSimpleSearchExpression(cond.Search) {
			return false, "complex condition expression is not supported"
		}
	}

	for _, search := range rule.Detection.Searches {
		if len(search.Keywords) > 0 {
			return false, "keyword search is not supported"
		}
		if len(search.EventMatchers) == 0 {
			return false, "search has no event matchers"
		}
	}

	return true, ""
}

func isSimpleSearchExpression(expr sigma.SearchExpr) bool {
	switch e := expr.(type) {
	case sigma.SearchIdentifier:
		return true
	case sigma.And:
		for _, child := range e {
			if !isSimpleSearchExpression(child) {
				return false
			}
		}
		return true
	case sigma.Or:
		for _, child := range e {
			if !isSimpleSearchExpression(child) {
				return false
			}
		}
		return true
	case sigma.Not:
		return isSimpleSearchExpression(e.Expr)
	default:
		return false
	}
}

// sigmaEventFrom exposes the flattened event columns plus fixed aliases for
// the well-known attributes, so rules work whatever the schema calls them.
func sigmaEventFrom(event *models.Event) map[string]interface{} {
	buf := make(map[string]interface{}, len(event.Fields)+4)
	for k, v := range event.Fields {
		buf[k] = v
	}
	buf["EventName"] = event.EventName
	buf["UserID"] = event.UserID
	if event.EventID != "" {
		buf["EventID"] = event.EventID
	}
	if !event.Timestamp.IsZero() {
		buf["Timestamp"] = event.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z")
	}
	return buf
}

func ruleTitle(rule sigma.Rule) string {
	if title := strings.TrimSpace(rule.Title); title != "" {
		return title
	}
	return strings.TrimSpace(rule.ID)
}
