package detect

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/marketintel/internal/model"
)

// KeywordRule maps news-headline keywords to a severity. Rules are checked
// in order; the first match wins.
type KeywordRule struct {
	Severity model.Severity `yaml:"severity"`
	Keywords []string       `yaml:"keywords"`
}

// DefaultNewsRules is the built-in classifier used when no rules file is
// configured.
func DefaultNewsRules() []KeywordRule {
	return []KeywordRule{
		{
			Severity: model.SeverityHigh,
			Keywords: []string{
				"acquisition", "acquires", "acquired", "merger",
				"price", "pricing",
				"discontinu", "shut down", "shutting down", "sunset",
				"layoff", "bankruptcy",
			},
		},
		{
			Severity: model.SeverityMedium,
			Keywords: []string{
				"launch", "release", "new product", "partnership",
				"funding", "raises", "series",
			},
		},
	}
}

// LoadNewsRules reads keyword rules from a YAML file:
//
//	rules:
//	  - severity: high
//	    keywords: ["acquisition", "pricing"]
func LoadNewsRules(path string) ([]KeywordRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "detect: read rules file %s", path)
	}

	var doc struct {
		Rules []KeywordRule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "detect: parse rules file %s", path)
	}
	if len(doc.Rules) == 0 {
		return nil, eris.Errorf("detect: rules file %s has no rules", path)
	}
	return doc.Rules, nil
}

// classifyNews grades a headline by keyword. Unmatched headlines are low.
func classifyNews(title string, rules []KeywordRule) model.Severity {
	lower := strings.ToLower(title)
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule.Severity
			}
		}
	}
	return model.SeverityLow
}
