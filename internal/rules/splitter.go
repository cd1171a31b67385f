package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// Section markers in the instruction document.
const (
	markerSyntax   = "HIGH-FAILURE SYNTAX"
	markerTopics   = "TOPICS"
	markerPatterns = "PATTERNS"
	markerVerified = "VERIFIED SYNTAX EXAMPLES"
	markerGolden   = "GOLDEN STYLE EXAMPLE"
)

var topicHeaderRe = regexp.MustCompile(`^(\d+)\.\s+(\w+):`)

// Splitter decomposes the assembly instruction document into nuggets. The
// process is deterministic: the same document always yields the same ids and
// content.
type Splitter struct{}

// Split produces one nugget per addressable unit in the document: one for
// the global directives, one per syntax bullet, one per numbered topic, one
// per PATTERN entry, one per verified example, and one for the golden style
// block.
func (Splitter) Split(document string) []RuleNugget {
	lines := strings.Split(document, "\n")

	syntaxStart, topicsStart, patternsStart, verifiedStart, goldenStart := -1, -1, -1, -1, -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.Contains(line, markerSyntax):
			syntaxStart = i + 1
		case strings.HasPrefix(trimmed, markerTopics):
			topicsStart = i + 2
		case strings.HasPrefix(trimmed, markerPatterns):
			patternsStart = i + 1
		case strings.Contains(line, markerVerified):
			verifiedStart = i + 2
		case strings.Contains(line, markerGolden) && goldenStart == -1:
			goldenStart = i
		}
	}

	var nuggets []RuleNugget

	if syntaxStart >= 0 && topicsStart > syntaxStart+1 {
		nuggets = append(nuggets, splitSyntaxRules(lines[syntaxStart:topicsStart-2])...)
	}
	if topicsStart >= 0 && patternsStart > topicsStart {
		nuggets = append(nuggets, splitTopics(lines[topicsStart:patternsStart-1])...)
	}
	if patternsStart >= 0 && verifiedStart > patternsStart {
		end := verifiedStart
		for i := patternsStart; i < verifiedStart && i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "---" {
				end = i
				break
			}
		}
		nuggets = append(nuggets, splitPatterns(lines[patternsStart:end])...)
	}
	if verifiedStart >= 0 && goldenStart > verifiedStart {
		nuggets = append(nuggets, splitVerifiedExamples(lines[verifiedStart:goldenStart])...)
	}

	if syntaxStart > 0 {
		global := strings.TrimSpace(strings.Join(lines[:syntaxStart-1], "\n"))
		if global != "" {
			nuggets = append([]RuleNugget{{
				ID:             "rule-global-directives",
				Content:        global,
				TopicIDs:       []string{"global"},
				ConstructTypes: []string{"general"},
				Priority:       PriorityHigh,
				Category:       CategoryGlobalDirective,
			}}, nuggets...)
		}
	}

	if goldenStart >= 0 {
		golden := strings.TrimSpace(strings.Join(lines[goldenStart:], "\n"))
		if golden != "" {
			nuggets = append(nuggets, RuleNugget{
				ID:             "rule-golden-style",
				Content:        golden,
				TopicIDs:       []string{"global"},
				ConstructTypes: []string{"general"},
				Priority:       PriorityHigh,
				Category:       CategoryGoldenStyle,
			})
		}
	}

	return nuggets
}

// splitSyntaxRules emits one priority-1 nugget per "- " bullet.
func splitSyntaxRules(lines []string) []RuleNugget {
	var nuggets []RuleNugget
	var current []string
	ruleID := 0

	flush := func() {
		text := strings.TrimSpace(strings.Join(current, "\n"))
		if text == "" {
			return
		}
		ruleID++
		nuggets = append(nuggets, RuleNugget{
			ID:             fmt.Sprintf("rule-syntax-%03d", ruleID),
			Content:        text,
			TopicIDs:       DetectTopicIDs(text),
			ConstructTypes: DetectConstructTypes(text),
			Priority:       PriorityHigh,
			Category:       CategorySyntaxRule,
		})
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") && len(current) > 0 {
			flush()
			current = []string{trimmed}
		} else if trimmed != "" {
			current = append(current, trimmed)
		}
	}
	flush()
	return nuggets
}

// splitTopics emits one nugget per numbered topic header, mapping the number
// to its stable name.
func splitTopics(lines []string) []RuleNugget {
	var nuggets []RuleNugget
	var current []string
	currentNum := ""

	flush := func() {
		if currentNum == "" {
			return
		}
		text := strings.TrimSpace(strings.Join(current, "\n"))
		if text == "" {
			return
		}
		name, ok := TopicNames[currentNum]
		if !ok {
			name = "topic_" + currentNum
		}
		nuggets = append(nuggets, RuleNugget{
			ID:             "rule-topic-" + name,
			Content:        text,
			TopicIDs:       []string{name},
			ConstructTypes: DetectConstructTypes(text),
			Priority:       PriorityNormal,
			Category:       CategoryTopicDefinition,
		})
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if m := topicHeaderRe.FindStringSubmatch(trimmed); m != nil {
			flush()
			current = []string{trimmed}
			currentNum = m[1]
		} else if trimmed != "" {
			current = append(current, trimmed)
		}
	}
	flush()
	return nuggets
}

// splitPatterns emits one nugget per "- PATTERN" entry.
func splitPatterns(lines []string) []RuleNugget {
	var nuggets []RuleNugget
	var current []string
	patternID := 0

	flush := func() {
		text := strings.TrimSpace(strings.Join(current, "\n"))
		if text == "" {
			return
		}
		patternID++
		nuggets = append(nuggets, RuleNugget{
			ID:             fmt.Sprintf("rule-pattern-%03d", patternID),
			Content:        text,
			TopicIDs:       DetectTopicIDs(text),
			ConstructTypes: DetectConstructTypes(text),
			Priority:       PriorityNormal,
			Category:       CategoryPatternDef,
		})
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- PATTERN") && len(current) > 0 {
			flush()
			current = []string{trimmed}
		} else if trimmed != "" {
			current = append(current, trimmed)
		}
	}
	flush()
	return nuggets
}

// splitVerifiedExamples pairs each "# " comment header with the snippet that
// follows, ending at the next header or a "---" separator.
func splitVerifiedExamples(lines []string) []RuleNugget {
	var nuggets []RuleNugget
	var codeLines []string
	comment := ""
	exampleID := 0

	flush := func() {
		if comment == "" || len(codeLines) == 0 {
			return
		}
		exampleID++
		code := strings.TrimSpace(strings.Join(codeLines, "\n"))
		full := comment + "\n" + code
		nuggets = append(nuggets, RuleNugget{
			ID:             fmt.Sprintf("rule-example-%03d", exampleID),
			Content:        full,
			TopicIDs:       DetectTopicIDs(full),
			ConstructTypes: DetectConstructTypes(full),
			Priority:       PriorityHigh,
			Category:       CategoryVerifiedExample,
		})
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "# "):
			flush()
			codeLines = nil
			comment = trimmed
		case trimmed == "---":
			flush()
			return nuggets
		case trimmed != "":
			codeLines = append(codeLines, strings.TrimRight(line, " \t"))
		case len(codeLines) > 0:
			codeLines = append(codeLines, "")
		}
	}
	flush()
	return nuggets
}
