package validator

import "regexp"

// criticalPattern pairs a detector with the human-readable name reported in
// validation results.
type criticalPattern struct {
	re   *regexp.Regexp
	name string
}

func pat(expr, name string) criticalPattern {
	return criticalPattern{re: regexp.MustCompile("(?i)" + expr), name: name}
}

// criticalPatterns covers the syntax constructs that must survive
// compression. Detection is case-insensitive.
var criticalPatterns = []criticalPattern{
	pat(`\+\+>`, "edge: ++>"),
	pat(`<\+\+>`, "edge: <++>"),
	pat(`-->`, "edge: -->"),
	pat(`<-->`, "edge: <-->"),
	pat(`\+>:`, "typed connect: +>:"),
	pat(`:\+>`, "typed connect: :+>"),
	pat(`->:`, "typed traversal: ->:"),
	pat(`:->`, "typed traversal: :->"),
	pat(`\bdel-->`, "disconnect: del-->"),
	pat(`by\s+llm\s*[;(]`, "by llm"),
	pat(`with\s+entry`, "with entry"),
	pat(`with\s+exit`, "with exit"),
	pat("`root\\s+entry", "root entry"),
	pat(`\bspawn\b`, "spawn"),
	pat(`import\s+from\s+\w+\s*\{`, "import from module { }"),
	pat(`\bhas\s+\w+\s*:`, "has x: type"),
	pat(`\bnode\s+\w+`, "node definition"),
	pat(`\bwalker\s+\w+`, "walker definition"),
	pat(`\bedge\s+\w+`, "edge definition"),
	pat(`\bobj\s+\w+`, "obj definition"),
	pat(`\bcan\s+\w+`, "ability definition"),
	pat(`file\.open`, "file.open"),
	pat(`json\.dumps`, "json.dumps"),
	pat(`json\.loads`, "json.loads"),
	pat(`\basync\b`, "async"),
	pat(`\bawait\b`, "await"),
	pat(`\breport\b`, "report"),
	pat(`\bvisit\b`, "visit"),
	pat(`\bhere\b`, "here keyword"),
	pat(`\bself\b`, "self keyword"),
	pat(`\bprops\b`, "props keyword"),
	pat(`\bcl\s*\{`, "client block"),
	pat(`\bsv\s*\{`, "server block"),
	pat(`<[A-Z]\w*`, "JSX element"),
	pat(`/>`, "JSX self-closing"),
	pat(`\buseState\b`, "React useState"),
	pat(`\buseEffect\b`, "React useEffect"),
	pat(`\bcase\s+\w+\s*:`, "match case with colon"),
	pat(`lambda\s+\w+\s*:`, "lambda expression"),
}

// DefaultRequiredPatterns names the constructs a final reference document
// must contain.
var DefaultRequiredPatterns = []string{
	"edge: ++>", "by llm", "with entry", "spawn",
	"node definition", "walker definition", "has x: type",
	"typed connect: +>:", "typed traversal: ->:",
}

// FindPatterns returns the set of critical pattern names present in text.
func FindPatterns(text string) map[string]bool {
	found := make(map[string]bool)
	for _, p := range criticalPatterns {
		if p.re.MatchString(text) {
			found[p.name] = true
		}
	}
	return found
}
