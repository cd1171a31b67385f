// Package rules splits the monolithic assembly instruction document into
// addressable nuggets for semantic indexing, and reads/writes the rules.jsonl
// interchange file.
package rules

import "strings"

// Nugget categories.
const (
	CategoryGlobalDirective = "global_directive"
	CategorySyntaxRule      = "syntax_rule"
	CategoryTopicDefinition = "topic_definition"
	CategoryPatternDef      = "pattern_definition"
	CategoryVerifiedExample = "verified_example"
	CategoryGoldenStyle     = "golden_style"
)

// Priority values. Lower means stronger precedence.
const (
	PriorityHigh   = 1
	PriorityNormal = 2
)

// RuleNugget is one retrievable unit of instructional content. Immutable
// once produced; keyed by ID with upsert semantics downstream.
type RuleNugget struct {
	ID             string   `json:"id"`
	Content        string   `json:"content"`
	TopicIDs       []string `json:"topic_ids"`
	ConstructTypes []string `json:"construct_types"`
	Priority       int      `json:"priority"`
	Category       string   `json:"category"`
}

// constructVocabulary maps each construct tag to the literal substrings that
// signal it. Matching is case-insensitive.
var constructVocabulary = []struct {
	construct string
	keywords  []string
}{
	{"node", []string{"node"}},
	{"edge", []string{"edge", "typed edge"}},
	{"walker", []string{"walker", "spawn"}},
	{"obj", []string{"obj", "object"}},
	{"enum", []string{"enum"}},
	{"connect", []string{"++>", "<++>", "+>:", ":<+", "connect"}},
	{"traverse", []string{"-->", "<--", "->:", ":<-", "traversal"}},
	{"filter", []string{"filter", "(?:"}},
	{"spawn", []string{"spawn"}},
	{"visit", []string{"visit"}},
	{"report", []string{"report"}},
	{"by_llm", []string{"by llm", "llm", "sem "}},
	{"can", []string{"can ", "ability", "abilities"}},
	{"def", []string{"def ", "function", "lambda"}},
	{"glob", []string{"glob "}},
	{"import", []string{"import"}},
	{"match", []string{"match", "case"}},
	{"try_except", []string{"try", "except", "finally"}},
	{"async", []string{"async"}},
	{"websocket", []string{"websocket"}},
	{"api", []string{"__specs__", "endpoint", "jac start"}},
	{"jsx", []string{"jsx", "cl{", ".cl.jac", "<div", "useEffect", "useState"}},
	{"client", []string{"cl{", ".cl.jac", "sv import", "client"}},
	{"auth", []string{"auth", ":pub", "login", "signup"}},
	{"permissions", []string{"grant", "revoke", "Perm"}},
	{"persistence", []string{"persist", "save", "commit"}},
	{"testing", []string{"test "}},
	{"routing", []string{"Router", "Route", "Navigate"}},
	{"jac_toml", []string{"jac.toml", "[project]", "[dependencies"}},
	{"deploy", []string{"docker", "kubernetes", "deploy"}},
	{"env", []string{".env", "load_dotenv", "getenv"}},
}

// topicVocabulary maps topic tags to their literal keyword signals.
var topicVocabulary = []struct {
	topic    string
	keywords []string
}{
	{"types", []string{"int", "float", "str", "bool", "list[", "dict["}},
	{"control", []string{"if ", "elif", "else", "for ", "while", "match"}},
	{"functions", []string{"def ", "lambda", "pipe", "glob "}},
	{"imports", []string{"import"}},
	{"archetypes", []string{"node ", "edge ", "walker ", "obj "}},
	{"access", []string{":priv", ":pub", ":protect"}},
	{"graph", []string{"++>", "+>:", "-->", "->:", "del-->", "connect", "traversal"}},
	{"abilities", []string{"can ", "with entry", "with exit"}},
	{"walkers", []string{"spawn", "visit", "report", "disengage"}},
	{"by_llm", []string{"by llm", "sem "}},
	{"api", []string{"__specs__", "endpoint", "jac start"}},
	{"jsx_client", []string{"jsx", "cl{", ".cl.jac", "useEffect", "useState"}},
	{"routing", []string{"Router", "Route"}},
	{"client_auth", []string{"jacLogin", "jacSignup", "jacLogout"}},
	{"testing", []string{"test ", "assert"}},
}

// TopicNames maps the numbered topic list of the instruction document to
// stable topic names.
var TopicNames = map[string]string{
	"1": "types", "2": "control", "3": "functions", "4": "imports",
	"5": "archetypes", "6": "access", "7": "graph", "8": "abilities",
	"9": "walkers", "10": "by_llm", "11": "file_json", "12": "api",
	"13": "websocket", "14": "webhooks", "15": "scheduler", "16": "async",
	"17": "permissions", "18": "persistence", "19": "testing", "20": "stdlib",
	"21": "jsx_client", "22": "routing", "23": "client_auth",
	"24": "jac_toml", "25": "fullstack_setup", "26": "project_structure",
	"27": "walker_crud", "28": "component_patterns", "29": "dev_server",
	"30": "deploy", "31": "env_loading",
}

// DetectConstructTypes returns every construct tag whose keywords appear in
// text, falling back to ["general"].
func DetectConstructTypes(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, entry := range constructVocabulary {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				found = append(found, entry.construct)
				break
			}
		}
	}
	if len(found) == 0 {
		return []string{"general"}
	}
	return found
}

// DetectTopicIDs returns every topic tag whose keywords appear in text,
// falling back to ["general"].
func DetectTopicIDs(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, entry := range topicVocabulary {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				found = append(found, entry.topic)
				break
			}
		}
	}
	if len(found) == 0 {
		return []string{"general"}
	}
	return found
}
