package rules

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// LoadJSONL reads rule nuggets from a newline-delimited JSON file, one
// nugget per line. Blank lines are skipped.
func LoadJSONL(path string) ([]RuleNugget, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()

	var nuggets []RuleNugget
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var n RuleNugget
		if err := json.Unmarshal(line, &n); err != nil {
			return nil, fmt.Errorf("parse %s line %d: %w", path, lineNo, err)
		}
		if n.Priority == 0 {
			n.Priority = PriorityNormal
		}
		if n.Category == "" {
			n.Category = CategorySyntaxRule
		}
		nuggets = append(nuggets, n)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return nuggets, nil
}

// WriteJSONL writes nuggets as newline-delimited JSON.
func WriteJSONL(path string, nuggets []RuleNugget) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create rules file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, n := range nuggets {
		if err := enc.Encode(n); err != nil {
			return fmt.Errorf("encode nugget %s: %w", n.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush rules file: %w", err)
	}
	return nil
}

// Regenerate re-splits the instruction document into rulesPath when the
// document is newer than the existing rules file, or the rules file is
// missing. Returns the loaded nuggets either way.
func Regenerate(documentPath, rulesPath string) ([]RuleNugget, error) {
	docInfo, err := os.Stat(documentPath)
	if err != nil {
		return nil, fmt.Errorf("stat instruction document: %w", err)
	}

	stale := true
	if rulesInfo, err := os.Stat(rulesPath); err == nil {
		stale = docInfo.ModTime().After(rulesInfo.ModTime())
	}

	if !stale {
		return LoadJSONL(rulesPath)
	}

	data, err := os.ReadFile(documentPath)
	if err != nil {
		return nil, fmt.Errorf("read instruction document: %w", err)
	}
	nuggets := Splitter{}.Split(string(data))
	if err := WriteJSONL(rulesPath, nuggets); err != nil {
		return nil, err
	}
	return nuggets, nil
}
