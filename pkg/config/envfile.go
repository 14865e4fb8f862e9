package config

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

var envKeyRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var placeholderPatterns = []string{
	"changeme",
	"todo",
	"your-key",
	"your_token",
	"example",
	"replace-me",
	"placeholder",
}

// MalformedLine is a non-comment line that is not KEY=VALUE.
type MalformedLine struct {
	Line int    `json:"line"`
	Text string `json:"text"`
}

// EnvReport is the outcome of checking a dotenv file before deployment.
type EnvReport struct {
	Path         string          `json:"path"`
	ParsedKeys   int             `json:"parsedKeys"`
	Malformed    []MalformedLine `json:"malformed,omitempty"`
	Duplicates   []string        `json:"duplicates,omitempty"`
	Missing      []string        `json:"missing,omitempty"`
	Placeholders []string        `json:"placeholders,omitempty"`
	OK           bool            `json:"ok"`
}

// ValidateEnvFile parses path line by line and reports malformed lines,
// duplicate keys, required keys that are absent or empty, and values that
// still look like template placeholders.
func ValidateEnvFile(path string, required []string) (*EnvReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("env file not found: %w", err)
	}
	defer f.Close()

	report := &EnvReport{Path: path}
	values := make(map[string]string)
	dupes := make(map[string]bool)

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, _, found := strings.Cut(line, "=")
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		if !found || !envKeyRe.MatchString(key) {
			report.Malformed = append(report.Malformed, MalformedLine{Line: lineNo, Text: raw})
			continue
		}
		parsed, err := godotenv.Unmarshal(line)
		if err != nil {
			report.Malformed = append(report.Malformed, MalformedLine{Line: lineNo, Text: raw})
			continue
		}
		if _, exists := values[key]; exists {
			dupes[key] = true
		}
		values[key] = parsed[key]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}

	report.ParsedKeys = len(values)
	for key := range dupes {
		report.Duplicates = append(report.Duplicates, key)
	}
	sort.Strings(report.Duplicates)

	for _, key := range required {
		if strings.TrimSpace(values[key]) == "" {
			report.Missing = append(report.Missing, key)
		}
	}
	for key, value := range values {
		if value != "" && isPlaceholder(value) {
			report.Placeholders = append(report.Placeholders, key)
		}
	}
	sort.Strings(report.Placeholders)

	report.OK = len(report.Malformed) == 0 && len(report.Duplicates) == 0 &&
		len(report.Missing) == 0 && len(report.Placeholders) == 0
	return report, nil
}

func isPlaceholder(value string) bool {
	lowered := strings.ToLower(value)
	for _, p := range placeholderPatterns {
		if strings.Contains(lowered, p) {
			return true
		}
	}
	return false
}
