// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package judge

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

// ReadQuestionsFile loads research questions from a YAML file. The
// file is either a bare list of strings or a map with a "questions"
// key, so a shared config file can be pointed at directly.
func ReadQuestionsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading questions file: %w", err)
	}

	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		return cleanQuestions(list, path)
	}

	var doc struct {
		Questions []string `yaml:"questions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing questions file %s: %w", path, err)
	}
	return cleanQuestions(doc.Questions, path)
}

func cleanQuestions(raw []string, path string) ([]string, error) {
	var out []string
	for _, q := range raw {
		q = strings.TrimSpace(q)
		if q != "" {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("questions file %s contains no questions", path)
	}
	return out, nil
}
