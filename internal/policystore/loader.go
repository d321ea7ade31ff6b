package policystore

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type documentFile struct {
	Policies []Document `yaml:"policies"`
}

// LoadDocuments reads a YAML policy file:
//
//	policies:
//	  - policy_id: AML-03
//	    category: compliance
//	    content: "Policy AML-03: ..."
func LoadDocuments(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParseDocuments(data)
}

func ParseDocuments(data []byte) ([]Document, error) {
	var f documentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	seen := make(map[string]struct{}, len(f.Policies))
	var errs []error
	for i, d := range f.Policies {
		d.PolicyID = strings.TrimSpace(d.PolicyID)
		d.Content = strings.TrimSpace(d.Content)
		f.Policies[i] = d
		switch {
		case d.PolicyID == "":
			errs = append(errs, fmt.Errorf("policy %d: policy_id is required", i))
		case d.Content == "":
			errs = append(errs, fmt.Errorf("policy %s: content is required", d.PolicyID))
		}
		if _, dup := seen[d.PolicyID]; dup && d.PolicyID != "" {
			errs = append(errs, fmt.Errorf("policy %s: duplicate policy_id", d.PolicyID))
		}
		seen[d.PolicyID] = struct{}{}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return f.Policies, nil
}
