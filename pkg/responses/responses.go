// Package responses loads the fixed set of reply templates the bot is
// allowed to send. Exactly one template is selected per pipeline outcome.
package responses

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Templates is the complete response set. Every field is required; the bot
// refuses to start with a partial set rather than sending empty replies.
type Templates struct {
	TriggerWord        string `json:"trigger_word"`
	GetDestination     string `json:"get_destination"`
	PostNotFound       string `json:"post_not_found"`
	InvalidDestination string `json:"invalid_destination"`
	GetMessage         string `json:"get_message"`
	MessageSent        string `json:"message_sent"`
	ScriptError        string `json:"script_error"`
}

// Load reads and validates the template file.
func Load(path string) (*Templates, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read responses file: %w", err)
	}

	var t Templates
	if err := json.Unmarshal(content, &t); err != nil {
		return nil, fmt.Errorf("parse responses file: %w", err)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return &t, nil
}

// Validate reports every missing template by name.
func (t *Templates) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"trigger_word", t.TriggerWord},
		{"get_destination", t.GetDestination},
		{"post_not_found", t.PostNotFound},
		{"invalid_destination", t.InvalidDestination},
		{"get_message", t.GetMessage},
		{"message_sent", t.MessageSent},
		{"script_error", t.ScriptError},
	}

	var missing []string
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing bot responses: %s", strings.Join(missing, ", "))
	}

	return nil
}

// TriggerPattern compiles the case-insensitive trigger phrase matcher.
func (t *Templates) TriggerPattern() (*regexp.Regexp, error) {
	pattern, err := regexp.Compile("(?i)" + t.TriggerWord)
	if err != nil {
		return nil, fmt.Errorf("compile trigger_word pattern: %w", err)
	}

	return pattern, nil
}
