package responses

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemplates(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "responses.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write responses file: %v", err)
	}

	return path
}

func TestLoadCompleteSet(t *testing.T) {
	path := writeTemplates(t, `{
		"trigger_word": "post anonymously",
		"get_destination": "Where should I post it?",
		"post_not_found": "I could not find that post.",
		"invalid_destination": "That wall is not allowed.",
		"get_message": "What should I post?",
		"message_sent": "Done!",
		"script_error": "Something went wrong."
	}`)

	templates, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if templates.TriggerWord != "post anonymously" {
		t.Fatalf("TriggerWord = %q", templates.TriggerWord)
	}
	if templates.MessageSent != "Done!" {
		t.Fatalf("MessageSent = %q", templates.MessageSent)
	}
}

func TestLoadReportsAllMissingTemplates(t *testing.T) {
	path := writeTemplates(t, `{
		"trigger_word": "post anonymously",
		"get_destination": "Where?",
		"get_message": "What?",
		"message_sent": " "
	}`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, name := range []string{"post_not_found", "invalid_destination", "message_sent", "script_error"} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("error %q does not name missing template %s", err, name)
		}
	}
	if strings.Contains(err.Error(), "get_destination") {
		t.Fatalf("error %q names a template that is present", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	path := writeTemplates(t, `{"trigger_word": `)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestTriggerPatternIsCaseInsensitive(t *testing.T) {
	templates := &Templates{TriggerWord: "post anonymously"}

	pattern, err := templates.TriggerPattern()
	if err != nil {
		t.Fatalf("TriggerPattern error: %v", err)
	}
	if !pattern.MatchString("Hey, POST Anonymously please") {
		t.Fatal("pattern did not match a differently cased trigger")
	}
	if pattern.MatchString("just chatting") {
		t.Fatal("pattern matched unrelated text")
	}
}

func TestTriggerPatternInvalidExpression(t *testing.T) {
	templates := &Templates{TriggerWord: "post("}

	if _, err := templates.TriggerPattern(); err == nil {
		t.Fatal("expected compile error for invalid pattern")
	}
}
