package web

import (
	"bytes"
	"html/template"
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedTemplatesExist(t *testing.T) {
	templatesFS := GetTemplatesFS()

	requiredFiles := []string{
		"email/qualified.html",
		"email/invitation.html",
	}

	for _, file := range requiredFiles {
		_, err := fs.Stat(templatesFS, file)
		if err != nil {
			t.Errorf("required template %q not found: %v", file, err)
		}
	}
}

func TestEmailTemplates_Parse(t *testing.T) {
	tmpl, err := EmailTemplates()
	if err != nil {
		t.Fatalf("failed to parse email templates: %v", err)
	}

	for _, name := range []string{"qualified", "invitation"} {
		if tmpl.Lookup(name) == nil {
			t.Errorf("template %q not defined", name)
		}
	}
}

func TestEmailTemplates_InvitationRendersLinkAndQR(t *testing.T) {
	tmpl, err := EmailTemplates()
	if err != nil {
		t.Fatalf("failed to parse email templates: %v", err)
	}

	var buf bytes.Buffer
	err = tmpl.ExecuteTemplate(&buf, "invitation", map[string]any{
		"FirstName":       "Ann",
		"Points":          110,
		"Class":           "SQL 1",
		"SeasonName":      "2026 Season",
		"RegistrationURL": "https://example.com/world-finals/register?token=abc",
		"QRSrc":           template.URL("cid:invitation-qr"),
	})
	if err != nil {
		t.Fatalf("failed to render: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Dear Ann", "register?token=abc", `src="cid:invitation-qr"`, "SQL 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}
}

func TestEmailTemplates_EscapesNames(t *testing.T) {
	tmpl, err := EmailTemplates()
	if err != nil {
		t.Fatalf("failed to parse email templates: %v", err)
	}

	var buf bytes.Buffer
	tmpl.ExecuteTemplate(&buf, "qualified", map[string]any{
		"FirstName": "<script>x</script>",
		"Class":     "SQL 1",
	})
	if strings.Contains(buf.String(), "<script>") {
		t.Error("expected names to be escaped")
	}
}
