package services

import (
	"bytes"
	"html/template"
	"strings"
	"sync"

	"github.com/abrezinsky/standings/web"
)

// invitationQRContentID is the cid the invitation email uses for its
// inline QR code
const invitationQRContentID = "invitation-qr"

var loadEmailTemplates = sync.OnceValues(web.EmailTemplates)

type qualifiedEmail struct {
	FirstName    string
	Class        string
	Points       int
	SeasonName   string
	Threshold    int
	DashboardURL string
}

type invitationEmail struct {
	FirstName       string
	Points          int
	Class           string
	SeasonName      string
	RegistrationURL string
	QRSrc           template.URL
}

func renderEmail(name string, data any) (string, error) {
	tmpl, err := loadEmailTemplates()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// firstName falls back to "Competitor" when neither the profile nor the
// record carries a usable name
func firstName(profileName, competitorName string) string {
	if profileName != "" {
		return profileName
	}
	if fields := strings.Fields(competitorName); len(fields) > 0 {
		return fields[0]
	}
	return "Competitor"
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
