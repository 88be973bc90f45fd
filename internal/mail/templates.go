package mail

import (
	"bytes"
	"html/template"
	"strings"
)

var welcomeHTML = template.Must(template.New("welcome").Parse(`
<p>Hi {{.FirstName}},</p>
<p>Welcome to Wanderly, we're glad to have you!</p>
<p>Visit <a href="{{.URL}}">your account page</a> to upload a photo and
complete your profile.</p>
`))

var passwordResetHTML = template.Must(template.New("reset").Parse(`
<p>Hi {{.FirstName}},</p>
<p>Forgot your password? Submit a PATCH request with your new password to
<a href="{{.URL}}">{{.URL}}</a>.</p>
<p>If you didn't forget your password, please ignore this email.</p>
`))

type templateData struct {
	FirstName string
	URL       string
}

// Welcome renders the signup email for a user.
func Welcome(name, url string) (subject, htmlBody, textBody string) {
	return render(welcomeHTML, "Welcome to the Wanderly family!", name, url)
}

// PasswordReset renders the reset email carrying the raw token URL.
func PasswordReset(name, resetURL string) (subject, htmlBody, textBody string) {
	return render(passwordResetHTML, "Your password reset token (valid for 10 minutes)", name, resetURL)
}

func render(tpl *template.Template, subject, name, url string) (string, string, string) {
	first, _, _ := strings.Cut(name, " ")
	var buf bytes.Buffer
	_ = tpl.Execute(&buf, templateData{FirstName: first, URL: url})
	htmlBody := buf.String()

	// Plain-text alternative for clients that refuse HTML.
	textBody := "Hi " + first + ",\n\n" + url + "\n"
	return subject, htmlBody, textBody
}
