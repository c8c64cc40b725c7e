package service

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/phrazzld/storefront-accounts/internal/platform/mailer"
)

const (
	subjectVerifyEmail   = "Welcome! Please verify your email address"
	subjectPasswordReset = "Reset your password"
	subjectPasswordSaved = "Your password has been changed"
)

var (
	verifyEmailTemplate = template.Must(template.New("verify_email").Parse(
		`<p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
<p>Thanks for signing up. Please confirm your email address by following the link below.</p>
<p><a href="{{.Link}}">Verify my email address</a></p>
<p>If you did not create an account you can ignore this message.</p>`))

	passwordResetTemplate = template.Must(template.New("password_reset").Parse(
		`<p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
<p>We received a request to reset your password. The link below is valid for {{.Validity}}.</p>
<p><a href="{{.Link}}">Choose a new password</a></p>
<p>If you did not request a reset you can ignore this message.</p>`))

	passwordChangedTemplate = template.Must(template.New("password_changed").Parse(
		`<p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
<p>The password for your account was just changed.</p>
<p>If this was not you, request a new password reset immediately.</p>`))
)

type notificationData struct {
	Name     string
	Link     string
	Validity string
}

// verifyEmailLink builds {baseURL}/auth/verifyEmail?token=...
func verifyEmailLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/auth/verifyEmail?token=" + url.QueryEscape(token)
}

// resetPasswordLink builds
// {baseURL}/auth/resetPassword/verify?passwordResetToken=...&email=...
func resetPasswordLink(baseURL, token, email string) string {
	return strings.TrimRight(baseURL, "/") +
		"/auth/resetPassword/verify?passwordResetToken=" + url.QueryEscape(token) +
		"&email=" + url.QueryEscape(email)
}

func renderMessage(from, to, subject string, tmpl *template.Template, data notificationData) (mailer.Message, error) {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return mailer.Message{}, fmt.Errorf("failed to render %s template: %w", tmpl.Name(), err)
	}
	return mailer.Message{
		From:    from,
		To:      to,
		Subject: subject,
		HTML:    body.String(),
	}, nil
}

// humanDuration renders whole days, hours or minutes for email copy.
func humanDuration(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s", unit)
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		return plural(int64(d/(24*time.Hour)), "day")
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	default:
		return plural(int64(d.Round(time.Minute)/time.Minute), "minute")
	}
}
