// Package mail renders account emails and delivers them out of band through
// a job queue drained by background workers.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/google/uuid"

	"rdolist/models"
)

//go:embed templates
var templateFS embed.FS

const (
	welcomeSubject = "Welcome To RDoList."
	codeSubject    = "RDoList Verification Code."
)

type templates struct {
	text *texttemplate.Template
	html *htmltemplate.Template
}

func loadTemplates() (*templates, error) {
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	return &templates{text: text, html: html}, nil
}

func (t *templates) render(name string, data any) (string, string, error) {
	var text, html bytes.Buffer
	if err := t.text.ExecuteTemplate(&text, name+".txt", data); err != nil {
		return "", "", err
	}
	if err := t.html.ExecuteTemplate(&html, name+".html", data); err != nil {
		return "", "", err
	}
	return text.String(), html.String(), nil
}

// Mailer renders messages and puts them on the queue. It never waits for
// delivery.
type Mailer struct {
	queue Queue
	tmpl  *templates
}

func NewMailer(queue Queue) (*Mailer, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	return &Mailer{queue: queue, tmpl: tmpl}, nil
}

func (m *Mailer) SendWelcome(ctx context.Context, u *models.User) error {
	return m.enqueue(ctx, u.Email, welcomeSubject, "welcome", u)
}

func (m *Mailer) SendVerificationCode(ctx context.Context, u *models.User, code string) error {
	return m.enqueue(ctx, u.Email, codeSubject, "verification_code", struct {
		FirstName string
		Code      string
		Lifetime  int
	}{u.FirstName, code, int(models.CodeLifetime.Minutes())})
}

func (m *Mailer) enqueue(ctx context.Context, to, subject, name string, data any) error {
	text, html, err := m.tmpl.render(name, data)
	if err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	job := Job{ID: uuid.New(), To: to, Subject: subject, Text: text, HTML: html}
	if err := m.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue %s for %s: %w", name, to, err)
	}
	return nil
}
