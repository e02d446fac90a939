package notifications

import (
	"bytes"
	"html/template"

	"agenda-backend/internal/appointments"
)

const layoutTemplate = `{{define "details"}}
  <ul>
    <li>Service : {{.Service}}</li>
    <li>Date : {{.Date}}</li>
    <li>Heure : {{.TimeSlot}}</li>
    <li>Numero de reservation : {{.ID}}</li>
  </ul>
{{end}}`

const createdTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Bonjour {{.Name}},</p>
  <p>Nous avons bien recu votre demande de rendez-vous. Elle est en attente de confirmation.</p>
  {{template "details" .}}
  <p>Pour annuler, utilisez ce code d'annulation : <strong>{{.CancellationToken}}</strong></p>
  <p>Merci.</p>
</body>
</html>`

const statusTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Bonjour {{.Name}},</p>
  {{if eq .Status "confirmed"}}<p>Votre rendez-vous est confirme.</p>{{else}}<p>Votre rendez-vous a ete annule.</p>{{end}}
  {{template "details" .}}
  <p>Merci.</p>
</body>
</html>`

const reminderTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Bonjour {{.Name}},</p>
  <p>Petit rappel : votre rendez-vous a lieu demain.</p>
  {{template "details" .}}
  <p>A bientot.</p>
</body>
</html>`

const adminTemplate = `<!DOCTYPE html>
<html>
<body>
  <h3>Nouvelle demande de rendez-vous</h3>
  <p><strong>Nom:</strong> {{.Name}}</p>
  <p><strong>Email:</strong> {{.Email}}</p>
  {{if .Phone}}<p><strong>Telephone:</strong> {{.Phone}}</p>{{end}}
  {{if .Company}}<p><strong>Societe:</strong> {{.Company}}</p>{{end}}
  {{template "details" .}}
  {{if .Message}}<p><strong>Message:</strong><br/>{{.Message}}</p>{{end}}
</body>
</html>`

var (
	adminTmpl    = template.Must(template.Must(template.New("admin").Parse(layoutTemplate)).Parse(adminTemplate))
	createdTmpl  = template.Must(template.Must(template.New("created").Parse(layoutTemplate)).Parse(createdTemplate))
	statusTmpl   = template.Must(template.Must(template.New("status").Parse(layoutTemplate)).Parse(statusTemplate))
	reminderTmpl = template.Must(template.Must(template.New("reminder").Parse(layoutTemplate)).Parse(reminderTemplate))
)

func render(tmpl *template.Template, appt appointments.Appointment) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, appt); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func statusSubject(status string) string {
	if status == appointments.StatusConfirmed {
		return "Rendez-vous confirme"
	}
	return "Rendez-vous annule"
}
