package email

import (
	"bytes"
	"fmt"
	"html/template"
	"path/filepath"

	"github.com/weatherhub/weather-updates-api/internal/models"
)

type Emailer interface {
	Send(to, subject, htmlBody string) error
}

// Service renders the notification templates and hands them to the transport.
type Service struct {
	emailer      Emailer
	templatesDir string
	appBaseURL   string
}

func NewService(emailer Emailer, templatesDir, appBaseURL string) *Service {
	return &Service{
		emailer:      emailer,
		templatesDir: templatesDir,
		appBaseURL:   appBaseURL,
	}
}

// SendConfirmation mails the confirm link, plus an unsubscribe link in case
// the address never asked for the subscription.
func (e *Service) SendConfirmation(toEmail, token string) error {
	body, err := e.render("confirm_email.html", map[string]string{
		"ConfirmLink":     e.link("confirm", token),
		"UnsubscribeLink": e.link("unsubscribe", token),
	})
	if err != nil {
		return err
	}

	return e.emailer.Send(toEmail, "Confirm your weather subscription", body)
}

// SendWeather mails the current conditions with an embedded unsubscribe link.
func (e *Service) SendWeather(toEmail, city string, forecast models.WeatherData, token string) error {
	body, err := e.render("weather_update.html", map[string]interface{}{
		"City":            city,
		"Temperature":     forecast.Temperature,
		"Humidity":        forecast.Humidity,
		"Description":     forecast.Description,
		"UnsubscribeLink": e.link("unsubscribe", token),
	})
	if err != nil {
		return err
	}

	return e.emailer.Send(toEmail, fmt.Sprintf("Weather Update for %s", city), body)
}

func (e *Service) render(name string, data interface{}) (string, error) {
	tmpl, err := template.ParseFiles(filepath.Join(e.templatesDir, name))
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return body.String(), nil
}

func (e *Service) link(action, token string) string {
	return fmt.Sprintf("%s/api/%s/%s", e.appBaseURL, action, token)
}
