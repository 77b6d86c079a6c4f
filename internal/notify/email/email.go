package email

import (
	"bytes"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/bookshelf/internal/config"
	"github.com/jon4hz/bookshelf/internal/database"
	mail "github.com/xhit/go-simple-mail/v2"
)

// NotificationService sends welcome emails to new users.
type NotificationService struct {
	config    *config.EmailConfig
	serverURL string
	send      func(to, subject, body string) error
	wg        sync.WaitGroup
}

// Welcome contains the data for a welcome email.
type Welcome struct {
	UserEmail string
	UserName  string
	AppName   string
	ServerURL string
}

// New creates a new email notification service.
func New(cfg *config.EmailConfig, serverURL string) *NotificationService {
	n := &NotificationService{
		config:    cfg,
		serverURL: serverURL,
	}
	n.send = n.sendEmail
	return n
}

// UserSignedUp sends the welcome email in the background. Failures are only logged.
func (n *NotificationService) UserSignedUp(user *database.User) {
	if n.config == nil || !n.config.Enabled {
		return
	}
	welcome := Welcome{
		UserEmail: user.Email,
		UserName:  user.Username,
		AppName:   n.fromName(),
		ServerURL: n.serverURL,
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.SendWelcome(welcome); err != nil {
			log.Error("failed to send welcome email", "to", welcome.UserEmail, "error", err)
		}
	}()
}

// Wait blocks until all pending emails were handed to the SMTP server.
func (n *NotificationService) Wait() {
	n.wg.Wait()
}

// SendWelcome sends a welcome email to a newly registered user.
func (n *NotificationService) SendWelcome(welcome Welcome) error {
	if !n.config.Enabled {
		log.Debug("Email notifications are disabled, skipping welcome email")
		return nil
	}

	if welcome.UserEmail == "" {
		log.Warn("User email is empty, skipping welcome email")
		return nil
	}

	body, err := n.generateEmailBody(welcome)
	if err != nil {
		return fmt.Errorf("failed to generate email body: %w", err)
	}

	return n.send(welcome.UserEmail, fmt.Sprintf("Welcome to %s", welcome.AppName), body)
}

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.New("").ParseFS(templatesFS, "templates/*.html"))

func (n *NotificationService) generateEmailBody(welcome Welcome) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "welcome.html", welcome); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (n *NotificationService) fromName() string {
	if n.config.FromName == "" {
		return "Bookshelf"
	}
	return n.config.FromName
}

// sendEmail sends an email using go-simple-mail library.
func (n *NotificationService) sendEmail(to, subject, body string) error {
	server := mail.NewSMTPClient()
	server.Host = n.config.SMTPHost
	server.Port = n.config.SMTPPort
	server.Username = n.config.Username
	server.Password = n.config.Password

	switch {
	case n.config.UseSSL:
		server.Encryption = mail.EncryptionSSLTLS
	case n.config.UseTLS:
		server.Encryption = mail.EncryptionSTARTTLS
	default:
		server.Encryption = mail.EncryptionNone
	}

	if n.config.InsecureSkipVerify {
		server.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	server.KeepAlive = false
	server.ConnectTimeout = 10 * time.Second
	server.SendTimeout = 10 * time.Second

	smtpClient, err := server.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() {
		if closeErr := smtpClient.Close(); closeErr != nil {
			log.Warn("Failed to close SMTP client", "error", closeErr)
		}
	}()

	email := mail.NewMSG()
	email.SetFrom(fmt.Sprintf("%s <%s>", n.fromName(), n.config.FromEmail))
	email.AddTo(to)
	email.SetSubject(subject)
	email.SetBody(mail.TextHTML, body)

	if err := email.Send(smtpClient); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Info("Welcome email sent", "to", to)
	return nil
}
