package mail

import (
	"crypto/tls"
	"fmt"
	"math/rand"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"time"

	"github.com/treechat-dev/treechat/internal/config"
	"github.com/treechat-dev/treechat/internal/errors"
	"github.com/treechat-dev/treechat/internal/logger"
)

type Mailer struct {
	config *config.Email
	auth   smtp.Auth
}

func New(config *config.Email) *Mailer {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.SMTPServer)
	return &Mailer{
		config: config,
		auth:   auth,
	}
}

func (m *Mailer) IsCorrect(email string) error {
	_, err := mail.ParseAddress(email)
	if err != nil {
		return &errors.ErrorWithStatusCode{Message: err.Error(), StatusCode: 400}
	}
	return nil
}

// Send delivers one message. html selects the content type; confirmation
// mail is sent as HTML with a plain-text fallback handled by the caller.
func (m *Mailer) Send(recipient, subject, body string, html bool) error {
	msg := m.buildMessage(recipient, subject, body, html)
	address := fmt.Sprintf("%s:%d", m.config.SMTPServer, m.config.SMTPPort)

	// Port 465 = implicit TLS, otherwise STARTTLS
	if m.config.SMTPPort == 465 {
		return m.sendImplicitTLS(address, recipient, msg)
	}
	return m.sendSTARTTLS(address, recipient, msg)
}

func (m *Mailer) timeout() time.Duration {
	timeout := time.Duration(m.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return timeout
}

// sendImplicitTLS sends email over a connection that is TLS from the start (port 465).
func (m *Mailer) sendImplicitTLS(address, recipient string, msg []byte) error {
	tlsConfig := &tls.Config{ServerName: m.config.SMTPServer}

	conn, err := tls.DialWithDialer(&net.Dialer{Timeout: m.timeout()}, "tcp", address, tlsConfig)
	if err != nil {
		logger.Log.Error("failed to connect to SMTP server (implicit TLS)", "address", address, "error", err)
		return err
	}
	defer conn.Close()

	return m.sendOverConn(conn, recipient, msg)
}

// sendSTARTTLS sends email by upgrading a plain connection to TLS (port 587).
func (m *Mailer) sendSTARTTLS(address, recipient string, msg []byte) error {
	conn, err := net.DialTimeout("tcp", address, m.timeout())
	if err != nil {
		logger.Log.Error("failed to connect to SMTP server", "address", address, "error", err)
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.config.SMTPServer)
	if err != nil {
		logger.Log.Error("failed to create SMTP client", "error", err)
		return err
	}
	defer client.Close()

	tlsConfig := &tls.Config{ServerName: m.config.SMTPServer}
	if err = client.StartTLS(tlsConfig); err != nil {
		logger.Log.Error("failed to start TLS", "error", err)
		return err
	}

	return m.sendViaClient(client, recipient, msg)
}

// sendOverConn creates an SMTP client from an existing connection and sends the message.
func (m *Mailer) sendOverConn(conn net.Conn, recipient string, msg []byte) error {
	client, err := smtp.NewClient(conn, m.config.SMTPServer)
	if err != nil {
		logger.Log.Error("failed to create SMTP client", "error", err)
		return err
	}
	defer client.Close()

	return m.sendViaClient(client, recipient, msg)
}

// sendViaClient performs auth, sets sender/recipient, and sends the message body.
func (m *Mailer) sendViaClient(client *smtp.Client, recipient string, msg []byte) error {
	if err := client.Auth(m.auth); err != nil {
		logger.Log.Error("SMTP authentication failed", "error", err)
		return err
	}

	if err := client.Mail(m.config.Username); err != nil {
		logger.Log.Error("failed to set sender", "error", err)
		return err
	}

	if err := client.Rcpt(recipient); err != nil {
		logger.Log.Error("failed to set recipient", "recipient", recipient, "error", err)
		return err
	}

	w, err := client.Data()
	if err != nil {
		logger.Log.Error("failed to get data writer", "error", err)
		return err
	}

	if _, err = w.Write(msg); err != nil {
		logger.Log.Error("failed to write message", "error", err)
		return err
	}

	if err = w.Close(); err != nil {
		logger.Log.Error("failed to close data writer", "error", err)
		return err
	}

	return client.Quit()
}

func generateMessageID(domain string) string {
	t := time.Now().UnixNano()
	pid := rand.Int63()
	return fmt.Sprintf("<%d.%d@%s>", t, pid, domain)
}

func (m *Mailer) buildMessage(recipient, subject, body string, html bool) []byte {
	encodedSubject := mime.QEncoding.Encode("utf-8", subject)
	encodedSenderName := mime.QEncoding.Encode("utf-8", m.config.SenderName)

	contentType := "text/plain"
	if html {
		contentType = "text/html"
	}

	msgID := generateMessageID("treechat.dev")
	date := time.Now().Format(time.RFC1123Z)

	return fmt.Appendf(nil,
		"Message-ID: %s\r\n"+
			"Date: %s\r\n"+
			"To: %s\r\n"+
			"From: %s <%s>\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: %s; charset=\"utf-8\"\r\n"+
			"\r\n"+
			"%s",
		msgID, date, recipient, encodedSenderName, m.config.Username, encodedSubject, contentType, body,
	)
}
