package backup

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"net/smtp"
	"os"
	"path/filepath"
	"time"

	"membership-backup/internal/logging"
)

// NotifierConfig holds SMTP settings for run completion mail
type NotifierConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	Host      string        `mapstructure:"host" yaml:"host"`
	Port      int           `mapstructure:"port" yaml:"port"`
	Username  string        `mapstructure:"username" yaml:"username"`
	Password  string        `mapstructure:"password" yaml:"password"`
	From      string        `mapstructure:"from" yaml:"from"`
	To        []string      `mapstructure:"to" yaml:"to"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxAttach int64         `mapstructure:"max_attach_bytes" yaml:"max_attach_bytes"`
}

// Notifier sends the completion mail after a successful run, attaching the
// generated artifacts. Delivery is strictly best effort: every failure is
// logged and swallowed, never propagated into the run outcome.
type Notifier struct {
	config NotifierConfig
	logger *logging.Logger
	send   func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewNotifier creates a completion notifier
func NewNotifier(config NotifierConfig, logger *logging.Logger) *Notifier {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxAttach <= 0 {
		config.MaxAttach = 10 * 1024 * 1024
	}
	return &Notifier{config: config, logger: logger, send: smtp.SendMail}
}

// NotifyCompletion sends the run completion mail. The returned error is
// informational only; callers log it and move on.
func (n *Notifier) NotifyCompletion(runType RunType, artifacts *ArtifactSet) error {
	if !n.config.Enabled || len(n.config.To) == 0 {
		return nil
	}

	msg, err := n.buildMessage(runType, artifacts)
	if err != nil {
		return NewNotificationError("failed to build notification mail", err)
	}

	addr := fmt.Sprintf("%s:%d", n.config.Host, n.config.Port)
	var auth smtp.Auth
	if n.config.Username != "" {
		auth = smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
	}

	done := make(chan error, 1)
	go func() {
		done <- n.send(addr, auth, n.config.From, n.config.To, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			n.logger.Warnf("Notification delivery failed: %v", err)
			return NewNotificationError("failed to deliver notification mail", err)
		}
		n.logger.Debugf("Notification delivered to %d recipient(s)", len(n.config.To))
		return nil
	case <-time.After(n.config.Timeout):
		n.logger.Warnf("Notification delivery timed out after %s", n.config.Timeout)
		return NewNotificationError("notification delivery timed out", nil)
	}
}

// buildMessage assembles a multipart MIME mail with the artifacts attached.
// Oversized or unreadable attachments are skipped, not fatal.
func (n *Notifier) buildMessage(runType RunType, artifacts *ArtifactSet) ([]byte, error) {
	boundary := fmt.Sprintf("boundary-%d", time.Now().UnixNano())

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", n.config.From)
	fmt.Fprintf(&buf, "To: %s\r\n", n.config.To[0])
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8",
		fmt.Sprintf("Backup completed (%s)", runType)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "The %s backup finished successfully at %s.\r\nStatement log size: %s\r\n\r\n",
		runType, time.Now().Format(time.RFC3339), artifacts.SizeLabel)

	for _, path := range artifacts.Paths {
		if err := n.attach(&buf, boundary, path); err != nil {
			n.logger.Warnf("Skipping attachment %s: %v", filepath.Base(path), err)
		}
	}

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes(), nil
}

func (n *Notifier) attach(buf *bytes.Buffer, boundary, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() > n.config.MaxAttach {
		return fmt.Errorf("attachment exceeds %d bytes", n.config.MaxAttach)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: application/octet-stream\r\n")
	buf.WriteString("Content-Transfer-Encoding: base64\r\n")
	fmt.Fprintf(buf, "Content-Disposition: attachment; filename=%q\r\n\r\n", filepath.Base(path))

	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		buf.WriteString(encoded[:76] + "\r\n")
		encoded = encoded[76:]
	}
	buf.WriteString(encoded + "\r\n\r\n")
	return nil
}
