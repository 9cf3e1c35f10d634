// Command smtp-test sends a fixed test message through the configured SMTP
// account. Unlike the monitor it exits non-zero on failure, so it can verify
// mail settings before the monitor is scheduled.
package main

import (
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/hprakash/firstcry-monitor/pkg/config"
	"github.com/hprakash/firstcry-monitor/pkg/mail"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log.Info("SMTP configuration", "host", cfg.SMTPHost, "port", cfg.SMTPPort, "user", cfg.SMTPUser, "to", cfg.EmailTo)

	sender := mail.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.EmailTo)
	if err := sender.Send("SMTP Test", "If you see this, the FirstCry monitor email system works!"); err != nil {
		log.Fatal("sending test email", "err", err)
	}

	log.Info("email sent successfully")
}
