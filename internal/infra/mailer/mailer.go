package mailer

import (
	"fmt"
	"net/smtp"

	"subscription-api/config"
)

func send(to, subject, body string) error {
	from := config.SMTP_FROM
	password := config.SMTP_PASSWORD
	host := config.SMTP_HOST
	port := config.SMTP_PORT

	if host == "" {
		// Mail is best-effort in development; log instead of failing callers.
		fmt.Printf("SMTP not configured, skipping mail to %s: %s\n", to, subject)
		return nil
	}

	auth := smtp.PlainAuth("", from, password, host)

	message := []byte("Subject: " + subject + "\r\n" +
		"From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		body + "\r\n")

	err := smtp.SendMail(host+":"+port, auth, from, []string{to}, message)
	if err != nil {
		fmt.Println("SMTP error:", err)
	}
	return err
}

func SendVerificationEmail(to string, token string) error {
	link := fmt.Sprintf("%s/verify?token=%s", config.APP_URL, token)
	body := fmt.Sprintf("Click the following link to verify your account:\n\n%s", link)
	return send(to, "Verify Your Account", body)
}

func SendTrialEndingEmail(to string, planName string) error {
	body := fmt.Sprintf(
		"Your %s trial ends soon. Add a payment method in your account settings to keep your subscription active:\n\n%s/account",
		planName, config.APP_URL)
	return send(to, "Your trial is ending soon", body)
}
