package email

import (
	"fmt"
	"net/smtp"
)

// smtpServer stores the address of the SMTP server used to send emails.
var smtpServer string

// auth holds the authentication data needed to connect to the SMTP server.
// It is initialized by the smtp.PlainAuth function with the sender's credentials.
var auth smtp.Auth

// fromEmail stores the email address used as the "From" address in outgoing mail.
var fromEmail string

// InitEmailService initializes the email service by establishing an SMTP
// connection to the configured mail server, using the sender address and
// password. It dials the server once to verify the credentials work and
// returns whether the connection succeeded.
func InitEmailService(sender, password string) (bool, error) {
	smtpServer = "smtp.gmail.com:587"
	fromEmail = sender

	auth = smtp.PlainAuth(
		"",
		sender,
		password,
		"smtp.gmail.com",
	)

	c, err := smtp.Dial(smtpServer)
	if err != nil {
		return false, fmt.Errorf("cannot connect to the SMTP server: %v", err)
	}

	err = c.Close()
	if err != nil {
		return false, fmt.Errorf("cannot close the SMTP connection: %v", err)
	}

	return true, nil
}

// SendUnlockEmail sends a congratulation email to a user who just earned an
// achievement. Returns an error if there was a problem with any step of the
// process.
func SendUnlockEmail(to, username, achievement string) error {
	headers := make(map[string]string)
	headers["From"] = fromEmail
	headers["To"] = to
	headers["Subject"] = "Achievement unlocked: " + achievement
	headers["MIME-version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=\"UTF-8\""

	message := ""
	for k, v := range headers {
		message += fmt.Sprintf("%s: %s\r\n", k, v)
	}

	body := `
	<html>
		<head>
			<style>
				body {
					font-family: sans-serif;
					margin: 0;
					padding: 0;
				}
				.container {
					max-width: 600px;
					margin: 0 auto;
					padding: 10px;
					border-radius: 4px;
				}
				p {
					line-height: 1.6;
				}
			</style>
		</head>
		<body>
			<div class="container">
				<h1>Mabrook, ` + username + `!</h1>
				<p>You just unlocked the <strong>` + achievement + `</strong> achievement.</p>
				<p>Keep your streak going -- every day counts.</p>
			</div>
		</body>
	</html>
	`
	message += "\r\n" + body

	err := smtp.SendMail(
		smtpServer,
		auth,
		fromEmail,
		[]string{to},
		[]byte(message),
	)

	if err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}

	return nil
}
