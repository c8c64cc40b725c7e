// Package mailer delivers outbound notification email.
//
// Two Sender implementations are provided: SMTPSender, which delivers over
// implicit TLS or STARTTLS, and LogSender, which writes messages to the
// structured log instead of delivering them and is intended for local
// development.
package mailer
