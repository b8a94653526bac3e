// Package mailer is an SMTP implementation of the engine's code delivery
// contract. It exists for applications that do not already have an email
// pipeline; anything with its own delivery stack should implement
// authflow.CodeSender directly.
package mailer
