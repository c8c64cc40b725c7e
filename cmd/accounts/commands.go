package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-accounts/internal/service"
)

// usageError marks errors caused by a malformed command line.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }

func (e usageError) Unwrap() error { return e.err }

type command struct {
	name    string
	args    string
	summary string
	minArgs int
	maxArgs int
	run     func(ctx context.Context, svc service.AccountService, args []string, out io.Writer) error
}

var commands = []command{
	{
		name:    "list-users",
		summary: "print every user with addresses",
		run: func(ctx context.Context, svc service.AccountService, _ []string, out io.Writer) error {
			users, err := svc.GetAllUsers(ctx)
			if err != nil {
				return err
			}
			return writeJSON(out, users)
		},
	},
	{
		name:    "get-user",
		args:    "<user-id>",
		summary: "print one user with addresses",
		minArgs: 1,
		maxArgs: 1,
		run: func(ctx context.Context, svc service.AccountService, args []string, out io.Writer) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			user, err := svc.GetUserByID(ctx, id)
			if err != nil {
				return err
			}
			return writeJSON(out, user)
		},
	},
	{
		name:    "set-roles",
		args:    "<user-id> [role,...]",
		summary: "replace a user's roles; omit roles to clear them",
		minArgs: 1,
		maxArgs: 2,
		run: func(ctx context.Context, svc service.AccountService, args []string, out io.Writer) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			var roles []string
			if len(args) == 2 {
				roles = strings.Split(args[1], ",")
			}
			user, err := svc.SetUserRoles(ctx, id, roles)
			if err != nil {
				return err
			}
			return writeJSON(out, user)
		},
	},
	{
		name:    "resend-verification",
		args:    "<token>",
		summary: "issue and mail a fresh verification token",
		minArgs: 1,
		maxArgs: 1,
		run: func(ctx context.Context, svc service.AccountService, args []string, out io.Writer) error {
			if err := svc.ResendEmailAddressVerification(ctx, args[0]); err != nil {
				return err
			}
			return writeJSON(out, statusResult{Status: "verification_sent"})
		},
	},
	{
		name:    "request-reset",
		args:    "<email>",
		summary: "mail a password reset link",
		minArgs: 1,
		maxArgs: 1,
		run: func(ctx context.Context, svc service.AccountService, args []string, out io.Writer) error {
			if err := svc.SendPasswordResetRequest(ctx, args[0]); err != nil {
				return err
			}
			return writeJSON(out, statusResult{Status: "reset_requested"})
		},
	},
	{
		name:    "verify-email",
		args:    "<token>",
		summary: "mark the token holder's email as verified",
		minArgs: 1,
		maxArgs: 1,
		run: func(ctx context.Context, svc service.AccountService, args []string, out io.Writer) error {
			if err := svc.VerifyEmailAddress(ctx, args[0]); err != nil {
				return err
			}
			return writeJSON(out, statusResult{Status: "email_verified"})
		},
	},
}

type statusResult struct {
	Status string `json:"status"`
}

// runCommand dispatches name to its handler after checking the argument count.
func runCommand(ctx context.Context, svc service.AccountService, name string, args []string, out io.Writer) error {
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if len(args) < c.minArgs || len(args) > c.maxArgs {
			return usageError{err: fmt.Errorf("usage: %s %s", c.name, c.args)}
		}
		return describeError(c.run(ctx, svc, args, out))
	}
	return usageError{err: fmt.Errorf("unknown command %q", name)}
}

// describeError prefixes service failures with the message an end user would
// have seen.
func describeError(err error) error {
	var appErr *service.AppError
	if err == nil || !errors.As(err, &appErr) || appErr.PublicMessage == "" {
		return err
	}
	return fmt.Errorf("%s (%w)", appErr.PublicMessage, err)
}

func parseUserID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, usageError{err: fmt.Errorf("invalid user id %q: %w", raw, err)}
	}
	return id, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
