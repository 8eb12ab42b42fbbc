package main

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-legid-client/internal/errors"
	"github.com/jrsteele09/go-legid-client/oauthlogin"
	"github.com/jrsteele09/go-legid-client/sessions"
	"github.com/spf13/cobra"
)

const oauthLoginTimeout = 5 * time.Minute

func newLoginCommand(load appLoader) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Long:  "Signs in and stores the session locally. The password is read from stdin when --password is not given.",
		Args:  cobra.NoArgs,
		RunE: withApp(load, func(cmd *cobra.Command, a *app, _ []string) error {
			password, err := readSecret(cmd, "password")
			if err != nil {
				return err
			}
			result, err := a.sync.Login(cmd.Context(), sessions.Credentials{Email: email, Password: password})
			return a.reportAuth(result, err)
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().String("password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSignupCommand(load appLoader) *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: withApp(load, func(cmd *cobra.Command, a *app, _ []string) error {
			password, err := readSecret(cmd, "password")
			if err != nil {
				return err
			}
			result, err := a.sync.Signup(cmd.Context(), sessions.SignupRequest{Email: email, Password: password, Name: name})
			return a.reportAuth(result, err)
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().String("password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newOAuthLoginCommand(load appLoader) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "oauth-login",
		Short: "Sign in through Google or Microsoft in the browser",
		Args:  cobra.NoArgs,
		RunE: withApp(load, func(cmd *cobra.Command, a *app, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), oauthLoginTimeout)
			defer cancel()

			name := sessions.Provider(strings.ToLower(provider))
			p, err := oauthlogin.FromConfig(ctx, a.cfg, name)
			if err != nil {
				return err
			}
			server, err := oauthlogin.NewCallbackServer(a.cfg.GetOAuthCallbackAddr(), a.logger)
			if err != nil {
				return err
			}
			defer server.Close()

			res, err := oauthlogin.Login(ctx, p, server, func(url string) error {
				a.printf("Open this URL in your browser to continue:\n\n  %s\n\n", url)
				return nil
			})
			if err != nil {
				return err
			}
			a.logger.Debug().Str("provider", string(name)).Str("subject", res.Claims.Subject).Msg("provider sign in verified")

			result, err := a.sync.LoginWithOAuth(ctx, name, res.IDToken)
			return a.reportAuth(result, err)
		}),
	}
	cmd.Flags().StringVar(&provider, "provider", string(sessions.ProviderGoogle), "google or microsoft")
	return cmd
}

// reportAuth prints the outcome of a sign in. An account that is signed in
// but not provisioned yet is gated rather than failed.
func (a *app) reportAuth(result *sessions.AuthResult, err error) error {
	if err != nil {
		return err
	}
	if !result.Identity.IsProvisioned {
		a.printf("signed in as %s, waiting for access to be granted (see request-access)\n", result.Identity.Email)
		return nil
	}
	a.printf("signed in as %s (%s)\n", result.Identity.Email, result.Identity.RoleLabel())
	return nil
}

func newRefreshCommand(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Revalidate the stored session with the backend",
		Args:  cobra.NoArgs,
		RunE: withApp(load, func(cmd *cobra.Command, a *app, _ []string) error {
			if err := a.sync.Refresh(cmd.Context()); err != nil {
				switch {
				case apperrors.Is(err, apperrors.ErrNotProvisioned):
					a.printf("session valid, account not provisioned yet\n")
					return nil
				case apperrors.Is(err, apperrors.ErrUnauthorized):
					a.printf("session expired, signed out\n")
				}
				return err
			}
			a.printf("session refreshed\n")
			return nil
		}),
	}
}

func newLogoutCommand(load appLoader) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear all local state",
		Args:  cobra.NoArgs,
		RunE: withApp(load, func(cmd *cobra.Command, a *app, _ []string) error {
			if all {
				if err := a.sync.LogoutAllDevices(cmd.Context()); err != nil {
					a.printf("signed out locally\n")
					return err
				}
				a.printf("signed out on all devices\n")
				return nil
			}
			a.sync.Logout(cmd.Context())
			a.printf("signed out\n")
			return nil
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "also revoke every other session of this account")
	return cmd
}

func newPasswordCommand(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Password reset",
	}

	var email string
	forgot := &cobra.Command{
		Use:   "forgot",
		Short: "Email a password reset link",
		Args:  cobra.NoArgs,
		RunE: withApp(load, func(cmd *cobra.Command, a *app, _ []string) error {
			if err := a.sync.RequestPasswordReset(cmd.Context(), email); err != nil {
				return err
			}
			a.printf("if an account exists for %s a reset link has been sent\n", email)
			return nil
		}),
	}
	forgot.Flags().StringVar(&email, "email", "", "account email")
	_ = forgot.MarkFlagRequired("email")

	var token string
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Set a new password using a reset token",
		Args:  cobra.NoArgs,
		RunE: withApp(load, func(cmd *cobra.Command, a *app, _ []string) error {
			password, err := readSecret(cmd, "password")
			if err != nil {
				return err
			}
			if err := a.sync.ResetPassword(cmd.Context(), token, password); err != nil {
				return err
			}
			a.printf("password updated\n")
			return nil
		}),
	}
	reset.Flags().StringVar(&token, "token", "", "reset token from the email")
	reset.Flags().String("password", "", "new password")
	_ = reset.MarkFlagRequired("token")

	cmd.AddCommand(forgot, reset)
	return cmd
}
