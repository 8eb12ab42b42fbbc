package main

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/go-legid-client/guard"
	"github.com/jrsteele09/go-legid-client/users"
	"github.com/spf13/cobra"
)

func newRootCommand(load appLoader) *cobra.Command {
	root := &cobra.Command{
		Use:           "legidctl",
		Short:         "Sign in to LegID and manage the local session, profile and consent state",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to a TOML config file (defaults to $"+configEnvVar+")")

	root.AddCommand(
		newLoginCommand(load),
		newOAuthLoginCommand(load),
		newSignupCommand(load),
		newWhoamiCommand(load),
		newRefreshCommand(load),
		newLogoutCommand(load),
		newPasswordCommand(load),
		newProfileCommand(load),
		newPreferencesCommand(load),
		newUsernameCommand(load),
		newAvatarCommand(load),
		newConsentCommand(load),
		newRequestAccessCommand(load),
		newCanCommand(load),
		newBannerCommand(),
	)
	return root
}

func newWhoamiCommand(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in identity from the local state",
		Args:  cobra.NoArgs,
		RunE: withApp(load, func(cmd *cobra.Command, a *app, _ []string) error {
			g := a.sync.Guard()
			if !g.IsAuthenticated() {
				a.printf("not signed in\n")
				return nil
			}
			identity := a.sync.State().CurrentIdentity()
			if identity == nil {
				identity = a.sync.State().PendingIdentity.Get()
			}
			out := struct {
				Provisioned bool            `json:"provisioned"`
				Identity    *users.Identity `json:"identity,omitempty"`
				RoleLabel   string          `json:"role_label"`
				Initials    string          `json:"initials"`
				ExpiresAt   string          `json:"expires_at,omitempty"`
			}{
				Provisioned: g.IsProvisioned(),
				Identity:    identity,
				RoleLabel:   identity.RoleLabel(),
			}
			if identity != nil {
				out.Initials = users.Initials(identity.DisplayName, identity.Email)
			}
			if s := a.sync.State().CurrentSession(); s != nil && !s.ExpiresAt.IsZero() {
				out.ExpiresAt = s.ExpiresAt.Format(time.RFC3339)
			}
			return a.printJSON(out)
		}),
	}
}

func newCanCommand(load appLoader) *cobra.Command {
	var (
		roles          []string
		approvedLawyer bool
		provisioned    bool
		rule           string
	)
	cmd := &cobra.Command{
		Use:   "can",
		Short: "Evaluate an access requirement against the current state",
		Long: `Evaluates a route requirement the way the app's guards do and prints
the decision (allow, redirect_login, redirect_not_provisioned or access_denied).

Rules are expressions over: authenticated, provisioned, role, lawyerStatus, email.
Example: legidctl can --rule 'role == "lawyer" && lawyerStatus == "approved"'`,
		Args: cobra.NoArgs,
		RunE: withApp(load, func(cmd *cobra.Command, a *app, _ []string) error {
			req := guard.Requirement{
				RequireApprovedLawyer: approvedLawyer,
				RequireProvisioned:    provisioned,
			}
			for _, r := range roles {
				req.Roles = append(req.Roles, users.RoleType(strings.ToLower(r)))
			}
			if rule != "" {
				compiled, err := guard.CompileRule(rule)
				if err != nil {
					return err
				}
				req.Rule = compiled
			}
			a.printf("%s\n", a.sync.Guard().Decide(req))
			return nil
		}),
	}
	cmd.Flags().StringSliceVar(&roles, "role", nil, "allowed roles (client, lawyer, employee, employee_admin)")
	cmd.Flags().BoolVar(&approvedLawyer, "approved-lawyer", false, "require an approved lawyer")
	cmd.Flags().BoolVar(&provisioned, "provisioned", true, "require a provisioned account")
	cmd.Flags().StringVar(&rule, "rule", "", "extra rule expression")
	return cmd
}

func newBannerCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "banner",
		Short:  "Print the application banner",
		Hidden: true,
		Args:   cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			name := "LegID"
			if len(args) == 1 {
				name = args[0]
			}
			displayAppname(cmd.OutOrStdout(), name)
		},
	}
}

// readSecret returns the flag value, or the first line of stdin when the
// flag was not given.
func readSecret(cmd *cobra.Command, flag string) (string, error) {
	v, _ := cmd.Flags().GetString(flag)
	if v != "" {
		return v, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("[readSecret] --%s not given and stdin empty: %w", flag, err)
		}
		return "", fmt.Errorf("[readSecret] --%s is required", flag)
	}
	return line, nil
}
