package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/jrsteele09/go-legid-client/profiles"
	"github.com/jrsteele09/go-legid-client/users"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newProfileCommand(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit the signed in user's profile",
	}

	var cached bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the profile",
		Args:  cobra.NoArgs,
		RunE: withApp(load, func(cmd *cobra.Command, a *app, _ []string) error {
			if cached {
				return a.printJSON(a.sync.State().Profile.Get())
			}
			p, err := a.sync.LoadProfile(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJSON(p)
		}),
	}
	show.Flags().BoolVar(&cached, "cached", false, "print the locally stored profile without calling the backend")

	update := &cobra.Command{
		Use:   "update",
		Short: "Change profile fields; only the flags given are sent",
		Args:  cobra.NoArgs,
		RunE: withApp(load, func(cmd *cobra.Command, a *app, _ []string) error {
			flags := cmd.Flags()
			u := profiles.ProfileUpdate{
				DisplayName:   changed(flags, "display-name"),
				Username:      changed(flags, "username"),
				Phone:         changed(flags, "phone"),
				Line1:         changed(flags, "address-line-1"),
				Line2:         changed(flags, "address-line-2"),
				City:          changed(flags, "city"),
				ProvinceState: changed(flags, "province-state"),
				PostalZip:     changed(flags, "postal-zip"),
				Country:       changed(flags, "country"),
			}
			p, err := a.sync.UpdateProfile(cmd.Context(), u)
			if err != nil {
				return err
			}
			return a.printJSON(p)
		}),
	}
	for _, name := range []string{"display-name", "username", "phone", "address-line-1", "address-line-2", "city", "province-state", "postal-zip", "country"} {
		update.Flags().String(name, "", strings.ReplaceAll(name, "-", " ")+" (empty clears)")
	}

	cmd.AddCommand(show, update)
	return cmd
}

// changed returns a pointer to the flag's value when it was given on the
// command line, nil otherwise.
func changed(flags *pflag.FlagSet, name string) *string {
	if !flags.Changed(name) {
		return nil
	}
	v, _ := flags.GetString(name)
	return &v
}

func newPreferencesCommand(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preferences",
		Short: "Show or change display and assistant preferences",
		Args:  cobra.NoArgs,
		RunE: withApp(load, func(cmd *cobra.Command, a *app, _ []string) error {
			return a.printJSON(a.sync.State().Profile.Get().EffectivePreferences())
		}),
	}
	cmd.AddCommand(newPreferencesSetCommand(load))
	return cmd
}

func newPreferencesSetCommand(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change preferences; only the flags given are sent",
		Args:  cobra.NoArgs,
		RunE: withApp(load, func(cmd *cobra.Command, a *app, _ []string) error {
			flags := cmd.Flags()
			var u profiles.PreferencesUpdate
			if v := changed(flags, "theme"); v != nil {
				t := profiles.Theme(*v)
				u.Theme = &t
			}
			if v := changed(flags, "font-size"); v != nil {
				f := profiles.FontSize(*v)
				u.FontSize = &f
			}
			if v := changed(flags, "response-style"); v != nil {
				r := profiles.ResponseStyle(*v)
				u.ResponseStyle = &r
			}
			if v := changed(flags, "legal-tone"); v != nil {
				l := profiles.LegalTone(*v)
				u.LegalTone = &l
			}
			u.Language = changed(flags, "language")
			u.AutoReadResponses = changedBool(flags, "auto-read")

			p, err := a.sync.UpdatePreferences(cmd.Context(), u)
			if err != nil {
				return err
			}
			return a.printJSON(p.EffectivePreferences())
		}),
	}
	cmd.Flags().String("theme", "", "dark, light or system")
	cmd.Flags().String("font-size", "", "small, medium or large")
	cmd.Flags().String("response-style", "", "concise, balanced or detailed")
	cmd.Flags().String("legal-tone", "", "neutral, firm or very_formal")
	cmd.Flags().String("language", "", "preferred language code")
	cmd.Flags().Bool("auto-read", false, "read assistant responses aloud")
	return cmd
}

func newUsernameCommand(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "check-username <name>",
		Short: "Check whether a username is available",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(load, func(cmd *cobra.Command, a *app, args []string) error {
			available, err := a.sync.CheckUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if available {
				a.printf("%s is available\n", args[0])
			} else {
				a.printf("%s is taken\n", args[0])
			}
			return nil
		}),
	}
}

func newAvatarCommand(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "avatar",
		Short: "Upload or remove the profile picture",
	}

	var contentType string
	upload := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an image (jpeg, png or webp)",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(load, func(cmd *cobra.Command, a *app, args []string) error {
			path := args[0]
			ct := contentType
			if ct == "" {
				ct = mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
			}
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("[avatar upload] %w", err)
			}
			defer f.Close()

			p, err := a.sync.UploadAvatar(cmd.Context(), filepath.Base(path), ct, f)
			if err != nil {
				return err
			}
			a.printf("avatar set to %s\n", p.AvatarURL)
			return nil
		}),
	}
	upload.Flags().StringVar(&contentType, "content-type", "", "override the content type guessed from the extension")

	remove := &cobra.Command{
		Use:   "remove",
		Short: "Clear the profile picture",
		Args:  cobra.NoArgs,
		RunE: withApp(load, func(cmd *cobra.Command, a *app, _ []string) error {
			if _, err := a.sync.RemoveAvatar(cmd.Context()); err != nil {
				return err
			}
			a.printf("avatar removed\n")
			return nil
		}),
	}

	cmd.AddCommand(upload, remove)
	return cmd
}

func newConsentCommand(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consent",
		Short: "Show or change privacy consent",
		Args:  cobra.NoArgs,
		RunE: withApp(load, func(cmd *cobra.Command, a *app, _ []string) error {
			c, err := a.sync.LoadConsent(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJSON(c)
		}),
	}

	set := &cobra.Command{
		Use:   "set",
		Short: "Change consent; only the flags given are sent",
		Args:  cobra.NoArgs,
		RunE: withApp(load, func(cmd *cobra.Command, a *app, _ []string) error {
			flags := cmd.Flags()
			u := profiles.ConsentUpdate{
				Functional: changedBool(flags, "functional"),
				Analytics:  changedBool(flags, "analytics"),
				Marketing:  changedBool(flags, "marketing"),
			}
			c, err := a.sync.UpdateConsent(cmd.Context(), u)
			if err != nil {
				return err
			}
			return a.printJSON(c)
		}),
	}
	set.Flags().Bool("functional", false, "functional cookies")
	set.Flags().Bool("analytics", false, "analytics")
	set.Flags().Bool("marketing", false, "marketing")

	cmd.AddCommand(set)
	return cmd
}

func changedBool(flags *pflag.FlagSet, name string) *bool {
	if !flags.Changed(name) {
		return nil
	}
	v, _ := flags.GetBool(name)
	return &v
}

func newRequestAccessCommand(load appLoader) *cobra.Command {
	var role, reason, organization string
	cmd := &cobra.Command{
		Use:   "request-access",
		Short: "Ask for access for a signed in account that is not provisioned",
		Args:  cobra.NoArgs,
		RunE: withApp(load, func(cmd *cobra.Command, a *app, _ []string) error {
			status, err := a.sync.RequestAccess(cmd.Context(), profiles.AccessRequest{
				RequestedRole: users.RoleType(strings.ToLower(role)),
				Reason:        reason,
				Organization:  organization,
			})
			if err != nil {
				return err
			}
			return a.printJSON(status)
		}),
	}
	cmd.Flags().StringVar(&role, "role", string(users.RoleClient), "requested role")
	cmd.Flags().StringVar(&reason, "reason", "", "why access is needed")
	cmd.Flags().StringVar(&organization, "organization", "", "firm or organization")
	return cmd
}
