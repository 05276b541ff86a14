package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	avatarcrop "github.com/menta2k/avatar-cropper"
	"github.com/menta2k/avatar-cropper/pkg/api"
	"github.com/menta2k/avatar-cropper/pkg/form"
	"github.com/menta2k/avatar-cropper/pkg/types"
)

// PasswordEnv supplies the account password when --password is not given
const PasswordEnv = "AVATARCROP_PASSWORD"

var (
	accountEmail    string
	accountPassword string

	uploadRegion regionFlags

	registerForm   form.RegistrationForm
	registerRegion regionFlags
	registerAvatar string
)

// uploadCmd signs in and replaces the profile picture
var uploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Short: "Crop a photo and set it as the profile picture",
	Long: `Signs in to the account backend, crops the photo with the given region
and saves it as the profile picture. The password is read from --password
or the ` + PasswordEnv + ` environment variable.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

// registerCmd creates an account, optionally with a cropped avatar
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE:  runRegister,
}

func init() {
	for _, cmd := range []*cobra.Command{uploadCmd, registerCmd} {
		cmd.Flags().StringVar(&accountEmail, "email", "", "Account email (required)")
		cmd.Flags().StringVar(&accountPassword, "password", "", "Account password (default: $"+PasswordEnv+")")
		_ = cmd.MarkFlagRequired("email")
	}
	uploadRegion.register(uploadCmd)

	f := registerCmd.Flags()
	f.StringVar(&registerForm.Name, "name", "", "Full name")
	f.StringVar(&registerForm.Phone, "phone", "", "10 digit phone number")
	f.StringVar(&registerForm.DateOfBirth, "dob", "", "Date of birth (YYYY-MM-DD)")
	f.StringVar(&registerForm.Gender, "gender", "", "Male, Female or Other")
	f.StringVar(&registerForm.UserType, "user-type", "Student", "Student, Faculty or Staff")
	f.StringVar(&registerForm.RollNo, "roll-no", "", "Roll number (students)")
	f.StringVar(&registerForm.Section, "section", "", "Section (students)")
	f.StringVar(&registerForm.Hostel, "hostel", "", "Hostel (students)")
	f.StringVar(&registerForm.Block, "block", "", "Block (students)")
	f.StringVar(&registerForm.RoomNo, "room-no", "", "Room number (students)")
	f.StringVar(&registerForm.EmailDomain, "email-domain", "", "Required email suffix, e.g. @example.ac.in")
	f.StringVar(&registerAvatar, "avatar", "", "Profile photo to crop")
	registerRegion.register(registerCmd)
}

func password() (string, error) {
	if accountPassword != "" {
		return accountPassword, nil
	}
	if p := os.Getenv(PasswordEnv); p != "" {
		return p, nil
	}
	return "", errors.New("password is required: use --password or " + PasswordEnv)
}

// cropInto opens path in field's widget, applies region and returns the
// encoded avatar.
func cropInto(field *form.AvatarField, path string, flags *regionFlags, opts avatarcrop.Options) (string, error) {
	region, err := flags.region(opts.Cropper)
	if err != nil {
		return "", fmt.Errorf("invalid crop region: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w, err := field.Select(f)
	if err != nil {
		return "", err
	}
	if err := w.SetRegion(region); err != nil {
		_ = w.Cancel()
		return "", err
	}
	return w.Apply()
}

func runUpload(cmd *cobra.Command, args []string) error {
	pass, err := password()
	if err != nil {
		return err
	}
	opts, err := cfg.WidgetOptions(logger)
	if err != nil {
		return err
	}
	c, err := api.NewClient(cfg.APIClientConfig(logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := c.Login(ctx, types.LoginRequest{Email: accountEmail, Password: pass}); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	defer func() {
		if err := c.Logout(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("logout failed", zap.Error(err))
		}
	}()

	user, err := c.Me(ctx)
	if err != nil {
		return err
	}

	avatar := form.NewAvatarField(opts)
	profile := form.NewProfileForm(c, *user, avatar)
	profile.BeginEdit()

	if _, err := cropInto(avatar, args[0], &uploadRegion, opts); err != nil {
		profile.CancelEdit()
		return err
	}

	saved, err := profile.Save(ctx)
	if err != nil {
		return err
	}

	logger.Info("profile picture updated", zap.String("user", saved.ID))
	fmt.Fprintf(cmd.OutOrStdout(), "profile picture updated for %s\n", accountEmail)
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	pass, err := password()
	if err != nil {
		return err
	}
	opts, err := cfg.WidgetOptions(logger)
	if err != nil {
		return err
	}
	c, err := api.NewClient(cfg.APIClientConfig(logger))
	if err != nil {
		return err
	}

	avatar := form.NewAvatarField(opts)
	if registerAvatar != "" {
		if _, err := cropInto(avatar, registerAvatar, &registerRegion, opts); err != nil {
			return err
		}
	}

	f := form.NewRegistrationForm(c, avatar)
	f.Name = registerForm.Name
	f.Email = accountEmail
	f.Phone = registerForm.Phone
	f.DateOfBirth = registerForm.DateOfBirth
	f.Gender = registerForm.Gender
	f.UserType = registerForm.UserType
	f.RollNo = registerForm.RollNo
	f.Section = registerForm.Section
	f.Hostel = registerForm.Hostel
	f.Block = registerForm.Block
	f.RoomNo = registerForm.RoomNo
	f.EmailDomain = registerForm.EmailDomain
	f.Password = pass
	f.ConfirmPassword = pass

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	user, err := f.Submit(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", user.Email, user.ID)
	return nil
}
