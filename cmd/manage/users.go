package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"libris/internal/service"
	"libris/internal/validation"

	"github.com/spf13/cobra"
)

type accountFlags struct {
	email     string
	username  string
	password  string
	firstName string
	lastName  string
	phone     string
	noInput   bool
}

func (f *accountFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "Email address")
	cmd.Flags().StringVar(&f.username, "username", "", "Username")
	cmd.Flags().StringVar(&f.password, "password", "", "Password")
	cmd.Flags().StringVar(&f.firstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&f.lastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&f.phone, "phone", "", "Phone number")
	cmd.Flags().BoolVar(&f.noInput, "noinput", false, "Fail instead of prompting for missing values")
}

// complete prompts for the required values that were not given as flags.
// With --noinput a missing value is an error.
func (f *accountFlags) complete(in io.Reader, out io.Writer) error {
	required := []struct {
		name  string
		value *string
	}{
		{"email", &f.email},
		{"username", &f.username},
		{"password", &f.password},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(*r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if f.noInput {
		return fmt.Errorf("missing required flags with --noinput: --%s", strings.Join(missing, ", --"))
	}

	reader := bufio.NewReader(in)
	for _, r := range required {
		if strings.TrimSpace(*r.value) != "" {
			continue
		}
		fmt.Fprintf(out, "%s: ", strings.ToUpper(r.name[:1])+r.name[1:])
		line, err := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			if err != nil {
				return fmt.Errorf("read %s: %w", r.name, err)
			}
			return fmt.Errorf("%s cannot be blank", r.name)
		}
		*r.value = line
	}
	return nil
}

func (f *accountFlags) input() service.AccountInput {
	return service.AccountInput{
		Email:       f.email,
		Username:    f.username,
		Password:    f.password,
		FirstName:   f.firstName,
		LastName:    f.lastName,
		PhoneNumber: f.phone,
	}
}

func newCreateUserCmd(a *app) *cobra.Command {
	var (
		flags accountFlags
		staff bool
	)
	cmd := &cobra.Command{
		Use:   "createuser",
		Short: "Create a user account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.complete(cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return err
			}
			ctx := cmd.Context()
			db, _, err := a.connect(ctx)
			if err != nil {
				return err
			}

			in := flags.input()
			in.IsStaff = staff
			users := service.NewUserService(db, nil, validation.DefaultPasswordPolicy())
			user, err := users.Provision(ctx, in)
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s)\n", user.ID, user.Email)
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&staff, "staff", false, "Grant staff status")
	return cmd
}

func newCreateSuperuserCmd(a *app) *cobra.Command {
	var flags accountFlags
	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Create a superuser, or promote and reset the account owning the email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.complete(cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return err
			}
			ctx := cmd.Context()
			db, _, err := a.connect(ctx)
			if err != nil {
				return err
			}

			users := service.NewUserService(db, nil, validation.DefaultPasswordPolicy())
			user, created, err := users.EnsureSuperuser(ctx, flags.input())
			if err != nil {
				return fmt.Errorf("create superuser: %w", err)
			}
			verb := "updated"
			if created {
				verb = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s superuser %d (%s)\n", verb, user.ID, user.Email)
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}
