package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/DukeRupert/notebook/internal/domain"
)

func newUserCmd(open backendFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage local accounts",
	}

	cmd.AddCommand(
		newUserAddCmd(open),
		newUserEnabledCmd(open, "disable", false),
		newUserEnabledCmd(open, "enable", true),
	)
	return cmd
}

type userAddOptions struct {
	username      string
	email         string
	name          string
	password      string
	passwordStdin bool
}

func newUserAddCmd(open backendFactory) *cobra.Command {
	var opts userAddOptions

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account that signs in with a password",
		Long: `Create a local account. The password is read from --password,
from stdin with --password-stdin, or prompted for.`,
		Example: `  notebookctl user add --username kim --name "Kim Minsu"
  echo "$PW" | notebookctl user add --username kim --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, opts)
			if err != nil {
				return err
			}

			return withBackend(cmd, open, func(b backend) error {
				user, err := b.Users().CreateLocalUser(cmd.Context(), domain.CreateUserParams{
					Username: opts.username,
					Email:    opts.email,
					Password: password,
					Name:     opts.name,
				})
				if err != nil {
					return cliError(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (%s)\n", user.Username, user.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.username, "username", "", "login name (required)")
	cmd.Flags().StringVar(&opts.email, "email", "", "email address")
	cmd.Flags().StringVar(&opts.name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.password, "password", "", "password (visible in shell history; prefer --password-stdin)")
	cmd.Flags().BoolVar(&opts.passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("username")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")

	return cmd
}

// readPassword returns the password from the flag, stdin, or a prompt.
func readPassword(cmd *cobra.Command, opts userAddOptions) (string, error) {
	var password string
	switch {
	case opts.password != "":
		password = opts.password
	case opts.passwordStdin:
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	default:
		if !stdinIsTerminal(cmd) {
			return "", errors.New("stdin is not a terminal; pass the password with --password-stdin")
		}
		var err error
		if password, err = promptPassword(cmd); err != nil {
			return "", err
		}
	}

	if password == "" {
		return "", errors.New("password is required")
	}
	return password, nil
}

// Replaced in tests, which have no terminal.
var (
	stdinIsTerminal = isTerminal
	promptPassword  = readlinePassword
)

func isTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	return ok && readline.IsTerminal(int(f.Fd()))
}

// readlinePassword prompts on the terminal with input masked.
func readlinePassword(cmd *cobra.Command) (string, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "Password: ",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.ErrOrStderr(),
		Stderr:          cmd.ErrOrStderr(),
		EnableMask:      true,
		MaskRune:        '*',
		InterruptPrompt: "^C",
	})
	if err != nil {
		return "", fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return "", errors.New("password entry cancelled")
		}
		return "", fmt.Errorf("read password: %w", err)
	}
	return line, nil
}

func newUserEnabledCmd(open backendFactory, use string, enabled bool) *cobra.Command {
	short := "Disable an account and end its sessions"
	if enabled {
		short = "Re-enable a disabled account"
	}

	return &cobra.Command{
		Use:   use + " <username>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(b backend) error {
				if err := b.Users().SetEnabled(cmd.Context(), args[0], enabled); err != nil {
					return cliError(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User %s %sd\n", args[0], use)
				return nil
			})
		},
	}
}

// cliError turns application errors into operator-facing messages.
func cliError(err error) error {
	if domain.ErrorCode(err) == domain.EINTERNAL {
		return err
	}
	return errors.New(domain.ErrorMessage(err))
}
