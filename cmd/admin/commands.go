package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"agora/internal/models"
	"agora/internal/service"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// opener returns a database handle and the function that releases it.
type opener func() (*gorm.DB, func() error, error)

type cli struct {
	open   opener
	out    io.Writer
	close  func() error
	users  *service.UserService
	forums *service.ForumService
}

func newRootCmd(open opener, out io.Writer) *cobra.Command {
	c := &cli{open: open, out: out}

	root := &cobra.Command{
		Use:           "admin",
		Short:         "Manage Agora accounts and forum counters",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.connect()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if c.close == nil {
				return nil
			}
			return c.close()
		},
	}
	root.SetOut(out)

	root.AddCommand(
		&cobra.Command{
			Use:   "promote <user_id>",
			Short: "Grant the admin role",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.setRole(cmd.Context(), args[0], models.RoleAdmin)
			},
		},
		&cobra.Command{
			Use:   "demote <user_id>",
			Short: "Return an admin to the user role",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.setRole(cmd.Context(), args[0], models.RoleUser)
			},
		},
		&cobra.Command{
			Use:   "list-admins",
			Short: "List every admin account",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.listAdmins(cmd.Context())
			},
		},
		newVerifyCmd(c),
		&cobra.Command{
			Use:   "recount [forum_id]",
			Short: "Rebuild forum counters from the stored posts",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.recount(cmd.Context(), args)
			},
		},
	)
	return root
}

func newVerifyCmd(c *cli) *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "verify <user_id>",
		Short: "Mark an account as verified",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			user, err := c.users.SetVerified(cmd.Context(), id, !revoke)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s (ID: %d) verified=%t\n", user.Username, user.ID, user.IsVerified)
			return nil
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "remove the verified mark instead")
	return cmd
}

func (c *cli) connect() error {
	db, closeFn, err := c.open()
	if err != nil {
		return err
	}
	deps := service.NewDeps(db, nil, nil, nil)
	c.close = closeFn
	c.users = service.NewUserService(deps, 0)
	c.forums = service.NewForumService(deps)
	return nil
}

func (c *cli) setRole(ctx context.Context, raw string, role models.Role) error {
	id, err := parseUserID(raw)
	if err != nil {
		return err
	}
	current, err := c.users.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if current.Role == role {
		fmt.Fprintf(c.out, "%s (ID: %d) already has role %s\n", current.Username, current.ID, role)
		return nil
	}

	user, err := c.users.SetRole(ctx, nil, id, service.RoleInput{Role: string(role)})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s (ID: %d) is now %s\n", user.Username, user.ID, user.Role)
	return nil
}

func (c *cli) listAdmins(ctx context.Context) error {
	admins, err := c.users.ListByRole(ctx, models.RoleAdmin)
	if err != nil {
		return err
	}
	if len(admins) == 0 {
		fmt.Fprintln(c.out, "No admins found")
		return nil
	}
	for _, a := range admins {
		fmt.Fprintf(c.out, "ID: %d | Username: %s | Email: %s\n", a.ID, a.Username, a.Email)
	}
	return nil
}

func (c *cli) recount(ctx context.Context, args []string) error {
	if len(args) == 1 {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil || id == 0 {
			return fmt.Errorf("invalid forum id %q", args[0])
		}
		forum, err := c.forums.Recount(ctx, uint(id))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s: %d posts\n", forum.Title, forum.PostsCount)
		return nil
	}

	n, err := c.forums.RecountAll(ctx)
	if err != nil {
		return fmt.Errorf("recount stopped after %d forums: %w", n, err)
	}
	fmt.Fprintf(c.out, "recounted %d forums\n", n)
	return nil
}

func parseUserID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return uint(id), nil
}
