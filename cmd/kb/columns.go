package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kanban/internal/app"
	"kanban/internal/board"
	"kanban/internal/domain"
)

func columnCmd() *cobra.Command {
	col := &cobra.Command{
		Use:   "column",
		Short: "Manage board columns",
		Long:  "Columns are managed through the board API. After a change the column list is reloaded into the local board.",
	}
	col.AddCommand(columnListCmd())
	col.AddCommand(columnShowCmd())
	col.AddCommand(columnAddCmd())
	col.AddCommand(columnRenameCmd())
	col.AddCommand(columnRemoveCmd())
	return col
}

func columnListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List columns as the API orders them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				cols, err := s.Client.Columns(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cols)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"#", "ID", "Title", "Tasks"})
				for i, c := range cols {
					tw.AppendRow(table.Row{i, c.ID, c.Title, len(c.TaskIDs)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func columnShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one column from the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				c, err := s.Client.Column(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
}

func columnAddCmd() *cobra.Command {
	var position int
	cmd := &cobra.Command{
		Use:   "add <id> <title>",
		Short: "Create a column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pos *int
			if cmd.Flags().Changed("position") {
				pos = &position
			}
			return withBoard(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				c, err := s.Actions.AddColumn(ctx, args[0], args[1], pos)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().IntVar(&position, "position", 0, "position among the columns (default: let the API decide)")
	return cmd
}

func columnRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				if err := s.Actions.RenameColumn(ctx, args[0], args[1]); err != nil {
					return err
				}
				return printJSONOrTable(s.Store.State().Columns[args[0]])
			})
		},
	}
}

func columnRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete an empty column",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoard(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				if err := s.Actions.RemoveColumn(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("deleted column %s\n", args[0])
				return nil
			})
		},
	}
}

func tagListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tags known to the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				tags, err := s.Client.Tags(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tags)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name"})
				for _, t := range tags {
					tw.AppendRow(table.Row{t.ID, t.Name})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func userCmd() *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Look up users",
	}
	user.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a user from the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *app.Session) error {
				u, err := s.Client.User(ctx, args[0])
				if err != nil {
					return err
				}
				dir := board.NewDirectory([]domain.User{u})
				return printJSONOrTable(map[string]any{"id": u.ID, "name": u.Name, "avatar": dir.Avatar(u.ID)})
			})
		},
	})
	return user
}
