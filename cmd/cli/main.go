package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

var rootCmd = &cobra.Command{
	Use:           "projecthub",
	Short:         "projecthub is a command line client for the ProjectHub API",
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var apiURL string

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", getAPIURL(), "API base URL (env PROJECTHUB_API)")
	rootCmd.AddCommand(loginCmd(), logoutCmd(), whoamiCmd(), membersCmd(), projectsCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func client() *apiClient {
	return newAPIClient(apiURL, loadToken())
}

func loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, m, err := newAPIClient(apiURL, "").login(email, password)
			if err != nil {
				return err
			}
			if err := saveToken(token); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			if m != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", m.Name, m.Role)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Logged in")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "member email")
	cmd.Flags().StringVar(&password, "password", "", "member password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := removeToken(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the member behind the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			token := loadToken()
			if token == "" {
				return errors.New("not logged in")
			}
			id, role, expires, err := tokenSubject(token)
			if err != nil {
				return err
			}
			var m member
			if err := client().call(http.MethodGet, "/members/"+id, nil, &m); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s <%s>\nrole: %s\n", m.Name, m.Email, role)
			if !expires.IsZero() {
				fmt.Fprintf(out, "token expires: %s\n", expires.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func membersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "members", Short: "Manage team members"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List members",
		RunE: func(cmd *cobra.Command, args []string) error {
			var members []member
			if err := client().call(http.MethodGet, "/members", nil, &members); err != nil {
				return err
			}
			printMembers(cmd.OutOrStdout(), members)
			return nil
		},
	}

	var name, email, password, role string
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a member",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"name": name, "email": email, "password": password}
			if role != "" {
				body["role"] = role
			}
			var m member
			if err := client().call(http.MethodPost, "/members", body, &m); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created member %s (%s)\n", m.Name, m.ID)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().StringVar(&email, "email", "", "email address")
	add.Flags().StringVar(&password, "password", "", "password, at least 6 characters")
	add.Flags().StringVar(&role, "role", "", "admin, developer, designer, manager, tester or other")

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().call(http.MethodDelete, "/members/"+args[0], nil, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Member deleted")
			return nil
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}

func projectsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "projects", Short: "Manage projects"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List projects, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var projects []project
			if err := client().call(http.MethodGet, "/projects", nil, &projects); err != nil {
				return err
			}
			printProjects(cmd.OutOrStdout(), projects)
			return nil
		},
	}

	get := &cobra.Command{
		Use:   "get <id|PRJ-id>",
		Short: "Show one project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p project
			if err := client().call(http.MethodGet, "/projects/"+args[0], nil, &p); err != nil {
				return err
			}
			printProject(cmd.OutOrStdout(), p)
			return nil
		},
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a project (admins only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := projectBody(cmd, true)
			if err != nil {
				return err
			}
			var p project
			if err := client().call(http.MethodPost, "/projects", body, &p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %q\n", p.ProjectID, p.Title)
			return nil
		},
	}
	addProjectFlags(create)

	update := &cobra.Command{
		Use:   "update <id|PRJ-id>",
		Short: "Change fields of a project (admins only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := projectBody(cmd, false)
			if err != nil {
				return err
			}
			if len(body) == 0 {
				return errors.New("nothing to update")
			}
			var p project
			if err := client().call(http.MethodPut, "/projects/"+args[0], body, &p); err != nil {
				return err
			}
			printProject(cmd.OutOrStdout(), p)
			return nil
		},
	}
	addProjectFlags(update)

	del := &cobra.Command{
		Use:   "delete <id|PRJ-id>",
		Short: "Delete a project (admins only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().call(http.MethodDelete, "/projects/"+args[0], nil, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Project deleted")
			return nil
		},
	}

	cmd.AddCommand(list, get, create, update, del)
	return cmd
}

func addProjectFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "project title")
	cmd.Flags().String("description", "", "free-form description")
	cmd.Flags().String("status", "", "planned, in-progress, on-hold, completed or cancelled")
	cmd.Flags().String("start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringSlice("members", nil, "comma separated member ids")
}

// projectBody sends only the flags that were set, so updates stay partial
func projectBody(cmd *cobra.Command, create bool) (map[string]any, error) {
	body := map[string]any{}
	fields := map[string]string{
		"title":       "title",
		"description": "description",
		"status":      "status",
		"start":       "startDate",
		"end":         "endDate",
	}
	for flag, key := range fields {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		v, err := cmd.Flags().GetString(flag)
		if err != nil {
			return nil, err
		}
		body[key] = v
	}
	if cmd.Flags().Changed("members") {
		ids, err := cmd.Flags().GetStringSlice("members")
		if err != nil {
			return nil, err
		}
		if ids == nil {
			ids = []string{}
		}
		body["members"] = ids
	}
	if create {
		for _, flag := range []string{"title", "start", "end"} {
			if !cmd.Flags().Changed(flag) {
				return nil, fmt.Errorf("--%s is required", flag)
			}
		}
	}
	return body, nil
}

func printMembers(out io.Writer, members []member) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE")
	for _, m := range members {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.Name, m.Email, m.Role)
	}
	w.Flush()
}

func printProjects(out io.Writer, projects []project) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROJECT\tTITLE\tSTATUS\tSTART\tEND\tMEMBERS")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			p.ProjectID, p.Title, p.Status,
			p.StartDate.Format(dateLayout), p.EndDate.Format(dateLayout), len(p.Members))
	}
	w.Flush()
}

func printProject(out io.Writer, p project) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Project:\t%s\n", p.ProjectID)
	fmt.Fprintf(w, "ID:\t%s\n", p.ID)
	fmt.Fprintf(w, "Title:\t%s\n", p.Title)
	fmt.Fprintf(w, "Status:\t%s\n", p.Status)
	fmt.Fprintf(w, "Dates:\t%s to %s\n", p.StartDate.Format(dateLayout), p.EndDate.Format(dateLayout))
	if p.Description != "" {
		fmt.Fprintf(w, "Description:\t%s\n", p.Description)
	}
	if p.CreatedBy != nil {
		fmt.Fprintf(w, "Created by:\t%s\n", p.CreatedBy.Name)
	}
	names := make([]string, 0, len(p.Members))
	for _, m := range p.Members {
		names = append(names, m.Name)
	}
	fmt.Fprintf(w, "Members:\t%s\n", strings.Join(names, ", "))
	w.Flush()
}
