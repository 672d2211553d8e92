package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/chatsql/internal/domain"
	"github.com/felixgeelhaar/chatsql/internal/i18n"
	"github.com/felixgeelhaar/chatsql/internal/instructor"
)

func instructorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "instructor",
		Aliases: []string{"teach"},
		Short:   "Instructor dashboard: stats, students and exercise management",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOverview(cmd)
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show dashboard stats and recent activity",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runOverview(cmd)
			},
		},
		studentsCmd(),
		studentCmd(),
		managedExercisesCmd(),
		createExerciseCmd(),
		updateExerciseCmd(),
		deleteExerciseCmd(),
	)
	return cmd
}

// dashboard restores the stored session and opens the dashboard as that user
func dashboard(cmd *cobra.Command) (*instructor.Dashboard, error) {
	a := appFrom(cmd)
	if a.client.Demo() {
		return nil, errors.New("the instructor dashboard is not available in demo mode")
	}
	a.restoreSession(cmd.Context())
	d := instructor.New(a.client, a.authCtx, a.logger)
	return d, nil
}

// guardError turns a refused dashboard into advice
func guardError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		return fmt.Errorf("%w: run `chatsql login` first", err)
	case errors.Is(err, domain.ErrForbidden):
		return fmt.Errorf("%w: instructor role required", err)
	default:
		return err
	}
}

func runOverview(cmd *cobra.Command) error {
	d, err := dashboard(cmd)
	if err != nil {
		return err
	}
	ov, err := d.Overview(cmd.Context())
	if err != nil {
		return guardError(err)
	}

	w := cmd.OutOrStdout()
	if ov.Message != "" {
		fmt.Fprintln(w, styles.Error.Render(ov.Message))
		return nil
	}
	printTable(w, []string{"Students", "Exercises", "Submissions", "Completion"}, [][]string{{
		strconv.Itoa(ov.Stats.TotalStudents),
		strconv.Itoa(ov.Stats.TotalExercises),
		strconv.Itoa(ov.Stats.TotalSubmissions),
		fmt.Sprintf("%.1f%%", ov.Stats.AverageCompletionRate),
	}})
	if len(ov.Activity) == 0 {
		return nil
	}
	fmt.Fprintln(w, styles.Title.Render("Recent activity"))
	rows := make([][]string, 0, len(ov.Activity))
	for _, act := range ov.Activity {
		rows = append(rows, []string{act.Date, act.User, act.Action, string(act.Status)})
	}
	printTable(w, []string{"Date", "User", "Action", "Status"}, rows)
	return nil
}

func studentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "students",
		Short: "List students, optionally filtered by username or email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			search, _ := cmd.Flags().GetString("search")
			d, err := dashboard(cmd)
			if err != nil {
				return err
			}
			list, err := d.Students(cmd.Context(), search)
			if err != nil {
				return guardError(err)
			}

			w := cmd.OutOrStdout()
			if list.Message != "" {
				fmt.Fprintln(w, styles.Error.Render(list.Message))
				return nil
			}
			rows := make([][]string, 0, len(list.Students))
			for _, s := range list.Students {
				last := "-"
				if s.LastLogin != nil {
					last = *s.LastLogin
				}
				rows = append(rows, []string{
					strconv.FormatInt(s.ID, 10), s.StudentID, s.Username, s.Email,
					strconv.Itoa(s.SubmissionsCount), last,
				})
			}
			printTable(w, []string{"ID", "Student", "Username", "Email", "Submissions", "Last login"}, rows)
			fmt.Fprintln(w, styles.Muted.Render(fmt.Sprintf("%d of %d", len(list.Students), list.Total)))
			return nil
		},
	}
	cmd.Flags().StringP("search", "s", "", "Match username or email")
	return cmd
}

func studentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "student <id>",
		Short: "Show one student's submissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: student id %q", domain.ErrInvalidInput, args[0])
			}
			d, err := dashboard(cmd)
			if err != nil {
				return err
			}
			view, err := d.Student(cmd.Context(), id)
			if err != nil {
				return guardError(err)
			}

			w := cmd.OutOrStdout()
			if view.Message != "" {
				fmt.Fprintln(w, styles.Error.Render(view.Message))
				return nil
			}
			s := view.Detail
			fmt.Fprintf(w, "%s  %s\n", styles.Title.Render(s.Username), styles.Muted.Render(s.StudentID+"  "+s.Email))
			fmt.Fprintln(w, styles.Muted.Render("Joined "+s.DateJoined))
			rows := make([][]string, 0, len(s.Submissions))
			for _, sub := range s.Submissions {
				rows = append(rows, []string{sub.CreatedAt, sub.ExerciseTitle, string(sub.Status)})
			}
			printTable(w, []string{"Submitted", "Exercise", "Status"}, rows)
			return nil
		},
	}
}

func managedExercisesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exercises",
		Short: "List the exercises you manage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := dashboard(cmd)
			if err != nil {
				return err
			}
			list, err := d.Exercises(cmd.Context())
			if err != nil {
				return guardError(err)
			}

			w := cmd.OutOrStdout()
			if list.Message != "" {
				fmt.Fprintln(w, styles.Error.Render(list.Message))
				return nil
			}
			rows := make([][]string, 0, len(list.Exercises))
			for _, ex := range list.Exercises {
				created := "-"
				if ex.CreatedAt != nil {
					created = *ex.CreatedAt
				}
				rows = append(rows, []string{
					strconv.FormatInt(ex.ID, 10), ex.Title, ex.Difficulty, ex.Tag, ex.DatabaseName, created,
				})
			}
			printTable(w, []string{"ID", "Title", "Difficulty", "Tag", "Database", "Created"}, rows)
			return nil
		},
	}
}

func createExerciseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an exercise",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			draft := instructor.NewDraft()
			f := cmd.Flags()
			draft.Title, _ = f.GetString("title")
			draft.Description, _ = f.GetString("description")
			if f.Changed("difficulty") {
				draft.Difficulty, _ = f.GetString("difficulty")
			}
			draft.AnswerQuery, _ = f.GetString("answer")
			if f.Changed("initial") {
				draft.InitialQuery, _ = f.GetString("initial")
			}
			if f.Changed("schema") {
				draft.SchemaID, _ = f.GetInt64("schema")
			}

			d, err := dashboard(cmd)
			if err != nil {
				return err
			}
			res, err := d.Create(cmd.Context(), draft)
			if err != nil {
				return guardError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), styles.Success.Render(
				i18n.Td(cmd.Context(), i18n.MsgExerciseCreated, map[string]any{"Title": draft.Title}),
			)+" "+styles.Muted.Render(fmt.Sprintf("(id %d)", res.ID)))
			return nil
		},
	}
	f := cmd.Flags()
	f.String("title", "", "Exercise title")
	f.String("description", "", "Exercise description")
	f.String("difficulty", "", "Difficulty (easy, medium, hard)")
	f.String("answer", "", "Solution query used for grading")
	f.String("initial", "", "Starter query shown in the editor")
	f.Int64("schema", 0, "Database schema id")
	return cmd
}

func updateExerciseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change an exercise; only the given flags are sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var upd domain.ExerciseUpdate
			f := cmd.Flags()
			changed := func(name string) *string {
				if !f.Changed(name) {
					return nil
				}
				v, _ := f.GetString(name)
				return &v
			}
			upd.Title = changed("title")
			upd.Description = changed("description")
			upd.Difficulty = changed("difficulty")
			upd.ExpectedSQL = changed("answer")
			if upd.IsEmpty() {
				return domain.ErrNothingToUpdate
			}

			d, err := dashboard(cmd)
			if err != nil {
				return err
			}
			res, err := d.Update(cmd.Context(), id, upd)
			if err != nil {
				return guardError(err)
			}
			msg := res.Message
			if msg == "" {
				msg = fmt.Sprintf("Exercise %d updated.", id)
			}
			fmt.Fprintln(cmd.OutOrStdout(), styles.Success.Render(msg))
			return nil
		},
	}
	f := cmd.Flags()
	f.String("title", "", "New title")
	f.String("description", "", "New description")
	f.String("difficulty", "", "New difficulty")
	f.String("answer", "", "New solution query")
	return cmd
}

func deleteExerciseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an exercise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			d, err := dashboard(cmd)
			if err != nil {
				return err
			}
			if _, err := d.Delete(cmd.Context(), id); err != nil {
				return guardError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), styles.Success.Render(i18n.T(cmd.Context(), i18n.MsgExerciseDeleted)))
			return nil
		},
	}
}
