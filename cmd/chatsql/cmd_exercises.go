package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gosimple/slug"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/chatsql/internal/domain"
	"github.com/felixgeelhaar/chatsql/internal/editor"
	"github.com/felixgeelhaar/chatsql/internal/i18n"
)

func exercisesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "exercises",
		Aliases: []string{"ls"},
		Short:   "List exercises, optionally filtered by difficulty and tag",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			diffFlag, _ := cmd.Flags().GetString("difficulty")
			tag, _ := cmd.Flags().GetString("tag")

			diff, err := domain.ParseDifficulty(diffFlag)
			if err != nil {
				return err
			}
			f := domain.Filter{}.WithDifficulty(diff).WithTag(tag)

			exercises, err := a.client.Exercises(cmd.Context(), f)
			if err != nil {
				return fmt.Errorf("list exercises: %w", err)
			}

			w := cmd.OutOrStdout()
			if a.client.Demo() {
				fmt.Fprintln(w, styles.Banner.Render(i18n.T(cmd.Context(), i18n.MsgDemoBanner)))
			}
			rows := make([][]string, 0, len(exercises))
			for _, ex := range exercises {
				rows = append(rows, []string{
					strconv.FormatInt(ex.ID, 10),
					ex.Title,
					styles.Difficulty(string(ex.Difficulty)),
					strings.Join(ex.Tags, ", "),
				})
			}
			printTable(w, []string{"ID", "Title", "Difficulty", "Tags"}, rows)
			fmt.Fprintln(w, styles.Muted.Render(i18n.Tp(cmd.Context(), i18n.MsgExercisesCount, len(exercises))))
			return nil
		},
	}
	cmd.Flags().StringP("difficulty", "d", "", "Difficulty (all, easy, medium, hard)")
	cmd.Flags().StringP("tag", "t", "", "Only exercises carrying this tag")
	return cmd
}

func tagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List the tags exercises can be filtered by",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			exercises, err := appFrom(cmd).client.Exercises(cmd.Context(), domain.Filter{})
			if err != nil {
				return fmt.Errorf("list exercises: %w", err)
			}
			for _, tag := range domain.TagVocabulary(exercises) {
				fmt.Fprintln(cmd.OutOrStdout(), tag)
			}
			return nil
		},
	}
}

func schemasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schemas",
		Short: "List the sandbox databases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schemas, err := appFrom(cmd).client.Schemas(cmd.Context())
			if err != nil {
				return fmt.Errorf("list schemas: %w", err)
			}
			rows := make([][]string, 0, len(schemas))
			for _, s := range schemas {
				rows = append(rows, []string{
					strconv.FormatInt(s.ID, 10),
					s.DisplayName,
					s.Description,
					strconv.Itoa(s.ExerciseCount),
				})
			}
			printTable(cmd.OutOrStdout(), []string{"ID", "Name", "Description", "Exercises"}, rows)
			return nil
		},
	}
}

func exerciseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exercise <id>",
		Short: "Show an exercise with its description and hints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a := appFrom(cmd)
			ex, err := a.client.Exercise(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("load exercise %d: %w", id, err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s  %s\n", styles.Title.Render(ex.Title), styles.Difficulty(string(ex.Difficulty)))
			if ex.Schema.DisplayName != "" {
				fmt.Fprintln(w, styles.Muted.Render("Database: "+ex.Schema.DisplayName))
			}
			if len(ex.Tags) > 0 {
				fmt.Fprintln(w, styles.Muted.Render("Tags: "+strings.Join(ex.Tags, ", ")))
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, renderMarkdown(ex.Description, 80))
			for _, h := range ex.Hints {
				fmt.Fprintf(w, "Hint %d: %s\n", h.Level, h.Text)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, styles.Code.Render(ex.StarterQuery()))
			return nil
		},
	}
}

func pullCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull <id>",
		Short: "Write an exercise's starter query to a local .sql file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a := appFrom(cmd)
			dir, _ := cmd.Flags().GetString("dir")
			force, _ := cmd.Flags().GetBool("force")
			if dir == "" {
				dir = a.cfg.Workspace.Dir
			}
			if dir == "" {
				dir = "."
			}

			ex, err := a.client.Exercise(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("load exercise %d: %w", id, err)
			}

			path := filepath.Join(dir, fmt.Sprintf("%d-%s.sql", ex.ID, slug.Make(ex.Title)))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(sqlFile(ex)), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().String("dir", "", "Target directory (default workspace.dir or .)")
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}

// sqlFile renders an exercise as a commented .sql file
func sqlFile(ex *domain.Exercise) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- %d. %s (%s)\n", ex.ID, ex.Title, ex.Difficulty.Label())
	for _, line := range strings.Split(strings.TrimSpace(ex.Description), "\n") {
		b.WriteString("-- " + line + "\n")
	}
	b.WriteString("\n")
	b.WriteString(ex.StarterQuery())
	b.WriteString("\n")
	return b.String()
}

// readQuery loads a .sql file, dropping full-line comments
func readQuery(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("query", "q", "", "SQL to use instead of the starter query")
	cmd.Flags().StringP("file", "f", "", "Read the SQL from a file")
}

// queryFromFlags returns the SQL given by --query or --file, or "" for neither
func queryFromFlags(cmd *cobra.Command) (string, error) {
	query, _ := cmd.Flags().GetString("query")
	file, _ := cmd.Flags().GetString("file")
	switch {
	case query != "" && file != "":
		return "", errors.New("use either --query or --file, not both")
	case file != "":
		q, err := readQuery(file)
		if err != nil {
			return "", fmt.Errorf("read query: %w", err)
		}
		return q, nil
	default:
		return query, nil
	}
}

// loadEditor opens exercise id in a fresh editor and applies the flag query
func loadEditor(cmd *cobra.Command, id int64) (*editor.Session, error) {
	a := appFrom(cmd)
	query, err := queryFromFlags(cmd)
	if err != nil {
		return nil, err
	}

	ed := editor.New(a.client, a.events, a.logger)
	ed.Load(cmd.Context(), id)
	if ed.Snapshot().Exercise == nil {
		return nil, fmt.Errorf("%w: %d", domain.ErrExerciseNotListed, id)
	}
	if query != "" {
		ed.SetQuery(query)
	}
	return ed, nil
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <id>",
		Short: "Run a query against an exercise's database without grading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ed, err := loadEditor(cmd, id)
			if err != nil {
				return err
			}
			return execute(cmd, ed)
		},
	}
	addQueryFlags(cmd)
	return cmd
}

func execute(cmd *cobra.Command, ed *editor.Session) error {
	if err := ed.Execute(cmd.Context()); err != nil {
		return err
	}
	snap := ed.Snapshot()
	if snap.Result == nil {
		return errors.New("query could not be executed")
	}
	printQueryResult(cmd, snap.Result)
	if snap.Result.Failed() {
		return errors.New("query failed")
	}
	return nil
}

func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <id>",
		Short: "Submit a query for grading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			appFrom(cmd).restoreSession(cmd.Context())

			ed, err := loadEditor(cmd, id)
			if err != nil {
				return err
			}
			if err := ed.Submit(cmd.Context()); err != nil {
				return err
			}
			res := ed.Snapshot().SubmitResult
			if res == nil {
				return errors.New("submission could not be graded")
			}
			printSubmitResult(cmd, res)
			if !res.Correct {
				return errors.New("incorrect answer")
			}
			return nil
		},
	}
	addQueryFlags(cmd)
	return cmd
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <id> <file>",
		Short: "Re-run a .sql file against an exercise every time it is saved",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			path, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}
			debounce, _ := cmd.Flags().GetDuration("debounce")
			return watch(cmd, id, path, debounce)
		},
	}
	cmd.Flags().Duration("debounce", 200*time.Millisecond, "Wait this long after the last write before running")
	return cmd
}

func watch(cmd *cobra.Command, id int64, path string, debounce time.Duration) error {
	a := appFrom(cmd)
	ctx := cmd.Context()

	ed := editor.New(a.client, a.events, a.logger)
	ed.Load(ctx, id)
	if ed.Snapshot().Exercise == nil {
		return fmt.Errorf("%w: %d", domain.ErrExerciseNotListed, id)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file on save, so watch the directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	runFile := func() {
		q, err := readQuery(path)
		if err != nil {
			a.logger.Warn("read query file", "path", path, "error", err)
			return
		}
		ed.SetQuery(q)
		fmt.Fprintln(cmd.OutOrStdout(), styles.Muted.Render(time.Now().Format("15:04:05")+" "+filepath.Base(path)))
		if err := execute(cmd, ed); err != nil {
			a.logger.Debug("watched query failed", "error", err)
		}
	}
	runFile()

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watch error", "error", err)
		case <-timer.C:
			runFile()
		}
	}
}
