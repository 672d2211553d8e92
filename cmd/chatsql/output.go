package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/chatsql/internal/domain"
	"github.com/felixgeelhaar/chatsql/internal/i18n"
	"github.com/felixgeelhaar/chatsql/internal/tui"
)

var styles = tui.DefaultStyles()

// printTable writes rows under headers with a light border
func printTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styles.Muted).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.TableHeader.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	fmt.Fprintln(w, t.Render())
}

func printQueryResult(cmd *cobra.Command, r *domain.QueryResult) {
	w := cmd.OutOrStdout()
	if r.Failed() {
		fmt.Fprintln(w, styles.Error.Render(r.Error))
		return
	}
	if len(r.Columns) > 0 {
		printTable(w, r.Columns, cells(r.Rows))
	}
	meta := i18n.Tp(cmd.Context(), i18n.MsgRowsReturned, r.RowCount)
	if r.ExecutionTime > 0 {
		meta += fmt.Sprintf(" (%.0fms)", r.ExecutionTime)
	}
	fmt.Fprintln(w, styles.Muted.Render(meta))
}

func printSubmitResult(cmd *cobra.Command, r *domain.SubmitResult) {
	w := cmd.OutOrStdout()
	verdict := styles.Success.Render(i18n.T(cmd.Context(), i18n.MsgCorrect))
	if !r.Correct {
		verdict = styles.Error.Render(i18n.T(cmd.Context(), i18n.MsgIncorrect))
	}
	fmt.Fprintln(w, strings.TrimSpace(verdict+" "+r.Message))
	if r.Feedback != "" {
		fmt.Fprintln(w, styles.Muted.Render(r.Feedback))
	}
	if !r.Correct && r.ExpectedResult != nil && len(r.ExpectedResult.Columns) > 0 {
		fmt.Fprintln(w, "Expected:")
		printTable(w, r.ExpectedResult.Columns, cells(r.ExpectedResult.Rows))
	}
}

func cells(rows [][]any) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = formatCell(v)
		}
	}
	return out
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// renderMarkdown renders assistant replies and descriptions for the terminal
func renderMarkdown(text string, wrap int) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(wrap))
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: exercise id %q", domain.ErrInvalidInput, s)
	}
	return id, nil
}
