package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/chatsql/internal/browse"
	"github.com/felixgeelhaar/chatsql/internal/domain"
	"github.com/felixgeelhaar/chatsql/internal/history"
	"github.com/felixgeelhaar/chatsql/internal/i18n"
)

// maxCellWidth caps a rendered table cell
const maxCellWidth = 24

// maxChatRows is how many rows of an assistant query result are shown
const maxChatRows = 3

func renderFilters(ctx context.Context, st Styles, snap browse.Snapshot) string {
	var diffs []string
	for _, d := range domain.Difficulties {
		style := st.Chip
		if d == snap.Filter.Difficulty {
			style = st.ActiveChip
		}
		diffs = append(diffs, style.Render(d.Label()))
	}

	tags := []string{chip(st, i18n.T(ctx, i18n.MsgAllTags), snap.Filter.Tag == "")}
	for _, t := range snap.Tags {
		tags = append(tags, chip(st, t, t == snap.Filter.Tag))
	}

	return strings.Join(diffs, "") + "\n" + strings.Join(tags, "")
}

func chip(st Styles, label string, active bool) string {
	if active {
		return st.ActiveChip.Render(label)
	}
	return st.Chip.Render(label)
}

func renderExerciseList(ctx context.Context, st Styles, snap browse.Snapshot, cursor, width int) string {
	var b strings.Builder
	b.WriteString(renderFilters(ctx, st, snap))
	b.WriteString("\n\n")

	if snap.Loading && len(snap.Exercises) == 0 {
		b.WriteString(st.Muted.Render(i18n.T(ctx, i18n.MsgLoading)))
		return b.String()
	}

	for i, ex := range snap.Exercises {
		line := fmt.Sprintf("%d. %s", ex.ID, ex.Title)
		line = truncate(line, width-4)
		switch {
		case i == cursor:
			line = st.Cursor.Render(line)
		case snap.HasSelection && ex.ID == snap.SelectedID:
			line = st.Selected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("  ")
		b.WriteString(st.Difficulty(string(ex.Difficulty)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(st.Muted.Render(i18n.Tp(ctx, i18n.MsgExercisesCount, len(snap.Exercises))))
	return b.String()
}

func renderExercise(ctx context.Context, st Styles, ex *domain.Exercise, loading bool) string {
	if ex == nil {
		if loading {
			return st.Muted.Render(i18n.T(ctx, i18n.MsgLoading))
		}
		return st.Muted.Render(i18n.T(ctx, i18n.MsgSelectExercise))
	}

	var b strings.Builder
	b.WriteString(st.Title.Render(ex.Title))
	b.WriteString("  ")
	b.WriteString(st.Difficulty(string(ex.Difficulty)))
	if ex.Schema.DisplayName != "" {
		b.WriteString(st.Muted.Render("  [" + ex.Schema.DisplayName + "]"))
	}
	b.WriteString("\n")
	b.WriteString(ex.Description)
	for _, h := range ex.Hints {
		b.WriteString("\n")
		b.WriteString(st.Muted.Render(fmt.Sprintf("hint %d: %s", h.Level, h.Text)))
	}
	return b.String()
}

// renderTable lays out columns and rows as fixed-width text
func renderTable(st Styles, columns []string, rows [][]any, limit int) string {
	if len(columns) == 0 {
		return ""
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = lipgloss.Width(c)
	}
	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, len(columns))
		for i := range columns {
			v := ""
			if i < len(row) {
				v = truncate(formatCell(row[i]), maxCellWidth)
			}
			cells[r][i] = v
			if w := lipgloss.Width(v); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = pad(c, widths[i])
	}
	b.WriteString(st.TableHeader.Render(strings.Join(header, " | ")))
	b.WriteString("\n")
	for _, row := range cells {
		line := make([]string, len(row))
		for i, v := range row {
			line[i] = pad(v, widths[i])
		}
		b.WriteString(strings.Join(line, " | "))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}

func renderResult(ctx context.Context, st Styles, r *domain.QueryResult) string {
	if r == nil {
		return ""
	}
	if r.Failed() {
		return st.Error.Render(r.Error)
	}

	var b strings.Builder
	b.WriteString(renderTable(st, r.Columns, r.Rows, 0))
	b.WriteString("\n")
	meta := i18n.Tp(ctx, i18n.MsgRowsReturned, r.RowCount)
	if r.ExecutionTime > 0 {
		meta += fmt.Sprintf(" · %.0fms", r.ExecutionTime)
	}
	b.WriteString(st.Muted.Render(meta))
	return b.String()
}

func renderSubmit(ctx context.Context, st Styles, r *domain.SubmitResult) string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	if r.Correct {
		b.WriteString(st.Success.Render(i18n.T(ctx, i18n.MsgCorrect)))
	} else {
		b.WriteString(st.Error.Render(i18n.T(ctx, i18n.MsgIncorrect)))
	}
	if r.Message != "" {
		b.WriteString(" ")
		b.WriteString(r.Message)
	}
	if r.Feedback != "" {
		b.WriteString("\n")
		b.WriteString(st.Muted.Render(r.Feedback))
	}
	if r.ExpectedResult != nil && !r.Correct {
		b.WriteString("\n")
		b.WriteString(renderTable(st, r.ExpectedResult.Columns, r.ExpectedResult.Rows, maxChatRows))
	}
	return b.String()
}

func renderMessages(st Styles, renderer *glamour.TermRenderer, msgs []domain.ChatMessage, width int) string {
	var b strings.Builder
	for _, m := range msgs {
		if m.Who == domain.SpeakerUser {
			b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Right, st.UserBubble.Render(m.Text)))
			b.WriteString("\n\n")
			continue
		}

		var body strings.Builder
		body.WriteString(renderMarkdown(renderer, m.Text))
		if m.SQLQuery != "" {
			body.WriteString("\n")
			body.WriteString(st.Code.Render(m.SQLQuery))
		}
		if m.Executed && m.QueryResult != nil && m.QueryResult.RowCount > 0 {
			body.WriteString("\n")
			body.WriteString(renderTable(st, m.QueryResult.Columns, m.QueryResult.Rows, maxChatRows))
		}
		b.WriteString(st.AIBubble.Render(body.String()))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderMarkdown(renderer *glamour.TermRenderer, text string) string {
	if renderer == nil {
		return text
	}
	out, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

func renderHistory(ctx context.Context, st Styles, res *history.Result) string {
	if res == nil {
		return ""
	}
	if res.Failed() {
		return st.Error.Render(res.Message)
	}
	if len(res.Submissions) == 0 {
		return st.Muted.Render(i18n.T(ctx, i18n.MsgHistoryEmpty))
	}

	var b strings.Builder
	for _, s := range res.Submissions {
		status := st.Error.Render(string(s.Status))
		if s.Status == domain.SubmissionCorrect {
			status = st.Success.Render(string(s.Status))
		}
		fmt.Fprintf(&b, "%s  %s  %s\n", st.Muted.Render(s.CreatedAt), status, truncate(oneLine(s.Query), 48))
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	if n <= 3 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func pad(s string, w int) string {
	if gap := w - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
