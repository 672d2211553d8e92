package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/chatsql/internal/assistant"
	"github.com/felixgeelhaar/chatsql/internal/domain"
	"github.com/felixgeelhaar/chatsql/internal/history"
	"github.com/felixgeelhaar/chatsql/internal/i18n"
)

func askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <id> <message...>",
		Short: "Ask the AI tutor about an exercise",
		Long: `Ask the AI tutor about an exercise. The query given with --query or
--file is sent along as context, together with your past submissions when
you are logged in.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			query, err := queryFromFlags(cmd)
			if err != nil {
				return err
			}

			a := appFrom(cmd)
			ctx := cmd.Context()
			a.restoreSession(ctx)

			conv := assistant.New(a.client, a.events, a.logger)
			conv.Bind(ctx, id)
			if err := conv.Send(ctx, strings.Join(args[1:], " "), assistant.EditorContext{Query: query}); err != nil {
				return err
			}

			msgs := conv.Messages()
			if len(msgs) == 0 {
				return nil
			}
			printReply(cmd, msgs[len(msgs)-1])
			return nil
		},
	}
	addQueryFlags(cmd)
	return cmd
}

func printReply(cmd *cobra.Command, msg domain.ChatMessage) {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, renderMarkdown(msg.Text, 80))
	if msg.SQLQuery != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, styles.Code.Render(msg.SQLQuery))
	}
	if msg.Executed && msg.QueryResult != nil {
		printQueryResult(cmd, msg.QueryResult)
	}
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show your past submissions for an exercise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a := appFrom(cmd)
			ctx := cmd.Context()
			a.restoreSession(ctx)

			res := history.New(a.client, a.logger).Load(ctx, id)
			w := cmd.OutOrStdout()
			if res.Failed() {
				fmt.Fprintln(w, styles.Error.Render(res.Message))
				return nil
			}
			if len(res.Submissions) == 0 {
				fmt.Fprintln(w, styles.Muted.Render(i18n.T(ctx, i18n.MsgHistoryEmpty)))
				return nil
			}

			rows := make([][]string, 0, len(res.Submissions))
			for _, s := range res.Submissions {
				status := styles.Success.Render(string(s.Status))
				if s.Status != domain.SubmissionCorrect {
					status = styles.Error.Render(string(s.Status))
				}
				rows = append(rows, []string{s.CreatedAt, status, oneLine(s.Query, 60)})
			}
			printTable(w, []string{"Submitted", "Status", "Query"}, rows)
			return nil
		},
	}
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
