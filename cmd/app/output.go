package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/anihangout/hangout/internal/domain"
)

var stdout io.Writer = os.Stdout

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(b))
	return err
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(stdout, "no results")
		return
	}
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func uintToString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func formatMaybeUint(v *uint) string {
	if v == nil {
		return "-"
	}
	return uintToString(*v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

// clip shortens s to n runes on one line for table cells.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

func printChannels(items []domain.Channel) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			uintToString(item.ID),
			item.Name,
			item.Kind,
			clip(item.Description, 40),
		})
	}
	printTable([]string{"ID", "NAME", "KIND", "DESCRIPTION"}, rows)
}

func printMessages(items []domain.Message) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		body := clip(item.Body, 60)
		switch {
		case item.Deleted:
			body = "(deleted)"
		case item.EditedAt != nil:
			body += " (edited)"
		}
		rows = append(rows, []string{
			uintToString(item.ID),
			item.AuthorUsername,
			body,
			formatReactions(item.Reactions),
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "AUTHOR", "BODY", "REACTIONS", "AT"}, rows)
}

func formatReactions(items []domain.ReactionSummary) string {
	if len(items) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(items))
	for _, r := range items {
		parts = append(parts, r.Emoji+strconv.Itoa(r.Count))
	}
	return strings.Join(parts, " ")
}

func printPosts(items []domain.Post) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			uintToString(item.ID),
			item.AuthorUsername,
			clip(item.Body, 60),
			strconv.Itoa(item.LikeCount),
			strconv.Itoa(item.CommentCount),
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "AUTHOR", "BODY", "LIKES", "COMMENTS", "AT"}, rows)
}

func printUsers(items []domain.User) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			uintToString(item.ID),
			item.Username,
			item.DisplayName,
			item.Status,
		})
	}
	printTable([]string{"ID", "USERNAME", "NAME", "STATUS"}, rows)
}

func printNotifications(items []domain.Notification) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		read := "no"
		if item.ReadAt != nil {
			read = "yes"
		}
		rows = append(rows, []string{
			uintToString(item.ID),
			item.Type,
			clip(item.Message, 60),
			read,
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "TYPE", "MESSAGE", "READ", "AT"}, rows)
}

func printActivity(items []domain.ActivityRecord) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		actor := item.ActorUsername
		if actor == "" {
			actor = formatMaybeUint(item.ActorUserID)
		}
		rows = append(rows, []string{
			uintToString(item.ID),
			item.Action,
			item.TargetType,
			formatMaybeUint(item.TargetID),
			actor,
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "ACTION", "TARGET_TYPE", "TARGET_ID", "ACTOR", "AT"}, rows)
}
