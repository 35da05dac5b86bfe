package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/ito-server/internal/ito"
	"github.com/vovakirdan/ito-server/internal/session"
)

func printRoom(cmd *cobra.Command, st session.State, room ito.Room, reveal ito.RevealSet) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "room %s  step %s  owner %s\n", st.RoomID, room.Step, room.Owner)
	if room.Step == ito.StepShowAnswer {
		printAnswer(out, ito.BuildAnswer(room), reveal)
	} else {
		printPlayers(out, room, st.URName)
	}

	if st.URName != "" {
		line := "you: " + st.URName
		if st.UserGameStep >= ito.UserOpenedNumber {
			line += fmt.Sprintf("  number %d", st.URNum)
		}
		if st.Pending() {
			line += "  (sending...)"
		}
		fmt.Fprintln(out, line)
	}

	actions := ito.Actions(room, st.URName)
	if len(actions) > 0 {
		names := make([]string, len(actions))
		for i, a := range actions {
			names[i] = string(a)
		}
		fmt.Fprintf(out, "actions: %s\n", strings.Join(names, ", "))
	}

	for _, c := range room.Chat {
		fmt.Fprintf(out, "  <%s> %s\n", c.Name, c.Message)
	}
}

func printPlayers(out io.Writer, room ito.Room, viewer string) {
	names := make([]string, 0, len(room.Players))
	for name := range room.Players {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, name := range names {
		rec := room.Players[name]
		marker := " "
		if name == viewer {
			marker = "*"
		}
		word := rec.Word
		if word == "" {
			word = "-"
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%s\n", marker, name, rec.Step, word)
	}
	tw.Flush()
}

// printAnswer shows the predicted order next to the real one. Rows of the
// real order only show their rank until revealed.
func printAnswer(out io.Writer, answer ito.Answer, reveal ito.RevealSet) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "predicted\tname\tword")
	for _, row := range answer.ByPrenum {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", row.Prenum, row.Name, row.Word)
	}
	fmt.Fprintln(tw, "rank\tname\tword\tnumber")
	all := true
	for _, row := range answer.ByNum {
		if !reveal.Revealed(row.Rank) {
			all = false
			fmt.Fprintf(tw, "%d\t?\t?\t?\n", row.Rank)
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", row.Rank, row.Name, row.Word, row.Num)
	}
	tw.Flush()

	if !all {
		return
	}
	for i := range answer.ByPrenum {
		if answer.ByPrenum[i].Name != answer.ByNum[i].Name {
			fmt.Fprintln(out, "残念! the order was wrong")
			return
		}
	}
	fmt.Fprintln(out, "成功! everybody lined up correctly")
}
