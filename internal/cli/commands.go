package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/ito-server/internal/client"
	"github.com/vovakirdan/ito-server/internal/ito"
	"github.com/vovakirdan/ito-server/internal/session"
)

func newCreateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a room and join it as its owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !e.sess.State().Empty() {
				return errInRoom
			}
			if err := e.confirm(cmd, fmt.Sprintf("「%s」で登録しますか?", args[0])); err != nil {
				return err
			}
			ctx := cmd.Context()

			created, err := e.api.CreateRoom(ctx)
			if err != nil {
				return err
			}
			joined, err := e.api.Join(ctx, created.RoomID, args[0], created.OwnerToken)
			if err != nil {
				return err
			}
			err = e.sess.Update(func(s *session.State) {
				*s = session.State{
					RoomID:       created.RoomID,
					URName:       joined.Name,
					URNum:        joined.Num,
					IsOwner:      true,
					UserGameStep: joined.Step,
					Token:        joined.Token,
					OwnerToken:   created.OwnerToken,
				}
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "room %s created, share the id with your friends\n", created.RoomID)
			return nil
		},
	}
}

func newJoinCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "join <room>",
		Short: "Enter an existing room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !e.sess.State().Empty() {
				return errInRoom
			}
			roomID := strings.TrimSpace(args[0])
			if err := ito.ValidateRoomID(roomID); err != nil {
				return err
			}
			exists, err := e.api.RoomExists(cmd.Context(), roomID)
			if err != nil {
				return err
			}
			if !exists {
				return ito.ErrRoomNotFound
			}
			if err := e.sess.Update(func(s *session.State) { *s = session.State{RoomID: roomID} }); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "entered room %s, now pick a name with `itoctl name <name>`\n", roomID)
			return nil
		},
	}
}

func newNameCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "name <name>",
		Short: "Register your display name in the room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := e.requireRoom()
			if err != nil {
				return err
			}
			if st.URName != "" {
				return fmt.Errorf("already registered as %s", st.URName)
			}
			if err := e.confirm(cmd, fmt.Sprintf("「%s」で登録しますか?", args[0])); err != nil {
				return err
			}
			joined, err := e.api.Join(cmd.Context(), st.RoomID, args[0], "")
			if err != nil {
				return err
			}
			err = e.sess.Update(func(s *session.State) {
				s.URName = joined.Name
				s.URNum = joined.Num
				s.UserGameStep = joined.Step
				s.Token = joined.Token
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "joined room %s as %s\n", st.RoomID, joined.Name)
			return nil
		},
	}
}

// advanceCmd builds an owner command that only works from the given steps.
func advanceCmd(e *env, use, short, question string, from ...ito.GameStep) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := e.requirePlayer()
			if err != nil {
				return err
			}
			if !st.IsOwner {
				return ito.ErrNotOwner
			}
			ctx := cmd.Context()
			view, err := e.refresh(ctx)
			if err != nil {
				return err
			}
			if view == nil {
				return ito.ErrRoomNotFound
			}
			if !stepIn(view.Step, from) {
				return ito.ErrWrongStep
			}
			if err := e.confirm(cmd, question); err != nil {
				return err
			}
			step, err := e.api.Advance(ctx, st.RoomID, st.Token, view.Step)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "room is now at %s\n", step)
			return nil
		},
	}
}

func stepIn(step ito.GameStep, steps []ito.GameStep) bool {
	for _, s := range steps {
		if s == step {
			return true
		}
	}
	return false
}

func newStartCmd(e *env) *cobra.Command {
	return advanceCmd(e, "start", "Start the game (owner)", "ゲームを開始しますか?", ito.StepWaiting)
}

func newNextCmd(e *env) *cobra.Command {
	return advanceCmd(e, "next", "Move on once everybody is ready (owner)", "次へ進みますか?", ito.StepOpenNumber, ito.StepChoiceWord)
}

func newRevealCmd(e *env) *cobra.Command {
	return advanceCmd(e, "reveal", "Show the answer (owner)", "答えを表示しますか?", ito.StepPredictOrder)
}

func newSeeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "see",
		Short: "Look at your number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var num int
			err := e.playerWrite(ctx, ito.UserOpenedNumber, func(st session.State) error {
				n, err := e.api.SeeNumber(ctx, st.RoomID, st.Token)
				num = n
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "your number is %d\n", num)
			return nil
		},
	}
}

func newWordCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "word <word...>",
		Short: "Describe your number with a word",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			word := strings.Join(args, " ")
			if err := e.confirm(cmd, fmt.Sprintf("「%s」を送信しますか?", word)); err != nil {
				return err
			}
			err := e.playerWrite(ctx, ito.UserChoicedWord, func(st session.State) error {
				return e.api.SendWord(ctx, st.RoomID, st.Token, word)
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "word sent")
			return nil
		},
	}
}

func newGuessCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "guess <position>",
		Short: "Predict your position, counting 1 from the smallest number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prenum, err := strconv.Atoi(args[0])
			if err != nil {
				return ito.ErrInvalidGuess
			}
			st, err := e.requirePlayer()
			if err != nil {
				return err
			}
			if err := e.api.SubmitGuess(cmd.Context(), st.RoomID, st.Token, prenum); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "guess %d recorded\n", prenum)
			return nil
		},
	}
}

func newChatCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <message...>",
		Short: "Say something to the room",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := e.requirePlayer()
			if err != nil {
				return err
			}
			return e.api.Chat(cmd.Context(), st.RoomID, st.Token, strings.Join(args, " "))
		},
	}
}

func newQuitCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "quit",
		Short: "Close the room after the answer (owner)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := e.requirePlayer()
			if err != nil {
				return err
			}
			if !st.IsOwner {
				return ito.ErrNotOwner
			}
			if err := e.confirm(cmd, "ゲームを終了しますか?"); err != nil {
				return err
			}
			if err := e.api.QuitGame(cmd.Context(), st.RoomID, st.Token); err != nil {
				return err
			}
			if err := e.sess.Reset(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "room closed")
			return nil
		},
	}
}

func newLogOutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Leave the room",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := e.sess.State()
			if st.Empty() {
				return errNoRoom
			}
			if err := e.confirm(cmd, "退出しますか?"); err != nil {
				return err
			}
			if st.Token != "" {
				deleted, err := e.api.LogOut(cmd.Context(), st.RoomID, st.Token)
				if err != nil && !errors.Is(err, ito.ErrRoomNotFound) && !errors.Is(err, ito.ErrPlayerNotFound) {
					return err
				}
				if deleted {
					fmt.Fprintln(cmd.OutOrStdout(), "you were the last player, the room was deleted")
				}
			}
			return e.sess.Reset()
		},
	}
}

func newStatusCmd(e *env) *cobra.Command {
	var reveal []int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the room and what you can do next",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := e.requireRoom(); err != nil {
				return err
			}
			view, err := e.refresh(cmd.Context())
			if err != nil {
				return err
			}
			if view == nil {
				return ito.ErrRoomNotFound
			}
			rs := ito.RevealSet{}
			for _, row := range reveal {
				rs.Toggle(row)
			}
			printRoom(cmd, e.sess.State(), view.Room, rs)
			return nil
		},
	}
	cmd.Flags().IntSliceVar(&reveal, "reveal", nil, "answer rows to reveal, e.g. --reveal 1,2")
	return cmd
}

func newWatchCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the room live",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := e.requireRoom()
			if err != nil {
				return err
			}
			return e.watch(cmd.Context(), st.RoomID, func(room *ito.Room) {
				if room == nil {
					fmt.Fprintln(cmd.OutOrStdout(), ito.Notice(ito.ErrRoomNotFound))
					return
				}
				printRoom(cmd, e.sess.State(), *room, ito.RevealSet{})
			})
		},
	}
}

// watch applies every pushed snapshot to the session and stops once the
// room or this player is gone.
func (e *env) watch(ctx context.Context, roomID string, show func(*ito.Room)) error {
	return e.api.Watch(ctx, roomID, func(room *ito.Room) error {
		if err := e.sess.ApplySnapshot(room); err != nil {
			return err
		}
		show(room)
		if room == nil || e.sess.State().Empty() {
			return client.ErrStopWatch
		}
		return nil
	})
}
