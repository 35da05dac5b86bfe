// Package cli implements itoctl, a terminal client for ito rooms.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/ito-server/internal/client"
	"github.com/vovakirdan/ito-server/internal/ito"
	"github.com/vovakirdan/ito-server/internal/session"
)

const defaultServer = "http://localhost:8080"

var (
	errNoRoom   = errors.New("not in a room: run `itoctl create` or `itoctl join <room>` first")
	errNoName   = errors.New("no name registered: run `itoctl name <name>` first")
	errInRoom   = errors.New("already in a room: run `itoctl logout` first")
	errCanceled = errors.New("canceled")
)

type env struct {
	server      string
	sessionPath string
	yes         bool

	api  *client.Client
	sess *session.Manager
}

// NewRootCmd builds the itoctl command tree.
func NewRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:           "itoctl",
		Short:         "Play ito from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.setup(cmd)
		},
	}

	server := os.Getenv("ITO_SERVER")
	if server == "" {
		server = defaultServer
	}
	pf := root.PersistentFlags()
	pf.StringVar(&e.server, "server", server, "ito server base URL")
	pf.StringVar(&e.sessionPath, "session", "", "session file (default $HOME/.ito/session.json)")
	pf.BoolVarP(&e.yes, "yes", "y", false, "skip confirmation prompts")

	root.AddCommand(
		newCreateCmd(e),
		newJoinCmd(e),
		newNameCmd(e),
		newStartCmd(e),
		newSeeCmd(e),
		newWordCmd(e),
		newNextCmd(e),
		newGuessCmd(e),
		newRevealCmd(e),
		newQuitCmd(e),
		newLogOutCmd(e),
		newStatusCmd(e),
		newWatchCmd(e),
		newChatCmd(e),
	)
	return root
}

// Execute runs itoctl and prints failures the way players expect to see them.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, describe(err))
		return 1
	}
	return 0
}

func describe(err error) string {
	if ito.IsDomainError(err) {
		return client.NoticeOf(err)
	}
	return "error: " + err.Error()
}

// setup opens the session and drops it if its room disappeared meanwhile.
func (e *env) setup(cmd *cobra.Command) error {
	path := e.sessionPath
	if path == "" {
		p, err := session.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	mgr, err := session.NewManager(session.NewFileStore(path))
	if err != nil {
		return err
	}
	e.sess = mgr
	e.api = client.New(e.server)

	_, err = mgr.Rehydrate(cmd.Context(), e.api)
	return err
}

func (e *env) requireRoom() (session.State, error) {
	st := e.sess.State()
	if st.RoomID == "" {
		return st, errNoRoom
	}
	return st, nil
}

func (e *env) requirePlayer() (session.State, error) {
	st, err := e.requireRoom()
	if err != nil {
		return st, err
	}
	if st.URName == "" || st.Token == "" {
		return st, errNoName
	}
	return st, nil
}

// confirm asks a yes/no question unless --yes was given.
func (e *env) confirm(cmd *cobra.Command, question string) error {
	if e.yes {
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", question)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	default:
		return errCanceled
	}
}

// refresh pulls the authoritative room and folds it into the session.
func (e *env) refresh(ctx context.Context) (*client.RoomView, error) {
	st := e.sess.State()
	view, err := e.api.Room(ctx, st.RoomID)
	if errors.Is(err, ito.ErrRoomNotFound) {
		return nil, e.sess.ApplySnapshot(nil)
	}
	if err != nil {
		return nil, err
	}
	if err := e.sess.ApplySnapshot(&view.Room); err != nil {
		return nil, err
	}
	return &view, nil
}

// playerWrite marks step as pending, runs write and settles the session
// from the resulting snapshot.
func (e *env) playerWrite(ctx context.Context, step ito.UserGameStep, write func(session.State) error) error {
	if _, err := e.requirePlayer(); err != nil {
		return err
	}
	if _, err := e.refresh(ctx); err != nil {
		return err
	}
	st, err := e.requirePlayer()
	if err != nil {
		return ito.ErrPlayerNotFound
	}

	if err := e.sess.MarkPending(step); err != nil {
		return err
	}
	if err := write(st); err != nil {
		if clearErr := e.sess.Update(func(s *session.State) { s.PendingStep = nil }); clearErr != nil {
			return errors.Join(err, clearErr)
		}
		return err
	}
	_, err = e.refresh(ctx)
	return err
}
