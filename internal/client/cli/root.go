package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/client/client"
	"github.com/dmitrijs2005/gophjournal/internal/client/config"
	"github.com/dmitrijs2005/gophjournal/internal/client/session"
	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/spf13/cobra"
)

// App is the state shared by every command of one invocation.
type App struct {
	in   *bufio.Reader
	out  io.Writer
	cfg  *config.Config
	api  *client.Client
	sess *session.Session
	now  func() time.Time
}

// NewRootCommand builds the command tree reading from in and writing to out.
func NewRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	a := &App{in: bufio.NewReader(in), out: out, now: time.Now}

	var configPath, server, user, sessionPath string

	root := &cobra.Command{
		Use:           "gophjournal",
		Short:         "Private journal client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cmd.Flags().Changed("server") {
				cfg.ServerURL = server
			}
			if cmd.Flags().Changed("user") {
				cfg.UserID = user
			}
			if cmd.Flags().Changed("session") {
				cfg.SessionPath = sessionPath
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			sess, err := session.Load(cfg.SessionPath)
			if err != nil {
				return err
			}

			a.cfg = cfg
			a.sess = sess
			a.api = client.New(cfg.ServerURL, cfg.UserID, cfg.Timeout).WithUserHeader(cfg.UserHeader)
			return nil
		},
	}
	root.SetOut(out)
	root.SetErr(out)
	root.SetIn(in)

	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file path")
	root.PersistentFlags().StringVar(&server, "server", "", "Server URL [env: JOURNAL_CLIENT_SERVER_URL]")
	root.PersistentFlags().StringVar(&user, "user", "", "Signed-in user id [env: JOURNAL_CLIENT_USER_ID]")
	root.PersistentFlags().StringVar(&sessionPath, "session", "", "Session file [env: JOURNAL_CLIENT_SESSION_PATH]")

	root.AddCommand(a.newSetupCmd(), a.newUnlockCmd(), a.newLockCmd(), a.newEntriesCmd())
	return root
}

// token returns a live journal token, unlocking first when there is none.
func (a *App) token(ctx context.Context) (string, error) {
	if tok, ok := a.sess.TokenFor(a.cfg.UserID, a.now()); ok {
		return tok, nil
	}
	tok, err := a.unlock(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// entryError drops a token the server no longer accepts.
func (a *App) entryError(err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		_ = a.sess.Clear()
		return errors.New("journal token rejected, run 'gophjournal unlock' again")
	}
	if errors.Is(err, common.ErrNotFound) {
		return errors.New("entry not found")
	}
	return err
}
