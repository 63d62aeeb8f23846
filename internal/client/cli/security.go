package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/client/client"
	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/spf13/cobra"
)

func (a *App) newSetupCmd() *cobra.Command {
	var method string
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Set or change the journal PIN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pin, err := GetPIN(a.out, "New PIN")
			if err != nil {
				return err
			}
			confirm, err := GetPIN(a.out, "Repeat PIN")
			if err != nil {
				return err
			}
			if pin != confirm {
				return errors.New("PINs do not match")
			}

			if err := a.api.Setup(cmd.Context(), pin, method); err != nil {
				return err
			}
			_ = a.sess.Clear()
			fmt.Fprintln(a.out, "Journal PIN saved.")
			return nil
		},
	}
	cmd.Flags().StringVar(&method, "method", "pin", "Auth method: pin or biometric")
	return cmd
}

func (a *App) newUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Unlock the journal for this session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := a.unlock(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Journal unlocked until %s.\n", tok.ExpiresAt.Local().Format(time.Kitchen))
			return nil
		},
	}
}

func (a *App) newLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock",
		Short: "Forget the journal token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sess.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Journal locked.")
			return nil
		},
	}
}

func (a *App) unlock(ctx context.Context) (*client.Token, error) {
	pin, err := GetPIN(a.out, "Journal PIN")
	if err != nil {
		return nil, err
	}
	tok, err := a.api.Unlock(ctx, pin)
	if err != nil {
		return nil, describeUnlockError(err)
	}

	a.sess.Set(a.cfg.UserID, tok.AccessToken, tok.ExpiresAt)
	if err := a.sess.Save(); err != nil {
		return nil, err
	}
	return tok, nil
}

func describeUnlockError(err error) error {
	var apiErr *client.APIError
	errors.As(err, &apiErr)

	switch {
	case errors.Is(err, common.ErrInvalidCredential) && apiErr != nil && apiErr.AttemptsRemaining != nil:
		return fmt.Errorf("wrong PIN, %d attempt(s) remaining", *apiErr.AttemptsRemaining)
	case errors.Is(err, common.ErrLocked) && apiErr != nil:
		return fmt.Errorf("journal locked, try again in %s", apiErr.RetryAfter)
	case errors.Is(err, common.ErrNotConfigured):
		return errors.New("journal PIN is not set, run 'gophjournal setup' first")
	case errors.Is(err, common.ErrRateLimited) && apiErr != nil:
		return fmt.Errorf("too many unlock attempts, wait %s", apiErr.RetryAfter)
	default:
		return err
	}
}
