package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/gophjournal/internal/client/client"
	"github.com/spf13/cobra"
)

func (a *App) newEntriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "entries",
		Aliases: []string{"e"},
		Short:   "Read and write journal entries",
	}
	cmd.AddCommand(
		a.newListCmd(),
		a.newGetCmd(),
		a.newCreateCmd(),
		a.newUpdateCmd(),
		a.newDeleteCmd(),
	)
	return cmd
}

func (a *App) newListCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"l"},
		Short:   "List entries, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := a.token(cmd.Context())
			if err != nil {
				return err
			}
			items, err := a.api.ListEntries(cmd.Context(), tok, from, to)
			if err != nil {
				return a.entryError(err)
			}
			if len(items) == 0 {
				fmt.Fprintln(a.out, "No entries.")
				return nil
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tWORDS\tPROMPT")
			for _, it := range items {
				prompt := ""
				if it.PromptUsed != nil {
					prompt = *it.PromptUsed
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", it.ID, it.EntryDate, it.WordCount, prompt)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "Last date, YYYY-MM-DD")
	return cmd
}

func (a *App) newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := a.token(cmd.Context())
			if err != nil {
				return err
			}
			e, err := a.api.GetEntry(cmd.Context(), tok, args[0])
			if err != nil {
				return a.entryError(err)
			}

			fmt.Fprintf(a.out, "%s (%d words)\n", e.EntryDate, e.WordCount)
			if e.PromptUsed != nil {
				fmt.Fprintf(a.out, "Prompt: %s\n", *e.PromptUsed)
			}
			fmt.Fprintf(a.out, "\n%s\n", e.Content)
			return nil
		},
	}
}

// content takes the text from args, or reads it from input when args are empty.
func (a *App) content(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	return GetMultiline(a.in, "Write your entry", a.out)
}

func (a *App) newCreateCmd() *cobra.Command {
	var prompt, date string
	cmd := &cobra.Command{
		Use:   "create [text...]",
		Short: "Write a new entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := a.content(args)
			if err != nil {
				return err
			}
			tok, err := a.token(cmd.Context())
			if err != nil {
				return err
			}

			in := client.NewEntry{Content: text, EntryDate: date}
			if prompt != "" {
				in.PromptUsed = &prompt
			}
			meta, err := a.api.CreateEntry(cmd.Context(), tok, in)
			if err != nil {
				return a.entryError(err)
			}
			fmt.Fprintf(a.out, "Saved entry %s for %s (%d words).\n", meta.ID, meta.EntryDate, meta.WordCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "Prompt the entry answers")
	cmd.Flags().StringVar(&date, "date", "", "Entry date, YYYY-MM-DD (default today)")
	return cmd
}

func (a *App) newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <id> [text...]",
		Short: "Replace an entry's text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := a.content(args[1:])
			if err != nil {
				return err
			}
			tok, err := a.token(cmd.Context())
			if err != nil {
				return err
			}
			meta, err := a.api.UpdateEntry(cmd.Context(), tok, args[0], text)
			if err != nil {
				return a.entryError(err)
			}
			fmt.Fprintf(a.out, "Updated entry %s (%d words).\n", meta.ID, meta.WordCount)
			return nil
		},
	}
}

func (a *App) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := a.token(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.api.DeleteEntry(cmd.Context(), tok, args[0]); err != nil {
				return a.entryError(err)
			}
			fmt.Fprintln(a.out, "Deleted.")
			return nil
		},
	}
}
