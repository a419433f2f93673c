package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Sternrassler/swapi-search/pkg/browser"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

func newSearchCmd(a *app) *cobra.Command {
	var more int

	cmd := &cobra.Command{
		Use:   "search [term]",
		Short: "Search characters and print the ordered list",
		Long: `Runs one search through a browser session, optionally loading further
pages as if the list had been scrolled to its end, and prints the merged
list: blue-eyed characters by name first, then everyone else by creation
date.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := ""
			if len(args) == 1 {
				term = args[0]
			}

			s := browser.NewSession(a.gateway, browser.Config{FetchTimeout: a.cfg.FetchTimeout})
			defer s.Close()

			s.OnSearchTextChanged(term)
			s.Wait()
			for i := 0; i < more && s.OnScrollNearEnd(); i++ {
				s.Wait()
			}

			return render(cmd.OutOrStdout(), s.State())
		},
	}
	cmd.Flags().IntVarP(&more, "more", "m", 0, "number of additional pages to load")
	return cmd
}

func newBrowseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Drive a search session from stdin",
		Long: `Reads one intent per line from stdin and prints the list after each:

  <text>   search for text
  /clear   clear the search
  /more    load the next page`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			s := browser.NewSession(a.gateway, browser.Config{
				FetchTimeout: a.cfg.FetchTimeout,
				DismissInput: func() { fmt.Fprintln(out, "(search cleared)") },
			})
			defer s.Close()

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				line := strings.TrimRight(scanner.Text(), "\r")
				switch line {
				case "/clear":
					s.OnClearPressed()
				case "/more":
					if !s.OnScrollNearEnd() {
						fmt.Fprintln(out, "(nothing more to load)")
						continue
					}
				default:
					s.OnSearchTextChanged(line)
				}
				s.Wait()
				if err := render(out, s.State()); err != nil {
					return err
				}
			}
			return scanner.Err()
		},
	}
}

// maxNameWidth is the widest name column, in terminal cells.
const maxNameWidth = 28

// render prints the display list, marking blue-eyed characters.
func render(w io.Writer, st browser.State) error {
	if st.Empty {
		_, err := fmt.Fprintf(w, "no data found for %q\n", st.Query.Term)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tNAME\tEYES\tGENDER\tCREATED")
	for _, c := range st.Display {
		mark := ""
		if c.IsBlueEyed() {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", mark, runewidth.Truncate(c.Name, maxNameWidth, "…"), c.EyeColor, c.Gender, c.DisplayDate())
	}
	fmt.Fprintf(tw, "\t%d of %d (page %d)\n", st.Accumulated, st.TotalCount, st.Query.Page)
	return tw.Flush()
}
