package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/cratescope/pkg/errors"
	"github.com/matzehuels/cratescope/pkg/integrations/crates"
)

// searchCommand creates the search command.
func (c *CLI) searchCommand() *cobra.Command {
	var page, perPage int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search crates.io by name and keywords",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if page < 1 || perPage < 1 {
				return errors.New(errors.ErrCodeInvalidInput, "--page and --per-page must be at least 1")
			}
			if perPage > crates.MaxPerPage {
				return errors.New(errors.ErrCodeInvalidInput, "--per-page must be at most %d", crates.MaxPerPage)
			}
			return c.runSearch(cmd.Context(), cmd.OutOrStdout(), args[0], page, perPage)
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "result page")
	cmd.Flags().IntVar(&perPage, "per-page", crates.DefaultPerPage, "results per page")

	return cmd
}

func (c *CLI) runSearch(ctx context.Context, w io.Writer, query string, page, perPage int) error {
	client, closeCache, err := c.newClient(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	resp, err := client.Search(ctx, query, page, perPage)
	if err != nil {
		return err
	}
	if len(resp.Crates) == 0 {
		printInfo("No crates match %q", query)
		return nil
	}

	for _, cr := range resp.Crates {
		version := cr.MaxStableVersion
		if version == "" {
			version = cr.MaxVersion
		}
		fmt.Fprintln(w, StyleHighlight.Render(cr.Name)+" "+StyleNumber.Render(version)+
			" "+StyleDim.Render(formatCount(cr.Downloads)+" downloads"))
		if cr.Description != "" {
			fmt.Fprintln(w, "  "+StyleDim.Render(cr.Description))
		}
	}

	first := (page-1)*perPage + 1
	printDetail("%d-%d of %d", first, first+len(resp.Crates)-1, resp.Meta.Total)
	return nil
}
