package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/cratescope/pkg/errors"
	"github.com/matzehuels/cratescope/pkg/integrations"
	"github.com/matzehuels/cratescope/pkg/integrations/crates"
)

const (
	defaultVersionRows  = 10
	defaultDownloadDays = 7
)

// crateCommand creates the crate command showing registry metadata.
func (c *CLI) crateCommand() *cobra.Command {
	var all, downloads bool

	cmd := &cobra.Command{
		Use:   "crate <name>",
		Short: "Show crate metadata and published versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCrate(cmd.Context(), cmd.OutOrStdout(), args[0], all, downloads)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "list every published version")
	cmd.Flags().BoolVar(&downloads, "downloads", false, "show daily downloads of the last week")

	return cmd
}

func (c *CLI) runCrate(ctx context.Context, w io.Writer, id string, all, downloads bool) error {
	if err := errors.ValidateCrateID(id); err != nil {
		return err
	}

	client, closeCache, err := c.newClient(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	resp, err := client.FetchCrate(ctx, id)
	if err != nil {
		if stderrors.Is(err, integrations.ErrNotFound) {
			return errors.Wrap(errors.ErrCodePackageNotFound, err, "crate %s not found", id)
		}
		return errors.Wrap(errors.ErrCodeNetwork, err, "fetch crate %s", id)
	}

	info := resp.Crate
	def := resp.DefaultVersion()
	printTitle(w, info.Name, def)
	if info.Description != "" {
		fmt.Fprintln(w, StyleDim.Render(info.Description))
	}
	fmt.Fprintln(w)

	if v, ok := resp.FindVersion(def); ok {
		printKeyValue(w, "license", v.License)
		printKeyValue(w, "size", formatBytes(v.CrateSize))
	}
	printKeyValue(w, "downloads", formatCount(info.Downloads))
	printKeyValue(w, "recent", formatCount(info.RecentDownloads))
	printLink(w, "repository", info.Repository)
	printLink(w, "homepage", info.Homepage)
	printLink(w, "docs", info.Documentation)

	printVersions(w, resp.Versions, all)

	if downloads {
		series, err := client.FetchDownloads(ctx, id)
		if err != nil {
			return err
		}
		printDownloads(w, series.Daily())
	}
	return nil
}

func printVersions(w io.Writer, versions []crates.Version, all bool) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, StyleTitle.Render(fmt.Sprintf("versions (%d)", len(versions))))

	shown := versions
	if !all && len(shown) > defaultVersionRows {
		shown = shown[:defaultVersionRows]
	}
	for _, v := range shown {
		line := "  " + StyleValue.Render(fmt.Sprintf("%-14s", v.Num))
		if !v.CreatedAt.IsZero() {
			line += " " + StyleDim.Render(v.CreatedAt.Format("2006-01-02"))
		}
		if v.Yanked {
			line += " " + styleYanked.Render("yanked")
		}
		fmt.Fprintln(w, line)
	}
	if hidden := len(versions) - len(shown); hidden > 0 {
		fmt.Fprintln(w, "  "+StyleDim.Render(fmt.Sprintf("… %d more (--all)", hidden)))
	}
}

func printDownloads(w io.Writer, daily []crates.DailyDownloads) {
	if len(daily) > defaultDownloadDays {
		daily = daily[len(daily)-defaultDownloadDays:]
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, StyleTitle.Render("downloads"))
	for _, d := range daily {
		printKeyValue(w, d.Date, formatCount(d.Downloads))
	}
}
