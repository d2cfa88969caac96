package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/mikepea/linkshelf/pkg/linkshelf/httpclient"
	"github.com/mikepea/linkshelf/pkg/linkshelf/management"
	"github.com/mikepea/linkshelf/pkg/linkshelf/resolve"
	"github.com/spf13/cobra"
)

func newSoftwareCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "software",
		Short: "Browse the software catalog (admin)",
	}
	cmd.AddCommand(newSoftwareListCmd(a))
	return cmd
}

type softwareQuery struct {
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
	Category uint   `json:"category,omitempty"`
	Tags     []uint `json:"tags,omitempty"`
}

func newSoftwareListCmd(a *app) *cobra.Command {
	var q softwareQuery

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List software, filtered by category and tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Data  []management.SoftwareView `json:"data"`
				Total int64                     `json:"total"`
			}
			if err := a.client.Get(cmd.Context(), httpclient.Request{Path: "/management", Payload: q}, &resp); err != nil {
				return err
			}

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tTAGS\tWEBSITE")
			for _, s := range resp.Data {
				names := make([]string, len(s.Tags))
				for i, t := range s.Tags {
					names[i] = t.Name
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.CategoryName, strings.Join(names, ","), s.Website)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d of %d entries\n", len(resp.Data), resp.Total)
			return nil
		},
	}

	cmd.Flags().IntVar(&q.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&q.PageSize, "page-size", 10, "entries per page")
	cmd.Flags().UintVar(&q.Category, "category", 0, "category id")
	cmd.Flags().UintSliceVar(&q.Tags, "tags", nil, "tag ids; entries must carry all of them")
	return cmd
}

func newResolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve URL...",
		Short: "Fetch title, icon and description for URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var results []resolve.Result
			err := a.client.Get(cmd.Context(), httpclient.Request{
				Path:    "/resolveUrl",
				Payload: map[string][]string{"urls": args},
			}, &results)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "URL\tTITLE\tICON")
			for _, r := range results {
				if r.Error != "" {
					fmt.Fprintf(w, "%s\terror: %s\t\n", r.URL, r.Error)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.URL, r.Title, r.Icon)
			}
			return w.Flush()
		},
	}
}
