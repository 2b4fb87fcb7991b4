package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	hearthside "github.com/hearthside/client-go"
)

func (a *app) postsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "Work with posts",
	}

	var opts hearthside.ListOptions
	list := &cobra.Command{
		Use:   "list",
		Short: "List one page of posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out struct {
				Posts      []json.RawMessage      `json:"posts"`
				Pagination *hearthside.Pagination `json:"pagination,omitempty"`
			}
			page, err := a.client.Posts.List(cmd.Context(), opts, &out.Posts)
			if err != nil {
				return err
			}
			out.Pagination = page
			return a.print(out)
		},
	}
	list.Flags().IntVar(&opts.Page, "page", 1, "page number")
	list.Flags().IntVar(&opts.Limit, "limit", 10, "page size")
	list.Flags().StringVar(&opts.Sort, "sort", "", "sort expression, for example -createdAt")
	cmd.AddCommand(list)
	return cmd
}
