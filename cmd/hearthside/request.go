package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	hearthside "github.com/hearthside/client-go"
)

// response is what the raw request commands print.
type response struct {
	Data       json.RawMessage        `json:"data,omitempty"`
	Pagination *hearthside.Pagination `json:"pagination,omitempty"`
}

func (a *app) getCmd() *cobra.Command {
	var params []string
	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Send a GET request and print the response data",
		Example: `  hearthside get /posts -q page=2 -q limit=5
  hearthside get /users/42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parseQuery(params)
			if err != nil {
				return err
			}
			var out response
			page, err := a.client.Get(cmd.Context(), args[0], query, &out.Data)
			if err != nil {
				return err
			}
			out.Pagination = page
			return a.print(out)
		},
	}
	cmd.Flags().StringArrayVarP(&params, "query", "q", nil, "query parameter as key=value, repeatable")
	return cmd
}

func (a *app) postCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "post <path> <json|->",
		Short: "Send a POST request with a JSON body",
		Long:  `Send a POST request. The body is the second argument, or stdin when it is "-".`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := a.readBody(args[1])
			if err != nil {
				return err
			}
			var out response
			if err := a.client.Post(cmd.Context(), args[0], body, &out.Data); err != nil {
				return err
			}
			return a.print(out)
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <path>",
		Short: "Send a DELETE request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.client.Delete(cmd.Context(), args[0])
		},
	}
}

func (a *app) readBody(arg string) (json.RawMessage, error) {
	raw := arg
	if arg == "-" {
		data, err := io.ReadAll(a.cfg.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raw = string(data)
	}
	if !gjson.Valid(raw) {
		return nil, errors.New("body is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

func parseQuery(params []string) (url.Values, error) {
	query := url.Values{}
	for _, p := range params {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid query parameter %q, want key=value", p)
		}
		query.Add(k, v)
	}
	return query, nil
}
