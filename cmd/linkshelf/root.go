package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mikepea/linkshelf/pkg/linkshelf/httpclient"
	"github.com/spf13/cobra"
)

// app carries the global flags and the API client built from them.
type app struct {
	server  string
	token   string
	timeout time.Duration

	out    io.Writer
	errOut io.Writer
	client *httpclient.Client
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "linkshelf",
		Short: "Manage topics, bookmarks and the software catalog of a linkshelf server",
		Long: `linkshelf talks to a linkshelf server over its JSON API.

The server address and credentials come from --server and --token, or from
LINKSHELF_SERVER and LINKSHELF_TOKEN. A token is either a JWT from
"linkshelf login" or an API key.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.connect()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.server, "server", envOr("LINKSHELF_SERVER", "http://localhost:8080"), "server base URL")
	flags.StringVar(&a.token, "token", os.Getenv("LINKSHELF_TOKEN"), "JWT or API key")
	flags.DurationVar(&a.timeout, "timeout", httpclient.DefaultTimeout, "per-request timeout")

	root.AddCommand(
		newLoginCmd(a),
		newTopicsCmd(a),
		newSoftwareCmd(a),
		newResolveCmd(a),
	)
	return root
}

func (a *app) connect() error {
	headers := map[string]string{}
	if a.token != "" {
		headers["Authorization"] = "Bearer " + a.token
	}

	client, err := httpclient.New(httpclient.Config{
		BaseURL: strings.TrimRight(a.server, "/") + "/api",
		Headers: headers,
		Timeout: a.timeout,
		Notifier: httpclient.NotifierFunc(func(msg string) {
			fmt.Fprintln(a.errOut, "error:", msg)
		}),
	})
	if err != nil {
		return err
	}
	a.client = client
	return nil
}

// envelope is the body of mutation responses.
type envelope[T any] struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func newLoginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print a token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Token string `json:"token"`
			}
			err := a.client.Post(cmd.Context(), httpclient.Request{
				Path:    "/auth/login",
				Payload: map[string]string{"email": email, "password": password},
			}, &resp)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, resp.Token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
