package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/mikepea/linkshelf/pkg/linkshelf/httpclient"
	"github.com/mikepea/linkshelf/pkg/linkshelf/topics"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newTopicsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "topics",
		Aliases: []string{"topic"},
		Short:   "List, show, apply and delete topics",
	}
	cmd.AddCommand(
		newTopicsListCmd(a),
		newTopicsGetCmd(a),
		newTopicsApplyCmd(a),
		newTopicsDeleteCmd(a),
	)
	return cmd
}

func newTopicsListCmd(a *app) *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your topics, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Data  []topics.TopicSummary `json:"data"`
				Total int64                 `json:"total"`
			}
			err := a.client.Get(cmd.Context(), httpclient.Request{
				Path:    "/topics",
				Payload: map[string]int{"page": page, "pageSize": pageSize},
			}, &resp)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tURLS")
			for _, t := range resp.Data {
				fmt.Fprintf(w, "%s\t%s\t%d\n", t.ID, t.Name, t.URLCount)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d of %d topics\n", len(resp.Data), resp.Total)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 10, "topics per page")
	return cmd
}

// toDocument turns a stored topic back into the request that produces it.
func toDocument(t topics.TopicView) topics.TopicRequest {
	doc := topics.TopicRequest{ID: t.ID, Name: t.Name, Description: t.Description, URLs: []topics.URLDraft{}}
	for _, u := range t.URLs {
		id := u.ID
		doc.URLs = append(doc.URLs, topics.URLDraft{
			ID:          &id,
			URL:         u.URL,
			Title:       u.Title,
			Icon:        u.Icon,
			Description: u.Description,
			Tags:        u.Tags,
		})
	}
	return doc
}

func newTopicsGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Print a topic as YAML that 'topics apply' accepts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var topic topics.TopicView
			if err := a.client.Get(cmd.Context(), httpclient.Request{Path: "/topics/" + args[0]}, &topic); err != nil {
				return err
			}

			enc := yaml.NewEncoder(a.out)
			enc.SetIndent(2)
			if err := enc.Encode(toDocument(topic)); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

// readDocuments decodes topic documents from r. A document is either one
// topic or a list of topics; several documents may be separated by "---".
func readDocuments(r io.Reader) ([]topics.TopicRequest, error) {
	var out []topics.TopicRequest
	dec := yaml.NewDecoder(r)
	for {
		var node yaml.Node
		if err := dec.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parse topics: %w", err)
		}
		if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
			node = *node.Content[0]
		}

		switch node.Kind {
		case yaml.SequenceNode:
			var list []topics.TopicRequest
			if err := node.Decode(&list); err != nil {
				return nil, fmt.Errorf("parse topics: %w", err)
			}
			out = append(out, list...)
		case yaml.MappingNode:
			var one topics.TopicRequest
			if err := node.Decode(&one); err != nil {
				return nil, fmt.Errorf("parse topics: %w", err)
			}
			out = append(out, one)
		default:
			return nil, fmt.Errorf("parse topics: line %d: expected a topic or a list of topics", node.Line)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no topics found")
	}
	return out, nil
}

func newTopicsApplyCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "apply -f FILE",
		Short: "Create or update topics from a YAML file (- for stdin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			docs, err := readDocuments(in)
			if err != nil {
				return err
			}

			for _, doc := range docs {
				var resp envelope[topics.UpsertResult]
				req := httpclient.Request{Path: "/topics", Payload: doc}
				if doc.ID != "" {
					req.Path = "/topics/" + doc.ID
					err = a.client.Put(cmd.Context(), req, &resp)
				} else {
					err = a.client.Post(cmd.Context(), req, &resp)
				}
				if err != nil {
					return fmt.Errorf("topic %q: %w", doc.Name, err)
				}
				fmt.Fprintf(a.out, "%s: %s (%d urls)\n", resp.Data.ID, resp.Message, len(doc.URLs))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with topic documents")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newTopicsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete topics and their bookmarks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				var resp envelope[any]
				if err := a.client.Delete(cmd.Context(), httpclient.Request{Path: "/topics/" + id}, &resp); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s: %s\n", id, resp.Message)
			}
			return nil
		},
	}
}
