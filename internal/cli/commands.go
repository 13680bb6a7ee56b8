package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"proofpress/internal/apperr"
	"proofpress/internal/client"
	"proofpress/internal/models"
	"proofpress/internal/publish"
)

func (a *app) publishCommand() *cobra.Command {
	var (
		title, content, contentFile, excerpt, cover string
		noRegister, jsonOut                         bool
	)
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish an article and register it with your keystore",
		Long: `Create a published article, wait for the server to upload its metadata
document, then sign the registration with your keystore and report it back.

Use --no-register when the server signs registrations itself.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(title) == "" {
				return fmt.Errorf("--title is required")
			}
			if contentFile != "" {
				body, err := readContent(cmd.InOrStdin(), contentFile)
				if err != nil {
					return err
				}
				content = body
			}
			in := publish.CreateInput{Title: title, Content: content, Status: models.ArticleStatusPublished}
			if excerpt != "" {
				in.Excerpt = &excerpt
			}
			if cover != "" {
				in.CoverImage = &cover
			}

			if noRegister {
				art, err := a.deps.API(a.cfg).CreateArticle(cmd.Context(), in)
				if err != nil {
					return err
				}
				return printArticle(cmd.OutOrStdout(), art, jsonOut)
			}

			p, err := a.poller(cmd.Context())
			if err != nil {
				return err
			}
			art, err := p.Publish(cmd.Context(), in)
			if err != nil {
				return hint(err)
			}
			return printArticle(cmd.OutOrStdout(), art, jsonOut)
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "article title")
	f.StringVar(&content, "content", "", "article HTML")
	f.StringVar(&contentFile, "content-file", "", "read article HTML from a file (- for stdin)")
	f.StringVar(&excerpt, "excerpt", "", "summary shown in listings")
	f.StringVar(&cover, "cover", "", "cover image URL")
	f.BoolVar(&noRegister, "no-register", false, "only publish; leave registration to the server")
	f.BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}

func (a *app) registerCommand() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "register <article-id>",
		Short: "Register a published article with your keystore",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseArticleID(args[0])
			if err != nil {
				return err
			}
			p, err := a.poller(cmd.Context())
			if err != nil {
				return err
			}
			art, err := p.Register(cmd.Context(), id)
			if err != nil {
				return hint(err)
			}
			return printArticle(cmd.OutOrStdout(), art, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}

func (a *app) statusCommand() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status <article-id>",
		Short: "Show the publish and registration state of an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseArticleID(args[0])
			if err != nil {
				return err
			}
			art, err := a.deps.API(a.cfg).GetArticle(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printArticle(cmd.OutOrStdout(), art, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}

func parseArticleID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid article id %q", s)
	}
	return id, nil
}

// hint adds the next step to errors an author can act on.
func hint(err error) error {
	switch {
	case errors.Is(err, apperr.ErrTimeout):
		return fmt.Errorf("%s; check again later with proofctl status or retry with proofctl register", apperr.Message(err))
	case errors.Is(err, apperr.ErrUnauthorized):
		return fmt.Errorf("%s; set --principal or PROOFCTL_PRINCIPAL", apperr.Message(err))
	}
	return err
}

func printArticle(w io.Writer, a *client.Article, jsonOut bool) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	}

	fmt.Fprintf(w, "id:               %s\n", a.ID)
	fmt.Fprintf(w, "title:            %s\n", a.Title)
	fmt.Fprintf(w, "slug:             %s\n", a.Slug)
	fmt.Fprintf(w, "status:           %s\n", a.Status)
	fmt.Fprintf(w, "state:            %s\n", a.State)
	fmt.Fprintf(w, "content hash:     %s\n", deref(a.ContentHash))
	fmt.Fprintf(w, "asset id:         %s\n", deref(a.LedgerAssetID))
	fmt.Fprintf(w, "token id:         %s\n", deref(a.LedgerTokenID))
	fmt.Fprintf(w, "license terms id: %s\n", deref(a.LicenseTermsID))
	fmt.Fprintf(w, "transaction:      %s\n", deref(a.TxHash))
	if a.PendingTxHash != nil {
		fmt.Fprintf(w, "pending tx:       %s\n", *a.PendingTxHash)
	}
	return nil
}

func deref(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
