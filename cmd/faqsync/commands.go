package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/bootstrap"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/export"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/mapper"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/storefront"
	httpiface "github.com/AxialDev/faq-mapping-gladly-shopify/internal/interface/http"
)

var errUsage = errors.New("unknown command")

type command func(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error

var commands = map[string]command{
	"export":   runExport,
	"archive":  runArchive,
	"sections": runSections,
	"list":     runList,
	"add":      runAdd,
	"update":   runUpdate,
	"remove":   runRemove,
	"map":      runMap,
	"sync":     runSync,
	"match":    runMatch,
	"rehandle": runRehandle,
	"token":    runToken,
	"serve":    runServe,
}

// lookup resolves name before any dependency is wired.
func lookup(name string) (command, error) {
	cmd, ok := commands[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUsage, name)
	}
	return cmd, nil
}

func run(ctx context.Context, app *bootstrap.App, name string, args []string, out io.Writer) error {
	cmd, err := lookup(name)
	if err != nil {
		return err
	}
	return cmd(ctx, app, args, out)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func runExport(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	fs := newFlagSet("export")
	langs := fs.String("lang", "", "comma separated languages (default: all supported)")
	listOnly := fs.Bool("list-only", false, "skip the per-answer detail call")
	if err := fs.Parse(args); err != nil {
		return err
	}
	result, err := app.Export.Export(ctx, export.Request{Languages: splitList(*langs), ListOnly: *listOnly})
	if encodeErr := writeJSON(out, result); encodeErr != nil {
		return errors.Join(err, encodeErr)
	}
	return err
}

func runArchive(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	fs := newFlagSet("archive")
	lang := fs.String("lang", "", "language (default: all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	records, err := app.Export.Archived(ctx, *lang)
	if err != nil {
		return err
	}
	return writeJSON(out, records)
}

func runSections(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	if err := newFlagSet("sections").Parse(args); err != nil {
		return err
	}
	sections, err := app.Storefront.ListSections(ctx)
	if err != nil {
		return err
	}
	return writeJSON(out, sections)
}

func runList(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	fs := newFlagSet("list")
	section := fs.String("section", "", "section id, * for all (default: configured FAQ section)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	entries, err := app.Storefront.ListQuestions(ctx, *section)
	if err != nil {
		return err
	}
	return writeJSON(out, entries)
}

func questionFlags(name string) (*flag.FlagSet, *storefront.QuestionInput) {
	fs := newFlagSet(name)
	in := &storefront.QuestionInput{}
	fs.StringVar(&in.Handle, "handle", "", "question handle")
	fs.StringVar(&in.Heading, "heading", "", "question heading")
	fs.StringVar(&in.Content, "content", "", "answer HTML")
	fs.StringVar(&in.Section, "section", "", "section id (default: configured FAQ section)")
	fs.StringVar(&in.Category, "category", "", "section category setting")
	fs.StringVar(&in.Icon, "icon", "", "section icon setting")
	return fs, in
}

func runAdd(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	fs, in := questionFlags("add")
	if err := fs.Parse(args); err != nil {
		return err
	}
	entry, err := app.Storefront.AddQuestion(ctx, *in)
	if err != nil {
		return err
	}
	return writeJSON(out, entry)
}

func runUpdate(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	fs, in := questionFlags("update")
	if err := fs.Parse(args); err != nil {
		return err
	}
	entry, err := app.Storefront.UpdateQuestion(ctx, *in)
	if err != nil {
		return err
	}
	return writeJSON(out, entry)
}

func runRemove(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	fs := newFlagSet("remove")
	handle := fs.String("handle", "", "question handle")
	section := fs.String("section", "", "section id (default: configured FAQ section)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := app.Storefront.RemoveQuestion(ctx, *handle, *section); err != nil {
		return err
	}
	return writeJSON(out, map[string]string{"removed": *handle})
}

func runMap(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	fs := newFlagSet("map")
	req := mapper.MapRequest{}
	fs.StringVar(&req.File, "file", "", "export file (default: combined file, or the -lang file)")
	fs.StringVar(&req.Language, "lang", "", "read the per-language export file")
	fs.StringVar(&req.Section, "section", "", "target section id")
	fs.StringVar(&req.HandleStrategy, "strategy", "", "handle strategy: id or slug")
	fs.StringVar(&req.OnDuplicate, "on-duplicate", "", "duplicate policy: fail, skip or update")
	fs.BoolVar(&req.ContinueOnError, "continue", false, "collect row errors instead of stopping")
	if err := fs.Parse(args); err != nil {
		return err
	}
	report, err := app.Mapper.Map(ctx, req)
	if encodeErr := writeJSON(out, report); encodeErr != nil {
		return errors.Join(err, encodeErr)
	}
	return err
}

func runSync(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	fs := newFlagSet("sync")
	langs := fs.String("lang", "", "comma separated languages (default: all supported)")
	keywords := fs.String("keywords", "", "comma separated keywords required in question or answer")
	req := mapper.SyncRequest{}
	fs.BoolVar(&req.DryRun, "dry-run", false, "log intended actions without writing")
	fs.StringVar(&req.Query, "query", "", "search query replacing the full listing")
	fs.StringVar(&req.Section, "section", "", "target section id")
	fs.BoolVar(&req.WithDetails, "details", false, "resolve each answer's detail")
	if err := fs.Parse(args); err != nil {
		return err
	}
	req.Languages = splitList(*langs)
	req.Keywords = splitList(*keywords)
	report, err := app.Mapper.Sync(ctx, req)
	if err != nil {
		return err
	}
	return writeJSON(out, report)
}

func runMatch(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	fs := newFlagSet("match")
	req := mapper.MatchRequest{}
	fs.StringVar(&req.Language, "lang", "", "source language (default: first supported)")
	fs.Float64Var(&req.Threshold, "threshold", 0, "minimum similarity 0-100 (default: configured)")
	fs.StringVar(&req.Section, "section", "", "section id (default: all sections)")
	fs.BoolVar(&req.Save, "save", false, "store the pairs as mapping links")
	if err := fs.Parse(args); err != nil {
		return err
	}
	links, err := app.Mapper.Match(ctx, req)
	if err != nil {
		return err
	}
	return writeJSON(out, links)
}

func runRehandle(ctx context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	fs := newFlagSet("rehandle")
	req := mapper.RehandleRequest{}
	fs.StringVar(&req.Section, "section", "", "section id (default: all sections)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	result, err := app.Mapper.Rehandle(ctx, req)
	if err != nil {
		return err
	}
	return writeJSON(out, result)
}

func runToken(_ context.Context, app *bootstrap.App, args []string, out io.Writer) error {
	fs := newFlagSet("token")
	subject := fs.String("subject", "admin", "token subject")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	token, err := httpiface.IssueToken(app.Config.Admin.JWTSecret, *subject, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func runServe(ctx context.Context, app *bootstrap.App, args []string, _ io.Writer) error {
	if err := newFlagSet("serve").Parse(args); err != nil {
		return err
	}
	return app.Run(ctx)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
