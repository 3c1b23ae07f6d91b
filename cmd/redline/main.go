// Command redline is a terminal client for the Redline document review
// service: upload .docx files, edit and comment on paragraphs, run
// compliance checks, and manage versions and exports.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	redline "github.com/redlinehq/redline-go"
	"github.com/redlinehq/redline-go/render"
	"github.com/redlinehq/redline-go/session"
)

const usage = `usage: redline <command> [args]
Available commands:
  upload <file.docx>                     Upload a document
  get docs                               List documents
  get doc <id>                           Get a document as JSON
  show <id>                              Show paragraphs and comments
  edit <doc> <para> <text>               Replace a paragraph's text
  insert <doc> <para>                    Insert an empty paragraph after <para>
  duplicate <doc> <para>                 Duplicate a paragraph
  delete-para <doc> <para>               Delete a paragraph
  comment add <doc> <para> <text>        Comment on a paragraph
  comment delete <doc> <comment>         Delete a comment
  comment keep <doc> <comment>           Cancel a comment's scheduled deletion
  check <doc> <para> [text]              Run a compliance check
  type <doc> <para>                      Stream edits from stdin with autosave
  versions <doc>                         List the version history
  version new <doc> [notes]              Create a version manually
  export <doc> [file]                    Download the document as .docx
  cachepath                              Print the document cache path`

// outputJSON outputs data as JSON to stdout.
func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Config file path (default: $REDLINE_CONFIG or ~/.config/redline/config.yaml)")
	baseURL := flag.String("url", "", "Redline instance URL (default: $REDLINE_URL or config file)")
	modeFlag := flag.String("mode", "", "Access mode: editor or commenter (default: $REDLINE_MODE or config file)")
	author := flag.String("author", "", "Comment author name (default: $REDLINE_AUTHOR or config file)")
	forceRefresh := flag.Bool("force-refresh", false, "Force refresh the document cache, bypassing any cached data")
	inMemoryCache := flag.Bool("memory", false, "Use an in-memory document cache only, do not write to disk")
	flag.Parse()

	path := *configPath
	if path == "" {
		var err error
		path, err = defaultConfigPath()
		if err != nil {
			return err
		}
	}
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	if *baseURL != "" {
		cfg.URL = *baseURL
	}
	if *modeFlag != "" {
		cfg.Mode = *modeFlag
	}
	if *author != "" {
		cfg.Author = *author
	}

	args := flag.Args()
	if len(args) == 0 {
		return fmt.Errorf("%s", usage)
	}
	command := args[0]

	// cachepath needs no backend.
	if command == "cachepath" {
		cachePath, err := getDocCachePath()
		if err != nil {
			return fmt.Errorf("failed to get cache file path: %w", err)
		}
		fmt.Println(cachePath)
		return nil
	}

	if cfg.URL == "" {
		return fmt.Errorf("redline URL is required (use -url flag, REDLINE_URL env var, or config file)")
	}
	mode, err := cfg.mode()
	if err != nil {
		return err
	}
	log, err := cfg.logger()
	if err != nil {
		return err
	}

	client := redline.NewClient(cfg.URL, mode, redline.WithLogger(log))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app := &app{
		client:       client,
		cfg:          cfg,
		forceRefresh: *forceRefresh,
		inMemory:     *inMemoryCache,
	}

	switch command {
	case "upload":
		return app.upload(ctx, args[1:])
	case "get":
		return app.get(ctx, args[1:])
	case "show":
		return app.show(ctx, args[1:])
	case "edit":
		return app.edit(ctx, args[1:])
	case "insert":
		return app.insert(ctx, args[1:])
	case "duplicate":
		return app.duplicate(ctx, args[1:])
	case "delete-para":
		return app.deletePara(ctx, args[1:])
	case "comment":
		return app.comment(ctx, args[1:])
	case "check":
		return app.check(ctx, args[1:])
	case "type":
		// Typing sessions outlive the request timeout.
		return app.typeSession(context.Background(), args[1:])
	case "versions":
		return app.versions(ctx, args[1:])
	case "version":
		return app.version(ctx, args[1:])
	case "export":
		return app.export(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

type app struct {
	client       *redline.Client
	cfg          Config
	forceRefresh bool
	inMemory     bool
}

func parseID(arg, what string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s: %s", what, arg)
	}
	return id, nil
}

func (a *app) openCache() *docCache {
	path := ""
	if !a.inMemory {
		var err error
		path, err = getDocCachePath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Could not determine cache path: %v\n", err)
		}
	}
	cache, err := openDocCache(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open document cache: %v\n", err)
		return nil
	}
	return cache
}

// loadSession fetches a document into a session wired for terminal
// status output.
func (a *app) loadSession(ctx context.Context, documentID int) (*session.Session, error) {
	sess := session.NewSession(a.client, a.client.Capabilities(),
		session.WithNotifier(func(level session.Level, msg string) {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", level, msg)
		}))
	if err := sess.Load(ctx, documentID); err != nil {
		return nil, err
	}
	return sess, nil
}

func (a *app) upload(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: redline upload <file.docx>")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer f.Close()

	result, err := a.client.UploadDocument(ctx, args[0], f)
	if err != nil {
		return fmt.Errorf("upload %s: %w", args[0], err)
	}
	return outputJSON(result)
}

func (a *app) get(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: redline get docs | redline get doc <id>")
	}

	switch args[0] {
	case "docs":
		cache := a.openCache()
		if cache != nil {
			defer cache.Close()
		}
		docs, err := listDocumentsWithCache(ctx, a.client, cache, a.forceRefresh, a.cfg.CacheTTL)
		if err != nil {
			return err
		}
		return outputJSON(docs)
	case "doc":
		if len(args) != 2 {
			return fmt.Errorf("usage: redline get doc <id>")
		}
		id, err := parseID(args[1], "document id")
		if err != nil {
			return err
		}
		doc, err := a.client.GetDocument(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get document %d: %w", id, err)
		}
		return outputJSON(doc)
	default:
		return fmt.Errorf("unknown resource: %s", args[0])
	}
}

func (a *app) show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: redline show <id>")
	}
	id, err := parseID(args[0], "document id")
	if err != nil {
		return err
	}

	doc, err := a.client.GetDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get document %d: %w", id, err)
	}

	fmt.Printf("%s (version %d, %s)\n\n", doc.Filename, doc.VersionNumber, doc.VersionStatus)
	fmt.Print(render.Paragraphs(*doc, 0))
	fmt.Println()
	fmt.Print(render.Comments(doc.Comments, time.Now()))
	return nil
}

func (a *app) edit(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: redline edit <doc> <para> <text>")
	}
	docID, err := parseID(args[0], "document id")
	if err != nil {
		return err
	}
	paraID, err := parseID(args[1], "paragraph id")
	if err != nil {
		return err
	}
	text := strings.Join(args[2:], " ")

	sess, err := a.loadSession(ctx, docID)
	if err != nil {
		return err
	}
	return sess.EditParagraph(ctx, paraID, text)
}

func (a *app) insert(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: redline insert <doc> <para>")
	}
	docID, err := parseID(args[0], "document id")
	if err != nil {
		return err
	}
	paraID, err := parseID(args[1], "paragraph id")
	if err != nil {
		return err
	}

	sess, err := a.loadSession(ctx, docID)
	if err != nil {
		return err
	}
	return sess.InsertParagraphAfter(ctx, paraID)
}

func (a *app) duplicate(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: redline duplicate <doc> <para>")
	}
	docID, err := parseID(args[0], "document id")
	if err != nil {
		return err
	}
	paraID, err := parseID(args[1], "paragraph id")
	if err != nil {
		return err
	}

	sess, err := a.loadSession(ctx, docID)
	if err != nil {
		return err
	}
	return sess.DuplicateParagraph(ctx, paraID)
}

func (a *app) deletePara(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: redline delete-para <doc> <para>")
	}
	docID, err := parseID(args[0], "document id")
	if err != nil {
		return err
	}
	paraID, err := parseID(args[1], "paragraph id")
	if err != nil {
		return err
	}

	sess, err := a.loadSession(ctx, docID)
	if err != nil {
		return err
	}
	return sess.DeleteParagraph(ctx, paraID)
}

func (a *app) comment(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: redline comment add|delete|keep ...")
	}

	switch args[0] {
	case "add":
		if len(args) < 4 {
			return fmt.Errorf("usage: redline comment add <doc> <para> <text>")
		}
		docID, err := parseID(args[1], "document id")
		if err != nil {
			return err
		}
		paraID, err := parseID(args[2], "paragraph id")
		if err != nil {
			return err
		}
		text := strings.Join(args[3:], " ")

		sess, err := a.loadSession(ctx, docID)
		if err != nil {
			return err
		}
		return sess.AddComment(ctx, paraID, a.cfg.Author, text)
	case "delete":
		if len(args) != 3 {
			return fmt.Errorf("usage: redline comment delete <doc> <comment>")
		}
		docID, err := parseID(args[1], "document id")
		if err != nil {
			return err
		}
		commentID, err := parseID(args[2], "comment id")
		if err != nil {
			return err
		}

		sess, err := a.loadSession(ctx, docID)
		if err != nil {
			return err
		}
		return sess.DeleteComment(ctx, commentID)
	case "keep":
		if len(args) != 3 {
			return fmt.Errorf("usage: redline comment keep <doc> <comment>")
		}
		docID, err := parseID(args[1], "document id")
		if err != nil {
			return err
		}
		commentID, err := parseID(args[2], "comment id")
		if err != nil {
			return err
		}

		sess, err := a.loadSession(ctx, docID)
		if err != nil {
			return err
		}
		return sess.CancelScheduledDeletion(ctx, commentID)
	default:
		return fmt.Errorf("unknown comment subcommand: %s", args[0])
	}
}

func (a *app) check(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: redline check <doc> <para> [text]")
	}
	docID, err := parseID(args[0], "document id")
	if err != nil {
		return err
	}
	paraID, err := parseID(args[1], "paragraph id")
	if err != nil {
		return err
	}

	text := strings.Join(args[2:], " ")
	if text == "" {
		doc, err := a.client.GetDocument(ctx, docID)
		if err != nil {
			return fmt.Errorf("failed to get document %d: %w", docID, err)
		}
		found := false
		for _, p := range doc.Paragraphs {
			if p.ID == paraID {
				text = p.Text
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("paragraph %d not found in document %d", paraID, docID)
		}
	}

	result, err := a.client.CheckCompliance(ctx, docID, paraID, text)
	if err != nil {
		return fmt.Errorf("compliance check: %w", err)
	}
	fmt.Print(render.ComplianceSummary(result))
	return nil
}

// typeSession reads edits for one paragraph from stdin, one line per
// revision, and drives them through the debounced autosave scheduler
// the way interactive typing would.
func (a *app) typeSession(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: redline type <doc> <para>")
	}
	docID, err := parseID(args[0], "document id")
	if err != nil {
		return err
	}
	paraID, err := parseID(args[1], "paragraph id")
	if err != nil {
		return err
	}

	sess, err := a.loadSession(ctx, docID)
	if err != nil {
		return err
	}

	sched := session.NewScheduler(a.client, sess,
		session.WithOnSave(func(id int, state session.SaveState) {
			fmt.Fprintf(os.Stderr, "paragraph %d: %s\n", id, state)
		}),
		session.WithOnCompliance(func(id int, check *redline.ComplianceCheck) {
			fmt.Fprint(os.Stderr, render.ComplianceSummary(check))
		}),
		session.WithOnVersion(func(newVersionID int) {
			fmt.Fprintf(os.Stderr, "promoted to version %d\n", newVersionID)
		}))
	defer sched.Stop()

	fmt.Fprintf(os.Stderr, "typing into paragraph %d, one revision per line, Ctrl-D to finish\n", paraID)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := sched.Keystroke(paraID, scanner.Text()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	if err := sched.Flush(ctx); err != nil {
		return err
	}
	if sess.UnsavedChanges() {
		return fmt.Errorf("unsaved changes remain for document %d", docID)
	}
	return nil
}

func (a *app) versions(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: redline versions <doc>")
	}
	docID, err := parseID(args[0], "document id")
	if err != nil {
		return err
	}

	list, err := a.client.ListVersions(ctx, docID)
	if err != nil {
		return fmt.Errorf("list versions: %w", err)
	}
	return outputJSON(list)
}

func (a *app) version(ctx context.Context, args []string) error {
	if len(args) < 2 || args[0] != "new" {
		return fmt.Errorf("usage: redline version new <doc> [notes]")
	}
	docID, err := parseID(args[1], "document id")
	if err != nil {
		return err
	}
	notes := strings.Join(args[2:], " ")

	result, err := a.client.CreateVersion(ctx, docID, notes)
	if err != nil {
		return fmt.Errorf("create version: %w", err)
	}
	return outputJSON(result)
}

func (a *app) export(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: redline export <doc> [file]")
	}
	docID, err := parseID(args[0], "document id")
	if err != nil {
		return err
	}

	export, err := a.client.ExportDocument(ctx, docID, true)
	if err != nil {
		return fmt.Errorf("export document %d: %w", docID, err)
	}

	out := export.Filename
	if len(args) > 1 {
		out = args[1]
	}
	if err := os.WriteFile(out, export.Data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Printf("wrote %s (%d bytes)\n", out, len(export.Data))
	return nil
}
