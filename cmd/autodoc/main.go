package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/vitalvas/autodoc/config"
	"github.com/vitalvas/autodoc/openapi"
	"github.com/vitalvas/autodoc/store"
	"gopkg.in/yaml.v3"
)

// Globals are shared by every command.
type Globals struct {
	Config string `help:"Path to the autodoc config file (yaml, toml or json)." short:"c" env:"AUTODOC_CONFIG"`
	Debug  bool   `help:"Enable debug logging."`
}

func (g *Globals) logger() *slog.Logger {
	level := slog.LevelInfo
	if g.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (g *Globals) load() (*config.Config, store.DocumentStore, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.New(cfg.StoreConfig())
	if err != nil {
		return nil, nil, err
	}
	return cfg, st, nil
}

type CLI struct {
	Globals

	Version VersionCmd `cmd:"" help:"Print version information."`
	Serve   ServeCmd   `cmd:"" help:"Serve the committed document and its docs UI."`
	Show    ShowCmd    `cmd:"" help:"Print the committed document."`
	Reset   ResetCmd   `cmd:"" help:"Discard the staged document of an unfinished run."`
	Stores  StoresCmd  `cmd:"" help:"List the available store backends."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run(ctx *kong.Context) error {
	fmt.Fprintln(ctx.Stdout, Version())
	return nil
}

type ServeCmd struct {
	Listen string `help:"Address to listen on." default:":8080" short:"l"`
	Prefix string `help:"Path prefix of the docs endpoints." default:"/docs"`
	UI     string `help:"Docs UI to serve." default:"swagger" enum:"swagger,rapidoc,redoc"`
	NoUI   bool   `help:"Serve only the JSON and YAML documents." name:"no-ui"`
}

func (c *ServeCmd) handler(st store.DocumentStore, logger *slog.Logger) http.Handler {
	ui := openapi.DocsSwaggerUI
	switch c.UI {
	case "rapidoc":
		ui = openapi.DocsRapiDoc
	case "redoc":
		ui = openapi.DocsRedoc
	}

	mux := http.NewServeMux()
	openapi.Handle(mux, c.Prefix, st, &openapi.HandleConfig{
		UI:          ui,
		DisableDocs: c.NoUI,
	})
	return withRequestID(withRecovery(logger, withNoCache(mux)))
}

func (c *ServeCmd) Run(g *Globals) error {
	_, st, err := g.load()
	if err != nil {
		return err
	}

	logger := g.logger()

	srv := &http.Server{
		Addr:              c.Listen,
		Handler:           c.handler(st, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving documentation", "listen", c.Listen, "prefix", c.Prefix)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

type ShowCmd struct {
	Format string `help:"Output format." default:"json" enum:"json,yaml" short:"f"`
}

func (c *ShowCmd) Run(ctx *kong.Context, g *Globals) error {
	_, st, err := g.load()
	if err != nil {
		return err
	}

	doc, err := st.ReadProduction()
	if err != nil {
		return err
	}

	var data []byte
	if c.Format == "yaml" {
		data, err = yaml.Marshal(doc)
	} else {
		data, err = json.MarshalIndent(doc, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return err
	}

	_, err = ctx.Stdout.Write(data)
	return err
}

var errNoStagedTarget = errors.New("the memory store keeps no staged document across processes")

type ResetCmd struct{}

func (c *ResetCmd) Run(ctx *kong.Context, g *Globals) error {
	_, st, err := g.load()
	if err != nil {
		return err
	}

	if _, ok := st.(*store.MemoryStore); ok {
		return errNoStagedTarget
	}

	if err := st.ClearStaged(); err != nil {
		return err
	}

	if fileStore, ok := st.(*store.FileStore); ok {
		fmt.Fprintln(ctx.Stdout, "staged document discarded:", fileStore.StagedPath())
		return nil
	}
	fmt.Fprintln(ctx.Stdout, "staged document discarded")
	return nil
}

type StoresCmd struct{}

func (c *StoresCmd) Run(ctx *kong.Context) error {
	for _, kind := range append([]string{store.KindJSON, store.KindYAML, store.KindMemory}, store.Backends()...) {
		fmt.Fprintln(ctx.Stdout, kind)
	}
	return nil
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("autodoc"),
		kong.Description("Inspect and serve OpenAPI documents recorded from test runs."),
		kong.UsageOnError(),
	}, options...)
	return kong.New(cli, options...)
}

func main() {
	cli := &CLI{}
	parser, err := newParser(cli)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	err = ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
