package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"foodbot/api/internal/analyzer"
	"foodbot/api/internal/config"
	"foodbot/api/internal/engines"
	"foodbot/api/internal/imagecodec"
	"foodbot/api/internal/logging"
	"foodbot/api/internal/store"
)

func main() {
	if err := mainImpl(); err != nil {
		log.Fatal(err)
	}
}

func mainImpl() error {
	verbose := flag.Bool("v", false, "also print the image description")
	provider := flag.String("llm", "", "provider to use (default: LLM_PROVIDER)")
	flag.Parse()

	cfg := config.Load()
	closeLog, err := logging.Setup(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()
	if *provider != "" {
		cfg.Provider = strings.ToLower(*provider)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	reg, err := engines.Build(cfg)
	if err != nil {
		return err
	}
	a, err := reg.Get("")
	if err != nil {
		return err
	}
	c := &console{a: a, timeout: cfg.RequestTimeout, verbose: *verbose, out: os.Stdout}

	if dsn := store.ResolveDSN(cfg.DatabaseURL); dsn != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, repo, err := store.OpenHistory(ctx, dsn, cfg.HistoryRetention)
		cancel()
		if err != nil {
			return err
		}
		defer db.Close()
		c.hist = repo
	}

	// Paths given on the command line are analyzed once, without a prompt.
	if flag.NArg() > 0 {
		for _, p := range flag.Args() {
			if err := c.analyzeFile(p); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		}
		return nil
	}

	rl, err := readline.New("imagem> ")
	if err != nil {
		return err
	}
	defer func() {
		_ = rl.Close()
	}()
	fmt.Println("Informe o caminho de uma foto JPEG ou PNG (Ctrl-D para sair).")
	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or interrupt
			break
		}
		line = strings.Trim(strings.TrimSpace(line), `"'`)
		if line == "" {
			continue
		}
		if err := c.analyzeFile(line); err != nil {
			fmt.Fprintln(c.out, err)
		}
	}
	return nil
}

type recorder interface {
	Insert(ctx context.Context, a *store.Analysis) error
}

type console struct {
	a       *analyzer.Analyzer
	timeout time.Duration
	verbose bool
	out     io.Writer
	hist    recorder // nil without a database
}

func (c *console) analyzeFile(path string) error {
	b64, err := imagecodec.EncodeFile(path)
	if err != nil {
		if errors.Is(err, imagecodec.ErrNotFound) {
			return fmt.Errorf("arquivo não encontrado: %s", path)
		}
		return err
	}
	img, err := imagecodec.Decode(b64)
	if err != nil {
		return err
	}
	if mime := imagecodec.DetectMIME(img); !imagecodec.IsSupportedImage(mime) {
		return fmt.Errorf("tipo não suportado: %s", mime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	fmt.Fprintln(c.out, "Analisando a imagem ...")
	res, err := c.a.Analyze(ctx, img)
	if err != nil {
		return err
	}
	if c.verbose {
		fmt.Fprintf(c.out, "\nDescrição:\n%s\n", res.Description)
	}
	fmt.Fprintf(c.out, "\nAnálise nutricional:\n%s\n\n", res.Analysis)
	c.record(img, res)
	return nil
}

func (c *console) record(img []byte, res analyzer.Result) {
	if c.hist == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.hist.Insert(ctx, &store.Analysis{
		Source:      "console",
		ImageHash:   store.ImageHash(img),
		ImageMIME:   res.ImageMIME,
		Provider:    res.Provider,
		VisionModel: res.VisionModel,
		TextModel:   res.TextModel,
		Description: res.Description,
		Analysis:    res.Analysis,
		ElapsedMS:   res.Elapsed.Milliseconds(),
	})
	if err != nil {
		log.Printf("history insert: %v", err)
	}
}
