package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"keyevolve/internal/corpus"
)

func runExtract(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	inputPath := fs.String("in", "", "input abstracts CSV path")
	outputPath := fs.String("out", "", "output corpus path")
	hasHeader := fs.Bool("has-header", false, "input CSV has header row")
	textCol := fs.String("text-col", "", "abstract column name (header mode)")
	textIndex := fs.Int("text-index", corpus.DefaultAbstractOptions().ColumnIndex, "abstract column index")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*inputPath) == "" || strings.TrimSpace(*outputPath) == "" {
		return errors.New("extract requires --in and --out")
	}
	if *textCol != "" && !*hasHeader {
		return errors.New("--text-col requires --has-header")
	}

	in, err := os.Open(*inputPath)
	if err != nil {
		return err
	}
	defer in.Close()

	if dir := filepath.Dir(*outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	out, err := os.Create(*outputPath)
	if err != nil {
		return err
	}

	lines, err := corpus.ExtractAbstractsCSV(in, out, corpus.AbstractOptions{
		HasHeader:   *hasHeader,
		ColumnName:  *textCol,
		ColumnIndex: *textIndex,
	})
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	info, err := os.Stat(*outputPath)
	if err != nil {
		return err
	}
	fmt.Printf("extracted lines=%s size=%s to=%s\n",
		humanize.Comma(int64(lines)),
		humanize.Bytes(uint64(info.Size())),
		filepath.Clean(*outputPath),
	)
	return nil
}
