// Command inspect prints the stored content collections.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/debemdeboas/lending-admin/internal/config"
	"github.com/debemdeboas/lending-admin/internal/editor"
	"github.com/debemdeboas/lending-admin/internal/gateway"
	"github.com/debemdeboas/lending-admin/internal/logger"
	"github.com/debemdeboas/lending-admin/internal/model"
	"github.com/debemdeboas/lending-admin/internal/repository"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the config file")
	only := flag.String("resource", "", "Only print this collection")
	flag.Parse()

	log := logger.New("warn")
	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	ctx := context.Background()
	repo, err := repository.Open(ctx, config.AppConfig.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening repository")
	}
	defer repo.Close()

	registry := editor.DefaultRegistry()
	keys := registry.Keys()
	if *only != "" {
		if _, ok := registry.Get(model.ResourceKey(*only)); !ok {
			log.Fatal().Str("resource", *only).Msg("Unknown resource")
		}
		keys = []model.ResourceKey{model.ResourceKey(*only)}
	}

	hub := gateway.NewHub(repo)
	for _, key := range keys {
		res, _ := registry.Get(key)
		summaries, err := res.Summaries(ctx, hub)
		printCollection(os.Stdout, key, summaries, err)
	}
}

func printCollection(w io.Writer, key model.ResourceKey, summaries []editor.Summary, err error) {
	fmt.Fprintln(w, titleStyle.Render(string(key)))

	switch {
	case errors.Is(err, model.ErrNotFound):
		fmt.Fprintln(w, mutedStyle.Render("not stored yet"))
	case err != nil:
		fmt.Fprintln(w, errorStyle.Render(err.Error()))
	case len(summaries) == 0:
		fmt.Fprintln(w, mutedStyle.Render("empty"))
	default:
		fmt.Fprintln(w, summaryTable(summaries))
	}
	fmt.Fprintln(w)
}

func summaryTable(summaries []editor.Summary) string {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{strconv.Itoa(s.Order), s.Title, string(s.ID)})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers("#", "Title", "ID").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}
