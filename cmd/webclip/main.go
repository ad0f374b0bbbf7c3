package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"webclip/internal/app"
	"webclip/internal/apperr"
	"webclip/internal/config"
	"webclip/internal/logger"
	"webclip/internal/models"
	"webclip/internal/services"
)

func loadApp(cmd *cli.Command) (*app.App, error) {
	cfg, err := config.LoadApp(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return app.New(cfg)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	return a.Serve(ctx)
}

func publish(ctx context.Context, cmd *cli.Command) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}

	title, content, err := readDocument(ctx, cmd, a.Extractor, a.Converter)
	if err != nil {
		return err
	}

	res, err := a.Publisher.Publish(ctx, title, []byte(content))
	if err != nil {
		return errors.New(apperr.UserMessage(err))
	}
	return printJSON(res)
}

func convert(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewDefaultConfig()
	log := logger.New(logger.Options{Level: cfg.App.LogLevel, Format: cfg.App.LogFormat, Service: "webclip"})
	extractor := services.NewExtractor(nil, logger.Named(log, "extractor"))

	_, content, err := readDocument(ctx, cmd, extractor, services.NewConverter())
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(os.Stdout, content)
	return err
}

func authURL(_ context.Context, cmd *cli.Command) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, a.Credentials.AuthorizationURL())
	return err
}

// readDocument returns a title and Markdown body from --url (fetched and converted) or
// --file (an .html file is converted, anything else is taken as Markdown).
func readDocument(ctx context.Context, cmd *cli.Command, extractor *services.Extractor, converter *services.Converter) (string, string, error) {
	pageURL, file := cmd.String("url"), cmd.String("file")
	if (pageURL == "") == (file == "") {
		return "", "", errors.New("exactly one of --url or --file is required")
	}

	var page models.PageContent
	var markdown string
	switch {
	case pageURL != "":
		p, err := extractor.Extract(ctx, pageURL)
		if err != nil {
			return "", "", errors.New(apperr.UserMessage(err))
		}
		page = p
	default:
		data, err := os.ReadFile(file)
		if err != nil {
			return "", "", fmt.Errorf("read %s: %w", file, err)
		}
		switch strings.ToLower(filepath.Ext(file)) {
		case ".html", ".htm":
			p, err := services.ExtractHTML(bytes.NewReader(data))
			if err != nil {
				return "", "", err
			}
			page = p
		default:
			page.Title = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			markdown = string(data)
		}
	}

	if markdown == "" && page.Content != "" {
		md, err := converter.Convert(page.Content)
		if err != nil {
			return "", "", err
		}
		markdown = md
	}

	title := strings.TrimSpace(cmd.String("title"))
	if title == "" {
		title = page.Title
	}
	return title, markdown, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "Web page to fetch"},
		&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Local .html or Markdown file"},
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "webclip",
		Usage: "Clip web pages as Markdown into Feishu Drive",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the local action API",
				Action: serve,
			},
			{
				Name:  "publish",
				Usage: "Publish a page or file as Markdown",
				Flags: append(sourceFlags(),
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Document title, defaults to the page title or file name"},
				),
				Action: publish,
			},
			{
				Name:   "convert",
				Usage:  "Print the Markdown rendition of a page or HTML file",
				Flags:  sourceFlags(),
				Action: convert,
			},
			{
				Name:   "auth-url",
				Usage:  "Print the authorization URL for the configured app",
				Action: authURL,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "webclip:", err)
		os.Exit(1)
	}
}
