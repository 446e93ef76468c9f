package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ytget/yolo-vision/internal/youtube"
)

func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "resolve a YouTube URL to a playable stream URL",
		ArgsUsage: "<url>",
		Action:    resolveAction,
	}
}

func resolveAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowSubcommandHelp(c)
	}
	settings := loadSettings(c)
	logger, err := newLogger(settings)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	resolver := youtube.NewResolver(youtube.NewYTDLPExtractor(settings.YTDLPPath),
		youtube.WithTimeout(settings.ResolveTimeout),
		youtube.WithMaxHeight(settings.YouTubeResolution),
		youtube.WithLogger(logger.Named("youtube")),
	)

	stream, err := resolver.Resolve(c.Context, c.Args().First())
	if err != nil {
		var rerr *youtube.ResolveError
		if errors.As(err, &rerr) {
			fmt.Fprintf(os.Stderr, "Possible solutions:\n  - %s\n", strings.Join(rerr.Hints(), "\n  - "))
		}
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stream)
}
