package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ytget/yolo-vision/internal/infer"
	"github.com/ytget/yolo-vision/internal/model"
	"github.com/ytget/yolo-vision/internal/session"
)

func detectCommand() *cli.Command {
	return &cli.Command{
		Name:      "detect",
		Usage:     "run detection on a single image",
		ArgsUsage: "<image>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagOutput, Aliases: []string{"o"}, Usage: "write the annotated JPEG to `FILE`"},
			&cli.StringFlag{Name: flagTask, Usage: "detect or segment", Value: string(model.TaskDetect)},
			&cli.Float64Flag{Name: flagConfidence, Usage: "confidence threshold (0.25..1)"},
		},
		Action: detectAction,
	}
}

func detectAction(c *cli.Context) (err error) {
	if c.NArg() != 1 {
		return cli.ShowSubcommandHelp(c)
	}
	settings := loadSettings(c)
	logger, err := newLogger(settings)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	task, err := model.ParseModelTask(c.String(flagTask))
	if err != nil {
		return err
	}
	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	detectors, err := infer.NewRegistry(infer.RegistryConfig{
		DetectionModel:    settings.DetectionModel,
		SegmentationModel: settings.SegmentationModel,
		LabelsFile:        settings.LabelsFile,
		UseCUDA:           settings.UseCUDA,
	}, logger.Named("infer"))
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, detectors.Close()) }()

	svc := session.NewService(session.ConfigFromSettings(settings), detectors, nil, nil, logger.Named("session"))
	res, err := svc.DetectImage(data, task, settings.GetDefaultConfidence())
	if err != nil {
		return err
	}

	logger.Info("detected",
		zap.Int("objects", len(res.Detections)),
		zap.Int64("elapsed_ms", res.ElapsedMS))
	for _, d := range res.Detections {
		fmt.Printf("%-16s %.2f  %v\n", d.Label, d.Confidence, d.Box)
	}

	if out := c.String(flagOutput); out != "" {
		if !strings.HasSuffix(strings.ToLower(out), ".jpg") && !strings.HasSuffix(strings.ToLower(out), ".jpeg") {
			out += ".jpg"
		}
		if err := os.WriteFile(out, res.JPEG, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		fmt.Printf("annotated image written to %s\n", out)
	}
	return nil
}
