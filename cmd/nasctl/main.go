package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/silvercare/nas-gateway/internal/config"
	"github.com/silvercare/nas-gateway/internal/gateway"
	"github.com/silvercare/nas-gateway/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var flagTimeout = &cli.DurationFlag{
	Name:  "timeout",
	Value: 30 * time.Second,
	Usage: "Time limit for a single store request",
}

var flagName = &cli.StringFlag{
	Name:  "name",
	Usage: "Asset name to store the file under (defaults to the file's base name)",
}

var flagDebug = &cli.BoolFlag{
	Name:  "debug",
	Usage: "Enable debug logging",
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}

	app := &cli.App{
		Name:  "nasctl",
		Usage: "resolve, upload and delete assets on the configured NAS",
		Flags: []cli.Flag{flagTimeout, flagDebug},
		Before: func(cCtx *cli.Context) error {
			if cCtx.Bool(flagDebug.Name) {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "resolve",
				Usage:     "Print the public URL of an asset",
				ArgsUsage: "NAME",
				Action: func(cCtx *cli.Context) error {
					gw, err := newGateway()
					if err != nil {
						return err
					}
					url, err := gw.SafeURL(cCtx.Args().First())
					if err != nil {
						return err
					}
					fmt.Println(url)
					return nil
				},
			},
			{
				Name:      "upload",
				Usage:     "Upload a local file",
				ArgsUsage: "FILE",
				Flags:     []cli.Flag{flagName},
				Action: func(cCtx *cli.Context) error {
					path := cCtx.Args().First()
					if path == "" {
						return fmt.Errorf("upload needs a file argument")
					}
					content, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("failed to read %s: %w", path, err)
					}

					name := cCtx.String(flagName.Name)
					if name == "" {
						name = filepath.Base(path)
					}

					gw, err := newGateway()
					if err != nil {
						return err
					}

					ctx, cancel := context.WithTimeout(cCtx.Context, cCtx.Duration(flagTimeout.Name))
					defer cancel()

					result, err := gw.Upload(ctx, models.AssetFile{Name: name, Content: content})
					if err != nil {
						return err
					}
					return printResult(result, gw.ResolveURL(name))
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete an asset",
				ArgsUsage: "NAME",
				Action: func(cCtx *cli.Context) error {
					gw, err := newGateway()
					if err != nil {
						return err
					}

					ctx, cancel := context.WithTimeout(cCtx.Context, cCtx.Duration(flagTimeout.Name))
					defer cancel()

					result, err := gw.Delete(ctx, cCtx.Args().First())
					if err != nil {
						return err
					}
					return printResult(result, "")
				},
			},
			{
				Name:  "ping",
				Usage: "Check that the NAS answers",
				Action: func(cCtx *cli.Context) error {
					gw, err := newGateway()
					if err != nil {
						return err
					}

					ctx, cancel := context.WithTimeout(cCtx.Context, cCtx.Duration(flagTimeout.Name))
					defer cancel()

					if err := gw.Ping(ctx); err != nil {
						return err
					}
					fmt.Println("NAS reachable")
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newGateway() (*gateway.Gateway, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return gateway.New(cfg.Store()), nil
}

func printResult(result *models.OperationResult, url string) error {
	fmt.Printf("%s %s: status %d\n", result.Operation, result.Asset, result.StatusCode)
	if len(result.Body) > 0 {
		fmt.Println(string(result.Body))
	}
	if url != "" {
		fmt.Printf("URL: %s\n", url)
	}
	return nil
}
