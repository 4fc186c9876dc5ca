package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/appforge/internal/metrics"
	"github.com/p-blackswan/appforge/internal/packaging"
	"github.com/p-blackswan/appforge/internal/specialist"
	"github.com/p-blackswan/appforge/internal/workflow"
)

type generateOptions struct {
	name         string
	description  string
	requirements string
	appType      string
	architecture string
	platforms    []string
	out          string
}

func newGenerateCmd() *cobra.Command {
	opts := generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the full pipeline in-process and write the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.name, "name", "", "application name")
	f.StringVar(&opts.description, "description", "", "short description")
	f.StringVar(&opts.requirements, "requirements", "", "free-text requirements")
	f.StringVar(&opts.appType, "app-type", "web", "application type")
	f.StringVar(&opts.architecture, "architecture", "modular", "architecture tag")
	f.StringSliceVar(&opts.platforms, "platform", []string{packaging.PlatformWeb}, "target platform (repeatable): web, mobile, desktop")
	f.StringVar(&opts.out, "out", ".", "directory the archive is written under")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

// printObserver streams run progress to the command output.
type printObserver struct{ w io.Writer }

func (printObserver) StageStarted(string, string) {}

func (o printObserver) StageFinished(res specialist.StageResult, progress int) {
	fmt.Fprintf(o.w, "[%3d%%] %s %s\n", progress, res.Stage, res.Status)
}

func (o printObserver) Log(msg string) { fmt.Fprintln(o.w, msg) }

func runGenerate(cmd *cobra.Command, opts generateOptions) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	pkgCfg := packaging.Config{
		Name:         opts.name,
		Description:  opts.description,
		Platforms:    opts.platforms,
		Architecture: opts.architecture,
	}
	if err := pkgCfg.Validate(); err != nil {
		return err
	}

	pl, err := newPipeline(cfg, afero.NewOsFs(), opts.out, metrics.New(), logger)
	if err != nil {
		return err
	}
	if len(pl.router.Providers()) == 0 {
		return errors.New("no completion provider configured: set OPENAI_API_KEY or GEMINI_API_KEY")
	}

	id := uuid.New().String()
	run := pl.engine.Run(cmd.Context(), workflow.Request{
		ProjectID:    id,
		Name:         opts.name,
		Requirements: opts.requirements,
		AppType:      opts.appType,
		Platforms:    opts.platforms,
		Architecture: opts.architecture,
	}, printObserver{w: cmd.ErrOrStderr()})
	if run.Status != workflow.RunCompleted {
		return fmt.Errorf("generation failed: %s", run.Error)
	}

	bundle, err := pl.packager.Materialize(id, pkgCfg, run.Integrated().Stages)
	if err != nil {
		return fmt.Errorf("packaging failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), bundle.PackagePath)
	return nil
}
