package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mtx/internal/formatter"
	"github.com/desertthunder/mtx/internal/shared"
	"github.com/urfave/cli/v3"
)

// MaterialsList lists the materials of a notebook.
func (r *Runner) MaterialsList(ctx context.Context, cmd *cli.Command) error {
	notebookID := cmd.StringArg("notebook-id")
	if notebookID == "" {
		return fmt.Errorf("%w: notebook id", shared.ErrMissingArgument)
	}

	r.logger.Debug("listing materials", "notebook", notebookID)

	list, err := r.materials.ListMaterials(ctx, notebookID)
	if err != nil {
		return fmt.Errorf("failed to list materials: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(list, cmd.Bool("pretty"))
	}
	return r.writeRaw(formatter.MaterialsToText(list))
}

// MaterialsGet prints a single material.
func (r *Runner) MaterialsGet(ctx context.Context, cmd *cli.Command) error {
	materialID := cmd.StringArg("material-id")
	if materialID == "" {
		return fmt.Errorf("%w: material id", shared.ErrMissingArgument)
	}

	material, err := r.materials.GetMaterial(ctx, materialID)
	if err != nil {
		return fmt.Errorf("failed to get material: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(material, cmd.Bool("pretty"))
	}
	return r.writeRaw(formatter.MaterialToText(material))
}

// MaterialsDelete deletes a material from the backend.
func (r *Runner) MaterialsDelete(ctx context.Context, cmd *cli.Command) error {
	materialID := cmd.StringArg("material-id")
	if materialID == "" {
		return fmt.Errorf("%w: material id", shared.ErrMissingArgument)
	}

	if err := r.materials.DeleteMaterial(ctx, materialID); err != nil {
		return fmt.Errorf("failed to delete material: %w", err)
	}

	r.logger.Info("material deleted", "material", materialID)
	return r.writePlain("✓ Deleted %s\n", materialID)
}
