package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/todo-app/internal/config"
	sqliteRepo "github.com/sakif/todo-app/internal/repository/sqlite"
	"github.com/sakif/todo-app/internal/service"
)

// demoCategory is where the demo todo goes when it exists.
const demoCategory = "Non-urgent"

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert default categories and the demo todo",
	Long: `Create the default categories when none exist, then add the demo todo
when the todo table is empty. Running it twice changes nothing.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	if err := ensureDBDir(cfg.DBPath); err != nil {
		return err
	}
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	categories := service.NewCategoryService(db, logger)
	if _, err := categories.SeedDefaults(ctx); err != nil {
		return err
	}

	list, err := categories.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return fmt.Errorf("seed: no categories to attach the demo todo to")
	}
	categoryID := list[0].ID
	for _, c := range list {
		if c.Name == demoCategory {
			categoryID = c.ID
			break
		}
	}

	admin := service.NewAdminService(db, db, logger)
	inserted, err := admin.SeedDemo(ctx, categoryID)
	if err != nil {
		return err
	}
	if inserted {
		logger.Info("demo todo inserted",
			slog.String("user_id", service.DemoUserID),
			slog.Int64("category_id", categoryID),
		)
	} else {
		logger.Info("todos already present; demo todo skipped")
	}
	return nil
}
