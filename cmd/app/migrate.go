package main

import (
	"context"

	"github.com/waste3d/coursemarket-api/internal/domain"
	"github.com/waste3d/coursemarket-api/internal/infrastructure/repository"
	"github.com/waste3d/coursemarket-api/internal/obs"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var migrateSeed bool

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations (and optionally seed demo courses)",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer closeDB(db)
			obs.Logger.Info("migrations applied")

			if migrateSeed {
				return seedCourses(cmd.Context(), repository.NewCourseRepository(db))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&migrateSeed, "seed", false, "insert demo courses when the catalog is empty")
	return cmd
}

var seedData = []domain.Course{
	{
		ID:          "go-backend-fundamentals",
		Title:       "Go Backend Fundamentals",
		Description: "HTTP services, databases and testing in Go.",
		Thumbnail:   "https://images.unsplash.com/photo-1526379095098-d400fd0bf935?auto=format&fit=crop&w=800&q=80",
		EducatorID:  "educator_seed",
		Price:       decimal.RequireFromString("49.99"),
		Discount:    decimal.NewFromInt(15),
		IsPublished: true,
	},
	{
		ID:          "ux-ui-from-scratch",
		Title:       "UX/UI Design from Scratch",
		Description: "Build usable interfaces in Figma.",
		Thumbnail:   "https://images.unsplash.com/photo-1561070791-2526d30994b5?auto=format&fit=crop&w=800&q=80",
		EducatorID:  "educator_seed",
		Price:       decimal.NewFromInt(80),
		Discount:    decimal.Zero,
		IsPublished: true,
	},
	{
		ID:          "intro-to-programming",
		Title:       "Intro to Programming",
		Description: "A free first step.",
		EducatorID:  "educator_seed",
		Price:       decimal.Zero,
		Discount:    decimal.Zero,
		IsPublished: true,
	},
}

func seedCourses(ctx context.Context, repo *repository.CourseRepository) error {
	count, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		obs.Logger.Info("catalog not empty, seed skipped", "courses", count)
		return nil
	}
	for i := range seedData {
		if err := repo.Save(ctx, &seedData[i]); err != nil {
			return err
		}
	}
	obs.Logger.Info("db seeded with default courses", "courses", len(seedData))
	return nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
