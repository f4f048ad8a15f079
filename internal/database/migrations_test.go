package database

import (
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nutrilog/backend/internal/meals"
)

func TestApplyMigrationsBackfillsItemSource(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&meals.Meal{}, &meals.MealItem{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	legacy := meals.MealItem{
		ID:       "item-1",
		MealID:   "meal-1",
		FoodID:   "food-egg",
		Name:     "egg",
		Quantity: 1,
		Unit:     "piece",
	}
	if err := database.Create(&legacy).Error; err != nil {
		testContext.Fatalf("failed to insert legacy item: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var stored meals.MealItem
	if err := database.Where("id = ?", legacy.ID).Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload item: %v", err)
	}
	if stored.Source != "llm_estimated" {
		testContext.Fatalf("expected backfilled source, got %q", stored.Source)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationBackfillItemSource).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}

	// Second run is a no-op for already applied migrations.
	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("expected reapply to succeed: %v", err)
	}
}
