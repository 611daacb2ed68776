//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hugh/projectflow/internal/database"
	"github.com/hugh/projectflow/internal/database/models"
	"github.com/hugh/projectflow/internal/storage"
	"github.com/hugh/projectflow/pkg/config"
	"github.com/hugh/projectflow/pkg/crypto"
	"github.com/hugh/projectflow/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env, "")

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	if cfg.Encryption.Key == "" {
		log.Fatal("ENCRYPTION_KEY must be set so the server can read seeded credentials")
	}
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		log.Fatalf("failed to create encryptor: %v", err)
	}

	ctx := context.Background()
	store := storage.NewStore(db, encryptor, logger)

	email := os.Getenv("SEED_EMAIL")
	if email == "" {
		email = "dev@example.com"
	}

	owner, err := store.UpsertUser(ctx, &models.User{
		Email:     email,
		FirstName: "Dev",
		LastName:  "User",
	})
	if err != nil {
		log.Fatalf("failed to create user: %v", err)
	}

	project, err := store.CreateProject(ctx, storage.CreateProjectInput{
		Name:        "Website Relaunch",
		Description: "Sample project created by the seed script",
		OwnerID:     owner.ID,
		Color:       "#3b82f6",
	})
	if err != nil {
		log.Fatalf("failed to create project: %v", err)
	}

	due := time.Now().AddDate(0, 0, 7)
	seedTasks := []storage.CreateTaskInput{
		{Title: "Draft sitemap", Status: models.TaskStatusDone, Priority: models.PriorityMedium, Progress: 100},
		{Title: "Design landing page", Status: models.TaskStatusInProgress, Priority: models.PriorityHigh, Progress: 40, DueDate: &due},
		{Title: "Write launch announcement", Status: models.TaskStatusTodo, Priority: models.PriorityLow},
	}
	for i, in := range seedTasks {
		in.ProjectID = project.ID
		in.CreatedByID = owner.ID
		in.Position = i
		task, err := store.CreateTask(ctx, in)
		if err != nil {
			log.Fatalf("failed to create task: %v", err)
		}
		if _, err := store.CreateActivity(ctx, storage.CreateActivityInput{
			Type:        models.ActivityTaskCreated,
			Description: fmt.Sprintf("Created task %q", task.Title),
			ProjectID:   project.ID,
			UserID:      owner.ID,
			EntityID:    task.ID,
		}); err != nil {
			log.Fatalf("failed to record activity: %v", err)
		}
	}

	if _, err := store.CreateAiSuggestion(ctx, storage.CreateSuggestionInput{
		Type:        "deadline",
		Title:       "Schedule a design review",
		Description: "The landing page is due in a week and has no review scheduled.",
		ProjectID:   project.ID,
		Priority:    models.PriorityMedium,
	}); err != nil {
		log.Fatalf("failed to create suggestion: %v", err)
	}

	fmt.Println("Seed data created successfully!")
	fmt.Printf("User:    %s (%s)\n", owner.Email, owner.ID)
	fmt.Printf("Project: %s (%s)\n", project.Name, project.ID)
}
