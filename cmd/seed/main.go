package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"biblioteca/internal/auth"
	"biblioteca/internal/config"
	"biblioteca/internal/db"
	apperrors "biblioteca/internal/errors"
	"biblioteca/internal/model"
	"biblioteca/internal/repository"
	"biblioteca/internal/service"
	"biblioteca/internal/validation"
)

func main() {
	booksPath := flag.String("books", "cmd/seed/books.json", "JSON file with the books to load")
	adminUser := flag.String("admin-username", "", "create an administrator with this username")
	adminEmail := flag.String("admin-email", "", "administrator email")
	adminPassword := flag.String("admin-password", "", "administrator password")
	flag.Parse()

	log.Println("Starting seed script...")

	// Load configuration
	cfg := config.Load()

	// Connect to database
	gormDB, err := db.Open(cfg.DBDriver, cfg.DSN(), cfg.DBLogLevel)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	// Run migrations to ensure schema is up to date
	if err := db.Migrate(gormDB, false); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	v := validation.New()
	loanRepo := repository.NewLoanRepository(gormDB)
	catalog := service.NewCatalogService(repository.NewBookRepository(gormDB), loanRepo, v)
	ctx := context.Background()

	books, err := loadBooks(*booksPath)
	if err != nil {
		log.Fatalf("Failed to load books: %v", err)
	}
	log.Printf("Read %d books from %s", len(books), *booksPath)

	created, skipped, err := seedBooks(ctx, catalog, books)
	if err != nil {
		log.Fatalf("Failed to seed books: %v", err)
	}

	if *adminUser != "" {
		authService := service.NewAuthService(
			repository.NewUserRepository(gormDB),
			repository.NewProfileRepository(gormDB),
			auth.NewJWTService(cfg.JWTSecret),
			nil,
			v,
		)
		if err := seedAdministrator(ctx, authService, *adminUser, *adminEmail, *adminPassword); err != nil {
			log.Fatalf("Failed to create administrator: %v", err)
		}
	}

	log.Printf("Seed completed successfully!")
	log.Printf("  - New books created: %d", created)
	log.Printf("  - Existing books skipped: %d", skipped)
}

// loadBooks reads the seed file: a JSON array of book forms.
func loadBooks(path string) ([]service.BookInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var books []service.BookInput
	if err := json.Unmarshal(data, &books); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return books, nil
}

// seedBooks creates every book not already in the catalog under the same
// title and author. Invalid entries stop the run.
func seedBooks(ctx context.Context, catalog service.CatalogService, books []service.BookInput) (created int, skipped int, err error) {
	for _, in := range books {
		exists, err := inCatalog(ctx, catalog, in)
		if err != nil {
			return created, skipped, err
		}
		if exists {
			skipped++
			continue
		}

		book, err := catalog.Create(ctx, in)
		if err != nil {
			return created, skipped, fmt.Errorf("error creating book %q: %w", in.Title, err)
		}
		log.Printf("Created %s", book)
		created++
	}
	return created, skipped, nil
}

func inCatalog(ctx context.Context, catalog service.CatalogService, in service.BookInput) (bool, error) {
	_, err := catalog.FindByTitleAndAuthor(ctx, in.Title, in.Author)
	if errors.Is(err, apperrors.ErrBookNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error checking book %q: %w", strings.TrimSpace(in.Title), err)
	}
	return true, nil
}

// seedAdministrator registers an administrator account unless the username is taken.
func seedAdministrator(ctx context.Context, authService service.AuthService, username, email, password string) error {
	user, err := authService.Register(ctx, service.RegisterInput{
		Username:        username,
		FirstName:       "Library",
		LastName:        "Administrator",
		Email:           email,
		Password:        password,
		PasswordConfirm: password,
		Role:            model.RoleAdministrator,
	})
	if errors.Is(err, service.ErrUserAlreadyExists) {
		log.Printf("Administrator %q already exists", username)
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("Created administrator %q (id %d)", user.Username, user.ID)
	return nil
}
