// normalize_emails lower-cases and trims stored user e-mails. Rows whose
// normalized address collides with another user are reported and left alone.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/huangang/thesisdesk/internal/config"
	"github.com/huangang/thesisdesk/internal/models"
	"github.com/huangang/thesisdesk/internal/services"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type report struct {
	Scanned   int
	Updated   int
	Conflicts map[string][]string
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	dryRun := flag.Bool("dry-run", false, "report changes without writing them")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	db, err := models.Open(&cfg.Database, gormlogger.Warn)
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}

	r, err := normalizeEmails(db, *dryRun)
	if err != nil {
		fmt.Printf("Failed to normalize emails: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Scanned %d users, updated %d", r.Scanned, r.Updated)
	if *dryRun {
		fmt.Print(" (dry run)")
	}
	fmt.Println()

	if len(r.Conflicts) == 0 {
		return
	}
	emails := make([]string, 0, len(r.Conflicts))
	for email := range r.Conflicts {
		emails = append(emails, email)
	}
	sort.Strings(emails)
	fmt.Println("")
	fmt.Printf("%-40s %s\n", "Email", "User IDs")
	fmt.Println("--------------------------------------------------------------------------------")
	for _, email := range emails {
		fmt.Printf("%-40s %v\n", email, r.Conflicts[email])
	}
	os.Exit(2)
}

func normalizeEmails(db *gorm.DB, dryRun bool) (*report, error) {
	var users []models.User
	if err := db.Select("id", "email").Order("created_at ASC").Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}

	r := &report{Scanned: len(users), Conflicts: map[string][]string{}}
	owners := make(map[string][]string, len(users))
	for _, u := range users {
		key := services.NormalizeEmail(u.Email)
		owners[key] = append(owners[key], u.ID)
	}
	for email, ids := range owners {
		if len(ids) > 1 {
			r.Conflicts[email] = ids
		}
	}

	for _, u := range users {
		normalized := services.NormalizeEmail(u.Email)
		if normalized == u.Email || len(owners[normalized]) > 1 {
			continue
		}
		if !dryRun {
			if err := db.Model(&models.User{}).Where("id = ?", u.ID).Update("email", normalized).Error; err != nil {
				return r, fmt.Errorf("update %s: %w", u.ID, err)
			}
		}
		r.Updated++
	}
	return r, nil
}
