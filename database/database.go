package database

import (
	"fmt"
	"log"

	"subscription-api/config"
	"subscription-api/internal/domain/billing"
	"subscription-api/internal/domain/plans"
	"subscription-api/internal/domain/subscriptions"
	"subscription-api/internal/domain/users"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB() {
	dsn := config.DB_URL
	if dsn == "" {
		log.Fatal("DB_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	DB = db

	if err := Migrate(DB); err != nil {
		log.Fatal("AutoMigrate error:", err)
	}

	fmt.Println("Connected and migrated successfully")
}

// Migrate runs AutoMigrate for every domain model. Split out so tests can
// run it against their own database handle.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&users.User{},
		&users.VerificationToken{},
		&plans.SubscriptionPlan{},
		&subscriptions.UserSubscription{},
		&subscriptions.SubscriptionHistory{},
		&subscriptions.WebhookEvent{},
		&billing.Payment{},
	)
}
