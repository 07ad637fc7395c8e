// Package main seeds an admin user and a pair of demo accounts for local
// development.
package main

import (
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"

	"cora/internal/config"
	"cora/internal/models"
	"cora/internal/repositories"
)

func main() {
	config.LoadEnv()

	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminEmail == "" || adminPassword == "" {
		log.Fatal("ADMIN_EMAIL and ADMIN_PASSWORD must be set in environment")
	}

	if err := repositories.InitDB(); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer repositories.CloseDB()

	var existing models.User
	if err := repositories.DB.Where("email = ?", adminEmail).First(&existing).Error; err == nil {
		log.Println("admin user already exists")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("failed to hash password:", err)
	}

	admin := models.User{
		Email:        adminEmail,
		Password:     string(hashed),
		Name:         "Administrator",
		Role:         "admin",
		Status:       "active",
		TokenVersion: 1,
	}
	if err := repositories.DB.Create(&admin).Error; err != nil {
		log.Fatal("failed to create admin user:", err)
	}

	// Two funded demo accounts so transfers work out of the box.
	accounts := []models.Account{
		{UserID: admin.ID, BalanceCents: 100_000, Currency: "USD", Status: models.AccountActive},
		{UserID: admin.ID, BalanceCents: 50_000, Currency: "USD", Status: models.AccountActive},
	}
	for i := range accounts {
		if err := repositories.DB.Create(&accounts[i]).Error; err != nil {
			log.Fatal("failed to create demo account:", err)
		}
	}

	log.Printf("admin account created with accounts %d and %d", accounts[0].ID, accounts[1].ID)
}
