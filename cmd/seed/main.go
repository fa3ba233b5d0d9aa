package main

import (
	"fmt"
	"strings"

	"github.com/sahilchouksey/uniportal-api/config"
	"github.com/sahilchouksey/uniportal-api/database"
	"github.com/sahilchouksey/uniportal-api/utils"
)

func main() {
	log, err := utils.NewLogger("development")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Load environment variables
	if err := config.LoadENV(); err != nil {
		log.Warn(".env could not be loaded, using system environment variables", "error", err)
	}

	store, err := database.StartGORM(log)
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		log.Fatal("failed to migrate database", "error", err)
	}

	separator := strings.Repeat("=", 60)
	fmt.Println(separator)
	fmt.Println("University Portal - Database Seeding")
	fmt.Println(separator)

	if err := database.RunSeeds(store.GetDB(), log); err != nil {
		log.Fatal("seeding failed", "error", err)
	}

	fmt.Println(separator)
	fmt.Println("Admin user is created from ADMIN_EMAIL and ADMIN_PASSWORD when both are set.")
	fmt.Println(separator)
}
