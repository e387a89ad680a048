// Command migrate applies or rolls back the embedded schema migrations.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/noah-isme/pcquote-api/internal/db"
)

func main() {
	down := flag.Int("down", 0, "roll back this many migrations instead of applying")
	flag.Parse()

	_ = godotenv.Load()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	if *down > 0 {
		if err := db.MigrateDown(dbURL, *down); err != nil {
			log.Fatal(err)
		}
		log.Printf("rolled back %d migration(s)", *down)
		return
	}
	if err := db.Migrate(dbURL); err != nil {
		log.Fatal(err)
	}
	log.Println("migrations up to date")
}
