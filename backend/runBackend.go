package backend

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nuhaid/barakah/backend/queue"
	"github.com/nuhaid/barakah/backend/server"
	"github.com/nuhaid/barakah/backend/server/auth"
	"github.com/nuhaid/barakah/backend/server/notifications/email"
	storage "github.com/nuhaid/barakah/backend/storage/persistent"
)

// RunBackend is the main function that sets up and runs the backend server.
func RunBackend() {

	// Load the .env file.
	err := godotenv.Load("backend/.env")
	if err != nil {
		fmt.Println("Error loading .env file")
	}

	// Read the environment variables from the .env file using os.Getenv.
	signingKey := os.Getenv("JWT_SIGNING_KEY") // JWT signing key for token generation
	serverURL := os.Getenv("SERVER_URL")       // The URL where the server is running
	dbURI := os.Getenv("MONGODB_URI")          // MongoDB database URI
	dbName := os.Getenv("DB_NAME")             // The name of the MongoDB database
	smtpEmail := os.Getenv("GOOGLE_EMAIL")     // The email address used for sending emails
	smtpPassword := os.Getenv("GOOGLE_PASS")   // The password for the email account
	redisURL := os.Getenv("REDIS_URL")         // The Redis URL for caching
	rabbitMQURL := os.Getenv("RABBITMQ_URL")   // The URL for the RabbitMQ message broker
	numUnlockProducers := 1                    // The number of unlock-notification producers
	numUnlockConsumers := 2                    // The number of unlock-notification consumers
	ctx := context.Background()

	// Initialize the email service with the email and password
	email.InitEmailService(smtpEmail, smtpPassword)

	// Initialize the cache using the Redis URL
	cache := queue.InitUnlockCache(redisURL)

	// Build the achievement-unlock queue
	unlockQueue := queue.BuildUnlockQueue(rabbitMQURL, numUnlockProducers, numUnlockConsumers, cache)

	// Start the queue consumers
	_, _, err = unlockQueue.StartConsumers(ctx)
	if err != nil {
		log.Fatal("error starting queue consumers: ", err)
	}

	// Connect to the database
	store, err := storage.NewStorage(dbName, dbURI)
	if err != nil {
		log.Fatal("error connecting to storage: ", err)
	}

	// Initialize the authentication service and the request handlers
	auth.InitAuth(store, signingKey)
	server.Init(store, cache, unlockQueue)

	// Seed the habit master list and achievement definitions on first start
	if err := server.SeedDefaults(ctx, store); err != nil {
		log.Fatal("error seeding defaults: ", err)
	}

	// Start the core server
	go server.Start(serverURL, signingKey)

	// Setting up the signal interrupt handler to gracefully shutdown our server
	sigs := make(chan os.Signal, 1)

	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigs
		fmt.Println()
		fmt.Println(sig)
		store.Disconnect()
		os.Exit(0)
	}()

	select {}
}
