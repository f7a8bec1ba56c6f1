package frontend

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"

	"github.com/nuhaid/barakah/frontend/client"
	"github.com/nuhaid/barakah/frontend/cmd"
	"github.com/nuhaid/barakah/frontend/offline"
	"github.com/nuhaid/barakah/lib/utils"
)

// RunFrontend wires the REST client, the offline sync engine and the shell,
// then hands control to the interactive loop.
func RunFrontend() {
	// Load the .env file
	err := godotenv.Load("frontend/.env")
	if err != nil {
		fmt.Println("Error loading .env file")
	}

	// Read the environment variables
	signingKey := os.Getenv("JWT_SIGNING_KEY")
	authToken := os.Getenv("AUTH_TOKEN")
	authTokenRefresh := os.Getenv("AUTH_TOKEN_REFRESH")
	serverURL := os.Getenv("SERVER_URL")

	// Set default values if the environment variables are empty
	if authToken == "" {
		authToken = "barakah_auth_token"
	}
	if authTokenRefresh == "" {
		authTokenRefresh = "barakah_auth_token_refresh"
	}
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}

	// Each run starts signed out; queued offline actions survive in the
	// store regardless.
	keyring.Delete(client.KeyringService, authToken)
	keyring.Delete(client.KeyringService, authTokenRefresh)

	client.InitAuthClient(serverURL, signingKey, authToken, authTokenRefresh)
	api := client.NewClient(serverURL)

	storePath, err := offline.DefaultStorePath("barakah")
	if err != nil {
		utils.PrintError("cannot set up the offline queue: " + err.Error())
		return
	}

	engine := offline.NewEngine(offline.NewStore(storePath), api, client.CurrentUserID)
	watcher := offline.NewWatcher(api.Health, engine, 15*time.Second)
	watcher.Start(context.Background())

	checklist := client.NewChecklist(api, engine, watcher.Online)

	cmd.InitCmd(api, checklist, engine, watcher)
	cmd.Execute()
}
