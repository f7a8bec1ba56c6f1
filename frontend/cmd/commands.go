package cmd

import (
	"context"
	"fmt"
	"os"

	ishell "github.com/abiosoft/ishell"
	"github.com/common-nighthawk/go-figure"

	"github.com/nuhaid/barakah/frontend/client"
	"github.com/nuhaid/barakah/frontend/offline"
	"github.com/nuhaid/barakah/lib/utils"
)

// guestCommands is a slice of Command structures containing commands that are available to users who have not logged in.
var guestCommands []Command

// userCommands is a slice of Command structures containing commands that are available only to logged in users.
var userCommands []Command

// commonCommands is a slice of Command structures containing commands that are available to all users, regardless of their login status.
var commonCommands []Command

// loggedIn is a boolean variable that indicates whether a user is currently logged in.
var loggedIn bool

// shell represents an instance of the interactive shell used for this application.
var shell *ishell.Shell

// api is the REST client shared by the commands.
var api *client.Client

// checklist is the projected view of today's habits for the signed-in user.
var checklist *client.Checklist

// engine is the offline sync engine; the sync command drains it manually.
var engine *offline.Engine

// watcher answers the connectivity question and triggers background drains.
var watcher *offline.Watcher

// The Command struct defines a user command in the system. Each command has a Name, a Desc (short for description), and a Func (the function to execute when the command is called).
type Command struct {
	Name string                   // Name is the name of the command.
	Desc string                   // Desc is a short description of what the command does.
	Func func(c *ishell.Context) // Func is the function that is executed when the command is invoked.
}

// InitCmd wires the shell commands to the client, checklist and sync
// engine. It must be called before Execute.
func InitCmd(apiClient *client.Client, cl *client.Checklist, e *offline.Engine, w *offline.Watcher) {

	api = apiClient
	checklist = cl
	engine = e
	watcher = w

	// Initialize shell
	shell = ishell.New()

	// Define the commands available to a guest user (not signed in)
	guestCommands = []Command{
		{
			Name: "signin",
			Desc: "Sign in to your account",
			Func: func(c *ishell.Context) {
				var username, password string
				for {
					c.Print("Enter Username: ")
					username = c.ReadLine()

					if len(username) > 1 {
						break
					}
					c.Println("Username must be longer than 1 character.")
				}

				for {
					c.Print("Enter Password: ")
					password = c.ReadPassword()

					if len(password) > 0 {
						break
					}
					c.Println("Password cannot be empty.")
				}

				_, _, err := client.SignIn(username, password)
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				loggedIn = true
				c.Println("Welcome back. Ramadan Mubarak!")
				enterUserMode(c)
			},
		},
		{
			Name: "signup",
			Desc: "Sign up for a new account",
			Func: func(c *ishell.Context) {
				var username, email, password string
				for {
					c.Print("Enter Username: ")
					username = c.ReadLine()

					if len(username) > 1 {
						break
					}
					c.Println("Username must be longer than 1 character.")
				}

				for {
					c.Print("Enter Email: ")
					email = c.ReadLine()

					if utils.ValidateEmail(email) {
						break
					}
					c.Println("Email is not valid.")
				}

				for {
					c.Print("Enter Password: ")
					password = c.ReadPassword()

					if utils.ValidatePassword(password) {
						c.Print("Confirm Password: ")
						confirmPassword := c.ReadPassword()

						if password == confirmPassword {
							break
						} else {
							c.Println()
							c.Println("Passwords do not match. Please try again.")
							c.Println()
						}
					} else {
						c.Println()
						c.Println("Password must be at least 8 characters and contain both letters and numbers.")
						c.Println()
					}
				}

				_, _, err := client.SignUp(username, email, password)
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				loggedIn = true
				c.Println("Account created successfully. You are now signed in.")
				enterUserMode(c)
			},
		},
	}

	// Define the commands available to a signed in user
	userCommands = []Command{
		{
			Name: "checklist",
			Desc: "Show today's habit checklist",
			Func: func(c *ishell.Context) {
				if err := checklist.Refresh(context.Background()); err != nil {
					if !watcher.Online() {
						c.Println("You appear to be offline; showing the last known checklist.")
					} else {
						utils.PrintError(err.Error())
						return
					}
				}
				printChecklist(c)
			},
		},
		{
			Name: "toggle",
			Desc: "Check or uncheck a habit for today",
			Func: func(c *ishell.Context) {
				c.Print("Enter habit name: ")
				name := c.ReadLine()

				result, err := checklist.Toggle(context.Background(), name)
				if err != nil {
					utils.PrintError(err.Error())
					return
				}

				if result.Done {
					c.Printf("'%s' checked (+%d points).\n", result.Habit.Name, result.Habit.PointValue)
				} else {
					c.Printf("'%s' unchecked (-%d points).\n", result.Habit.Name, result.Habit.PointValue)
				}
				if result.Queued {
					c.Println("You are offline; the change was queued and will sync when you reconnect.")
				}
				for _, a := range result.Unlocked {
					c.Printf("Achievement unlocked: %s - %s\n", a.Name, a.Description)
				}
			},
		},
		{
			Name: "stats",
			Desc: "Show your points and streak",
			Func: func(c *ishell.Context) {
				if err := checklist.Refresh(context.Background()); err != nil && watcher.Online() {
					utils.PrintError(err.Error())
					return
				}
				profile := checklist.Profile()
				earned, max := checklist.TodayPoints()
				c.Printf("Total points:   %d\n", profile.Points)
				c.Printf("Current streak: %d day(s)\n", profile.Streak)
				c.Printf("Today:          %d / %d points\n", earned, max)
				if checklist.HasPending() {
					c.Println("Some changes are still waiting to sync.")
				}
			},
		},
		{
			Name: "achievements",
			Desc: "Show earned and remaining achievements",
			Func: func(c *ishell.Context) {
				achievements, err := api.GetAchievements(context.Background())
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				for _, a := range achievements {
					marker := "[ ]"
					if a.Earned {
						marker = "[*]"
					}
					c.Printf("%s %s - %s\n", marker, a.Name, a.Description)
				}
			},
		},
		{
			Name: "sync",
			Desc: "Sync queued changes with the server now",
			Func: func(c *ishell.Context) {
				if !engine.HasPending() {
					c.Println("Nothing to sync.")
					return
				}
				if err := engine.Drain(context.Background()); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("All pending changes synced.")
			},
		},
		{
			Name: "signout",
			Desc: "Sign out from your account",
			Func: func(c *ishell.Context) {
				err := client.SignOut()
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("You are now signed out.")
				loggedIn = false
				for _, command := range userCommands {
					shell.DeleteCmd(command.Name)
				}
				addCommands(shell, guestCommands)
			},
		},
	}

	// Define common commands that are always available, regardless of login state
	commonCommands = []Command{
		{
			Name: "exit",
			Desc: "Exit the application",
			Func: func(c *ishell.Context) {
				fmt.Println("Goodbye!")
				watcher.Stop()
				os.Exit(0)
			},
		},
	}

	// The help command is created separately to avoid the cyclic dependency
	commonCommands = append(commonCommands, Command{
		Name: "help",
		Desc: "List available commands",
		Func: func(c *ishell.Context) {
			c.Println("Available commands:")
			if loggedIn {
				for _, command := range userCommands {
					c.Println("  |-- '" + command.Name + "' : " + command.Desc)
				}
			} else {
				for _, command := range guestCommands {
					c.Println("  |-- '" + command.Name + "' : " + command.Desc)
				}
			}
			for _, command := range commonCommands {
				c.Println("  |-- '" + command.Name + "' : " + command.Desc)
			}
			c.Println()
		},
	})
}

// enterUserMode swaps the guest commands for the user commands, loads the
// checklist and kicks off a drain of anything queued before sign in.
func enterUserMode(c *ishell.Context) {
	for _, command := range guestCommands {
		shell.DeleteCmd(command.Name)
	}
	addCommands(shell, userCommands)

	if err := checklist.Refresh(context.Background()); err == nil {
		printChecklist(c)
	}

	// The session gate blocked any drain attempted before sign in.
	go func() { _ = engine.Drain(context.Background()) }()
}

// printChecklist renders the projected checklist grouped by section.
func printChecklist(c *ishell.Context) {
	habits := checklist.Habits()
	if len(habits) == 0 {
		c.Println("No habits found.")
		return
	}

	category := ""
	for _, h := range habits {
		if h.Category != category {
			category = h.Category
			c.Println()
			c.Println(category)
		}
		marker := "[ ]"
		if checklist.Done(h.ID.Hex()) {
			marker = "[x]"
		}
		c.Printf("  %s %s (%d pts)\n", marker, h.Name, h.PointValue)
	}

	c.Println()
	earned, max := checklist.TodayPoints()
	profile := checklist.Profile()
	c.Printf("Today: %d/%d pts | Total: %d pts | Streak: %d day(s)\n", earned, max, profile.Points, profile.Streak)
	if checklist.HasPending() {
		c.Println("(pending changes waiting to sync)")
	}
}

// addCommands is a helper function that adds the given commands to the shell.
func addCommands(shell *ishell.Shell, commands []Command) {
	for _, command := range commands {
		shell.AddCmd(&ishell.Cmd{
			Name: command.Name,
			Help: "Command: " + command.Name,
			Func: command.Func,
		})
	}
}

// Execute is the main function that executes the shell.
// It welcomes the user, adds common and guest commands to the shell, and runs the shell.
func Execute() {
	shell.Println()
	figure.NewFigure("Barakah", "basic", true).Print()
	shell.Println("Welcome to Barakah -- your Ramadan habit companion. Type 'help' to see a list of commands.")

	addCommands(shell, commonCommands)
	addCommands(shell, guestCommands)

	shell.Run()
}
